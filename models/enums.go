package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// unmarshalEnum decodes a JSON string and hands it to parse, so unknown values are
// rejected while decoding instead of deep in business logic.
func unmarshalEnum[T any](data []byte, parse func(string) (T, error), dst *T) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := parse(s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

type IngredientType string

const (
	IngredientTypeRawMaterial IngredientType = "RAW_MATERIAL"
	IngredientTypeProcessed   IngredientType = "PROCESSED"
	IngredientTypeMerchandise IngredientType = "MERCHANDISE"
)

func ParseIngredientType(s string) (IngredientType, error) {
	switch t := IngredientType(strings.ToUpper(strings.TrimSpace(s))); t {
	case IngredientTypeRawMaterial, IngredientTypeProcessed, IngredientTypeMerchandise:
		return t, nil
	}
	return "", fmt.Errorf("%w: ingredient type %q", ErrInvalidInput, s)
}

func (t IngredientType) IsValid() bool {
	_, err := ParseIngredientType(string(t))
	return err == nil
}

func (t *IngredientType) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, ParseIngredientType, t)
}

// LedgerTransactionType is the kind of a kardex entry.
type LedgerTransactionType string

const (
	LedgerTransactionTypeIn            LedgerTransactionType = "IN"
	LedgerTransactionTypeOut           LedgerTransactionType = "OUT"
	LedgerTransactionTypeSale          LedgerTransactionType = "SALE"
	LedgerTransactionTypeProductionIn  LedgerTransactionType = "PRODUCTION_IN"
	LedgerTransactionTypeProductionOut LedgerTransactionType = "PRODUCTION_OUT"
	LedgerTransactionTypeAdjustment    LedgerTransactionType = "ADJUSTMENT"
	LedgerTransactionTypeBatchDeletion LedgerTransactionType = "BATCH_DELETION"
)

func ParseLedgerTransactionType(s string) (LedgerTransactionType, error) {
	switch t := LedgerTransactionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case LedgerTransactionTypeIn, LedgerTransactionTypeOut, LedgerTransactionTypeSale,
		LedgerTransactionTypeProductionIn, LedgerTransactionTypeProductionOut,
		LedgerTransactionTypeAdjustment, LedgerTransactionTypeBatchDeletion:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTransactionType, s)
}

func (t LedgerTransactionType) IsValid() bool {
	_, err := ParseLedgerTransactionType(string(t))
	return err == nil
}

// IsDeduction reports whether a shortfall of this kind must fail with ErrInsufficientStock.
func (t LedgerTransactionType) IsDeduction() bool {
	switch t {
	case LedgerTransactionTypeSale, LedgerTransactionTypeOut, LedgerTransactionTypeProductionOut:
		return true
	}
	return false
}

// ReceivesBatch reports whether a positive delta of this kind creates a new lot.
func (t LedgerTransactionType) ReceivesBatch() bool {
	switch t {
	case LedgerTransactionTypeIn, LedgerTransactionTypeProductionIn, LedgerTransactionTypeAdjustment:
		return true
	}
	return false
}

func (t *LedgerTransactionType) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, ParseLedgerTransactionType, t)
}

type BatchSource string

const (
	BatchSourcePurchase   BatchSource = "PURCHASE"
	BatchSourceProduction BatchSource = "PRODUCTION"
	BatchSourceAdjustment BatchSource = "ADJUSTMENT"
)

// BatchSourceFor maps the kind of a receiving mutation to the source recorded on the lot.
func BatchSourceFor(kind LedgerTransactionType) BatchSource {
	switch kind {
	case LedgerTransactionTypeProductionIn:
		return BatchSourceProduction
	case LedgerTransactionTypeAdjustment:
		return BatchSourceAdjustment
	}
	return BatchSourcePurchase
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// orderTransitions is the complete edge set; anything missing is rejected.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusDelivered, OrderStatusCancelled},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllOrderStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: order status %q", ErrInvalidInput, s)
}

func (s OrderStatus) IsValid() bool {
	_, err := ParseOrderStatus(string(s))
	return err == nil
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, ParseOrderStatus, s)
}

type DeliveryType string

const (
	DeliveryTypeDineIn   DeliveryType = "DINE_IN"
	DeliveryTypeTakeaway DeliveryType = "TAKEAWAY"
	DeliveryTypeDelivery DeliveryType = "DELIVERY"
)

func ParseDeliveryType(s string) (DeliveryType, error) {
	switch t := DeliveryType(strings.ToUpper(strings.TrimSpace(s))); t {
	case DeliveryTypeDineIn, DeliveryTypeTakeaway, DeliveryTypeDelivery:
		return t, nil
	}
	return "", fmt.Errorf("%w: delivery type %q", ErrInvalidInput, s)
}

func (t DeliveryType) IsValid() bool {
	_, err := ParseDeliveryType(string(t))
	return err == nil
}

func (t *DeliveryType) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, ParseDeliveryType, t)
}
