package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is only advanced through the fulfillment state machine, which guards
// CurrentStatus with a conditional update and bumps Version on every change.
type Order struct {
	ID            int           `gorm:"primary_key" json:"id"`
	BusinessId    string        `gorm:"index;size:36;not null" json:"business_id"`
	LocationId    int           `gorm:"index;not null" json:"location_id"`
	OrderNumber   string        `gorm:"size:50" json:"order_number"`
	CurrentStatus OrderStatus   `gorm:"size:20;not null;index" json:"current_status"`
	DeliveryType  DeliveryType  `gorm:"size:20;not null" json:"delivery_type"`
	Version       int           `gorm:"not null;default:0" json:"version"`
	Notes         string        `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
	Details       []OrderDetail `gorm:"foreignKey:OrderId" json:"details"`
}

type OrderDetail struct {
	ID         int                    `gorm:"primary_key" json:"id"`
	OrderId    int                    `gorm:"index;not null" json:"order_id"`
	ProductId  int                    `gorm:"index;not null" json:"product_id"`
	Quantity   decimal.Decimal        `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice  decimal.Decimal        `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	Modifiers  []OrderDetailModifier  `gorm:"foreignKey:OrderDetailId" json:"modifiers"`
	Exclusions []OrderDetailExclusion `gorm:"foreignKey:OrderDetailId" json:"exclusions"`
}

type OrderDetailModifier struct {
	ID            int             `gorm:"primary_key" json:"id"`
	OrderDetailId int             `gorm:"index;not null" json:"order_detail_id"`
	ModifierId    int             `gorm:"not null" json:"modifier_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
}

// OrderDetailExclusion is an ingredient the customer asked to leave out of the line.
type OrderDetailExclusion struct {
	ID            int `gorm:"primary_key" json:"id"`
	OrderDetailId int `gorm:"index;not null" json:"order_detail_id"`
	IngredientId  int `gorm:"not null" json:"ingredient_id"`
}

// ExcludedIngredients returns the set of ingredient ids removed from the line.
func (d *OrderDetail) ExcludedIngredients() map[int]struct{} {
	out := make(map[int]struct{}, len(d.Exclusions))
	for _, e := range d.Exclusions {
		out[e.IngredientId] = struct{}{}
	}
	return out
}

// CreateOrder inserts the order with its lines. New orders always start PENDING.
func CreateOrder(tx *gorm.DB, order *Order) error {
	if order.CurrentStatus == "" {
		order.CurrentStatus = OrderStatusPending
	}
	if order.CurrentStatus != OrderStatusPending {
		return fmt.Errorf("%w: new order must be %s, got %s", ErrInvalidInput, OrderStatusPending, order.CurrentStatus)
	}
	if order.DeliveryType == "" {
		order.DeliveryType = DeliveryTypeDineIn
	}
	if !order.DeliveryType.IsValid() {
		return fmt.Errorf("%w: delivery type %q", ErrInvalidInput, order.DeliveryType)
	}
	for _, d := range order.Details {
		if !d.Quantity.IsPositive() {
			return fmt.Errorf("%w: line quantity must be positive", ErrInvalidInput)
		}
	}
	order.Version = 0
	return tx.Create(order).Error
}

// GetOrder loads the order with lines, modifiers and exclusions.
func GetOrder(tx *gorm.DB, businessId string, id int) (*Order, error) {
	var order Order
	err := tx.Preload("Details", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).
		Preload("Details.Modifiers").
		Preload("Details.Exclusions").
		Where("business_id = ? AND id = ?", businessId, id).
		First(&order).Error
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", id, notFound(err, ErrNotFound))
	}
	return &order, nil
}

// CompareAndSetOrderStatus moves the order from expected to next only if nobody else has
// moved it first. It reports whether the row was updated.
func CompareAndSetOrderStatus(tx *gorm.DB, order *Order, expected OrderStatus, next OrderStatus) (bool, error) {
	result := tx.Model(&Order{}).
		Where("id = ? AND business_id = ? AND current_status = ?", order.ID, order.BusinessId, expected).
		UpdateColumns(map[string]interface{}{
			"current_status": next,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// OrderAudit is the append-only status history of an order.
type OrderAudit struct {
	ID         int         `gorm:"primary_key" json:"id"`
	BusinessId string      `gorm:"index;size:36;not null" json:"business_id"`
	OrderId    int         `gorm:"index;not null" json:"order_id"`
	OldStatus  OrderStatus `gorm:"size:20;not null" json:"old_status"`
	NewStatus  OrderStatus `gorm:"size:20;not null" json:"new_status"`
	ActorId    int         `json:"actor_id"`
	ActorName  string      `gorm:"size:100" json:"actor_name"`
	Metadata   string      `gorm:"type:text" json:"metadata"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func NewOrderAudit(order *Order, from, to OrderStatus, actor Actor, metadata map[string]interface{}) (*OrderAudit, error) {
	audit := &OrderAudit{
		BusinessId: order.BusinessId,
		OrderId:    order.ID,
		OldStatus:  from,
		NewStatus:  to,
		ActorId:    actor.UserId,
		ActorName:  actor.UserName,
	}
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		audit.Metadata = string(b)
	}
	return audit, nil
}

func ListOrderAudits(tx *gorm.DB, businessId string, orderId int) ([]OrderAudit, error) {
	var rows []OrderAudit
	err := tx.Where("business_id = ? AND order_id = ?", businessId, orderId).Order("id ASC").Find(&rows).Error
	return rows, err
}
