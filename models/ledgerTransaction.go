package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ReferenceTypeOrder           = "ORDER"
	ReferenceTypeProductionEvent = "PRODUCTION_EVENT"
	ReferenceTypeBatch           = "BATCH"
	ReferenceTypeReconciliation  = "RECONCILIATION"
)

var errLedgerImmutable = errors.New("ledger transactions are append-only")

// LedgerTransaction is one kardex row. Rows are never updated or deleted.
type LedgerTransaction struct {
	ID             string                `gorm:"size:36;primary_key" json:"id"` // uuid
	Seq            int64                 `gorm:"not null;uniqueIndex:idx_ledger_seq,priority:4" json:"seq"`
	BusinessId     string                `gorm:"index:idx_ledger_scope,priority:1;uniqueIndex:idx_ledger_seq,priority:1;size:36;not null" json:"business_id"`
	IngredientId   int                   `gorm:"index:idx_ledger_scope,priority:2;uniqueIndex:idx_ledger_seq,priority:2;not null" json:"ingredient_id"`
	LocationId     int                   `gorm:"index:idx_ledger_scope,priority:3;uniqueIndex:idx_ledger_seq,priority:3;not null" json:"location_id"`
	Type           LedgerTransactionType `gorm:"size:20;not null" json:"type"`
	Quantity       decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"quantity"`
	BalanceAfter   decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"balance_after"`
	AttributedCost decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0" json:"attributed_cost"`
	ShortfallQty   decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0" json:"shortfall_qty"`
	ReferenceType  string                `gorm:"size:30;index:idx_ledger_ref,priority:1" json:"reference_type"`
	ReferenceId    int                   `gorm:"index:idx_ledger_ref,priority:2" json:"reference_id"`
	ActorId        int                   `json:"actor_id"`
	ActorName      string                `gorm:"size:100" json:"actor_name"`
	Notes          string                `gorm:"type:text" json:"notes"`
	CorrelationId  string                `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt      time.Time             `gorm:"autoCreateTime;index:idx_ledger_scope,priority:4" json:"created_at"`
}

func (l *LedgerTransaction) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if !l.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownTransactionType, l.Type)
	}
	if l.Seq == 0 {
		seq, err := nextLedgerSeq(tx.Session(&gorm.Session{NewDB: true}), InventoryScope{BusinessId: l.BusinessId, IngredientId: l.IngredientId, LocationId: l.LocationId})
		if err != nil {
			return err
		}
		l.Seq = seq
	}
	return nil
}

// nextLedgerSeq numbers kardex rows per scope. Writers hold the scope's aggregate lock, and
// idx_ledger_seq rejects any duplicate that slips past it.
func nextLedgerSeq(tx *gorm.DB, scope InventoryScope) (int64, error) {
	var last int64
	err := tx.Model(&LedgerTransaction{}).
		Where("business_id = ? AND ingredient_id = ? AND location_id = ?", scope.BusinessId, scope.IngredientId, scope.LocationId).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (l *LedgerTransaction) BeforeUpdate(tx *gorm.DB) error {
	return errLedgerImmutable
}

func (l *LedgerTransaction) BeforeDelete(tx *gorm.DB) error {
	return errLedgerImmutable
}

// ListLedgerTransactions returns the kardex of one scope in write order.
func ListLedgerTransactions(tx *gorm.DB, scope InventoryScope) ([]LedgerTransaction, error) {
	var rows []LedgerTransaction
	err := tx.Where("business_id = ? AND ingredient_id = ? AND location_id = ?", scope.BusinessId, scope.IngredientId, scope.LocationId).
		Order("seq ASC").
		Find(&rows).Error
	return rows, err
}
