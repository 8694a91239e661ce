package models

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Batch is a FIFO lot: one receipt of an ingredient at one location at a fixed unit cost.
// TotalCost is fixed at receipt and never recomputed.
type Batch struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index:idx_batch_fifo,priority:1;size:36;not null" json:"business_id"`
	IngredientId      int             `gorm:"index:idx_batch_fifo,priority:2;not null" json:"ingredient_id"`
	LocationId        int             `gorm:"index:idx_batch_fifo,priority:3;not null" json:"location_id"`
	QuantityInitial   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_initial"`
	QuantityRemaining decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_remaining"`
	CostPerUnit       decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"cost_per_unit"`
	TotalCost         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_cost"`
	AcquiredAt        time.Time       `gorm:"index:idx_batch_fifo,priority:5;not null" json:"acquired_at"`
	IsActive          bool            `gorm:"index:idx_batch_fifo,priority:4;not null" json:"is_active"`
	Supplier          string          `gorm:"size:100" json:"supplier"`
	Source            BatchSource     `gorm:"size:20;not null" json:"source"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b *Batch) BeforeCreate(tx *gorm.DB) error {
	switch b.Source {
	case BatchSourcePurchase, BatchSourceProduction, BatchSourceAdjustment:
	default:
		return fmt.Errorf("%w: batch source %q", ErrInvalidInput, b.Source)
	}
	if b.QuantityRemaining.IsNegative() || b.QuantityRemaining.GreaterThan(b.QuantityInitial) {
		return fmt.Errorf("%w: batch remaining %s outside [0, %s]", ErrInvalidInput, b.QuantityRemaining, b.QuantityInitial)
	}
	return nil
}

// Value is the lot's current inventory value, proportional to what is left.
func (b *Batch) Value() decimal.Decimal {
	return utils.ProportionalValue(b.TotalCost, b.QuantityRemaining, b.QuantityInitial)
}

// Headroom is how much can be restored into the lot without exceeding its initial quantity.
func (b *Batch) Headroom() decimal.Decimal {
	return b.QuantityInitial.Sub(b.QuantityRemaining)
}

// SaveBatchQuantity persists the lot's remaining quantity and active flag.
func SaveBatchQuantity(tx *gorm.DB, b *Batch) error {
	return tx.Model(b).Select("QuantityRemaining", "IsActive").Updates(b).Error
}

// LockForUpdate adds SELECT ... FOR UPDATE. SQLite has no row locks and serializes writers anyway.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// FindActiveBatches returns the scope's active lots in FIFO order (acquired_at, then id), locked.
func FindActiveBatches(tx *gorm.DB, scope InventoryScope) ([]Batch, error) {
	var batches []Batch
	err := LockForUpdate(tx).
		Where("business_id = ? AND ingredient_id = ? AND location_id = ? AND is_active = ?",
			scope.BusinessId, scope.IngredientId, scope.LocationId, true).
		Order("acquired_at ASC, id ASC").
		Find(&batches).Error
	return batches, err
}

func GetBatchForUpdate(tx *gorm.DB, businessId string, id int) (*Batch, error) {
	var batch Batch
	err := LockForUpdate(tx).Where("business_id = ? AND id = ?", businessId, id).First(&batch).Error
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", id, notFound(err, ErrBatchNotFound))
	}
	return &batch, nil
}
