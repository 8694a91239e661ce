package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryScope identifies one stock position.
type InventoryScope struct {
	BusinessId   string `json:"business_id" validate:"required"`
	IngredientId int    `json:"ingredient_id" validate:"gt=0"`
	LocationId   int    `json:"location_id" validate:"gt=0"`
}

func (s InventoryScope) String() string {
	return fmt.Sprintf("%s/ingredient:%d/location:%d", s.BusinessId, s.IngredientId, s.LocationId)
}

// Inventory is the per-(ingredient, location) aggregate. Stock always equals the sum of
// the remaining quantity of the active lots in the same scope.
type Inventory struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"uniqueIndex:idx_inventory_scope,priority:1;size:36;not null" json:"business_id"`
	IngredientId int             `gorm:"uniqueIndex:idx_inventory_scope,priority:2;not null" json:"ingredient_id"`
	LocationId   int             `gorm:"uniqueIndex:idx_inventory_scope,priority:3;not null" json:"location_id"`
	Stock        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"stock"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Inventory) Scope() InventoryScope {
	return InventoryScope{BusinessId: i.BusinessId, IngredientId: i.IngredientId, LocationId: i.LocationId}
}

// LockInventory creates the aggregate row if missing and locks it for the rest of the transaction.
func LockInventory(tx *gorm.DB, scope InventoryScope) (*Inventory, error) {
	seed := Inventory{
		BusinessId:   scope.BusinessId,
		IngredientId: scope.IngredientId,
		LocationId:   scope.LocationId,
		Stock:        decimal.Zero,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}
	var inv Inventory
	err := LockForUpdate(tx).
		Where("business_id = ? AND ingredient_id = ? AND location_id = ?", scope.BusinessId, scope.IngredientId, scope.LocationId).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindInventory reads the aggregate without locking. A missing row reads as zero stock.
func FindInventory(tx *gorm.DB, scope InventoryScope) (*Inventory, error) {
	var inv Inventory
	err := tx.Where("business_id = ? AND ingredient_id = ? AND location_id = ?", scope.BusinessId, scope.IngredientId, scope.LocationId).
		Limit(1).Find(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return &Inventory{
			BusinessId:   scope.BusinessId,
			IngredientId: scope.IngredientId,
			LocationId:   scope.LocationId,
			Stock:        decimal.Zero,
		}, nil
	}
	return &inv, nil
}

func SaveInventoryStock(tx *gorm.DB, inv *Inventory) error {
	return tx.Model(inv).Update("stock", inv.Stock).Error
}

// SumActiveRemaining is the right-hand side of the aggregate invariant.
func SumActiveRemaining(tx *gorm.DB, scope InventoryScope) (decimal.Decimal, error) {
	var batches []Batch
	err := tx.Select("quantity_remaining").
		Where("business_id = ? AND ingredient_id = ? AND location_id = ? AND is_active = ?",
			scope.BusinessId, scope.IngredientId, scope.LocationId, true).
		Find(&batches).Error
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, b := range batches {
		sum = sum.Add(b.QuantityRemaining)
	}
	return sum, nil
}
