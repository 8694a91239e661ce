package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable menu item. Products without a recipe may be stocked directly
// through StockIngredientId (bottled drinks and other merchandise).
type Product struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;size:36;not null" json:"business_id"`
	Name              string          `gorm:"size:100;not null" json:"name"`
	SalePrice         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"sale_price"`
	StockIngredientId *int            `gorm:"index" json:"stock_ingredient_id"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetProduct(tx *gorm.DB, businessId string, id int) (*Product, error) {
	var product Product
	err := tx.Where("business_id = ? AND id = ?", businessId, id).First(&product).Error
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", id, notFound(err, ErrNotFound))
	}
	return &product, nil
}
