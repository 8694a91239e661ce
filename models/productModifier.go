package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductModifier is an add-on chosen on an order line ("extra cheese"). It may carry
// its own recipe.
type ProductModifier struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;size:36;not null" json:"business_id"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	IsActive   *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
