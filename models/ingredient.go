package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Ingredient struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;uniqueIndex:idx_ingredient_sku,priority:1;size:36;not null" json:"business_id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Sku           *string         `gorm:"size:50;uniqueIndex:idx_ingredient_sku,priority:2" json:"sku"`
	ArchivedSku   string          `gorm:"size:50" json:"archived_sku"`
	Unit          string          `gorm:"size:20;not null" json:"unit"`
	ReferenceCost decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"reference_cost"`
	Type          IngredientType  `gorm:"size:20;not null" json:"type"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIngredient struct {
	Name          string          `json:"name" validate:"required,max=100"`
	Sku           string          `json:"sku" validate:"max=50"`
	Unit          string          `json:"unit" validate:"required,max=20"`
	ReferenceCost decimal.Decimal `json:"reference_cost" validate:"gte=0"`
	Type          IngredientType  `json:"type"`
}

func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if !i.Type.IsValid() {
		return fmt.Errorf("%w: ingredient type %q", ErrInvalidInput, i.Type)
	}
	return nil
}

// CreateIngredient inserts a new active ingredient. An empty input.Type falls back to defaultType.
func CreateIngredient(tx *gorm.DB, businessId string, input *NewIngredient, defaultType IngredientType) (*Ingredient, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	ingredientType := input.Type
	if ingredientType == "" {
		ingredientType = defaultType
	}
	ingredient := Ingredient{
		BusinessId:    businessId,
		Name:          strings.TrimSpace(input.Name),
		Unit:          input.Unit,
		ReferenceCost: input.ReferenceCost,
		Type:          ingredientType,
		IsActive:      utils.NewTrue(),
	}
	if sku := strings.TrimSpace(input.Sku); sku != "" {
		ingredient.Sku = &sku
	}
	if err := tx.Create(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func GetIngredient(tx *gorm.DB, businessId string, id int) (*Ingredient, error) {
	var ingredient Ingredient
	err := tx.Where("business_id = ? AND id = ?", businessId, id).First(&ingredient).Error
	if err != nil {
		return nil, fmt.Errorf("ingredient %d: %w", id, notFound(err, ErrNotFound))
	}
	return &ingredient, nil
}

// ArchiveIngredient deactivates the ingredient and moves its sku to ArchivedSku,
// releasing the identifier for reuse.
func ArchiveIngredient(tx *gorm.DB, businessId string, id int) (*Ingredient, error) {
	ingredient, err := GetIngredient(tx, businessId, id)
	if err != nil {
		return nil, err
	}
	if ingredient.Sku != nil {
		ingredient.ArchivedSku = *ingredient.Sku
	}
	err = tx.Model(ingredient).Updates(map[string]interface{}{
		"sku":          nil,
		"archived_sku": ingredient.ArchivedSku,
		"is_active":    false,
	}).Error
	if err != nil {
		return nil, err
	}
	ingredient.Sku = nil
	ingredient.IsActive = utils.NewFalse()
	return ingredient, nil
}

type Location struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;size:36;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetLocation(tx *gorm.DB, businessId string, id int) (*Location, error) {
	var loc Location
	err := tx.Where("business_id = ? AND id = ?", businessId, id).First(&loc).Error
	if err != nil {
		return nil, fmt.Errorf("location %d: %w", id, notFound(err, ErrNotFound))
	}
	return &loc, nil
}
