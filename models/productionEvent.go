package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductionEvent records one transformation of input lots into a single output lot.
// Inputs and their per-lot draws are deleted together with the event.
type ProductionEvent struct {
	ID                 int                    `gorm:"primary_key" json:"id"`
	BusinessId         string                 `gorm:"index;size:36;not null" json:"business_id"`
	LocationId         int                    `gorm:"index;not null" json:"location_id"`
	OutputIngredientId int                    `gorm:"index;not null" json:"output_ingredient_id"`
	OutputBatchId      *int                   `gorm:"uniqueIndex" json:"output_batch_id"` // set once the output lot is received
	OutputQuantity     decimal.Decimal        `gorm:"type:decimal(20,4);not null" json:"output_quantity"`
	UnitCost           decimal.Decimal        `gorm:"type:decimal(20,6);not null" json:"unit_cost"`
	TotalCost          decimal.Decimal        `gorm:"type:decimal(20,4);not null" json:"total_cost"`
	Notes              string                 `gorm:"type:text" json:"notes"`
	ActorId            int                    `json:"actor_id"`
	ActorName          string                 `gorm:"size:100" json:"actor_name"`
	CreatedAt          time.Time              `gorm:"autoCreateTime" json:"created_at"`
	Inputs             []ProductionEventInput `gorm:"foreignKey:ProductionEventId;constraint:OnDelete:CASCADE" json:"inputs"`
}

type ProductionEventInput struct {
	ID                int                         `gorm:"primary_key" json:"id"`
	ProductionEventId int                         `gorm:"index;not null" json:"production_event_id"`
	IngredientId      int                         `gorm:"not null" json:"ingredient_id"`
	Quantity          decimal.Decimal             `gorm:"type:decimal(20,4);not null" json:"quantity"`
	CostAttributed    decimal.Decimal             `gorm:"type:decimal(20,4);not null" json:"cost_attributed"`
	Batches           []ProductionEventInputBatch `gorm:"foreignKey:ProductionEventInputId;constraint:OnDelete:CASCADE" json:"batches"`
}

// ProductionEventInputBatch is the quantity drawn from one source lot. Events created before
// these rows were recorded have none, and can only be reverted approximately.
type ProductionEventInputBatch struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	ProductionEventInputId int             `gorm:"index;not null" json:"production_event_input_id"`
	BatchId                int             `gorm:"index;not null" json:"batch_id"`
	Quantity               decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	CostAttributed         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"cost_attributed"`
}

func preloadProductionEvent(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Inputs", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Preload("Inputs.Batches", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

func GetProductionEvent(tx *gorm.DB, businessId string, id int) (*ProductionEvent, error) {
	var event ProductionEvent
	err := preloadProductionEvent(tx).Where("business_id = ? AND id = ?", businessId, id).First(&event).Error
	if err != nil {
		return nil, fmt.Errorf("production event %d: %w", id, notFound(err, ErrNotFound))
	}
	return &event, nil
}

// FindProductionEventByOutputBatch returns nil, nil when no event produced the lot.
func FindProductionEventByOutputBatch(tx *gorm.DB, businessId string, outputBatchId int) (*ProductionEvent, error) {
	var events []ProductionEvent
	err := preloadProductionEvent(tx).
		Where("business_id = ? AND output_batch_id = ?", businessId, outputBatchId).
		Limit(1).Find(&events).Error
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// IsBatchProductionSource reports whether any production event drew from the lot.
func IsBatchProductionSource(tx *gorm.DB, batchId int) (bool, error) {
	var count int64
	err := tx.Model(&ProductionEventInputBatch{}).Where("batch_id = ?", batchId).Count(&count).Error
	return count > 0, err
}

// DeleteProductionEvent removes the event and its children explicitly, so the
// result does not depend on the database enforcing the cascade.
func DeleteProductionEvent(tx *gorm.DB, event *ProductionEvent) error {
	inputIds := make([]int, 0, len(event.Inputs))
	for _, in := range event.Inputs {
		inputIds = append(inputIds, in.ID)
	}
	if len(inputIds) > 0 {
		if err := tx.Where("production_event_input_id IN ?", inputIds).Delete(&ProductionEventInputBatch{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("production_event_id = ?", event.ID).Delete(&ProductionEventInput{}).Error; err != nil {
		return err
	}
	return tx.Where("business_id = ? AND id = ?", event.BusinessId, event.ID).Delete(&ProductionEvent{}).Error
}
