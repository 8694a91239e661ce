package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BatchConsumption is the quantity drawn from (or put back into) one lot.
type BatchConsumption struct {
	BatchId        int             `json:"batch_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	CostAttributed decimal.Decimal `json:"cost_attributed"`
}

type ConsumeResult struct {
	Consumptions []BatchConsumption
	TotalCost    decimal.Decimal
	// Shortfall is the part of the request no lot could cover. Only non-zero for
	// adjustments drained through the negative override.
	Shortfall decimal.Decimal
}

// Drawn is the quantity actually taken from lots.
func (r *ConsumeResult) Drawn() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range r.Consumptions {
		sum = sum.Add(c.Quantity)
	}
	return sum
}

type RestoreResult struct {
	Restored     []BatchConsumption
	CreatedBatch *models.Batch
	// Approximate is set when quantities could not be put back into the lots they came from.
	Approximate bool
}

// ConsumeBatches draws quantity from the scope's active lots, oldest first.
// The caller must hold the aggregate lock for the scope.
func ConsumeBatches(tx *gorm.DB, logger *logrus.Logger, scope models.InventoryScope, quantity decimal.Decimal, kind models.LedgerTransactionType, allowShortfall bool) (*ConsumeResult, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: consume quantity must be positive, got %s", models.ErrInvalidInput, quantity)
	}
	batches, err := models.FindActiveBatches(tx, scope)
	if err != nil {
		config.LogError(logger, "BatchAllocator", "ConsumeBatches", "FindActiveBatches", scope, err)
		return nil, err
	}

	available := decimal.Zero
	for _, b := range batches {
		available = available.Add(b.QuantityRemaining)
	}
	result := &ConsumeResult{TotalCost: decimal.Zero, Shortfall: decimal.Zero}
	if available.LessThan(quantity) {
		if kind != models.LedgerTransactionTypeAdjustment || !allowShortfall {
			return nil, fmt.Errorf("%w: %s requested %s, available %s", models.ErrInsufficientStock, scope, quantity, available)
		}
		result.Shortfall = quantity.Sub(available)
		quantity = available
	}

	left := quantity
	for i := range batches {
		if !left.IsPositive() {
			break
		}
		b := &batches[i]
		if !b.QuantityRemaining.IsPositive() {
			continue
		}
		take := decimal.Min(left, b.QuantityRemaining)
		cost := utils.AttributedCost(take, b.CostPerUnit)
		b.QuantityRemaining = b.QuantityRemaining.Sub(take)
		if b.QuantityRemaining.IsZero() {
			b.IsActive = false
		}
		if err := models.SaveBatchQuantity(tx, b); err != nil {
			config.LogError(logger, "BatchAllocator", "ConsumeBatches", "SaveBatchQuantity", b.ID, err)
			return nil, err
		}
		result.Consumptions = append(result.Consumptions, BatchConsumption{
			BatchId:        b.ID,
			Quantity:       take,
			CostAttributed: cost,
		})
		result.TotalCost = result.TotalCost.Add(cost)
		left = left.Sub(take)
	}
	return result, nil
}

// RestoreBatch puts quantity back into one specific lot and reactivates it.
func RestoreBatch(tx *gorm.DB, logger *logrus.Logger, businessId string, batchId int, quantity decimal.Decimal) (*models.Batch, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: restore quantity must be positive, got %s", models.ErrInvalidInput, quantity)
	}
	batch, err := models.GetBatchForUpdate(tx, businessId, batchId)
	if err != nil {
		return nil, err
	}
	restored := batch.QuantityRemaining.Add(quantity)
	if restored.GreaterThan(batch.QuantityInitial) {
		return nil, fmt.Errorf("%w: restoring %s into batch %d would exceed its initial quantity %s",
			models.ErrInvalidInput, quantity, batchId, batch.QuantityInitial)
	}
	batch.QuantityRemaining = restored
	batch.IsActive = true
	if err := models.SaveBatchQuantity(tx, batch); err != nil {
		config.LogError(logger, "BatchAllocator", "RestoreBatch", "SaveBatchQuantity", batchId, err)
		return nil, err
	}
	return batch, nil
}

// RestoreBatchesFIFO puts quantity back without knowing which lots it came from. It fills
// the headroom of active lots newest first and receives the rest as a synthetic adjustment
// lot at the current weighted-average cost. The result is always approximate.
func RestoreBatchesFIFO(tx *gorm.DB, logger *logrus.Logger, scope models.InventoryScope, quantity decimal.Decimal) (*RestoreResult, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: restore quantity must be positive, got %s", models.ErrInvalidInput, quantity)
	}
	wac, err := weightedAverageCost(tx, scope)
	if err != nil {
		return nil, err
	}
	batches, err := models.FindActiveBatches(tx, scope)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{Approximate: true}
	left := quantity
	for i := len(batches) - 1; i >= 0 && left.IsPositive(); i-- {
		b := &batches[i]
		room := b.Headroom()
		if !room.IsPositive() {
			continue
		}
		put := decimal.Min(left, room)
		b.QuantityRemaining = b.QuantityRemaining.Add(put)
		if err := models.SaveBatchQuantity(tx, b); err != nil {
			return nil, err
		}
		result.Restored = append(result.Restored, BatchConsumption{
			BatchId:        b.ID,
			Quantity:       put,
			CostAttributed: utils.AttributedCost(put, b.CostPerUnit),
		})
		left = left.Sub(put)
	}
	if left.IsPositive() {
		batch, err := ReceiveBatch(tx, scope, left, wac, "", models.BatchSourceAdjustment, time.Time{})
		if err != nil {
			return nil, err
		}
		result.CreatedBatch = batch
		result.Restored = append(result.Restored, BatchConsumption{
			BatchId:        batch.ID,
			Quantity:       left,
			CostAttributed: batch.TotalCost,
		})
	}

	config.LogWarn(logger, "BatchAllocator", "RestoreBatchesFIFO", "restored without lot records", logrus.Fields{
		"scope":       scope.String(),
		"quantity":    quantity.String(),
		"approximate": true,
	})
	return result, nil
}

// ReceiveBatch creates a new active lot. TotalCost is computed once here and stored as is.
// A zero acquiredAt means now.
func ReceiveBatch(tx *gorm.DB, scope models.InventoryScope, quantity decimal.Decimal, costPerUnit decimal.Decimal, supplier string, source models.BatchSource, acquiredAt time.Time) (*models.Batch, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: receive quantity must be positive, got %s", models.ErrInvalidInput, quantity)
	}
	if costPerUnit.IsNegative() {
		return nil, fmt.Errorf("%w: cost per unit must not be negative, got %s", models.ErrInvalidInput, costPerUnit)
	}
	if acquiredAt.IsZero() {
		acquiredAt = time.Now().UTC()
	}
	batch := models.Batch{
		BusinessId:        scope.BusinessId,
		IngredientId:      scope.IngredientId,
		LocationId:        scope.LocationId,
		QuantityInitial:   quantity,
		QuantityRemaining: quantity,
		CostPerUnit:       costPerUnit,
		TotalCost:         utils.RoundMoney(quantity.Mul(costPerUnit)),
		AcquiredAt:        acquiredAt,
		IsActive:          true,
		Supplier:          supplier,
		Source:            source,
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func ListBatches(tx *gorm.DB, scope models.InventoryScope, activeOnly bool) ([]models.Batch, error) {
	q := tx.Where("business_id = ? AND ingredient_id = ? AND location_id = ?", scope.BusinessId, scope.IngredientId, scope.LocationId)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var batches []models.Batch
	err := q.Order("acquired_at ASC, id ASC").Find(&batches).Error
	return batches, err
}

func GetBatch(tx *gorm.DB, businessId string, id int) (*models.Batch, error) {
	var batch models.Batch
	if err := tx.Where("business_id = ? AND id = ?", businessId, id).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("batch %d: %w", id, models.ErrBatchNotFound)
		}
		return nil, err
	}
	return &batch, nil
}
