package workflow

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type LedgerReference struct {
	Type string
	Id   int
}

// LedgerMutation is one signed stock change. Negative quantities consume lots, positive
// quantities of receiving kinds create one.
type LedgerMutation struct {
	Scope    models.InventoryScope
	Quantity decimal.Decimal              `validate:"ne=0"`
	Kind     models.LedgerTransactionType `validate:"required"`
	// CostPerUnit of the received lot. Nil receives at the current weighted-average cost.
	CostPerUnit *decimal.Decimal
	Supplier    string `validate:"max=100"`
	AcquiredAt  time.Time
	// AllowNegative lets an ADJUSTMENT drain every lot and record the uncovered part as a
	// shortfall. It also needs ALLOW_NEGATIVE_ADJUSTMENT.
	AllowNegative bool
	Reference     LedgerReference
	Actor         models.Actor
	Notes         string
}

type MutationResult struct {
	Inventory      *models.Inventory
	AttributedCost decimal.Decimal
	CreatedBatch   *models.Batch
	Consumptions   []BatchConsumption
	Shortfall      decimal.Decimal
	Transaction    *models.LedgerTransaction
}

func (m *LedgerMutation) validate() error {
	if err := utils.ValidateStruct(m); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownTransactionType, m.Kind)
	}
	if !utils.FitsQuantityScale(m.Quantity) {
		return fmt.Errorf("%w: quantity %s has more than %d decimal places", models.ErrInvalidInput, m.Quantity, utils.QuantityPrecision)
	}
	if m.Quantity.IsNegative() && !m.Kind.IsDeduction() && m.Kind != models.LedgerTransactionTypeAdjustment {
		return fmt.Errorf("%w: %s cannot decrease stock", models.ErrInvalidInput, m.Kind)
	}
	if m.Quantity.IsPositive() && !m.Kind.ReceivesBatch() {
		return fmt.Errorf("%w: %s cannot increase stock", models.ErrInvalidInput, m.Kind)
	}
	if m.CostPerUnit != nil && m.CostPerUnit.IsNegative() {
		return fmt.Errorf("%w: cost per unit must not be negative", models.ErrInvalidInput)
	}
	return nil
}

// MutateInventory applies one mutation: lot draw or receipt, aggregate update and one kardex
// row, all on tx. Run it inside a transaction; every failure leaves tx to be rolled back.
func MutateInventory(tx *gorm.DB, logger *logrus.Logger, m LedgerMutation) (*MutationResult, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if err := requireScope(tx, m.Scope); err != nil {
		config.LogError(logger, "InventoryLedger", "MutateInventory", "requireScope", m.Scope, err)
		return nil, err
	}
	inv, err := models.LockInventory(tx, m.Scope)
	if err != nil {
		config.LogError(logger, "InventoryLedger", "MutateInventory", "LockInventory", m.Scope, err)
		return nil, err
	}

	result := &MutationResult{Inventory: inv, AttributedCost: decimal.Zero, Shortfall: decimal.Zero}
	applied := m.Quantity
	if m.Quantity.IsNegative() {
		allowShortfall := m.Kind == models.LedgerTransactionTypeAdjustment && m.AllowNegative && config.AllowNegativeAdjustment()
		consumed, err := ConsumeBatches(tx, logger, m.Scope, m.Quantity.Neg(), m.Kind, allowShortfall)
		if err != nil {
			return nil, err
		}
		applied = consumed.Drawn().Neg()
		result.Consumptions = consumed.Consumptions
		result.AttributedCost = consumed.TotalCost
		result.Shortfall = consumed.Shortfall
	} else {
		var cpu decimal.Decimal
		if m.CostPerUnit != nil {
			cpu = *m.CostPerUnit
		} else if cpu, err = weightedAverageCost(tx, m.Scope); err != nil {
			return nil, err
		}
		batch, err := ReceiveBatch(tx, m.Scope, m.Quantity, cpu, m.Supplier, models.BatchSourceFor(m.Kind), m.AcquiredAt)
		if err != nil {
			config.LogError(logger, "InventoryLedger", "MutateInventory", "ReceiveBatch", m.Scope, err)
			return nil, err
		}
		result.CreatedBatch = batch
		result.AttributedCost = batch.TotalCost
	}

	inv.Stock = inv.Stock.Add(applied)
	if err := models.SaveInventoryStock(tx, inv); err != nil {
		config.LogError(logger, "InventoryLedger", "MutateInventory", "SaveInventoryStock", m.Scope, err)
		return nil, err
	}
	row, err := appendKardex(tx, m.Scope, m.Kind, applied, inv.Stock, result.AttributedCost, result.Shortfall, m.Reference, m.Actor, m.Notes)
	if err != nil {
		config.LogError(logger, "InventoryLedger", "MutateInventory", "appendKardex", m.Scope, err)
		return nil, err
	}
	result.Transaction = row
	if err := checkInvariant(tx, logger, inv); err != nil {
		return nil, err
	}
	return result, nil
}

// requireScope fails with ErrNotFound unless both the ingredient and the location exist
// in the scope's business.
func requireScope(tx *gorm.DB, scope models.InventoryScope) error {
	if _, err := models.GetIngredient(tx, scope.BusinessId, scope.IngredientId); err != nil {
		return err
	}
	_, err := models.GetLocation(tx, scope.BusinessId, scope.LocationId)
	return err
}

// RestoreToBatches puts recorded lot draws back exactly where they came from.
func RestoreToBatches(tx *gorm.DB, logger *logrus.Logger, scope models.InventoryScope, draws []BatchConsumption, ref LedgerReference, actor models.Actor, notes string) (*RestoreResult, error) {
	inv, err := models.LockInventory(tx, scope)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	cost := decimal.Zero
	result := &RestoreResult{}
	for _, d := range draws {
		batch, err := RestoreBatch(tx, logger, scope.BusinessId, d.BatchId, d.Quantity)
		if err != nil {
			return nil, err
		}
		if batch.IngredientId != scope.IngredientId || batch.LocationId != scope.LocationId {
			return nil, fmt.Errorf("%w: batch %d does not belong to %s", models.ErrInvalidInput, d.BatchId, scope)
		}
		total = total.Add(d.Quantity)
		cost = cost.Add(d.CostAttributed)
		result.Restored = append(result.Restored, d)
	}
	if total.IsZero() {
		return result, nil
	}
	return result, finishRestore(tx, logger, inv, total, cost, ref, actor, notes)
}

// RestoreApproximate restores quantity through RestoreBatchesFIFO.
func RestoreApproximate(tx *gorm.DB, logger *logrus.Logger, scope models.InventoryScope, quantity decimal.Decimal, ref LedgerReference, actor models.Actor, notes string) (*RestoreResult, error) {
	inv, err := models.LockInventory(tx, scope)
	if err != nil {
		return nil, err
	}
	result, err := RestoreBatchesFIFO(tx, logger, scope, quantity)
	if err != nil {
		return nil, err
	}
	cost := decimal.Zero
	for _, r := range result.Restored {
		cost = cost.Add(r.CostAttributed)
	}
	return result, finishRestore(tx, logger, inv, quantity, cost, ref, actor, notes)
}

func finishRestore(tx *gorm.DB, logger *logrus.Logger, inv *models.Inventory, quantity, cost decimal.Decimal, ref LedgerReference, actor models.Actor, notes string) error {
	inv.Stock = inv.Stock.Add(quantity)
	if err := models.SaveInventoryStock(tx, inv); err != nil {
		return err
	}
	_, err := appendKardex(tx, inv.Scope(), models.LedgerTransactionTypeAdjustment, quantity, inv.Stock, cost, decimal.Zero, ref, actor, notes)
	if err != nil {
		return err
	}
	return checkInvariant(tx, logger, inv)
}

func appendKardex(tx *gorm.DB, scope models.InventoryScope, kind models.LedgerTransactionType, quantity, balance, cost, shortfall decimal.Decimal, ref LedgerReference, actor models.Actor, notes string) (*models.LedgerTransaction, error) {
	row := models.LedgerTransaction{
		BusinessId:     scope.BusinessId,
		IngredientId:   scope.IngredientId,
		LocationId:     scope.LocationId,
		Type:           kind,
		Quantity:       quantity,
		BalanceAfter:   balance,
		AttributedCost: cost,
		ShortfallQty:   shortfall,
		ReferenceType:  ref.Type,
		ReferenceId:    ref.Id,
		ActorId:        actor.UserId,
		ActorName:      actor.UserName,
		Notes:          notes,
	}
	if tx.Statement != nil && tx.Statement.Context != nil {
		row.CorrelationId, _ = utils.GetCorrelationIdFromContext(tx.Statement.Context)
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// checkInvariant compares the aggregate against its lots. Drift aborts the transaction
// unless STRICT_LEDGER_INVARIANT is off, in which case it is only logged.
func checkInvariant(tx *gorm.DB, logger *logrus.Logger, inv *models.Inventory) error {
	sum, err := models.SumActiveRemaining(tx, inv.Scope())
	if err != nil {
		return err
	}
	if sum.Equal(inv.Stock) {
		return nil
	}
	err = fmt.Errorf("%w: %s stock %s, active batches %s", models.ErrLedgerDrift, inv.Scope(), inv.Stock, sum)
	if config.StrictLedgerInvariant() {
		config.LogError(logger, "InventoryLedger", "checkInvariant", "aggregate drift", inv.Scope(), err)
		return err
	}
	config.LogWarn(logger, "InventoryLedger", "checkInvariant", err.Error(), logrus.Fields{"scope": inv.Scope().String()})
	return nil
}

func GetInventory(tx *gorm.DB, scope models.InventoryScope) (*models.Inventory, error) {
	return models.FindInventory(tx, scope)
}

type InventoryValuation struct {
	Scope               models.InventoryScope `json:"scope"`
	Stock               decimal.Decimal       `json:"stock"`
	Value               decimal.Decimal       `json:"value"`
	WeightedAverageCost decimal.Decimal       `json:"weighted_average_cost"`
	ActiveBatches       int                   `json:"active_batches"`
}

// GetInventoryValuation values the scope's active lots proportionally.
func GetInventoryValuation(tx *gorm.DB, scope models.InventoryScope) (*InventoryValuation, error) {
	inv, err := models.FindInventory(tx, scope)
	if err != nil {
		return nil, err
	}
	batches, err := ListBatches(tx, scope, true)
	if err != nil {
		return nil, err
	}
	value, qty := decimal.Zero, decimal.Zero
	for i := range batches {
		value = value.Add(batches[i].Value())
		qty = qty.Add(batches[i].QuantityRemaining)
	}
	fallback, err := referenceCost(tx, scope)
	if err != nil {
		return nil, err
	}
	return &InventoryValuation{
		Scope:               scope,
		Stock:               inv.Stock,
		Value:               utils.RoundMoney(value),
		WeightedAverageCost: utils.WeightedAverageCost(value, qty, fallback),
		ActiveBatches:       len(batches),
	}, nil
}

func weightedAverageCost(tx *gorm.DB, scope models.InventoryScope) (decimal.Decimal, error) {
	valuation, err := GetInventoryValuation(tx, scope)
	if err != nil {
		return decimal.Zero, err
	}
	return valuation.WeightedAverageCost, nil
}

func referenceCost(tx *gorm.DB, scope models.InventoryScope) (decimal.Decimal, error) {
	ingredient, err := models.GetIngredient(tx, scope.BusinessId, scope.IngredientId)
	if err != nil {
		return decimal.Zero, err
	}
	return ingredient.ReferenceCost, nil
}

type ReconcileResult struct {
	Scope     models.InventoryScope `json:"scope"`
	Before    decimal.Decimal       `json:"before"`
	After     decimal.Decimal       `json:"after"`
	Corrected bool                  `json:"corrected"`
}

// ReconcileInventory recomputes stock from active lots and records any correction as an
// ADJUSTMENT kardex row. It is a maintenance operation and never runs implicitly.
func ReconcileInventory(tx *gorm.DB, logger *logrus.Logger, scope models.InventoryScope, actor models.Actor) (result *ReconcileResult, err error) {
	tx, span := startSpan(tx, "InventoryLedger.ReconcileInventory",
		attribute.String("business_id", scope.BusinessId),
		attribute.Int("ingredient_id", scope.IngredientId),
		attribute.Int("location_id", scope.LocationId))
	defer func() { endSpan(span, err) }()

	err = tx.Transaction(func(tx *gorm.DB) error {
		inv, err := models.LockInventory(tx, scope)
		if err != nil {
			return err
		}
		sum, err := models.SumActiveRemaining(tx, scope)
		if err != nil {
			return err
		}
		result = &ReconcileResult{Scope: scope, Before: inv.Stock, After: sum}
		if sum.Equal(inv.Stock) {
			return nil
		}
		diff := sum.Sub(inv.Stock)
		inv.Stock = sum
		if err := models.SaveInventoryStock(tx, inv); err != nil {
			return err
		}
		ref := LedgerReference{Type: models.ReferenceTypeReconciliation}
		if _, err := appendKardex(tx, scope, models.LedgerTransactionTypeAdjustment, diff, sum, decimal.Zero, decimal.Zero, ref, actor, "reconciled from active batches"); err != nil {
			return err
		}
		result.Corrected = true
		config.LogWarn(logger, "InventoryLedger", "ReconcileInventory", "aggregate corrected", logrus.Fields{
			"scope":  scope.String(),
			"before": result.Before.String(),
			"after":  sum.String(),
		})
		return nil
	})
	if err != nil {
		config.LogError(logger, "InventoryLedger", "ReconcileInventory", "Transaction", scope, err)
		return nil, err
	}
	return result, nil
}

// ReconcileBusiness reconciles every aggregate of a business, one transaction per scope.
func ReconcileBusiness(db *gorm.DB, logger *logrus.Logger, businessId string, actor models.Actor) ([]ReconcileResult, error) {
	var rows []models.Inventory
	if err := db.Where("business_id = ?", businessId).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	results := make([]ReconcileResult, 0, len(rows))
	for i := range rows {
		r, err := ReconcileInventory(db, logger, rows[i].Scope(), actor)
		if err != nil {
			return results, err
		}
		results = append(results, *r)
	}
	return results, nil
}

type DeleteBatchResult struct {
	RevertedProduction bool
	Approximate        bool
}

// DeleteBatch removes a lot. Lots produced internally are reverted through RevertProduction;
// other lots take their remaining quantity out of the aggregate first. Lots that fed a
// production event are refused.
func DeleteBatch(db *gorm.DB, logger *logrus.Logger, businessId string, batchId int, actor models.Actor) (*DeleteBatchResult, error) {
	result := &DeleteBatchResult{}
	err := db.Transaction(func(tx *gorm.DB) error {
		reverted, err := RevertProduction(tx, logger, businessId, batchId, actor)
		if err != nil {
			return err
		}
		if reverted.Reverted {
			result.RevertedProduction = true
			result.Approximate = reverted.Approximate
			return nil
		}

		inUse, err := models.IsBatchProductionSource(tx, batchId)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("%w: batch %d", models.ErrBatchInUse, batchId)
		}
		batch, err := GetBatch(tx, businessId, batchId)
		if err != nil {
			return err
		}
		return removeBatch(tx, logger, batch, LedgerReference{Type: models.ReferenceTypeBatch, Id: batchId}, actor)
	})
	if err != nil {
		config.LogError(logger, "InventoryLedger", "DeleteBatch", "Transaction", batchId, err)
		return nil, err
	}
	return result, nil
}

// removeBatch takes the lot's remaining quantity out of the aggregate with a BATCH_DELETION
// kardex row, then deletes the lot.
func removeBatch(tx *gorm.DB, logger *logrus.Logger, batch *models.Batch, ref LedgerReference, actor models.Actor) error {
	scope := models.InventoryScope{BusinessId: batch.BusinessId, IngredientId: batch.IngredientId, LocationId: batch.LocationId}
	inv, err := models.LockInventory(tx, scope)
	if err != nil {
		return err
	}
	locked, err := models.GetBatchForUpdate(tx, batch.BusinessId, batch.ID)
	if err != nil {
		return err
	}
	removed := decimal.Zero
	if locked.IsActive {
		removed = locked.QuantityRemaining
	}
	inv.Stock = inv.Stock.Sub(removed)
	if err := models.SaveInventoryStock(tx, inv); err != nil {
		return err
	}
	if _, err := appendKardex(tx, scope, models.LedgerTransactionTypeBatchDeletion, removed.Neg(), inv.Stock, locked.Value(), decimal.Zero, ref, actor, ""); err != nil {
		return err
	}
	if err := tx.Where("business_id = ? AND id = ?", locked.BusinessId, locked.ID).Delete(&models.Batch{}).Error; err != nil {
		return err
	}
	return checkInvariant(tx, logger, inv)
}
