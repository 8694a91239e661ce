package workflow

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type TransformInputLine struct {
	IngredientId int             `json:"ingredient_id" validate:"gt=0"`
	Quantity     decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// TransformInput describes one production run. The output is either an existing ingredient
// (OutputIngredientId) or a new PROCESSED ingredient created from NewIngredient.
type TransformInput struct {
	BusinessId         string                `json:"business_id" validate:"required"`
	LocationId         int                   `json:"location_id" validate:"gt=0"`
	Inputs             []TransformInputLine  `json:"inputs" validate:"required,min=1,dive"`
	OutputIngredientId int                   `json:"output_ingredient_id" validate:"gte=0"`
	NewIngredient      *models.NewIngredient `json:"new_ingredient"`
	OutputQuantity     decimal.Decimal       `json:"output_quantity" validate:"gt=0"`
	Notes              string                `json:"notes"`
	Actor              models.Actor          `json:"-"`
}

func (in *TransformInput) validate() error {
	if err := utils.ValidateStruct(in); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	if (in.OutputIngredientId == 0) == (in.NewIngredient == nil) {
		return fmt.Errorf("%w: exactly one of output ingredient id or new ingredient is required", models.ErrInvalidInput)
	}
	if !utils.FitsQuantityScale(in.OutputQuantity) {
		return fmt.Errorf("%w: output quantity %s has more than %d decimal places", models.ErrInvalidInput, in.OutputQuantity, utils.QuantityPrecision)
	}
	for _, line := range in.Inputs {
		if line.IngredientId == in.OutputIngredientId {
			return fmt.Errorf("%w: ingredient %d is both input and output", models.ErrInvalidInput, line.IngredientId)
		}
		if !utils.FitsQuantityScale(line.Quantity) {
			return fmt.Errorf("%w: input quantity %s has more than %d decimal places", models.ErrInvalidInput, line.Quantity, utils.QuantityPrecision)
		}
	}
	return nil
}

// TransformProduction consumes the inputs FIFO, receives one output lot at the resulting unit
// cost and records every source lot drawn, so RevertProduction can undo it exactly.
func TransformProduction(db *gorm.DB, logger *logrus.Logger, in TransformInput) (event *models.ProductionEvent, err error) {
	db, span := startSpan(db, "ProductionTransformer.TransformProduction",
		attribute.String("business_id", in.BusinessId),
		attribute.Int("location_id", in.LocationId),
		attribute.Int("inputs", len(in.Inputs)))
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	var eventId int
	err = db.Transaction(func(tx *gorm.DB) error {
		outputId := in.OutputIngredientId
		if in.NewIngredient != nil {
			ingredient, err := models.CreateIngredient(tx, in.BusinessId, in.NewIngredient, models.IngredientTypeProcessed)
			if err != nil {
				return err
			}
			outputId = ingredient.ID
		} else if _, err := models.GetIngredient(tx, in.BusinessId, outputId); err != nil {
			return err
		}

		header := models.ProductionEvent{
			BusinessId:         in.BusinessId,
			LocationId:         in.LocationId,
			OutputIngredientId: outputId,
			OutputQuantity:     in.OutputQuantity,
			UnitCost:           decimal.Zero,
			TotalCost:          decimal.Zero,
			Notes:              in.Notes,
			ActorId:            in.Actor.UserId,
			ActorName:          in.Actor.UserName,
		}
		if err := tx.Create(&header).Error; err != nil {
			return err
		}
		ref := LedgerReference{Type: models.ReferenceTypeProductionEvent, Id: header.ID}

		// Aggregates are locked in ingredient order.
		lines := slices.Clone(in.Inputs)
		slices.SortStableFunc(lines, func(a, b TransformInputLine) int {
			return cmp.Compare(a.IngredientId, b.IngredientId)
		})

		totalCost := decimal.Zero
		for _, line := range lines {
			res, err := MutateInventory(tx, logger, LedgerMutation{
				Scope:     models.InventoryScope{BusinessId: in.BusinessId, IngredientId: line.IngredientId, LocationId: in.LocationId},
				Quantity:  line.Quantity.Neg(),
				Kind:      models.LedgerTransactionTypeProductionOut,
				Reference: ref,
				Actor:     in.Actor,
			})
			if err != nil {
				return err
			}
			input := models.ProductionEventInput{
				ProductionEventId: header.ID,
				IngredientId:      line.IngredientId,
				Quantity:          line.Quantity,
				CostAttributed:    res.AttributedCost,
			}
			if err := tx.Create(&input).Error; err != nil {
				return err
			}
			for _, c := range res.Consumptions {
				row := models.ProductionEventInputBatch{
					ProductionEventInputId: input.ID,
					BatchId:                c.BatchId,
					Quantity:               c.Quantity,
					CostAttributed:         c.CostAttributed,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			totalCost = totalCost.Add(res.AttributedCost)
		}

		unitCost := utils.WeightedAverageCost(totalCost, in.OutputQuantity, decimal.Zero)
		out, err := MutateInventory(tx, logger, LedgerMutation{
			Scope:       models.InventoryScope{BusinessId: in.BusinessId, IngredientId: outputId, LocationId: in.LocationId},
			Quantity:    in.OutputQuantity,
			Kind:        models.LedgerTransactionTypeProductionIn,
			CostPerUnit: &unitCost,
			Reference:   ref,
			Actor:       in.Actor,
			Notes:       in.Notes,
		})
		if err != nil {
			return err
		}
		err = tx.Model(&header).Updates(map[string]interface{}{
			"output_batch_id": out.CreatedBatch.ID,
			"unit_cost":       unitCost,
			"total_cost":      utils.RoundMoney(totalCost),
		}).Error
		if err != nil {
			return err
		}
		eventId = header.ID
		return nil
	})
	if err != nil {
		config.LogError(logger, "ProductionTransformer", "TransformProduction", "Transaction", in, err)
		return nil, err
	}
	return models.GetProductionEvent(db, in.BusinessId, eventId)
}

type RevertResult struct {
	Reverted bool `json:"reverted"`
	// Approximate is set when at least one input had no per-lot records and was restored FIFO.
	Approximate bool `json:"approximate"`
	EventId     int  `json:"event_id"`
}

// RevertProduction undoes the production event that created outputBatchId. Reverted is false
// when no event produced the lot; the caller then falls back to ordinary lot deletion.
func RevertProduction(db *gorm.DB, logger *logrus.Logger, businessId string, outputBatchId int, actor models.Actor) (result RevertResult, err error) {
	db, span := startSpan(db, "ProductionTransformer.RevertProduction",
		attribute.String("business_id", businessId),
		attribute.Int("output_batch_id", outputBatchId))
	defer func() { endSpan(span, err) }()

	err = db.Transaction(func(tx *gorm.DB) error {
		event, err := models.FindProductionEventByOutputBatch(tx, businessId, outputBatchId)
		if err != nil || event == nil {
			return err
		}
		inUse, err := models.IsBatchProductionSource(tx, outputBatchId)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("%w: output batch %d was consumed by another production event", models.ErrBatchInUse, outputBatchId)
		}

		ref := LedgerReference{Type: models.ReferenceTypeProductionEvent, Id: event.ID}
		approximate := false
		for _, input := range event.Inputs {
			scope := models.InventoryScope{BusinessId: businessId, IngredientId: input.IngredientId, LocationId: event.LocationId}
			if len(input.Batches) == 0 {
				if _, err := RestoreApproximate(tx, logger, scope, input.Quantity, ref, actor, "production revert"); err != nil {
					return err
				}
				approximate = true
				continue
			}
			draws := make([]BatchConsumption, 0, len(input.Batches))
			for _, b := range input.Batches {
				draws = append(draws, BatchConsumption{BatchId: b.BatchId, Quantity: b.Quantity, CostAttributed: b.CostAttributed})
			}
			if _, err := RestoreToBatches(tx, logger, scope, draws, ref, actor, "production revert"); err != nil {
				return err
			}
		}

		output, err := GetBatch(tx, businessId, outputBatchId)
		if err != nil {
			return err
		}
		if err := removeBatch(tx, logger, output, ref, actor); err != nil {
			return err
		}
		if err := models.DeleteProductionEvent(tx, event); err != nil {
			return err
		}
		result = RevertResult{Reverted: true, Approximate: approximate, EventId: event.ID}
		return nil
	})
	if err != nil {
		config.LogError(logger, "ProductionTransformer", "RevertProduction", "Transaction", outputBatchId, err)
		return RevertResult{}, err
	}
	if result.Approximate {
		config.LogWarn(logger, "ProductionTransformer", "RevertProduction", "legacy event reverted approximately", logrus.Fields{
			"event_id":        result.EventId,
			"output_batch_id": outputBatchId,
			"approximate":     true,
		})
	}
	return result, nil
}

func GetProductionEvent(tx *gorm.DB, businessId string, id int) (*models.ProductionEvent, error) {
	return models.GetProductionEvent(tx, businessId, id)
}
