package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ingredientQuantity struct {
	IngredientId int
	Quantity     decimal.Decimal
}

// orderRecipes resolves every product and modifier recipe the order needs. A
// BatchRecipeResolver gets all of them in one call.
func orderRecipes(ctx context.Context, recipes RecipeResolver, order *models.Order) (map[models.RecipeOwner][]models.RecipeLine, error) {
	var owners []models.RecipeOwner
	for i := range order.Details {
		line := &order.Details[i]
		owners = append(owners, models.RecipeOwner{BusinessId: order.BusinessId, Type: models.RecipeOwnerProduct, Id: line.ProductId})
		for _, m := range line.Modifiers {
			owners = append(owners, models.RecipeOwner{BusinessId: order.BusinessId, Type: models.RecipeOwnerModifier, Id: m.ModifierId})
		}
	}
	if batch, ok := recipes.(BatchRecipeResolver); ok {
		return batch.LoadRecipes(ctx, owners)
	}

	out := make(map[models.RecipeOwner][]models.RecipeLine, len(owners))
	for _, owner := range owners {
		if _, done := out[owner]; done {
			continue
		}
		var (
			lines []models.RecipeLine
			err   error
		)
		if owner.Type == models.RecipeOwnerProduct {
			lines, err = recipes.GetRecipeLines(ctx, owner.Id, owner.BusinessId)
		} else {
			lines, err = recipes.GetModifierRecipeLines(ctx, owner.Id, owner.BusinessId)
		}
		if err != nil {
			return nil, fmt.Errorf("recipe of %s %d: %w", strings.ToLower(string(owner.Type)), owner.Id, err)
		}
		out[owner] = lines
	}
	return out, nil
}

// orderIngredients replays the recipes of every line: product recipe times line quantity,
// minus excluded ingredients, plus each modifier's recipe times modifier quantity times line
// quantity. The result is summed per ingredient, rounded to the stored quantity scale and
// sorted by ingredient id so concurrent callers lock aggregates in the same order.
func orderIngredients(ctx context.Context, recipes RecipeResolver, order *models.Order) ([]ingredientQuantity, error) {
	resolved, err := orderRecipes(ctx, recipes, order)
	if err != nil {
		return nil, err
	}
	totals := make(map[int]decimal.Decimal)
	add := func(ingredientId int, qty decimal.Decimal) {
		if !qty.IsPositive() {
			return
		}
		totals[ingredientId] = totals[ingredientId].Add(qty)
	}

	for i := range order.Details {
		line := &order.Details[i]
		excluded := line.ExcludedIngredients()
		product := models.RecipeOwner{BusinessId: order.BusinessId, Type: models.RecipeOwnerProduct, Id: line.ProductId}
		for _, r := range resolved[product] {
			if _, skip := excluded[r.IngredientId]; skip {
				continue
			}
			add(r.IngredientId, r.Quantity.Mul(line.Quantity))
		}
		for _, m := range line.Modifiers {
			modifier := models.RecipeOwner{BusinessId: order.BusinessId, Type: models.RecipeOwnerModifier, Id: m.ModifierId}
			for _, r := range resolved[modifier] {
				add(r.IngredientId, r.Quantity.Mul(m.Quantity).Mul(line.Quantity))
			}
		}
	}

	out := make([]ingredientQuantity, 0, len(totals))
	for id, qty := range totals {
		qty = utils.RoundQuantity(qty)
		if qty.IsZero() {
			continue
		}
		out = append(out, ingredientQuantity{IngredientId: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientId < out[j].IngredientId })
	return out, nil
}

// ApplyOrderSale deducts the order's ingredients with SALE kardex rows in one transaction.
// Recipes are resolved before the transaction opens.
func ApplyOrderSale(ctx context.Context, db *gorm.DB, logger *logrus.Logger, recipes RecipeResolver, order *models.Order, actor models.Actor) ([]*MutationResult, error) {
	plan, err := orderIngredients(ctx, recipes, order)
	if err != nil {
		config.LogError(logger, "OrderSale", "ApplyOrderSale", "orderIngredients", order.ID, err)
		return nil, err
	}
	results := make([]*MutationResult, 0, len(plan))
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range plan {
			res, err := MutateInventory(tx, logger, LedgerMutation{
				Scope:     models.InventoryScope{BusinessId: order.BusinessId, IngredientId: p.IngredientId, LocationId: order.LocationId},
				Quantity:  p.Quantity.Neg(),
				Kind:      models.LedgerTransactionTypeSale,
				Reference: LedgerReference{Type: models.ReferenceTypeOrder, Id: order.ID},
				Actor:     actor,
			})
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "OrderSale", "ApplyOrderSale", "Transaction", order.ID, err)
		return nil, err
	}
	return results, nil
}
