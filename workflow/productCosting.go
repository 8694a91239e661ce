package workflow

import (
	"context"

	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductMargin struct {
	ProductId  int              `json:"product_id"`
	SalePrice  decimal.Decimal  `json:"sale_price"`
	Cost       *decimal.Decimal `json:"cost"`
	Margin     decimal.Decimal  `json:"margin"`
	MarginPct  decimal.Decimal  `json:"margin_pct"`
	HasRecipe  bool             `json:"has_recipe"`
	LocationId int              `json:"location_id"`
}

// GetProductMargin costs one unit of the product at the location's weighted-average costs.
// Products without a recipe have no cost and a 100% margin.
func GetProductMargin(ctx context.Context, db *gorm.DB, recipes RecipeResolver, businessId string, productId int, locationId int) (*ProductMargin, error) {
	product, err := models.GetProduct(db.WithContext(ctx), businessId, productId)
	if err != nil {
		return nil, err
	}
	lines, err := recipes.GetRecipeLines(ctx, productId, businessId)
	if err != nil {
		return nil, err
	}

	result := &ProductMargin{
		ProductId:  productId,
		SalePrice:  product.SalePrice,
		HasRecipe:  len(lines) > 0,
		LocationId: locationId,
	}
	if result.HasRecipe {
		cost := decimal.Zero
		for _, l := range lines {
			wac, err := weightedAverageCost(db.WithContext(ctx), models.InventoryScope{
				BusinessId:   businessId,
				IngredientId: l.IngredientId,
				LocationId:   locationId,
			})
			if err != nil {
				return nil, err
			}
			cost = cost.Add(l.Quantity.Mul(wac))
		}
		cost = utils.RoundMoney(cost)
		result.Cost = &cost
	}
	result.Margin, result.MarginPct = utils.Margin(product.SalePrice, result.Cost)
	return result, nil
}
