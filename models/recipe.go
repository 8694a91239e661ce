package models

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RecipeOwnerType string

const (
	RecipeOwnerProduct  RecipeOwnerType = "PRODUCT"
	RecipeOwnerModifier RecipeOwnerType = "MODIFIER"
)

// RecipeLine is the quantity of one ingredient used per unit of a product or modifier.
type RecipeLine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index:idx_recipe_owner,priority:1;size:36;not null" json:"business_id"`
	OwnerType    RecipeOwnerType `gorm:"index:idx_recipe_owner,priority:2;size:20;not null" json:"owner_type"`
	OwnerId      int             `gorm:"index:idx_recipe_owner,priority:3;not null" json:"owner_id"`
	IngredientId int             `gorm:"not null" json:"ingredient_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// RecipeOwner names the product or modifier a recipe belongs to.
type RecipeOwner struct {
	BusinessId string
	Type       RecipeOwnerType
	Id         int
}

// DBRecipeResolver reads recipes from the database, caching them in Redis when it is connected.
// Concurrent lookups are batched into one query per business.
type DBRecipeResolver struct {
	db     *gorm.DB
	ttl    time.Duration
	loader *dataloader.Loader[RecipeOwner, []RecipeLine]
}

func NewDBRecipeResolver(db *gorm.DB) *DBRecipeResolver {
	r := &DBRecipeResolver{db: db, ttl: config.GetCacheLifespan()}
	// Redis is the cache; the loader only batches.
	r.loader = dataloader.NewBatchedLoader(r.loadRecipeBatch,
		dataloader.WithWait[RecipeOwner, []RecipeLine](2*time.Millisecond),
		dataloader.WithCache[RecipeOwner, []RecipeLine](&dataloader.NoCache[RecipeOwner, []RecipeLine]{}))
	return r
}

func recipeCacheKey(owner RecipeOwner) string {
	return fmt.Sprintf("recipe:%s:%s:%d", owner.BusinessId, owner.Type, owner.Id)
}

// GetRecipeLines returns the product's recipe. A product without recipe lines but with a
// stock ingredient resolves to one unit of that ingredient.
func (r *DBRecipeResolver) GetRecipeLines(ctx context.Context, productId int, businessId string) ([]RecipeLine, error) {
	owner := RecipeOwner{BusinessId: businessId, Type: RecipeOwnerProduct, Id: productId}
	recipes, err := r.LoadRecipes(ctx, []RecipeOwner{owner})
	if err != nil {
		return nil, err
	}
	return recipes[owner], nil
}

func (r *DBRecipeResolver) GetModifierRecipeLines(ctx context.Context, modifierId int, businessId string) ([]RecipeLine, error) {
	owner := RecipeOwner{BusinessId: businessId, Type: RecipeOwnerModifier, Id: modifierId}
	recipes, err := r.LoadRecipes(ctx, []RecipeOwner{owner})
	if err != nil {
		return nil, err
	}
	return recipes[owner], nil
}

// LoadRecipes resolves every owner at once: Redis first, then one batched query for the
// misses, then one product query for products that fall back to their stock ingredient.
func (r *DBRecipeResolver) LoadRecipes(ctx context.Context, owners []RecipeOwner) (map[RecipeOwner][]RecipeLine, error) {
	out := make(map[RecipeOwner][]RecipeLine, len(owners))
	var misses []RecipeOwner
	for _, owner := range owners {
		if _, seen := out[owner]; seen {
			continue
		}
		var lines []RecipeLine
		if ok, err := config.GetRedisObject(ctx, recipeCacheKey(owner), &lines); err == nil && ok {
			out[owner] = lines
			continue
		}
		out[owner] = nil
		misses = append(misses, owner)
	}

	if len(misses) > 0 {
		loaded, errs := r.loader.LoadMany(ctx, misses)()
		for i, owner := range misses {
			if i < len(errs) && errs[i] != nil {
				return nil, errs[i]
			}
			out[owner] = loaded[i]
			if err := config.SetRedisObject(ctx, recipeCacheKey(owner), loaded[i], r.ttl); err != nil {
				config.LogError(config.GetLogger(), "RecipeResolver", "LoadRecipes", "caching recipe", owner, err)
			}
		}
	}

	if err := r.stockIngredientFallback(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DBRecipeResolver) loadRecipeBatch(ctx context.Context, owners []RecipeOwner) []*dataloader.Result[[]RecipeLine] {
	ids := make(map[string]map[RecipeOwnerType][]int)
	for _, o := range owners {
		if ids[o.BusinessId] == nil {
			ids[o.BusinessId] = make(map[RecipeOwnerType][]int)
		}
		ids[o.BusinessId][o.Type] = append(ids[o.BusinessId][o.Type], o.Id)
	}

	grouped := make(map[RecipeOwner][]RecipeLine, len(owners))
	for businessId, byType := range ids {
		var lines []RecipeLine
		err := r.db.WithContext(ctx).
			Where("business_id = ? AND ((owner_type = ? AND owner_id IN ?) OR (owner_type = ? AND owner_id IN ?))",
				businessId, RecipeOwnerProduct, byType[RecipeOwnerProduct], RecipeOwnerModifier, byType[RecipeOwnerModifier]).
			Order("id ASC").
			Find(&lines).Error
		if err != nil {
			return loaderErrors[[]RecipeLine](len(owners), err)
		}
		for _, l := range lines {
			key := RecipeOwner{BusinessId: l.BusinessId, Type: l.OwnerType, Id: l.OwnerId}
			grouped[key] = append(grouped[key], l)
		}
	}

	results := make([]*dataloader.Result[[]RecipeLine], len(owners))
	for i, o := range owners {
		results[i] = &dataloader.Result[[]RecipeLine]{Data: grouped[o]}
	}
	return results
}

func loaderErrors[T any](n int, err error) []*dataloader.Result[T] {
	results := make([]*dataloader.Result[T], n)
	for i := range results {
		results[i] = &dataloader.Result[T]{Error: err}
	}
	return results
}

// stockIngredientFallback fills recipe-less products with one unit of their stock ingredient.
// Products that do not exist fail with ErrNotFound.
func (r *DBRecipeResolver) stockIngredientFallback(ctx context.Context, recipes map[RecipeOwner][]RecipeLine) error {
	empty := make(map[string][]int)
	for owner, lines := range recipes {
		if owner.Type == RecipeOwnerProduct && len(lines) == 0 {
			empty[owner.BusinessId] = append(empty[owner.BusinessId], owner.Id)
		}
	}
	for businessId, ids := range empty {
		var products []Product
		if err := r.db.WithContext(ctx).Where("business_id = ? AND id IN ?", businessId, ids).Find(&products).Error; err != nil {
			return err
		}
		found := make(map[int]*Product, len(products))
		for i := range products {
			found[products[i].ID] = &products[i]
		}
		for _, id := range ids {
			product, ok := found[id]
			if !ok {
				return fmt.Errorf("product %d: %w", id, ErrNotFound)
			}
			if product.StockIngredientId == nil {
				continue
			}
			owner := RecipeOwner{BusinessId: businessId, Type: RecipeOwnerProduct, Id: id}
			recipes[owner] = []RecipeLine{{
				BusinessId:   businessId,
				OwnerType:    RecipeOwnerProduct,
				OwnerId:      id,
				IngredientId: *product.StockIngredientId,
				Quantity:     decimal.NewFromInt(1),
			}}
		}
	}
	return nil
}

// ReplaceRecipe swaps the owner's recipe lines and drops the cached copy.
func ReplaceRecipe(ctx context.Context, tx *gorm.DB, businessId string, ownerType RecipeOwnerType, ownerId int, lines []RecipeLine) error {
	err := tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("business_id = ? AND owner_type = ? AND owner_id = ?", businessId, ownerType, ownerId).
			Delete(&RecipeLine{}).Error; err != nil {
			return err
		}
		for i := range lines {
			if !lines[i].Quantity.IsPositive() {
				return fmt.Errorf("%w: recipe quantity must be positive", ErrInvalidInput)
			}
			lines[i].ID = 0
			lines[i].BusinessId = businessId
			lines[i].OwnerType = ownerType
			lines[i].OwnerId = ownerId
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.Create(&lines).Error
	})
	if err != nil {
		return err
	}
	return config.RemoveRedisKey(ctx, recipeCacheKey(RecipeOwner{BusinessId: businessId, Type: ownerType, Id: ownerId}))
}
