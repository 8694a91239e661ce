package workflow_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/workflow"
)

func TestProductMarginAtWeightedAverageCost(t *testing.T) {
	db := newTestDB(t)
	shop := newBurgerShop(t, db)
	logger, _ := newTestLogger()
	// A second patty lot moves the patty average from 5 to 6.
	receive(t, db, logger, scopeOf(shop.patty, shop.loc), "10", "7", 1)

	burger := models.Product{BusinessId: testBusinessId, Name: "Cheeseburger", SalePrice: dec("20")}
	if err := db.Create(&burger).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	shop.recipes.products[burger.ID] = shop.recipes.products[shop.burgerId]

	margin, err := workflow.GetProductMargin(context.Background(), db, shop.recipes, testBusinessId, burger.ID, shop.loc.ID)
	if err != nil {
		t.Fatalf("GetProductMargin: %v", err)
	}
	if !margin.HasRecipe || margin.Cost == nil || !margin.Cost.Equal(dec("9")) {
		t.Fatalf("expected cost 9, got %+v", margin)
	}
	if !margin.Margin.Equal(dec("11")) || !margin.MarginPct.Equal(dec("55")) {
		t.Fatalf("expected 11 / 55%%, got %s / %s", margin.Margin, margin.MarginPct)
	}
}

func TestProductMarginWithoutRecipe(t *testing.T) {
	db := newTestDB(t)
	loc := seedLocation(t, db)
	water := models.Product{BusinessId: testBusinessId, Name: "Tap Water", SalePrice: dec("1.5")}
	if err := db.Create(&water).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	margin, err := workflow.GetProductMargin(context.Background(), db, &fakeRecipes{}, testBusinessId, water.ID, loc.ID)
	if err != nil {
		t.Fatalf("GetProductMargin: %v", err)
	}
	if margin.HasRecipe || margin.Cost != nil {
		t.Fatalf("product without recipe has no cost, got %+v", margin)
	}
	if !margin.Margin.Equal(dec("1.5")) || !margin.MarginPct.Equal(dec("100")) {
		t.Fatalf("expected 1.5 / 100%%, got %s / %s", margin.Margin, margin.MarginPct)
	}
}

func TestProductMarginUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	_, err := workflow.GetProductMargin(context.Background(), db, &fakeRecipes{}, testBusinessId, 999, 1)
	assertErrorIs(t, err, models.ErrNotFound)
}
