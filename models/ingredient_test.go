package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/pos_backend/models"
)

func TestArchivedSkuCanBeReused(t *testing.T) {
	db := newTestDB(t)
	first, err := models.CreateIngredient(db, bizA, &models.NewIngredient{Name: "Flour", Sku: "FL-01", Unit: "kg"}, models.IngredientTypeRawMaterial)
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}
	if _, err := models.CreateIngredient(db, bizA, &models.NewIngredient{Name: "Flour 2", Sku: "FL-01", Unit: "kg"}, models.IngredientTypeRawMaterial); err == nil {
		t.Fatalf("duplicate active sku should be rejected")
	}

	archived, err := models.ArchiveIngredient(db, bizA, first.ID)
	if err != nil {
		t.Fatalf("ArchiveIngredient: %v", err)
	}
	if archived.Sku != nil || archived.ArchivedSku != "FL-01" || *archived.IsActive {
		t.Fatalf("archived ingredient: %+v", archived)
	}

	second, err := models.CreateIngredient(db, bizA, &models.NewIngredient{Name: "Bread Flour", Sku: "FL-01", Unit: "kg"}, models.IngredientTypeRawMaterial)
	if err != nil {
		t.Fatalf("sku should be free after archiving: %v", err)
	}
	stored, err := models.GetIngredient(db, bizA, first.ID)
	if err != nil {
		t.Fatalf("GetIngredient: %v", err)
	}
	if stored.Sku != nil || stored.ArchivedSku != "FL-01" || second.Sku == nil || *second.Sku != "FL-01" {
		t.Fatalf("stored %+v, new %+v", stored, second)
	}
}

func TestCreateIngredientValidation(t *testing.T) {
	db := newTestDB(t)
	cases := []*models.NewIngredient{
		{Name: "", Unit: "kg"},
		{Name: "Salt", Unit: ""},
		{Name: "Salt", Unit: "kg", ReferenceCost: dec("-1")},
		{Name: "Salt", Unit: "kg", Type: "FROZEN"},
	}
	for _, in := range cases {
		if _, err := models.CreateIngredient(db, bizA, in, models.IngredientTypeRawMaterial); !errors.Is(err, models.ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", in, err)
		}
	}

	ing, err := models.CreateIngredient(db, bizA, &models.NewIngredient{Name: " Dough ", Unit: "kg"}, models.IngredientTypeProcessed)
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}
	if ing.Name != "Dough" || ing.Type != models.IngredientTypeProcessed || ing.Sku != nil {
		t.Fatalf("got %+v", ing)
	}

	if _, err := models.GetIngredient(db, "another-business", ing.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("ingredient of another business must not be found, got %v", err)
	}
}

func TestBatchRejectsInconsistentQuantities(t *testing.T) {
	db := newTestDB(t)
	bad := []models.Batch{
		{BusinessId: bizA, IngredientId: 1, LocationId: 1, QuantityInitial: dec("5"), QuantityRemaining: dec("6"), Source: models.BatchSourcePurchase},
		{BusinessId: bizA, IngredientId: 1, LocationId: 1, QuantityInitial: dec("5"), QuantityRemaining: dec("-1"), Source: models.BatchSourcePurchase},
		{BusinessId: bizA, IngredientId: 1, LocationId: 1, QuantityInitial: dec("5"), QuantityRemaining: dec("5"), Source: "GIFT"},
	}
	for _, b := range bad {
		if err := db.Create(&b).Error; !errors.Is(err, models.ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", b, err)
		}
	}
	if _, err := models.GetBatchForUpdate(db, bizA, 12345); !errors.Is(err, models.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}
