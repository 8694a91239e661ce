package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/mmdatafocus/pos_backend/workflow"
	"gorm.io/gorm"
)

func corruptStock(t *testing.T, db *gorm.DB, scope models.InventoryScope, stock string) {
	t.Helper()
	err := db.Model(&models.Inventory{}).
		Where("business_id = ? AND ingredient_id = ? AND location_id = ?", scope.BusinessId, scope.IngredientId, scope.LocationId).
		UpdateColumn("stock", dec(stock)).Error
	if err != nil {
		t.Fatalf("corrupt stock: %v", err)
	}
}

func TestInventoryValuationUntouchedLotIsExact(t *testing.T) {
	db := newTestDB(t)
	logger, _ := newTestLogger()
	scope := scopeOf(seedIngredient(t, db, "Saffron", "0"), seedLocation(t, db))

	cost := dec("50000").Div(dec("30")).Round(6)
	res, err := mutate(db, logger, workflow.LedgerMutation{Scope: scope, Quantity: dec("30"), Kind: models.LedgerTransactionTypeIn, CostPerUnit: &cost, Actor: testActor})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got := res.CreatedBatch.TotalCost.StringFixed(2); got != "50000.00" {
		t.Fatalf("expected total cost 50000.00, got %s", got)
	}

	valuation, err := workflow.GetInventoryValuation(db, scope)
	if err != nil {
		t.Fatalf("GetInventoryValuation: %v", err)
	}
	if got := valuation.Value.StringFixed(2); got != "50000.00" {
		t.Fatalf("expected value 50000.00, got %s", got)
	}
	if valuation.ActiveBatches != 1 || !valuation.Stock.Equal(dec("30")) {
		t.Fatalf("valuation: %+v", valuation)
	}
}

func TestMutationAbortsOnAggregateDrift(t *testing.T) {
	db := newTestDB(t)
	logger, _ := newTestLogger()
	scope := scopeOf(seedIngredient(t, db, "Eggs", "0"), seedLocation(t, db))
	receive(t, db, logger, scope, "12", "0.3", 0)
	corruptStock(t, db, scope, "20")

	cost := dec("0.3")
	in := workflow.LedgerMutation{Scope: scope, Quantity: dec("6"), Kind: models.LedgerTransactionTypeIn, CostPerUnit: &cost, Actor: testActor}

	t.Setenv("STRICT_LEDGER_INVARIANT", "true")
	_, err := mutate(db, logger, in)
	assertErrorIs(t, err, models.ErrLedgerDrift)
	if stock := stockOf(t, db, scope); !stock.Equal(dec("20")) {
		t.Fatalf("failed mutation must roll back, stock %s", stock)
	}

	t.Setenv("STRICT_LEDGER_INVARIANT", "false")
	if _, err := mutate(db, logger, in); err != nil {
		t.Fatalf("non-strict mutation: %v", err)
	}
}

func TestReconcileInventoryCorrectsDrift(t *testing.T) {
	db := newTestDB(t)
	logger, _ := newTestLogger()
	scope := scopeOf(seedIngredient(t, db, "Tomato", "0"), seedLocation(t, db))
	receive(t, db, logger, scope, "10", "1", 0)
	corruptStock(t, db, scope, "13.5")

	res, err := workflow.ReconcileInventory(db, logger, scope, testActor)
	if err != nil {
		t.Fatalf("ReconcileInventory: %v", err)
	}
	if !res.Corrected || !res.Before.Equal(dec("13.5")) || !res.After.Equal(dec("10")) {
		t.Fatalf("reconcile result: %+v", res)
	}
	assertInvariant(t, db, scope)

	rows, err := models.ListLedgerTransactions(db, scope)
	if err != nil {
		t.Fatalf("ListLedgerTransactions: %v", err)
	}
	last := rows[len(rows)-1]
	if last.Type != models.LedgerTransactionTypeAdjustment || !last.Quantity.Equal(dec("-3.5")) || last.ReferenceType != models.ReferenceTypeReconciliation {
		t.Fatalf("reconciliation kardex row: %+v", last)
	}

	res, err = workflow.ReconcileInventory(db, logger, scope, testActor)
	if err != nil {
		t.Fatalf("second ReconcileInventory: %v", err)
	}
	if res.Corrected {
		t.Fatalf("consistent aggregate must not be corrected again")
	}
}

func TestReconcileBusinessVisitsEveryScope(t *testing.T) {
	db := newTestDB(t)
	logger, _ := newTestLogger()
	loc := seedLocation(t, db)
	a := scopeOf(seedIngredient(t, db, "Onion", "0"), loc)
	b := scopeOf(seedIngredient(t, db, "Garlic", "0"), loc)
	receive(t, db, logger, a, "3", "1", 0)
	receive(t, db, logger, b, "4", "1", 0)
	corruptStock(t, db, b, "1")

	results, err := workflow.ReconcileBusiness(db, logger, testBusinessId, testActor)
	if err != nil {
		t.Fatalf("ReconcileBusiness: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 scopes, got %d", len(results))
	}
	corrected := 0
	for _, r := range results {
		if r.Corrected {
			corrected++
		}
	}
	if corrected != 1 {
		t.Fatalf("expected exactly one correction, got %d", corrected)
	}
	assertInvariant(t, db, b)
}

func TestDeleteBatchTakesRemainingOutOfAggregate(t *testing.T) {
	db := newTestDB(t)
	logger, _ := newTestLogger()
	scope := scopeOf(seedIngredient(t, db, "Lettuce", "0"), seedLocation(t, db))
	a := receive(t, db, logger, scope, "10", "2", 0)
	receive(t, db, logger, scope, "5", "2", 1)
	if _, err := mutate(db, logger, workflow.LedgerMutation{Scope: scope, Quantity: dec("-4"), Kind: models.LedgerTransactionTypeOut, Actor: testActor}); err != nil {
		t.Fatalf("consume: %v", err)
	}

	res, err := workflow.DeleteBatch(db, logger, testBusinessId, a.ID, testActor)
	if err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if res.RevertedProduction {
		t.Fatalf("a purchase lot is not a production output")
	}
	_, err = workflow.GetBatch(db, testBusinessId, a.ID)
	assertErrorIs(t, err, models.ErrBatchNotFound)
	if stock := stockOf(t, db, scope); !stock.Equal(dec("5")) {
		t.Fatalf("expected stock 5, got %s", stock)
	}
	assertInvariant(t, db, scope)

	rows, err := models.ListLedgerTransactions(db, scope)
	if err != nil {
		t.Fatalf("ListLedgerTransactions: %v", err)
	}
	last := rows[len(rows)-1]
	if last.Type != models.LedgerTransactionTypeBatchDeletion || !last.Quantity.Equal(dec("-6")) {
		t.Fatalf("deletion kardex row: %+v", last)
	}

	_, err = workflow.DeleteBatch(db, logger, testBusinessId, a.ID, testActor)
	assertErrorIs(t, err, models.ErrBatchNotFound)
}

func TestKardexRowsAreImmutable(t *testing.T) {
	db := newTestDB(t)
	logger, _ := newTestLogger()
	scope := scopeOf(seedIngredient(t, db, "Basil", "0"), seedLocation(t, db))
	receive(t, db, logger, scope, "1", "1", 0)

	rows, err := models.ListLedgerTransactions(db, scope)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListLedgerTransactions: %v (%d rows)", err, len(rows))
	}
	row := rows[0]
	if row.ID == "" {
		t.Fatalf("kardex row must get a uuid")
	}
	row.Notes = "edited"
	if err := db.Save(&row).Error; err == nil {
		t.Fatalf("updating a kardex row must fail")
	}
	if err := db.Delete(&row).Error; err == nil {
		t.Fatalf("deleting a kardex row must fail")
	}
}

func TestMutationOfUnknownScopeIsNotFound(t *testing.T) {
	db := newTestDB(t)
	logger, _ := newTestLogger()
	salt := seedIngredient(t, db, "Salt", "0.5")
	loc := seedLocation(t, db)
	otherLoc := models.Location{BusinessId: "99999999-0000-0000-0000-000000000000", Name: "Other Kitchen"}
	if err := db.Create(&otherLoc).Error; err != nil {
		t.Fatalf("create location: %v", err)
	}

	cost := dec("1")
	cases := map[string]models.InventoryScope{
		"unknown ingredient":      {BusinessId: testBusinessId, IngredientId: 9999, LocationId: loc.ID},
		"unknown location":        {BusinessId: testBusinessId, IngredientId: salt.ID, LocationId: 8888},
		"neither exists":          {BusinessId: testBusinessId, IngredientId: 9999, LocationId: 8888},
		"location of another biz": {BusinessId: testBusinessId, IngredientId: salt.ID, LocationId: otherLoc.ID},
	}
	for name, scope := range cases {
		_, err := mutate(db, logger, workflow.LedgerMutation{Scope: scope, Quantity: dec("10"), Kind: models.LedgerTransactionTypeIn, CostPerUnit: &cost, Actor: testActor})
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", name, err)
		}
	}

	var inventories, batches, kardex int64
	db.Model(&models.Inventory{}).Count(&inventories)
	db.Model(&models.Batch{}).Count(&batches)
	db.Model(&models.LedgerTransaction{}).Count(&kardex)
	if inventories != 0 || batches != 0 || kardex != 0 {
		t.Fatalf("rejected mutations left rows behind: %d aggregates, %d batches, %d kardex", inventories, batches, kardex)
	}

	if _, err := workflow.GetInventoryValuation(db, models.InventoryScope{BusinessId: testBusinessId, IngredientId: 9999, LocationId: loc.ID}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("valuation of unknown ingredient: expected ErrNotFound, got %v", err)
	}
}

func TestMutationRejectsQuantitiesFinerThanStoredScale(t *testing.T) {
	db := newTestDB(t)
	logger, _ := newTestLogger()
	scope := scopeOf(seedIngredient(t, db, "Vanilla", "0"), seedLocation(t, db))
	receive(t, db, logger, scope, "10", "2", 0)

	for _, qty := range []string{"0.00625", "-0.00001", "1.23456"} {
		kind := models.LedgerTransactionTypeIn
		if dec(qty).IsNegative() {
			kind = models.LedgerTransactionTypeOut
		}
		_, err := mutate(db, logger, workflow.LedgerMutation{Scope: scope, Quantity: dec(qty), Kind: kind, Actor: testActor})
		assertErrorIs(t, err, models.ErrInvalidInput)
	}
	if stock := stockOf(t, db, scope); !stock.Equal(dec("10")) {
		t.Fatalf("rejected mutations changed stock: %s", stock)
	}

	// Trailing zeros do not count as extra places.
	if _, err := mutate(db, logger, workflow.LedgerMutation{Scope: scope, Quantity: dec("-1.250000"), Kind: models.LedgerTransactionTypeOut, Actor: testActor}); err != nil {
		t.Fatalf("consume 1.250000: %v", err)
	}
	if stock := stockOf(t, db, scope); !stock.Equal(dec("8.75")) {
		t.Fatalf("expected 8.75, got %s", stock)
	}
	assertInvariant(t, db, scope)
}

func TestLedgerRunsUnderTenantGuard(t *testing.T) {
	db := newTestDB(t)
	if err := db.Use(config.NewTenantGuardPlugin()); err != nil {
		t.Fatalf("Use tenant guard: %v", err)
	}
	logger, _ := newTestLogger()
	scope := scopeOf(seedIngredient(t, db, "Rice", "1.2"), seedLocation(t, db))

	// Another tenant's lot, written with the guard bypassed.
	const otherBusiness = "99999999-0000-0000-0000-000000000000"
	admin := db.WithContext(utils.SetSkipTenantScopeInContext(context.Background(), true))
	foreign := models.Batch{
		BusinessId: otherBusiness, IngredientId: scope.IngredientId, LocationId: scope.LocationId,
		QuantityInitial: dec("100"), QuantityRemaining: dec("100"), CostPerUnit: dec("1"), TotalCost: dec("100"),
		Source: models.BatchSourcePurchase, IsActive: true,
	}
	if err := admin.Create(&foreign).Error; err != nil {
		t.Fatalf("create foreign batch: %v", err)
	}

	tenant := db.WithContext(utils.SetBusinessIdInContext(context.Background(), testBusinessId))
	receive(t, tenant, logger, scope, "20", "1.2", 0)
	if _, err := mutate(tenant, logger, workflow.LedgerMutation{Scope: scope, Quantity: dec("-7.5"), Kind: models.LedgerTransactionTypeOut, Actor: testActor}); err != nil {
		t.Fatalf("consume under guard: %v", err)
	}
	if stock := stockOf(t, tenant, scope); !stock.Equal(dec("12.5")) {
		t.Fatalf("expected 12.5, got %s", stock)
	}
	assertInvariant(t, tenant, scope)

	var visible []models.Batch
	if err := tenant.Find(&visible).Error; err != nil {
		t.Fatalf("Find batches: %v", err)
	}
	for _, b := range visible {
		if b.BusinessId != testBusinessId {
			t.Fatalf("tenant query leaked batch %d of %s", b.ID, b.BusinessId)
		}
	}
	if len(visible) != 1 {
		t.Fatalf("expected 1 visible batch, got %d", len(visible))
	}
	var after models.Batch
	if err := admin.First(&after, foreign.ID).Error; err != nil {
		t.Fatalf("reload foreign batch: %v", err)
	}
	if !after.QuantityRemaining.Equal(dec("100")) {
		t.Fatalf("foreign batch touched: %s", after.QuantityRemaining)
	}
}
