package workflow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testBusinessId = "11111111-2222-3333-4444-555555555555"

var testActor = models.Actor{BusinessId: testBusinessId, UserId: 7, UserName: "Kitchen Lead"}

// newTestDB opens a private in-memory SQLite database. One connection keeps every
// statement on the same database and makes transactions strictly serial.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
	return db
}

func newTestLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedIngredient(t *testing.T, db *gorm.DB, name string, referenceCost string) *models.Ingredient {
	t.Helper()
	ingredient, err := models.CreateIngredient(db, testBusinessId, &models.NewIngredient{
		Name:          name,
		Unit:          "kg",
		ReferenceCost: dec(referenceCost),
	}, models.IngredientTypeRawMaterial)
	if err != nil {
		t.Fatalf("CreateIngredient(%s): %v", name, err)
	}
	return ingredient
}

func seedLocation(t *testing.T, db *gorm.DB) *models.Location {
	t.Helper()
	loc := models.Location{BusinessId: testBusinessId, Name: "Main Kitchen"}
	if err := db.Create(&loc).Error; err != nil {
		t.Fatalf("create location: %v", err)
	}
	return &loc
}

func scopeOf(ingredient *models.Ingredient, loc *models.Location) models.InventoryScope {
	return models.InventoryScope{BusinessId: testBusinessId, IngredientId: ingredient.ID, LocationId: loc.ID}
}

var baseTime = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

// receive books a purchase lot acquired at baseTime plus offset hours.
func receive(t *testing.T, db *gorm.DB, logger *logrus.Logger, scope models.InventoryScope, qty string, cpu string, offset int) *models.Batch {
	t.Helper()
	cost := dec(cpu)
	var res *workflow.MutationResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = workflow.MutateInventory(tx, logger, workflow.LedgerMutation{
			Scope:       scope,
			Quantity:    dec(qty),
			Kind:        models.LedgerTransactionTypeIn,
			CostPerUnit: &cost,
			Supplier:    "Acme Supplies",
			AcquiredAt:  baseTime.Add(time.Duration(offset) * time.Hour),
			Actor:       testActor,
		})
		return err
	})
	if err != nil {
		t.Fatalf("receive %s @ %s: %v", qty, cpu, err)
	}
	return res.CreatedBatch
}

func mutate(db *gorm.DB, logger *logrus.Logger, m workflow.LedgerMutation) (*workflow.MutationResult, error) {
	var res *workflow.MutationResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = workflow.MutateInventory(tx, logger, m)
		return err
	})
	return res, err
}

func reloadBatch(t *testing.T, db *gorm.DB, id int) *models.Batch {
	t.Helper()
	b, err := workflow.GetBatch(db, testBusinessId, id)
	if err != nil {
		t.Fatalf("GetBatch(%d): %v", id, err)
	}
	return b
}

func stockOf(t *testing.T, db *gorm.DB, scope models.InventoryScope) decimal.Decimal {
	t.Helper()
	inv, err := workflow.GetInventory(db, scope)
	if err != nil {
		t.Fatalf("GetInventory: %v", err)
	}
	return inv.Stock
}

func assertInvariant(t *testing.T, db *gorm.DB, scope models.InventoryScope) {
	t.Helper()
	sum, err := models.SumActiveRemaining(db, scope)
	if err != nil {
		t.Fatalf("SumActiveRemaining: %v", err)
	}
	if stock := stockOf(t, db, scope); !stock.Equal(sum) {
		t.Fatalf("%s: stock %s != active batches %s", scope, stock, sum)
	}
}

func assertErrorIs(t *testing.T, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func hasWarning(hook *logtest.Hook, funcName string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["funcName"] == funcName {
			return true
		}
	}
	return false
}
