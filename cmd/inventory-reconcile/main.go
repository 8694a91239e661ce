package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/mmdatafocus/pos_backend/workflow"
	"gorm.io/gorm"
)

const lockType = "inventory-reconcile"

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	ingredientID := flag.Int("ingredient-id", 0, "Optional: ingredient id (requires --location-id)")
	locationID := flag.Int("location-id", 0, "Optional: location id")
	userID := flag.Int("user-id", 0, "Optional: user recorded on the correction rows")
	dryRun := flag.Bool("dry-run", false, "Report drift only (no writes)")
	lockTTL := flag.Duration("lock-ttl", 10*time.Minute, "Redis lock ttl")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}
	if (*ingredientID > 0) != (*locationID > 0) {
		fmt.Fprintln(os.Stderr, "--ingredient-id and --location-id must be given together")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	ctx := utils.SetBusinessIdInContext(context.Background(), *businessID)
	db = db.WithContext(ctx)

	if *dryRun {
		if err := report(db, *businessID); err != nil {
			fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	lock, err := utils.ObtainBusinessLock(ctx, *businessID, lockType, *lockTTL, "inventory-reconcile", "main")
	if err != nil {
		fmt.Fprintf(os.Stderr, "another reconciliation is running: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lock.Release(context.Background()) }()

	actor := models.Actor{BusinessId: *businessID, UserId: *userID, UserName: "inventory-reconcile"}
	var results []workflow.ReconcileResult
	if *ingredientID > 0 {
		scope := models.InventoryScope{BusinessId: *businessID, IngredientId: *ingredientID, LocationId: *locationID}
		var res *workflow.ReconcileResult
		err = db.Transaction(func(tx *gorm.DB) error {
			res, err = workflow.ReconcileInventory(tx, logger, scope, actor)
			return err
		})
		if res != nil {
			results = append(results, *res)
		}
	} else {
		results, err = workflow.ReconcileBusiness(db, logger, *businessID, actor)
	}
	for _, r := range results {
		if r.Corrected {
			fmt.Printf("corrected %s: %s -> %s\n", r.Scope, r.Before.String(), r.After.String())
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("inventory reconcile complete (%d scopes checked)\n", len(results))
}

func report(db *gorm.DB, businessID string) error {
	var rows []models.Inventory
	if err := db.Where("business_id = ?", businessID).Order("ingredient_id, location_id").Find(&rows).Error; err != nil {
		return err
	}
	drift := 0
	for _, inv := range rows {
		sum, err := models.SumActiveRemaining(db, inv.Scope())
		if err != nil {
			return err
		}
		if !sum.Equal(inv.Stock) {
			drift++
			fmt.Printf("drift %s: stock=%s batches=%s\n", inv.Scope(), inv.Stock.String(), sum.String())
		}
	}
	fmt.Printf("%d of %d scopes drifted\n", drift, len(rows))
	return nil
}
