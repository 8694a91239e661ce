package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/mmdatafocus/pos_backend/workflow"
	"gorm.io/gorm"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	batchID := flag.Int("batch-id", 0, "Required: output batch id of the production event")
	userID := flag.Int("user-id", 0, "Optional: user recorded on the ledger rows")
	deleteAny := flag.Bool("delete", false, "Delete the batch even when it was not produced internally")
	dryRun := flag.Bool("dry-run", true, "Show the event only (no writes)")
	confirm := flag.String("confirm", "", "Type REVERT to proceed when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || *batchID <= 0 {
		fmt.Fprintln(os.Stderr, "--business-id and --batch-id are required")
		os.Exit(1)
	}
	if !*dryRun && strings.TrimSpace(*confirm) != "REVERT" {
		fmt.Fprintln(os.Stderr, "set --confirm=REVERT to proceed")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	ctx := utils.SetBusinessIdInContext(context.Background(), *businessID)
	db = db.WithContext(ctx)

	if *dryRun {
		printEvent(db, *businessID, *batchID)
		return
	}

	logger := config.GetLogger()
	actor := models.Actor{BusinessId: *businessID, UserId: *userID, UserName: "production-revert"}
	if *deleteAny {
		res, err := workflow.DeleteBatch(db, logger, *businessID, *batchID, actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "delete failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("batch %d deleted (reverted_production=%v approximate=%v)\n", *batchID, res.RevertedProduction, res.Approximate)
		return
	}

	res, err := workflow.RevertProduction(db, logger, *businessID, *batchID, actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "revert failed: %v\n", err)
		os.Exit(1)
	}
	if !res.Reverted {
		fmt.Printf("batch %d was not produced internally; nothing reverted (use --delete)\n", *batchID)
		return
	}
	if res.Approximate {
		fmt.Println("warning: some inputs had no per-batch records and were restored approximately")
	}
	fmt.Printf("production event %d reverted\n", res.EventId)
}

func printEvent(db *gorm.DB, businessID string, batchID int) {
	event, err := models.FindProductionEventByOutputBatch(db, businessID, batchID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup failed: %v\n", err)
		os.Exit(1)
	}
	if event == nil {
		fmt.Printf("batch %d has no production event\n", batchID)
		return
	}
	fmt.Printf("event=%d output_ingredient=%d output_qty=%s unit_cost=%s total_cost=%s\n",
		event.ID, event.OutputIngredientId, event.OutputQuantity.String(), event.UnitCost.String(), event.TotalCost.String())
	for _, in := range event.Inputs {
		fmt.Printf("  input ingredient=%d qty=%s cost=%s batches=%d\n", in.IngredientId, in.Quantity.String(), in.CostAttributed.String(), len(in.Batches))
		for _, b := range in.Batches {
			fmt.Printf("    batch=%d qty=%s cost=%s\n", b.BatchId, b.Quantity.String(), b.CostAttributed.String())
		}
	}
}
