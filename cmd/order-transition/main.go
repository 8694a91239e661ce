// order-transition moves one order along the fulfillment graph with the production
// collaborators: role permissions cached in Redis, the audit_events log and the
// notification transport selected by NOTIFY_TRANSPORT.
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
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	orderID := flag.Int("order-id", 0, "Required: order id")
	status := flag.String("status", "", "Required: target status (CONFIRMED, PREPARING, READY, DELIVERED, CANCELLED)")
	userID := flag.Int("user-id", 0, "Required: acting user id")
	userName := flag.String("user-name", "", "Optional: acting user name")
	locationID := flag.Int("location-id", 0, "Optional: location the actor works at")
	correlationID := flag.String("correlation-id", "", "Optional: correlation id stamped on kardex rows")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || *orderID <= 0 || *userID <= 0 {
		fmt.Fprintln(os.Stderr, "--business-id, --order-id and --user-id are required")
		os.Exit(1)
	}
	next, err := models.ParseOrderStatus(*status)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
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
	ctx = utils.SetUserIdInContext(ctx, *userID)
	ctx = utils.SetUserNameInContext(ctx, *userName)
	if *locationID > 0 {
		ctx = utils.SetLocationIdInContext(ctx, *locationID)
	}
	if id := strings.TrimSpace(*correlationID); id != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, id)
	}
	actor, err := models.ActorFromContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cache := config.NewRedisCache("", "pos:")
	if err := cache.Connect(ctx); err != nil {
		config.LogError(logger, "order-transition", "main", "RedisCache.Connect", nil, err)
		fmt.Fprintf(os.Stderr, "permission cache unavailable: %v\n", err)
		os.Exit(1)
	}
	defer cache.Close()

	fulfillment := workflow.NewOrderFulfillment(db, logger,
		models.NewRolePermissionService(db, cache),
		models.NewDBRecipeResolver(db))
	fulfillment.Audit = models.NewDBAuditService(db)

	if notifier := config.NewNotifierFromEnv(); notifier != nil {
		defer notifier.Close()
		fulfillment.Notifier = workflow.NewNotificationDispatcherFromEnv(notifier, logger)
		defer fulfillment.Notifier.Close()
	}

	order, err := models.GetOrder(db.WithContext(ctx), *businessID, *orderID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load order: %v\n", err)
		os.Exit(1)
	}
	from := order.CurrentStatus
	changed, err := fulfillment.Transition(ctx, order, next, actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transition failed (http %d, retriable=%v): %v\n", models.HTTPStatus(err), models.IsRetriable(err), err)
		os.Exit(1)
	}
	if !changed {
		fmt.Printf("order %d already %s\n", order.ID, next)
		return
	}
	fmt.Printf("order %d: %s -> %s (version %d)\n", order.ID, from, next, order.Version)
}
