package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	PermissionOrderConfirm         = "orders.confirm"
	PermissionOrderPrepare         = "orders.prepare"
	PermissionOrderMarkReady       = "orders.mark_ready"
	PermissionOrderDeliver         = "orders.deliver"
	PermissionOrderCancel          = "orders.cancel"
	PermissionOrderCancelInKitchen = "orders.cancel_in_kitchen"
)

const AuditEventOrderStatusChanged = "order.status_changed"

// PermissionCodeFor returns the capability an actor needs to move an order along one edge.
// Cancelling once the kitchen has started needs more than cancelling a fresh order.
func PermissionCodeFor(from, to models.OrderStatus) string {
	switch to {
	case models.OrderStatusConfirmed:
		return PermissionOrderConfirm
	case models.OrderStatusPreparing:
		return PermissionOrderPrepare
	case models.OrderStatusReady:
		return PermissionOrderMarkReady
	case models.OrderStatusDelivered:
		return PermissionOrderDeliver
	case models.OrderStatusCancelled:
		if from == models.OrderStatusPreparing || from == models.OrderStatusReady {
			return PermissionOrderCancelInKitchen
		}
		return PermissionOrderCancel
	}
	return ""
}

// OrderStatusEvent is the notification payload sent after a committed transition.
type OrderStatusEvent struct {
	Type       string             `json:"type"`
	OrderId    int                `json:"order_id"`
	LocationId int                `json:"location_id"`
	From       models.OrderStatus `json:"from"`
	To         models.OrderStatus `json:"to"`
	Version    int                `json:"version"`
	ActorId    int                `json:"actor_id"`
	At         time.Time          `json:"at"`
}

// OrderFulfillment drives orders through their status graph. Audit and Notifier are
// optional; Delivery is required only to deliver DELIVERY orders.
type OrderFulfillment struct {
	DB          *gorm.DB
	Logger      *logrus.Logger
	Permissions PermissionService
	Recipes     RecipeResolver
	Delivery    DeliveryTracker
	Audit       AuditService
	Notifier    *NotificationDispatcher
}

func NewOrderFulfillment(db *gorm.DB, logger *logrus.Logger, permissions PermissionService, recipes RecipeResolver) *OrderFulfillment {
	return &OrderFulfillment{
		DB:          db,
		Logger:      logger,
		Permissions: permissions,
		Recipes:     recipes,
	}
}

// Transition moves order to newStatus. It returns false without side effects when the order
// is already there. On success order is updated in place with the new status and version.
//
// Cancellation puts the ingredients consumed at sale time back in stock inside the same
// transaction as the status change. The status change itself is a conditional update on the
// status the caller read; if someone else moved the order first, ErrConcurrentModification is
// returned and nothing is committed.
func (f *OrderFulfillment) Transition(ctx context.Context, order *models.Order, newStatus models.OrderStatus, actor models.Actor) (changed bool, err error) {
	db, span := startSpan(f.DB.WithContext(ctx), "OrderFulfillment.Transition",
		attribute.String("business_id", order.BusinessId),
		attribute.Int("order_id", order.ID),
		attribute.String("from", string(order.CurrentStatus)),
		attribute.String("to", string(newStatus)))
	defer func() { endSpan(span, err) }()
	ctx = db.Statement.Context

	if !newStatus.IsValid() {
		return false, fmt.Errorf("%w: order status %q", models.ErrInvalidInput, newStatus)
	}
	from := order.CurrentStatus
	if from == newStatus {
		return false, nil
	}
	if !from.CanTransitionTo(newStatus) {
		return false, fmt.Errorf("%w: order %d %s -> %s", models.ErrInvalidTransition, order.ID, from, newStatus)
	}
	if err := f.authorize(ctx, order, from, newStatus, actor); err != nil {
		return false, err
	}

	var restore []ingredientQuantity
	if newStatus == models.OrderStatusCancelled {
		full, err := models.GetOrder(db, order.BusinessId, order.ID)
		if err != nil {
			return false, err
		}
		if restore, err = orderIngredients(ctx, f.Recipes, full); err != nil {
			config.LogError(f.Logger, "OrderFulfillment", "Transition", "orderIngredients", order.ID, err)
			return false, err
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, r := range restore {
			_, err := MutateInventory(tx, f.Logger, LedgerMutation{
				Scope:     models.InventoryScope{BusinessId: order.BusinessId, IngredientId: r.IngredientId, LocationId: order.LocationId},
				Quantity:  r.Quantity,
				Kind:      models.LedgerTransactionTypeIn,
				Reference: LedgerReference{Type: models.ReferenceTypeOrder, Id: order.ID},
				Actor:     actor,
				Notes:     "order cancelled",
			})
			if err != nil {
				return err
			}
		}

		ok, err := models.CompareAndSetOrderStatus(tx, order, from, newStatus)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %d is no longer %s", models.ErrConcurrentModification, order.ID, from)
		}

		audit, err := models.NewOrderAudit(order, from, newStatus, actor, map[string]interface{}{
			"version":              order.Version + 1,
			"restored_ingredients": len(restore),
		})
		if err != nil {
			return err
		}
		return tx.Create(audit).Error
	})
	if err != nil {
		config.LogError(f.Logger, "OrderFulfillment", "Transition", "Transaction", order.ID, err)
		return false, err
	}

	order.CurrentStatus = newStatus
	order.Version++
	f.afterCommit(ctx, order, from, newStatus, actor)
	return true, nil
}

func (f *OrderFulfillment) authorize(ctx context.Context, order *models.Order, from, to models.OrderStatus, actor models.Actor) error {
	if actor.BusinessId != "" && actor.BusinessId != order.BusinessId {
		return fmt.Errorf("%w: actor belongs to another business", models.ErrPermissionDenied)
	}
	code := PermissionCodeFor(from, to)
	if f.Permissions == nil {
		return fmt.Errorf("%w: no permission service configured", models.ErrPermissionDenied)
	}
	allowed, err := f.Permissions.Check(ctx, actor.UserId, code, order.BusinessId)
	if err != nil {
		config.LogError(f.Logger, "OrderFulfillment", "authorize", "Check", code, err)
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: user %d lacks %s", models.ErrPermissionDenied, actor.UserId, code)
	}

	if from == models.OrderStatusReady && to == models.OrderStatusDelivered && order.DeliveryType == models.DeliveryTypeDelivery {
		if f.Delivery == nil {
			return fmt.Errorf("%w: order %d has no delivery tracking", models.ErrInvalidTransition, order.ID)
		}
		picked, err := f.Delivery.IsPickedUpBy(ctx, order.ID, actor.UserId)
		if err != nil {
			return err
		}
		if !picked {
			return fmt.Errorf("%w: order %d was not picked up by user %d", models.ErrInvalidTransition, order.ID, actor.UserId)
		}
	}
	return nil
}

// afterCommit records the audit event and queues the notification. Failures are logged only.
func (f *OrderFulfillment) afterCommit(ctx context.Context, order *models.Order, from, to models.OrderStatus, actor models.Actor) {
	if f.Audit != nil {
		err := f.Audit.Append(ctx, AuditEventOrderStatusChanged, order.BusinessId, actor, map[string]interface{}{
			"order_id": order.ID,
			"from":     from,
			"to":       to,
			"version":  order.Version,
		})
		if err != nil {
			config.LogError(f.Logger, "OrderFulfillment", "afterCommit", "Audit.Append", order.ID, err)
		}
	}
	if f.Notifier != nil {
		f.Notifier.Dispatch(ctx, OrderStatusEvent{
			Type:       AuditEventOrderStatusChanged,
			OrderId:    order.ID,
			LocationId: order.LocationId,
			From:       from,
			To:         to,
			Version:    order.Version,
			ActorId:    actor.UserId,
			At:         time.Now().UTC(),
		}, order.BusinessId, order.LocationId)
	}
}
