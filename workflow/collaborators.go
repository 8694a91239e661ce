package workflow

import (
	"context"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
)

// PermissionService decides whether a user holds a permission code within a business.
type PermissionService interface {
	Check(ctx context.Context, userId int, code string, businessId string) (bool, error)
}

// AuditService appends durable business activity records.
type AuditService interface {
	Append(ctx context.Context, event string, businessId string, actor models.Actor, details map[string]interface{}) error
}

// NotificationService delivers best-effort events to listeners of a location.
type NotificationService interface {
	Notify(ctx context.Context, payload any, businessId string, locationId int) error
}

// RecipeResolver returns per-unit ingredient quantities of products and modifiers.
type RecipeResolver interface {
	GetRecipeLines(ctx context.Context, productId int, businessId string) ([]models.RecipeLine, error)
	GetModifierRecipeLines(ctx context.Context, modifierId int, businessId string) ([]models.RecipeLine, error)
}

// BatchRecipeResolver resolves many recipes in one round trip.
type BatchRecipeResolver interface {
	RecipeResolver
	LoadRecipes(ctx context.Context, owners []models.RecipeOwner) (map[models.RecipeOwner][]models.RecipeLine, error)
}

// DeliveryTracker knows which courier picked up a delivery order.
type DeliveryTracker interface {
	IsPickedUpBy(ctx context.Context, orderId int, userId int) (bool, error)
}

var (
	_ PermissionService   = (*models.RolePermissionService)(nil)
	_ AuditService        = (*models.DBAuditService)(nil)
	_ BatchRecipeResolver = (*models.DBRecipeResolver)(nil)

	_ NotificationService    = (*config.PubSubNotifier)(nil)
	_ NotificationService    = (*config.KafkaNotifier)(nil)
	_ models.PermissionCache = (*config.RedisCache)(nil)
)
