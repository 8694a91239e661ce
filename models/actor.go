package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/pos_backend/utils"
)

// Actor is the authenticated user a mutation or transition is performed on behalf of.
type Actor struct {
	BusinessId string
	UserId     int
	UserName   string
	LocationId int
}

// ActorFromContext builds an Actor from the request context.
func ActorFromContext(ctx context.Context) (Actor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return Actor{}, fmt.Errorf("%w: business id is required", ErrInvalidInput)
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	locationId, _ := utils.GetLocationIdFromContext(ctx)
	return Actor{
		BusinessId: businessId,
		UserId:     userId,
		UserName:   userName,
		LocationId: locationId,
	}, nil
}
