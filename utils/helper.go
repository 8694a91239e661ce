package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/pos_backend/config"
)

var ErrLockNotObtained = errors.New("could not obtain lock")

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// ObtainBusinessLock takes a distributed lock "<lockType>:<businessId>" for ttl.
// The caller must Release the returned lock.
func ObtainBusinessLock(ctx context.Context, businessId string, lockType string, ttl time.Duration, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		err := errors.New("redis lock is nil")
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", businessId, err)
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, businessId)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for businessID", businessId, err)
		return nil, fmt.Errorf("%w for %s", ErrLockNotObtained, lockKey)
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for businessID", businessId, err)
		return nil, err
	}
	return lock, nil
}
