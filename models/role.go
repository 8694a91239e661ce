package models

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"gorm.io/gorm"
)

// PermissionWildcard granted to a role allows every permission code.
const PermissionWildcard = "*"

type Role struct {
	ID          int               `gorm:"primary_key" json:"id"`
	BusinessId  string            `gorm:"index;size:36;not null" json:"business_id"`
	Name        string            `gorm:"index;size:100;not null" json:"name"`
	Permissions []*RolePermission `gorm:"foreignKey:RoleId" json:"permissions"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type RolePermission struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;size:36;not null" json:"business_id"`
	RoleId     int    `gorm:"index;not null" json:"role_id"`
	Code       string `gorm:"size:100;not null" json:"code"`
}

type UserRole struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index:idx_user_role,priority:1;size:36;not null" json:"business_id"`
	UserId     int    `gorm:"index:idx_user_role,priority:2;not null" json:"user_id"`
	RoleId     int    `gorm:"index;not null" json:"role_id"`
}

// PermissionCache is the cache the permission service reads through.
// config.RedisCache satisfies it.
type PermissionCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RolePermissionService answers permission checks from user roles. The cache is optional.
type RolePermissionService struct {
	db    *gorm.DB
	cache PermissionCache
	ttl   time.Duration
}

func NewRolePermissionService(db *gorm.DB, cache PermissionCache) *RolePermissionService {
	return &RolePermissionService{db: db, cache: cache, ttl: config.PermissionCacheTTL()}
}

func permissionCacheKey(businessId string, userId int) string {
	return fmt.Sprintf("perm:%s:%d", businessId, userId)
}

func (s *RolePermissionService) Check(ctx context.Context, userId int, code string, businessId string) (bool, error) {
	codes, err := s.codes(ctx, userId, businessId)
	if err != nil {
		return false, err
	}
	return slices.Contains(codes, code) || slices.Contains(codes, PermissionWildcard), nil
}

// Invalidate drops the cached permission set of a user, after role changes.
func (s *RolePermissionService) Invalidate(ctx context.Context, userId int, businessId string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, permissionCacheKey(businessId, userId))
}

func (s *RolePermissionService) codes(ctx context.Context, userId int, businessId string) ([]string, error) {
	key := permissionCacheKey(businessId, userId)
	var codes []string
	if s.cache != nil {
		ok, err := s.cache.Get(ctx, key, &codes)
		if err == nil && ok {
			return codes, nil
		}
		if err != nil {
			config.LogError(config.GetLogger(), "RolePermissionService", "codes", "reading permission cache", key, err)
		}
	}

	err := s.db.WithContext(ctx).Model(&RolePermission{}).
		Distinct("role_permissions.code").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.business_id = ? AND user_roles.user_id = ? AND role_permissions.business_id = ?", businessId, userId, businessId).
		Pluck("role_permissions.code", &codes).Error
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, codes, s.ttl); err != nil {
			config.LogError(config.GetLogger(), "RolePermissionService", "codes", "writing permission cache", key, err)
		}
	}
	return codes, nil
}

// GrantRole creates a role with the given permission codes and assigns it to the user.
func GrantRole(tx *gorm.DB, businessId string, userId int, roleName string, codes ...string) (*Role, error) {
	role := Role{BusinessId: businessId, Name: roleName}
	err := tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return err
		}
		for _, code := range codes {
			perm := RolePermission{BusinessId: businessId, RoleId: role.ID, Code: code}
			if err := tx.Create(&perm).Error; err != nil {
				return err
			}
			role.Permissions = append(role.Permissions, &perm)
		}
		return tx.Create(&UserRole{BusinessId: businessId, UserId: userId, RoleId: role.ID}).Error
	})
	if err != nil {
		return nil, err
	}
	return &role, nil
}
