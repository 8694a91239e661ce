package models

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// AuditEvent is the business-wide append-only activity log.
type AuditEvent struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;size:36;not null" json:"business_id"`
	Event      string    `gorm:"size:100;not null;index" json:"event"`
	ActorId    int       `json:"actor_id"`
	ActorName  string    `gorm:"size:100" json:"actor_name"`
	Details    string    `gorm:"type:text" json:"details"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type DBAuditService struct {
	db *gorm.DB
}

func NewDBAuditService(db *gorm.DB) *DBAuditService {
	return &DBAuditService{db: db}
}

func (s *DBAuditService) Append(ctx context.Context, event string, businessId string, actor Actor, details map[string]interface{}) error {
	row := AuditEvent{
		BusinessId: businessId,
		Event:      event,
		ActorId:    actor.UserId,
		ActorName:  actor.UserName,
	}
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		row.Details = string(b)
	}
	return s.db.WithContext(ctx).Create(&row).Error
}
