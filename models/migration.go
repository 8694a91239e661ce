package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Ingredient{}, &Location{},
		&Batch{}, &Inventory{}, &LedgerTransaction{},
		&ProductionEvent{}, &ProductionEventInput{}, &ProductionEventInputBatch{},
		&Order{}, &OrderDetail{}, &OrderDetailModifier{}, &OrderDetailExclusion{}, &OrderAudit{},
		&Product{}, &ProductModifier{}, &RecipeLine{},
		&Role{}, &RolePermission{}, &UserRole{},
		&AuditEvent{},
	)
}
