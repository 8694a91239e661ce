package models

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

const maxPageSize = 500

func EncodeLedgerCursor(seq int64) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("seq|%d", seq)))
}

func DecodeLedgerCursor(cursor *string) (int64, error) {
	if cursor == nil || *cursor == "" {
		return 0, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: cursor: %v", ErrInvalidInput, err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[0] != "seq" {
		return 0, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("%w: cursor sequence %q", ErrInvalidInput, parts[1])
	}
	return seq, nil
}

// ListLedgerTransactionsPage returns up to limit kardex rows of the scope after the cursor,
// in write order.
func ListLedgerTransactionsPage(tx *gorm.DB, scope InventoryScope, after *string, limit int) ([]LedgerTransaction, *PageInfo, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	afterSeq, err := DecodeLedgerCursor(after)
	if err != nil {
		return nil, nil, err
	}

	q := tx.Where("business_id = ? AND ingredient_id = ? AND location_id = ? AND seq > ?",
		scope.BusinessId, scope.IngredientId, scope.LocationId, afterSeq)
	var rows []LedgerTransaction
	if err := q.Order("seq ASC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	hasNext := len(rows) > limit
	if hasNext {
		rows = rows[:limit]
	}
	info := &PageInfo{HasNextPage: &hasNext}
	if len(rows) > 0 {
		info.StartCursor = EncodeLedgerCursor(rows[0].Seq)
		info.EndCursor = EncodeLedgerCursor(rows[len(rows)-1].Seq)
	}
	return rows, info, nil
}
