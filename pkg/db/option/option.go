package option

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/vendora/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type sortBy struct {
	clause string
}

func (o sortBy) Apply(stmt *gorm.DB) *gorm.DB {
	if o.clause == "" {
		return stmt
	}
	return stmt.Order(o.clause)
}

func WithSortBy(clause string) QueryOption {
	return sortBy{clause: clause}
}

type paginate struct {
	page pagination.Pagination
}

func (o paginate) Apply(stmt *gorm.DB) *gorm.DB {
	if o.page.PageToken != "" {
		if cursor, err := pagination.DecodeCursor(o.page.PageToken); err == nil && cursor != nil {
			createdAt, timeErr := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
			id, idErr := strconv.ParseInt(cursor.ID, 10, 64)
			if timeErr == nil && idErr == nil {
				stmt = stmt.Where("(created_at, id) < (?, ?)", createdAt, id)
			}
		}
	}
	if o.page.PageSize > 0 {
		// Fetch one extra row so callers can detect another page.
		stmt = stmt.Limit(o.page.PageSize + 1)
	}
	return stmt
}

// ApplyPagination applies cursor pagination built from a page token and
// page size. The cursor orders on (created_at, id) descending.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return paginate{page: page}
}

// WithQuerySortBy builds an ORDER BY clause from user supplied sort
// parameters, restricted to the allowed column set. Unknown columns fall
// back to created_at.
func WithQuerySortBy(field, direction string, allowed map[string]bool) string {
	column := strings.ToLower(strings.TrimSpace(field))
	if column == "" || !allowed[column] {
		column = "created_at"
	}

	dir := strings.ToUpper(strings.TrimSpace(direction))
	if dir != "ASC" && dir != "DESC" {
		dir = "ASC"
	}

	return fmt.Sprintf("%s %s", column, dir)
}
