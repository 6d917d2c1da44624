// Package store is the site's access layer to its hosted collections. A
// Backend speaks to one kind of store (Postgres through gorm, or a PostgREST
// endpoint); Gateway exposes one typed method per collection and verb on top
// of it. Nothing in this package retries.
package store

import (
	"context"

	"foundation_site/internal/models"
)

// Op is a filter comparison.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
	OpLt  Op = "lt"
)

// Filter restricts a query or update to rows where Column Op Value holds.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq is shorthand for an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Query describes a read. Empty Columns selects every column; Limit 0 means
// no limit.
type Query struct {
	Columns    []string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Backend is the low-level contract each store implementation fulfils. All
// errors are classified with apperror.
type Backend interface {
	// Insert creates row, deduplicating on its idempotency key: a replay of
	// an already stored key loads the stored row into row instead of
	// failing. Other unique violations surface as conflicts.
	Insert(ctx context.Context, row models.Insertable) error
	// Update sets values on every row matching filters and reports how many
	// rows changed.
	Update(ctx context.Context, table string, filters []Filter, values map[string]any) (int64, error)
	// Select decodes matching rows into dest, a pointer to a slice.
	Select(ctx context.Context, table string, q Query, dest any) error
	// Increment adds one to column of the row with the given id.
	Increment(ctx context.Context, table, id, column string) error
}
