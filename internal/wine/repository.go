package wine

import (
	"context"
	"errors"
)

var (
	ErrEmptyName = errors.New("wine name is required")
	ErrNotFound  = errors.New("wine not found")
)

// Repository defines all database operations for wines
type Repository interface {

	// Insert-or-update keyed by cache_key. On conflict the new
	// field values win (later extractions tend to be more complete).
	// Returns the row id either way.
	Upsert(ctx context.Context, record *WineRecord) (int, error)

	GetByID(ctx context.Context, id int) (*StoredWine, error)

	// Case-insensitive substring search across name/producer/region/
	// country/varietals, ordered by name then vintage.
	List(ctx context.Context, page, pageSize int, search string) (*WinePage, error)

	Count(ctx context.Context) (int, error)
}

const maxPageSize = 100

// clampPage normalizes pagination input before it reaches SQL.
func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
