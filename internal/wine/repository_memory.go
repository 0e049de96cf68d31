package wine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var errStoreUnreachable = errors.New("store unreachable")

// InMemoryRepository mirrors the Postgres dedup semantics without a
// database. Used by tests and as the reference for the upsert policy.
type InMemoryRepository struct {
	mu     sync.Mutex
	byKey  map[string]*StoredWine
	byID   map[int]*StoredWine
	nextID int

	// test hooks
	UpsertErr   error
	Unreachable bool
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byKey:  make(map[string]*StoredWine),
		byID:   make(map[int]*StoredWine),
		nextID: 1,
	}
}

func (r *InMemoryRepository) Upsert(
	ctx context.Context,
	record *WineRecord,
) (int, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Unreachable {
		return 0, errStoreUnreachable
	}
	if r.UpsertErr != nil {
		return 0, r.UpsertErr
	}
	if record == nil || record.Name == "" {
		return 0, ErrEmptyName
	}

	key := record.CacheKey()
	now := time.Now()

	// last write wins, same as ON CONFLICT DO UPDATE
	if existing, ok := r.byKey[key]; ok {
		existing.Name = record.Name
		existing.Vintage = record.Vintage
		existing.Producer = record.Producer
		existing.Region = record.Region
		existing.Country = record.Country
		existing.Varietals = record.Varietals
		existing.Attributes = record.Attributes
		existing.UpdatedAt = now
		return existing.ID, nil
	}

	stored := &StoredWine{
		ID:         r.nextID,
		Name:       record.Name,
		Vintage:    record.Vintage,
		Producer:   record.Producer,
		Region:     record.Region,
		Country:    record.Country,
		Varietals:  record.Varietals,
		Attributes: record.Attributes,
		CacheKey:   key,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.nextID++
	r.byKey[key] = stored
	r.byID[stored.ID] = stored

	return stored.ID, nil
}

func (r *InMemoryRepository) GetByID(
	ctx context.Context,
	id int,
) (*StoredWine, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Unreachable {
		return nil, errStoreUnreachable
	}

	w, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *w
	return &out, nil
}

func (r *InMemoryRepository) List(
	ctx context.Context,
	page, pageSize int,
	search string,
) (*WinePage, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Unreachable {
		return nil, errStoreUnreachable
	}

	page, pageSize = clampPage(page, pageSize)

	matched := []StoredWine{}
	needle := strings.ToLower(search)

	for _, w := range r.byID {
		if search != "" && !matchesSearch(w, needle) {
			continue
		}
		matched = append(matched, *w)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].Vintage < matched[j].Vintage
	})

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &WinePage{
		Wines:      matched[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

func (r *InMemoryRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Unreachable {
		return 0, errStoreUnreachable
	}
	return len(r.byID), nil
}

func matchesSearch(w *StoredWine, needle string) bool {
	for _, field := range []string{
		w.Name, w.Producer, w.Region, w.Country, w.Varietals,
	} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
