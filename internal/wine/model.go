package wine

import (
	"strings"
	"time"
)

// WineRecord is the structured result of extracting one line of raw text.
// A record with an empty Name means "not a wine" and is never persisted.
type WineRecord struct {
	Name       string            `json:"name"`
	Vintage    string            `json:"vintage,omitempty"`
	Producer   string            `json:"producer,omitempty"`
	Region     string            `json:"region,omitempty"`
	Country    string            `json:"country,omitempty"`
	Varietals  string            `json:"varietals,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// CacheKey is the natural dedup key. Two records with the same
// (name, vintage, producer) triple collapse to one stored row,
// case-insensitively. The "|" separator and lowercasing MUST NOT
// change or existing rows stop deduplicating.
func (w *WineRecord) CacheKey() string {
	return strings.ToLower(w.Name) + "|" +
		strings.ToLower(w.Vintage) + "|" +
		strings.ToLower(w.Producer)
}

// StoredWine is the persisted form, owned by the repository.
type StoredWine struct {
	ID         int               `json:"id"`
	Name       string            `json:"name"`
	Vintage    string            `json:"vintage,omitempty"`
	Producer   string            `json:"producer,omitempty"`
	Region     string            `json:"region,omitempty"`
	Country    string            `json:"country,omitempty"`
	Varietals  string            `json:"varietals,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CacheKey   string            `json:"cache_key"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// WinePage is one page of search results.
type WinePage struct {
	Wines      []StoredWine `json:"wines"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalCount int          `json:"total_count"`
	TotalPages int          `json:"total_pages"`
}
