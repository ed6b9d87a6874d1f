package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

// Query parameter names.
const (
	ParamLimit  = "limit"
	ParamOffset = "offset"
)

// Config bounds the page size.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns 20 items per page, at most 100.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 20,
		MaxLimit:     100,
	}
}

// Page is a window into an ordered list.
type Page struct {
	Limit  int
	Offset int
}

// Meta describes the returned window.
type Meta struct {
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	Returned   int   `json:"returned"`
	Total      int64 `json:"total"`
	HasMore    bool  `json:"has_more"`
	NextOffset *int  `json:"next_offset,omitempty"`
}

// FromRequest reads limit and offset from the query string. Missing values
// take the configured defaults; malformed or negative values are an error.
func FromRequest(r *http.Request, cfg Config) (Page, error) {
	q := r.URL.Query()

	limit, err := intParam(q.Get(ParamLimit), cfg.DefaultLimit)
	if err != nil {
		return Page{}, fmt.Errorf("invalid %s: %w", ParamLimit, err)
	}
	if limit == 0 {
		limit = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}

	offset, err := intParam(q.Get(ParamOffset), 0)
	if err != nil {
		return Page{}, fmt.Errorf("invalid %s: %w", ParamOffset, err)
	}

	return Page{Limit: limit, Offset: offset}, nil
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%d must not be negative", v)
	}
	return v, nil
}

// NewMeta builds list metadata for a page that returned n items out of total.
func NewMeta(p Page, returned int, total int64) Meta {
	if returned < 0 {
		returned = 0
	}
	if total < 0 {
		total = int64(returned)
	}

	hasMore := int64(p.Offset)+int64(returned) < total
	var nextOffset *int
	if hasMore {
		next := p.Offset + returned
		nextOffset = &next
	}

	return Meta{
		Limit:      p.Limit,
		Offset:     p.Offset,
		Returned:   returned,
		Total:      total,
		HasMore:    hasMore,
		NextOffset: nextOffset,
	}
}
