// Package listing implements the filtered, paged views shared by the
// student, guest and scan log lists.
package listing

import "strings"

// DefaultPageSize is used when the caller passes a non-positive size.
const DefaultPageSize = 10

// Query carries the search text and page selection of a list view.
type Query struct {
	Search   string
	Page     int
	PageSize int
}

// Page is one slice of a filtered collection.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Collection is an immutable, ordered set of items. Every filter returns a
// new collection and leaves the receiver untouched.
type Collection[T any] struct {
	items []T
}

// From wraps items without copying; callers must not mutate them afterwards.
func From[T any](items []T) Collection[T] {
	return Collection[T]{items: items}
}

// Where keeps the items matching pred, preserving order.
func (c Collection[T]) Where(pred func(T) bool) Collection[T] {
	out := make([]T, 0, len(c.items))
	for _, it := range c.items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return Collection[T]{items: out}
}

// Search keeps the items where any of fields(item) contains query,
// ignoring case. An empty query keeps everything.
func (c Collection[T]) Search(query string, fields func(T) []string) Collection[T] {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c
	}
	return c.Where(func(it T) bool {
		for _, f := range fields(it) {
			if strings.Contains(strings.ToLower(f), q) {
				return true
			}
		}
		return false
	})
}

// Items returns the current items.
func (c Collection[T]) Items() []T { return c.items }

// Len returns the number of items.
func (c Collection[T]) Len() int { return len(c.items) }

// Page returns page n (1-based) of the collection. n is clamped to
// [1, TotalPages]; an empty collection yields page 1 with no items.
func (c Collection[T]) Page(n, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(c.items)
	pages := (total + size - 1) / size
	if n > pages {
		n = pages
	}
	if n < 1 {
		n = 1
	}
	start := (n - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	items := make([]T, end-start)
	copy(items, c.items[start:end])
	return Page[T]{
		Items:      items,
		Page:       n,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
	}
}
