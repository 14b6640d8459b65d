// Package query computes sorted and filtered views over a collection of items.
package query

import (
	"cmp"
	"sort"
	"strconv"
	"strings"

	"todo-list/domain"
)

// Filter selects which items survive a projection.
type Filter string

const (
	FilterAll  Filter = ""
	FilterOpen Filter = "open"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// compare returns a negative, zero or positive value ordering a before, equal to
// or after b on a single field.
type compare func(a, b domain.Item) int

var comparators = map[string]compare{
	"id":           compareIDs,
	"name":         func(a, b domain.Item) int { return strings.Compare(a.Name, b.Name) },
	"description":  func(a, b domain.Item) int { return strings.Compare(a.Description, b.Description) },
	"importance":   func(a, b domain.Item) int { return a.Importance - b.Importance },
	"dueDate":      func(a, b domain.Item) int { return a.DueDate.Compare(b.DueDate) },
	"createdDate":  func(a, b domain.Item) int { return a.CreatedDate.Compare(b.CreatedDate) },
	"lastEditDate": func(a, b domain.Item) int { return a.LastEditDate.Compare(b.LastEditDate) },
	"completed":    func(a, b domain.Item) int { return boolRank(a.Completed) - boolRank(b.Completed) },
}

// compareIDs orders integer ids (the local store's sequence) numerically and
// everything else lexically. Integer ids sort before the rest.
func compareIDs(a, b domain.Item) int {
	x, errX := strconv.ParseInt(a.ID, 10, 64)
	y, errY := strconv.ParseInt(b.ID, 10, 64)
	switch {
	case errX == nil && errY == nil:
		return cmp.Compare(x, y)
	case errX == nil:
		return -1
	case errY == nil:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Sortable reports whether field names a sortable item field.
func Sortable(field string) bool {
	_, ok := comparators[field]
	return ok
}

// ParseSortMode maps "asc"/"desc" to the descending flag. Unknown modes sort
// ascending.
func ParseSortMode(mode string) bool {
	return strings.EqualFold(strings.TrimSpace(mode), SortDesc)
}

// Project returns a new slice holding items filtered by filter and stably sorted
// by sortBy. The input slice is never modified. An unknown sortBy leaves the
// order untouched.
func Project(items []domain.Item, sortBy string, descending bool, filter Filter) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if filter == FilterOpen && it.Completed {
			continue
		}
		out = append(out, it)
	}

	by, ok := comparators[sortBy]
	if !ok || len(out) < 2 {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := by(out[i], out[j])
		if descending {
			c = -c
		}
		return c < 0
	})
	return out
}
