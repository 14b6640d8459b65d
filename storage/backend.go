// Package storage implements the interchangeable persistence backends of the
// task list.
package storage

import (
	"context"

	"todo-list/domain"
)

// Backend is the uniform CRUD contract every persistence implementation
// satisfies. Calls block until the store answers; a Backend instance is not
// meant to serve overlapping calls from independent callers.
type Backend interface {
	// GetAll returns every stored item, or an empty slice when there are none.
	GetAll(ctx context.Context) ([]domain.Item, error)
	// GetByID returns nil without error when id is not stored.
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	// Save inserts items without an id and updates items with one. Updating an
	// id that is not stored fails with domain.ErrNotFound.
	Save(ctx context.Context, item domain.Item) (SaveResult, error)
	// Delete fails with domain.ErrNotFound when id is not stored.
	Delete(ctx context.Context, id string) error
	// AddMultiple inserts items in bulk and returns the resulting collection.
	AddMultiple(ctx context.Context, items []domain.Item) ([]domain.Item, error)
}

// Outcome tells which branch a Save took.
type Outcome int

const (
	Created Outcome = iota + 1
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// SaveResult carries the persisted copy of a saved item.
type SaveResult struct {
	Item    domain.Item
	Outcome Outcome
}

func backendErr(op string, err error) error {
	return &domain.BackendError{Op: op, Err: err}
}
