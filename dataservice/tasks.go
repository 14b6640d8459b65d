package dataservice

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"todo-list/domain"
	"todo-list/query"
	"todo-list/storage"
)

// Tasks is the consumer side of the task list: every mutation goes to the
// backend first and reaches the Cache only after the backend accepted it.
type Tasks struct {
	backend storage.Backend
	cache   *Cache
	logger  log.FieldLogger
	seed    bool
	now     func() time.Time
}

// NewTasks wires backend and cache together. With seed set, Load fills an
// empty store with the sample items.
func NewTasks(backend storage.Backend, cache *Cache, logger log.FieldLogger, seed bool) *Tasks {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Tasks{backend: backend, cache: cache, logger: logger, seed: seed, now: time.Now}
}

// Load replaces the Cache with the backend's collection.
func (t *Tasks) Load(ctx context.Context) error {
	items, err := t.backend.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	if len(items) == 0 && t.seed {
		items, err = t.backend.AddMultiple(ctx, domain.SeedItems(t.now()))
		if err != nil {
			return fmt.Errorf("seed items: %w", err)
		}
		t.logger.WithField("count", len(items)).Info("seeded empty task list")
	}
	t.cache.SetAll(items)
	t.logger.WithField("count", len(items)).Debug("task list loaded")
	return nil
}

// Save validates and persists item, then records the persisted copy in the
// Cache, replacing an existing entry or appending a new one.
func (t *Tasks) Save(ctx context.Context, item domain.Item) (storage.SaveResult, error) {
	if err := item.Validate(); err != nil {
		return storage.SaveResult{}, err
	}
	res, err := t.backend.Save(ctx, item)
	if err != nil {
		t.logger.WithError(err).WithField("id", item.ID).Warn("save failed")
		return storage.SaveResult{}, err
	}
	if !t.cache.Update(res.Item) {
		t.cache.Add(res.Item)
	}
	t.logger.WithFields(log.Fields{"id": res.Item.ID, "outcome": res.Outcome.String()}).Debug("item saved")
	return res, nil
}

func (t *Tasks) Delete(ctx context.Context, id string) error {
	if err := t.backend.Delete(ctx, id); err != nil {
		t.logger.WithError(err).WithField("id", id).Warn("delete failed")
		return err
	}
	t.cache.Delete(id)
	t.logger.WithField("id", id).Debug("item deleted")
	return nil
}

func (t *Tasks) Get(id string) (domain.Item, bool) {
	return t.cache.GetByID(id)
}

func (t *Tasks) List(sortBy, sortMode string, filter query.Filter) []domain.Item {
	return t.cache.GetSortedFiltered(sortBy, sortMode, filter)
}

func (t *Tasks) Count() int {
	return t.cache.Count()
}
