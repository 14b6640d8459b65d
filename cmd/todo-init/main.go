package main

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"todo-list/config"
	"todo-list/dataservice"
	"todo-list/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("TODO_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.WithField("backend", cfg.Storage.Backend).Info("storage init starting")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := provision(ctx, cfg, log.StandardLogger())
	if err != nil {
		log.Fatalf("provision: %v", err)
	}
	log.WithField("count", count).Info("storage init complete")
}

// provision creates the configured store if needed and, with seeding on,
// fills it with the sample items when empty. It reports how many items the
// store holds afterwards.
func provision(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (int, error) {
	// Always against the store itself, never through the Redis cache.
	backend, err := storage.Open(cfg.Storage, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := storage.Close(backend); err != nil {
			logger.WithError(err).Warn("close storage")
		}
	}()

	tasks := dataservice.NewTasks(backend, dataservice.NewCache(), logger, cfg.Seed)
	if err := tasks.Load(ctx); err != nil {
		return 0, err
	}
	return tasks.Count(), nil
}
