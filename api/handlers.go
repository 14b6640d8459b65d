package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todo-list/domain"
	"todo-list/storage"
)

const itemBodyMaxSize = 64 << 10

// Register wires up all API routes on the provided Echo instance. deduper may
// be nil, in which case Idempotency-Key headers are ignored.
func Register(e *echo.Echo, backend storage.Backend, deduper Deduper, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.JSONSerializer = JSONSerializer{}

	g := e.Group("/api", GzipRequestMiddleware(), requestMetricsMiddleware(logger))
	g.GET("/", listItems(backend, logger))
	g.GET("/:id", getItem(backend, logger))
	g.POST("/", createItem(backend, deduper, logger))
	g.PATCH("/:id", updateItem(backend, logger))
	g.DELETE("/:id", deleteItem(backend, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func listItems(backend storage.Backend, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		m := metricsFrom(c)
		start := time.Now()
		items, err := backend.GetAll(c.Request().Context())
		m.ObserveBackend(time.Since(start))
		if err != nil {
			return writeError(c, logger, err)
		}
		m.SetItemsReturned(len(items))
		return c.JSON(http.StatusOK, items)
	}
}

func getItem(backend storage.Backend, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		m := metricsFrom(c)
		start := time.Now()
		item, err := backend.GetByID(c.Request().Context(), c.Param("id"))
		m.ObserveBackend(time.Since(start))
		if err != nil {
			return writeError(c, logger, err)
		}
		if item == nil {
			return writeError(c, logger, domain.ErrNotFound)
		}
		m.SetItemsReturned(1)
		return c.JSON(http.StatusOK, item)
	}
}

// createItem stores a new item. The server assigns the id; a client supplied
// one is ignored. Missing importance and dates take the same defaults as
// domain.NewItem.
func createItem(backend storage.Backend, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		m := metricsFrom(c)

		item, err := readItem(c)
		if err != nil {
			return writeError(c, logger, err)
		}
		item.ID = ""
		if item.Importance == 0 {
			item.Importance = domain.DefaultImportance
		}
		now := time.Now()
		if item.DueDate.IsZero() {
			item.DueDate = now
		}
		if item.CreatedDate.IsZero() {
			item.CreatedDate = now
		}
		if err := item.Validate(); err != nil {
			return writeError(c, logger, err)
		}

		key := strings.TrimSpace(c.Request().Header.Get(storage.IdempotencyKeyHeader))
		if key != "" && deduper != nil {
			claimed, id, err := deduper.Claim(ctx, key)
			if err != nil {
				// Without Redis the request is still served, only without replay protection.
				logger.WithError(err).Warn("idempotency claim failed")
				key = ""
			} else if !claimed {
				return replayCreate(c, backend, logger, key, id)
			}
		} else {
			key = ""
		}

		start := time.Now()
		res, err := backend.Save(ctx, item)
		m.ObserveBackend(time.Since(start))
		if err != nil {
			if key != "" {
				if rerr := deduper.Release(ctx, key); rerr != nil {
					logger.WithError(rerr).WithField("key", key).Warn("idempotency release failed")
				}
			}
			return writeError(c, logger, err)
		}
		if key != "" {
			if cerr := deduper.Complete(ctx, key, res.Item.ID); cerr != nil {
				logger.WithError(cerr).WithField("key", key).Warn("idempotency complete failed")
			}
		}
		m.SetItemsReturned(1)
		logger.WithFields(log.Fields{"id": res.Item.ID, "outcome": res.Outcome.String()}).Debug("item created")
		return c.JSON(http.StatusCreated, res.Item)
	}
}

// replayCreate answers a POST whose idempotency key was seen before with the
// item the first request created.
func replayCreate(c echo.Context, backend storage.Backend, logger *log.Logger, key, id string) error {
	m := metricsFrom(c)
	if id == "" {
		m.SetErrorStage("idempotency")
		return c.String(http.StatusConflict, "request with this idempotency key is in progress")
	}
	start := time.Now()
	item, err := backend.GetByID(c.Request().Context(), id)
	m.ObserveBackend(time.Since(start))
	if err != nil {
		return writeError(c, logger, err)
	}
	if item == nil {
		m.SetErrorStage("idempotency")
		return c.String(http.StatusConflict, "idempotency key refers to a deleted item")
	}
	logger.WithFields(log.Fields{"id": id, "key": key}).Debug("replayed create")
	m.SetItemsReturned(1)
	return c.JSON(http.StatusCreated, item)
}

// updateItem replaces the stored item named by the path id with the body.
func updateItem(backend storage.Backend, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		m := metricsFrom(c)
		item, err := readItem(c)
		if err != nil {
			return writeError(c, logger, err)
		}
		item.ID = c.Param("id")
		if strings.TrimSpace(item.ID) == "" {
			return writeError(c, logger, domain.ErrNotFound)
		}
		if err := item.Validate(); err != nil {
			return writeError(c, logger, err)
		}

		start := time.Now()
		res, err := backend.Save(c.Request().Context(), item)
		m.ObserveBackend(time.Since(start))
		if err != nil {
			return writeError(c, logger, err)
		}
		m.SetItemsReturned(1)
		return c.JSON(http.StatusOK, res.Item)
	}
}

func deleteItem(backend storage.Backend, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		m := metricsFrom(c)
		id := c.Param("id")
		start := time.Now()
		err := backend.Delete(c.Request().Context(), id)
		m.ObserveBackend(time.Since(start))
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.JSON(http.StatusOK, id)
	}
}

func readItem(c echo.Context) (domain.Item, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, itemBodyMaxSize+1))
	if err != nil {
		return domain.Item{}, &domain.ValidationError{Message: "invalid body"}
	}
	if len(body) > itemBodyMaxSize {
		return domain.Item{}, &domain.ValidationError{Message: "body too large"}
	}
	return decodeItem(body)
}

// writeError maps domain errors onto the API's status codes. Missing items
// answer 404 with a JSON null body.
func writeError(c echo.Context, logger *log.Logger, err error) error {
	m := metricsFrom(c)
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		m.SetErrorStage("not_found")
		return c.JSON(http.StatusNotFound, nil)
	case errors.As(err, &ve):
		m.SetErrorStage("validation")
		return c.String(http.StatusBadRequest, ve.Error())
	default:
		m.SetErrorStage("storage")
		logger.WithError(err).WithField("route", c.Path()).Error("storage failure")
		return c.String(http.StatusInternalServerError, "storage failure")
	}
}
