package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"todo-list/domain"
)

const localSchemaVersion = 1

const createItemsTable = `
	CREATE TABLE IF NOT EXISTS items (
		id  INTEGER PRIMARY KEY AUTOINCREMENT,
		doc TEXT NOT NULL CHECK (json_valid(doc))
	)`

// Local persists items in an on-device SQLite database. The database is
// opened lazily on the first call and stays open for the lifetime of the
// value; every operation runs in its own transaction.
type Local struct {
	path string
	now  func() time.Time

	mu sync.Mutex
	db *sql.DB
}

// NewLocal returns a Local backend storing its data in the SQLite file at path.
func NewLocal(path string) *Local {
	return &Local{path: path, now: time.Now}
}

// Close releases the database handle. It is meant for process shutdown.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *Local) conn(ctx context.Context) (*sql.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db != nil {
		return l.db, nil
	}
	db, err := sql.Open("sqlite", l.path)
	if err != nil {
		return nil, backendErr("open", err)
	}
	// One connection serialises writers and keeps transactions on one handle.
	db.SetMaxOpenConns(1)
	if err := migrateLocal(ctx, db); err != nil {
		_ = db.Close()
		return nil, backendErr("open", err)
	}
	l.db = db
	return db, nil
}

func migrateLocal(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version == localSchemaVersion {
		return nil
	}
	if version > localSchemaVersion {
		return fmt.Errorf("unsupported schema version %d", version)
	}
	if _, err := db.ExecContext(ctx, createItemsTable); err != nil {
		return fmt.Errorf("create items: %w", err)
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", localSchemaVersion))
	return err
}

func (l *Local) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	db, err := l.conn(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return backendErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return backendErr(op, err)
	}
	return nil
}

// classify keeps domain errors intact and wraps everything else.
func classify(op string, err error) error {
	var ve *domain.ValidationError
	var be *domain.BackendError
	if errors.Is(err, domain.ErrNotFound) || errors.As(err, &ve) || errors.As(err, &be) {
		return err
	}
	return backendErr(op, err)
}

func (l *Local) GetAll(ctx context.Context) ([]domain.Item, error) {
	items := []domain.Item{}
	err := l.withTx(ctx, "get all", func(tx *sql.Tx) error {
		var err error
		items, err = selectAll(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (l *Local) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	key, ok := parseLocalID(id)
	if !ok {
		return nil, nil
	}
	var item *domain.Item
	err := l.withTx(ctx, "get", func(tx *sql.Tx) error {
		var err error
		item, err = selectOne(ctx, tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (l *Local) Save(ctx context.Context, item domain.Item) (SaveResult, error) {
	if item.IsNew() {
		return l.insert(ctx, item)
	}
	return l.update(ctx, item)
}

func (l *Local) insert(ctx context.Context, item domain.Item) (SaveResult, error) {
	var saved *domain.Item
	err := l.withTx(ctx, "insert", func(tx *sql.Tx) error {
		item.LastEditDate = l.now()
		key, err := insertDoc(ctx, tx, 0, item)
		if err != nil {
			return err
		}
		saved, err = selectOne(ctx, tx, key)
		return err
	})
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Item: *saved, Outcome: Created}, nil
}

func (l *Local) update(ctx context.Context, item domain.Item) (SaveResult, error) {
	key, ok := parseLocalID(item.ID)
	if !ok {
		return SaveResult{}, domain.ErrNotFound
	}
	var saved *domain.Item
	err := l.withTx(ctx, "update", func(tx *sql.Tx) error {
		current, err := selectOne(ctx, tx, key)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		item.CreatedDate = current.CreatedDate
		item.LastEditDate = l.now()
		doc, err := encodeDoc(item)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE items SET doc = ? WHERE id = ?", doc, key); err != nil {
			return err
		}
		saved, err = selectOne(ctx, tx, key)
		return err
	})
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Item: *saved, Outcome: Updated}, nil
}

func (l *Local) Delete(ctx context.Context, id string) error {
	key, ok := parseLocalID(id)
	if !ok {
		return domain.ErrNotFound
	}
	return l.withTx(ctx, "delete", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", key)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// AddMultiple inserts all items in one transaction. A rejected item (invalid
// fields, a non-numeric or already used id) rolls back the whole batch.
func (l *Local) AddMultiple(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	all := []domain.Item{}
	err := l.withTx(ctx, "add multiple", func(tx *sql.Tx) error {
		now := l.now()
		for i, item := range items {
			if err := item.Validate(); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			var key int64
			if !item.IsNew() {
				k, ok := parseLocalID(item.ID)
				if !ok {
					return fmt.Errorf("item %d: %w", i, &domain.ValidationError{Field: "id", Message: "id must be a positive integer"})
				}
				key = k
			}
			item.LastEditDate = now
			if _, err := insertDoc(ctx, tx, key, item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		var err error
		all, err = selectAll(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// insertDoc stores item under key, or under the next sequential key when key
// is zero.
func insertDoc(ctx context.Context, tx *sql.Tx, key int64, item domain.Item) (int64, error) {
	doc, err := encodeDoc(item)
	if err != nil {
		return 0, err
	}
	var res sql.Result
	if key == 0 {
		res, err = tx.ExecContext(ctx, "INSERT INTO items (doc) VALUES (?)", doc)
	} else {
		res, err = tx.ExecContext(ctx, "INSERT INTO items (id, doc) VALUES (?, ?)", key, doc)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func selectOne(ctx context.Context, tx *sql.Tx, key int64) (*domain.Item, error) {
	var doc string
	err := tx.QueryRowContext(ctx, "SELECT doc FROM items WHERE id = ?", key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item, err := decodeDoc(key, doc)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func selectAll(ctx context.Context, tx *sql.Tx) ([]domain.Item, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, doc FROM items ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		var (
			key int64
			doc string
		)
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, err
		}
		item, err := decodeDoc(key, doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// encodeDoc serialises item without its id; the row key is authoritative.
func encodeDoc(item domain.Item) (string, error) {
	item.ID = ""
	data, err := sonic.Marshal(item)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeDoc(key int64, doc string) (domain.Item, error) {
	var item domain.Item
	if err := sonic.UnmarshalString(doc, &item); err != nil {
		return domain.Item{}, fmt.Errorf("decode item %d: %w", key, err)
	}
	item.ID = strconv.FormatInt(key, 10)
	return item, nil
}

func parseLocalID(id string) (int64, bool) {
	key, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || key <= 0 {
		return 0, false
	}
	return key, true
}
