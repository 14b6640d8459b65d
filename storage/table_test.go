package storage

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"todo-list/domain"
)

// fakeTable keeps entities in memory, keyed by RowKey.
type fakeTable struct {
	mu        sync.Mutex
	exists    bool
	creates   int
	rows      map[string][]byte
	createErr error
	listErr   error
	batches   int
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: map[string][]byte{}}
}

func rowKeyOf(entity []byte) string {
	var ent itemEntity
	_ = sonic.Unmarshal(entity, &ent)
	return ent.RowKey
}

func (f *fakeTable) CreateTable(ctx context.Context, _ *aztables.CreateTableOptions) (aztables.CreateTableResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return aztables.CreateTableResponse{}, f.createErr
	}
	if f.exists {
		return aztables.CreateTableResponse{}, &azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: string(aztables.TableAlreadyExists)}
	}
	f.exists = true
	return aztables.CreateTableResponse{}, nil
}

func (f *fakeTable) AddEntity(ctx context.Context, entity []byte, _ *aztables.AddEntityOptions) (aztables.AddEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rowKeyOf(entity)
	if _, ok := f.rows[key]; ok {
		return aztables.AddEntityResponse{}, &azcore.ResponseError{StatusCode: http.StatusConflict}
	}
	f.rows[key] = entity
	return aztables.AddEntityResponse{}, nil
}

func (f *fakeTable) GetEntity(ctx context.Context, pk, rk string, _ *aztables.GetEntityOptions) (aztables.GetEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.rows[rk]
	if !ok || pk != itemsPartition {
		return aztables.GetEntityResponse{}, &azcore.ResponseError{StatusCode: http.StatusNotFound}
	}
	return aztables.GetEntityResponse{ETag: azcore.ETag("etag-" + rk), Value: data}, nil
}

func (f *fakeTable) UpdateEntity(ctx context.Context, entity []byte, opts *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rowKeyOf(entity)
	if _, ok := f.rows[key]; !ok {
		return aztables.UpdateEntityResponse{}, &azcore.ResponseError{StatusCode: http.StatusNotFound}
	}
	if opts == nil || opts.IfMatch == nil || *opts.IfMatch != azcore.ETag("etag-"+key) {
		return aztables.UpdateEntityResponse{}, &azcore.ResponseError{StatusCode: http.StatusPreconditionFailed}
	}
	f.rows[key] = entity
	return aztables.UpdateEntityResponse{}, nil
}

func (f *fakeTable) DeleteEntity(ctx context.Context, pk, rk string, _ *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[rk]; !ok {
		return aztables.DeleteEntityResponse{}, &azcore.ResponseError{StatusCode: http.StatusNotFound}
	}
	delete(f.rows, rk)
	return aztables.DeleteEntityResponse{}, nil
}

func (f *fakeTable) NewListEntitiesPager(_ *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse] {
	return runtime.NewPager(runtime.PagingHandler[aztables.ListEntitiesResponse]{
		More: func(aztables.ListEntitiesResponse) bool { return false },
		Fetcher: func(ctx context.Context, _ *aztables.ListEntitiesResponse) (aztables.ListEntitiesResponse, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.listErr != nil {
				return aztables.ListEntitiesResponse{}, f.listErr
			}
			keys := make([]string, 0, len(f.rows))
			for k := range f.rows {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var resp aztables.ListEntitiesResponse
			for _, k := range keys {
				resp.Entities = append(resp.Entities, f.rows[k])
			}
			return resp, nil
		},
	})
}

func (f *fakeTable) SubmitTransaction(ctx context.Context, actions []aztables.TransactionAction, _ *aztables.SubmitTransactionOptions) (aztables.TransactionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	seen := map[string]bool{}
	for _, a := range actions {
		key := rowKeyOf(a.Entity)
		if _, ok := f.rows[key]; ok || seen[key] {
			return aztables.TransactionResponse{}, &azcore.ResponseError{StatusCode: http.StatusConflict}
		}
		seen[key] = true
	}
	for _, a := range actions {
		f.rows[rowKeyOf(a.Entity)] = a.Entity
	}
	return aztables.TransactionResponse{}, nil
}

func newTestTable(t *testing.T) (*Table, *fakeTable) {
	t.Helper()
	fake := newFakeTable()
	tbl := newTable(fake)
	seq := 0
	tbl.newID = func() (string, error) {
		seq++
		return "row-" + strconv.Itoa(1000+seq), nil
	}
	return tbl, fake
}

func TestEntityCodecRoundTrip(t *testing.T) {
	due := time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC)
	item := domain.Item{
		ID:           "0190c2a0-0000-7000-8000-000000000001",
		Name:         "Visit Rapperswil",
		Description:  "boat trip",
		Importance:   2,
		DueDate:      due,
		Completed:    true,
		CreatedDate:  due.Add(-48 * time.Hour),
		LastEditDate: due.Add(-time.Hour),
	}
	data, err := encodeEntity(item)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw["PartitionKey"] != itemsPartition || raw["RowKey"] != item.ID {
		t.Fatalf("unexpected keys: %v", raw)
	}
	got, err := decodeEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(item) {
		t.Fatalf("round trip mismatch:\nwant %#v\ngot  %#v", item, got)
	}
}

func TestDecodeEntityRejectsBadDate(t *testing.T) {
	if _, err := decodeEntity([]byte(`{"RowKey":"x","DueDate":"yesterday"}`)); err == nil {
		t.Fatalf("expected error for malformed DueDate")
	}
}

func TestTableEnsureToleratesExistingTable(t *testing.T) {
	tbl, fake := newTestTable(t)
	fake.exists = true
	if _, err := tbl.GetAll(context.Background()); err != nil {
		t.Fatalf("get all: %v", err)
	}
	if _, err := tbl.GetAll(context.Background()); err != nil {
		t.Fatalf("get all: %v", err)
	}
	if fake.creates != 1 {
		t.Fatalf("expected table creation to be attempted once, got %d", fake.creates)
	}
}

func TestTableEnsureFailure(t *testing.T) {
	tbl, fake := newTestTable(t)
	fake.createErr = &azcore.ResponseError{StatusCode: http.StatusForbidden}
	_, err := tbl.GetAll(context.Background())
	var be *domain.BackendError
	if !errors.As(err, &be) || be.Op != "open" {
		t.Fatalf("expected open BackendError, got %v", err)
	}
}

func TestTableSaveRoundTrip(t *testing.T) {
	tbl, _ := newTestTable(t)
	ctx := context.Background()
	stamp := time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)
	tbl.now = func() time.Time { return stamp }

	res, err := tbl.Save(ctx, domain.NewItem(domain.Draft{Name: "Pay Taxes"}))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Outcome != Created || res.Item.ID != "row-1001" || !res.Item.LastEditDate.Equal(stamp) {
		t.Fatalf("unexpected create result: %#v", res)
	}

	got, err := tbl.GetByID(ctx, res.Item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || !got.Equal(res.Item) {
		t.Fatalf("round trip mismatch: saved %#v, loaded %#v", res.Item, got)
	}

	later := stamp.Add(time.Hour)
	tbl.now = func() time.Time { return later }
	edit := res.Item
	edit.Completed = true
	edit.CreatedDate = time.Time{}
	upd, err := tbl.Save(ctx, edit)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.Outcome != Updated || !upd.Item.Completed {
		t.Fatalf("unexpected update result: %#v", upd)
	}
	if !upd.Item.CreatedDate.Equal(res.Item.CreatedDate) || !upd.Item.LastEditDate.Equal(later) {
		t.Fatalf("timestamps not maintained: %#v", upd.Item)
	}
}

func TestTableMissingItems(t *testing.T) {
	tbl, _ := newTestTable(t)
	ctx := context.Background()

	for _, id := range []string{"nope", "", "a/b"} {
		got, err := tbl.GetByID(ctx, id)
		if err != nil || got != nil {
			t.Fatalf("GetByID(%q) = %#v, %v; want nil, nil", id, got, err)
		}
	}
	ghost := domain.NewItem(domain.Draft{ID: "nope", Name: "ghost"})
	if _, err := tbl.Save(ctx, ghost); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing: expected ErrNotFound, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := tbl.Delete(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("delete #%d missing: expected ErrNotFound, got %v", i, err)
		}
	}
}

func TestTableGetAllOrderAndFailure(t *testing.T) {
	tbl, fake := newTestTable(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		if _, err := tbl.Save(ctx, domain.NewItem(domain.Draft{Name: name})); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	items, err := tbl.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(items) != 3 || items[0].Name != "a" || items[2].Name != "c" {
		t.Fatalf("expected creation order, got %#v", items)
	}

	fake.listErr = errors.New("connection reset")
	if _, err := tbl.GetAll(ctx); err == nil {
		t.Fatalf("expected list failure")
	}
}

func TestTableAddMultiple(t *testing.T) {
	tbl, fake := newTestTable(t)
	items, err := tbl.AddMultiple(context.Background(), domain.SeedItems(time.Now()))
	if err != nil {
		t.Fatalf("add multiple: %v", err)
	}
	if len(items) != 3 || fake.batches != 1 {
		t.Fatalf("expected 3 items in one batch, got %d items in %d batches", len(items), fake.batches)
	}
	if items[0].Name != "Food Shopping" {
		t.Fatalf("expected seed order, got %#v", items)
	}
}

func TestTableAddMultipleIsAtomic(t *testing.T) {
	tests := []struct {
		name    string
		batch   []domain.Item
		batches int
	}{
		{
			name: "invalid item",
			batch: []domain.Item{
				domain.NewItem(domain.Draft{Name: "ok"}),
				domain.NewItem(domain.Draft{Name: "  "}),
			},
		},
		{
			name: "duplicate id",
			batch: []domain.Item{
				domain.NewItem(domain.Draft{ID: "dup", Name: "one"}),
				domain.NewItem(domain.Draft{ID: "dup", Name: "two"}),
			},
			batches: 1,
		},
		{
			name: "reserved characters",
			batch: []domain.Item{
				domain.NewItem(domain.Draft{ID: "a#b", Name: "one"}),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, fake := newTestTable(t)
			if _, err := tbl.AddMultiple(context.Background(), tt.batch); err == nil {
				t.Fatalf("expected batch to be rejected")
			}
			if len(fake.rows) != 0 {
				t.Fatalf("expected no rows written, got %d", len(fake.rows))
			}
			if fake.batches != tt.batches {
				t.Fatalf("expected %d submitted batches, got %d", tt.batches, fake.batches)
			}
		})
	}
}

func TestTableAddMultipleLimit(t *testing.T) {
	tbl, fake := newTestTable(t)
	batch := make([]domain.Item, maxTransactionActions+1)
	for i := range batch {
		batch[i] = domain.NewItem(domain.Draft{Name: "bulk"})
	}
	_, err := tbl.AddMultiple(context.Background(), batch)
	var be *domain.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if fake.batches != 0 || len(fake.rows) != 0 {
		t.Fatalf("oversized batch must not reach the service")
	}
}
