package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"todo-list/domain"
)

const (
	itemsPartition = "items"
	// maxTransactionActions is the entity group transaction limit of the service.
	maxTransactionActions = 100
)

// tableClient is the subset of *aztables.Client used by Table.
type tableClient interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
	SubmitTransaction(ctx context.Context, actions []aztables.TransactionAction, options *aztables.SubmitTransactionOptions) (aztables.TransactionResponse, error)
}

// Table persists items in an Azure Storage table. All items live in one
// partition; row keys are time ordered UUIDs so listing returns items in
// creation order.
type Table struct {
	client tableClient
	now    func() time.Time
	newID  func() (string, error)

	mu    sync.Mutex
	ready bool
}

// NewTable creates a Table backend for tableName from a storage connection
// string. The table itself is created on first use.
func NewTable(connStr, tableName string) (*Table, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			// Failures surface to the caller; nothing is retried automatically.
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return newTable(svc.NewClient(tableName)), nil
}

func newTable(client tableClient) *Table {
	return &Table{client: client, now: time.Now, newID: newRowKey}
}

func newRowKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type itemEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Name         string `json:"Name"`
	Description  string `json:"Description"`
	Importance   int    `json:"Importance"`
	DueDate      string `json:"DueDate"`
	Completed    bool   `json:"Completed"`
	CreatedDate  string `json:"CreatedDate"`
	LastEditDate string `json:"LastEditDate"`
}

func encodeEntity(item domain.Item) ([]byte, error) {
	return sonic.Marshal(itemEntity{
		PartitionKey: itemsPartition,
		RowKey:       item.ID,
		Name:         item.Name,
		Description:  item.Description,
		Importance:   item.Importance,
		DueDate:      formatTime(item.DueDate),
		Completed:    item.Completed,
		CreatedDate:  formatTime(item.CreatedDate),
		LastEditDate: formatTime(item.LastEditDate),
	})
}

func decodeEntity(data []byte) (domain.Item, error) {
	var ent itemEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Item{}, err
	}
	item := domain.Item{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Description: ent.Description,
		Importance:  ent.Importance,
		Completed:   ent.Completed,
	}
	var err error
	if item.DueDate, err = parseTime(ent.DueDate); err != nil {
		return domain.Item{}, fmt.Errorf("item %s DueDate: %w", ent.RowKey, err)
	}
	if item.CreatedDate, err = parseTime(ent.CreatedDate); err != nil {
		return domain.Item{}, fmt.Errorf("item %s CreatedDate: %w", ent.RowKey, err)
	}
	if item.LastEditDate, err = parseTime(ent.LastEditDate); err != nil {
		return domain.Item{}, fmt.Errorf("item %s LastEditDate: %w", ent.RowKey, err)
	}
	return item, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// validRowKey rejects characters the table service does not allow in keys.
func validRowKey(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\#?`)
}

func statusOf(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

func (t *Table) ensure(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ready {
		return nil
	}
	if _, err := t.client.CreateTable(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return backendErr("open", err)
		}
	}
	t.ready = true
	return nil
}

func (t *Table) GetAll(ctx context.Context) ([]domain.Item, error) {
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}
	filter := "PartitionKey eq '" + itemsPartition + "'"
	pager := t.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	items := []domain.Item{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, backendErr("get all", err)
		}
		for _, e := range resp.Entities {
			item, err := decodeEntity(e)
			if err != nil {
				return nil, backendErr("get all", err)
			}
			items = append(items, item)
		}
	}
	return items, nil
}

func (t *Table) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	if !validRowKey(id) {
		return nil, nil
	}
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}
	resp, err := t.client.GetEntity(ctx, itemsPartition, id, nil)
	if statusOf(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, backendErr("get", err)
	}
	item, err := decodeEntity(resp.Value)
	if err != nil {
		return nil, backendErr("get", err)
	}
	return &item, nil
}

func (t *Table) Save(ctx context.Context, item domain.Item) (SaveResult, error) {
	if err := t.ensure(ctx); err != nil {
		return SaveResult{}, err
	}
	if item.IsNew() {
		return t.insert(ctx, item)
	}
	return t.update(ctx, item)
}

func (t *Table) insert(ctx context.Context, item domain.Item) (SaveResult, error) {
	id, err := t.newID()
	if err != nil {
		return SaveResult{}, backendErr("insert", err)
	}
	item.ID = id
	item.LastEditDate = t.now()
	payload, err := encodeEntity(item)
	if err != nil {
		return SaveResult{}, backendErr("insert", err)
	}
	if _, err := t.client.AddEntity(ctx, payload, nil); err != nil {
		return SaveResult{}, backendErr("insert", err)
	}
	saved, err := decodeEntity(payload)
	if err != nil {
		return SaveResult{}, backendErr("insert", err)
	}
	return SaveResult{Item: saved, Outcome: Created}, nil
}

func (t *Table) update(ctx context.Context, item domain.Item) (SaveResult, error) {
	if !validRowKey(item.ID) {
		return SaveResult{}, domain.ErrNotFound
	}
	current, err := t.client.GetEntity(ctx, itemsPartition, item.ID, nil)
	if statusOf(err) == http.StatusNotFound {
		return SaveResult{}, domain.ErrNotFound
	}
	if err != nil {
		return SaveResult{}, backendErr("update", err)
	}
	stored, err := decodeEntity(current.Value)
	if err != nil {
		return SaveResult{}, backendErr("update", err)
	}
	item.CreatedDate = stored.CreatedDate
	item.LastEditDate = t.now()
	payload, err := encodeEntity(item)
	if err != nil {
		return SaveResult{}, backendErr("update", err)
	}
	etag := current.ETag
	_, err = t.client.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
	if statusOf(err) == http.StatusNotFound {
		return SaveResult{}, domain.ErrNotFound
	}
	if err != nil {
		return SaveResult{}, backendErr("update", err)
	}
	saved, err := decodeEntity(payload)
	if err != nil {
		return SaveResult{}, backendErr("update", err)
	}
	return SaveResult{Item: saved, Outcome: Updated}, nil
}

func (t *Table) Delete(ctx context.Context, id string) error {
	if !validRowKey(id) {
		return domain.ErrNotFound
	}
	if err := t.ensure(ctx); err != nil {
		return err
	}
	_, err := t.client.DeleteEntity(ctx, itemsPartition, id, nil)
	if statusOf(err) == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if err != nil {
		return backendErr("delete", err)
	}
	return nil
}

// AddMultiple inserts the items in a single entity group transaction, so the
// service applies all of them or none. Batches above the service limit are
// rejected before anything is sent.
func (t *Table) AddMultiple(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	if len(items) > maxTransactionActions {
		return nil, backendErr("add multiple", fmt.Errorf("batch of %d items exceeds the limit of %d", len(items), maxTransactionActions))
	}
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}
	actions, err := t.addActions(items)
	if err != nil {
		return nil, err
	}
	if len(actions) > 0 {
		if _, err := t.client.SubmitTransaction(ctx, actions, nil); err != nil {
			return nil, backendErr("add multiple", err)
		}
	}
	return t.GetAll(ctx)
}

func (t *Table) addActions(items []domain.Item) ([]aztables.TransactionAction, error) {
	now := t.now()
	actions := make([]aztables.TransactionAction, 0, len(items))
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if item.IsNew() {
			id, err := t.newID()
			if err != nil {
				return nil, backendErr("add multiple", err)
			}
			item.ID = id
		} else if !validRowKey(item.ID) {
			return nil, fmt.Errorf("item %d: %w", i, &domain.ValidationError{Field: "id", Message: "id contains reserved characters"})
		}
		item.LastEditDate = now
		payload, err := encodeEntity(item)
		if err != nil {
			return nil, backendErr("add multiple", err)
		}
		actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeAdd, Entity: payload})
	}
	return actions, nil
}
