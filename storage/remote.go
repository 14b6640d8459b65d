package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"todo-list/domain"
)

// IdempotencyKeyHeader carries a client generated key on create requests so a
// server can recognise a repeated POST.
const IdempotencyKeyHeader = "Idempotency-Key"

const remoteMaxBody = 4 << 20 // 4 MiB

// Remote talks to the task list HTTP API. Each call is a single blocking
// request/response exchange; any status outside 200–399 is a failure.
type Remote struct {
	base   string
	client *http.Client
	newKey func() string
}

// NewRemote returns a Remote backend for the API served at baseURL (the
// origin, without the /api suffix). A nil client uses http.DefaultClient.
func NewRemote(baseURL string, client *http.Client) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{
		base:   strings.TrimRight(baseURL, "/") + "/api/",
		client: client,
		newKey: uuid.NewString,
	}
}

func (r *Remote) itemURL(id string) string {
	return r.base + url.PathEscape(id)
}

func (r *Remote) GetAll(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	if err := r.do(ctx, "get all", http.MethodGet, r.base, nil, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

func (r *Remote) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	var item *domain.Item
	err := r.do(ctx, "get", http.MethodGet, r.itemURL(id), nil, nil, &item)
	if isStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Remote) Save(ctx context.Context, item domain.Item) (SaveResult, error) {
	if item.IsNew() {
		saved, err := r.create(ctx, item)
		if err != nil {
			return SaveResult{}, err
		}
		return SaveResult{Item: saved, Outcome: Created}, nil
	}

	var saved domain.Item
	err := r.do(ctx, "update", http.MethodPatch, r.itemURL(item.ID), nil, item, &saved)
	if isStatus(err, http.StatusNotFound) {
		return SaveResult{}, domain.ErrNotFound
	}
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Item: saved, Outcome: Updated}, nil
}

func (r *Remote) create(ctx context.Context, item domain.Item) (domain.Item, error) {
	item.ID = ""
	headers := http.Header{}
	headers.Set(IdempotencyKeyHeader, r.newKey())
	var saved domain.Item
	if err := r.do(ctx, "create", http.MethodPost, r.base, headers, item, &saved); err != nil {
		return domain.Item{}, err
	}
	if saved.ID == "" {
		return domain.Item{}, &domain.BackendError{Op: "create", Err: errors.New("response without id")}
	}
	return saved, nil
}

func (r *Remote) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrNotFound
	}
	err := r.do(ctx, "delete", http.MethodDelete, r.itemURL(id), nil, nil, nil)
	if isStatus(err, http.StatusNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// AddMultiple creates the items one request at a time since the API has no
// bulk route. When a create fails, the items created so far are deleted again
// before the error is returned; the rollback is best effort and a failure
// during it is joined to the returned error.
func (r *Remote) AddMultiple(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	created := make([]string, 0, len(items))
	for i, item := range items {
		saved, err := r.create(ctx, item)
		if err != nil {
			err = fmt.Errorf("item %d: %w", i, err)
			for _, id := range created {
				if derr := r.Delete(ctx, id); derr != nil {
					err = errors.Join(err, fmt.Errorf("rollback %s: %w", id, derr))
				}
			}
			return nil, err
		}
		created = append(created, saved.ID)
	}
	return r.GetAll(ctx)
}

func (r *Remote) do(ctx context.Context, op, method, target string, headers http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return backendErr(op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return backendErr(op, err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return backendErr(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, remoteMaxBody))
	if err != nil {
		return backendErr(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &domain.BackendError{Op: op, Status: resp.StatusCode}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return backendErr(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func isStatus(err error, status int) bool {
	var be *domain.BackendError
	return errors.As(err, &be) && be.Status == status
}
