package api

import "context"

// Deduper remembers which item a create request with a given idempotency key
// produced, so a repeated POST does not create a second item.
type Deduper interface {
	// Claim reserves key for a new create. When the key is already taken it
	// returns false and the id recorded for it, which is empty while the first
	// request is still in flight.
	Claim(ctx context.Context, key string) (claimed bool, id string, err error)
	// Complete records the id created under a claimed key.
	Complete(ctx context.Context, key, id string) error
	// Release drops a claim after a failed create so the client may retry.
	Release(ctx context.Context, key string) error
}
