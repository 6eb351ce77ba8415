package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates no blob is stored under the requested key.
var ErrNotFound = errors.New("record not found")

// Gateway is durable get/set of whole serialized blobs. A Set replaces the previous value
// under key completely.
type Gateway interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, blob []byte) error
}
