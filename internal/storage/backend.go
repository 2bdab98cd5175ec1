// Package storage persists small JSON values across client runs. It plays the role
// browser local storage plays for the web client.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Backend when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// Backend is a raw string key-value store. Implementations return ErrNotFound for
// absent keys and any other error when the store itself is unusable.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
