package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "moodle-assistant/internal/common/errors"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/common/metrics"
)

// Status classifies the outcome of a Store operation.
type Status int

const (
	StatusOK Status = iota
	StatusAbsent
	StatusCorrupted
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAbsent:
		return "absent"
	case StatusCorrupted:
		return "corrupted"
	case StatusUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result reports how a Store operation went. Callers that only care about the
// safe default can ignore it; Err is set for corrupted and unavailable.
type Result struct {
	Status Status
	Err    error
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Store is the failure-contained JSON layer over a Backend. No method returns an
// error or panics; every failure degrades to "treat as absent".
type Store struct {
	backend Backend
	logger  logger.Logger
}

func NewStore(backend Backend, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Store{
		backend: backend,
		logger:  log.WithFields(map[string]interface{}{"component": "storage"}),
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Get returns the decoded value under key, or def when the key is missing, the
// stored JSON does not decode into T, or the backend fails.
func Get[T any](ctx context.Context, s *Store, key string, def T) (T, Result) {
	var raw string
	err := s.guard(func() error {
		var err error
		raw, err = s.backend.Get(ctx, key)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return def, Result{Status: StatusAbsent}
	}
	if err != nil {
		return def, s.fail(key, "get", StatusUnavailable, apperrors.NewStorageUnavailableError(key, err))
	}
	if raw == "" || raw == "null" {
		return def, Result{Status: StatusAbsent}
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return def, s.fail(key, "get", StatusCorrupted, apperrors.NewStorageCorruptedError(key, err))
	}
	return v, Result{Status: StatusOK}
}

// GetString is Get for string values.
func (s *Store) GetString(ctx context.Context, key string) (string, Result) {
	return Get(ctx, s, key, "")
}

// Set JSON-encodes value and writes it under key.
func (s *Store) Set(ctx context.Context, key string, value interface{}) Result {
	data, err := json.Marshal(value)
	if err != nil {
		return s.fail(key, "set", StatusCorrupted, apperrors.NewStorageCorruptedError(key, err))
	}

	if err := s.guard(func() error { return s.backend.Set(ctx, key, string(data)) }); err != nil {
		return s.fail(key, "set", StatusUnavailable, apperrors.NewStorageUnavailableError(key, err))
	}
	return Result{Status: StatusOK}
}

// Remove deletes key. Removing an absent key succeeds.
func (s *Store) Remove(ctx context.Context, key string) Result {
	err := s.guard(func() error { return s.backend.Delete(ctx, key) })
	if err != nil && !errors.Is(err, ErrNotFound) {
		return s.fail(key, "remove", StatusUnavailable, apperrors.NewStorageUnavailableError(key, err))
	}
	return Result{Status: StatusOK}
}

// guard converts a backend panic into an error.
func (s *Store) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("storage backend panic: %v", r)
		}
	}()
	return fn()
}

func (s *Store) fail(key, op string, status Status, err error) Result {
	metrics.StorageFailures.WithLabelValues(op, status.String()).Inc()
	s.logger.Warn("storage operation failed", map[string]interface{}{
		"key":    key,
		"op":     op,
		"status": status.String(),
		"error":  err.Error(),
	})
	return Result{Status: status, Err: err}
}
