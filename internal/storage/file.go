package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"moodle-assistant/internal/common/logger"
)

var errCorruptDocument = errors.New("storage document is not a JSON object")

// FileBackend stores every key in one JSON object on disk. Writes go through a
// temp file and rename so a crash never leaves a half-written document.
// A document that does not decode fails reads, and is moved aside to
// <path>.corrupt by the next write.
type FileBackend struct {
	path   string
	logger logger.Logger
	mu     sync.Mutex
}

func NewFileBackend(path string, log logger.Logger) *FileBackend {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &FileBackend{
		path:   path,
		logger: log.WithFields(map[string]interface{}{"component": "file-storage"}),
	}
}

// Path returns the backing file location.
func (f *FileBackend) Path() string {
	return f.path
}

func (f *FileBackend) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *FileBackend) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.loadForWrite()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileBackend) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.loadForWrite()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

func (f *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return make(map[string]string), nil
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", f.path, errCorruptDocument, err)
	}
	return values, nil
}

// loadForWrite is load, except that a corrupted document is moved aside and
// treated as empty so the write can replace it.
func (f *FileBackend) loadForWrite() (map[string]string, error) {
	values, err := f.load()
	if !errors.Is(err, errCorruptDocument) {
		return values, err
	}

	backup := f.path + ".corrupt"
	fields := map[string]interface{}{"path": f.path, "backup": backup}
	if renameErr := os.Rename(f.path, backup); renameErr != nil {
		fields["rename_error"] = renameErr.Error()
	}
	f.logger.WithError(err).Warn("discarding corrupted storage document", fields)
	return make(map[string]string), nil
}

func (f *FileBackend) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".storage-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
