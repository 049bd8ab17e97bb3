// Package localstore — долговременное локальное хранилище клиента дашборда:
// строковые элементы (auth_token, business_id) и JSON-снимки состояния
// в одном TOML-файле. Запись атомарная: временный файл и rename.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	fileMode        = 0o600
	dirMode         = 0o700
	configDir       = "campaign-dashboard"
	storageFile     = "storage.toml"
	tempFilePattern = ".storage-*.toml.tmp"
	schemaVersion   = 1
)

type fileSchema struct {
	Version   int               `toml:"version"`
	Items     map[string]string `toml:"items"`
	Snapshots map[string]string `toml:"snapshots"`
}

// Store хранит данные в TOML-файле по пути path.
type Store struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

// DefaultPath возвращает ~/.config/campaign-dashboard/storage.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, configDir, storageFile), nil
}

// Open возвращает хранилище для файла path. Файл создаётся при первой записи.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	abs = filepath.Clean(abs)
	return &Store{path: abs, mu: lockForPath(abs)}, nil
}

// Path возвращает путь к файлу.
func (s *Store) Path() string {
	return s.path
}

// SetItem сохраняет строковый элемент.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	return s.update(ctx, func(f *fileSchema) {
		f.Items[key] = value
	})
}

// GetItem читает элемент. ok=false, если элемента нет.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := f.Items[key]
	return v, ok, nil
}

// RemoveItem удаляет элемент. Отсутствие элемента не ошибка.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	return s.update(ctx, func(f *fileSchema) {
		delete(f.Items, key)
	})
}

// SaveSnapshot сохраняет v в JSON под ключом key.
func (s *Store) SaveSnapshot(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %q: %w", key, err)
	}
	return s.update(ctx, func(f *fileSchema) {
		f.Snapshots[key] = string(data)
	})
}

// LoadSnapshot читает снимок key в v. ok=false, если снимка нет.
func (s *Store) LoadSnapshot(ctx context.Context, key string, v any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.read()
	if err != nil {
		return false, err
	}
	raw, ok := f.Snapshots[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode snapshot %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) update(ctx context.Context, fn func(f *fileSchema)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return err
	}
	fn(&f)
	return s.write(f)
}

func (s *Store) read() (fileSchema, error) {
	f := fileSchema{Version: schemaVersion}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.applyDefaults()
			return f, nil
		}
		return fileSchema{}, fmt.Errorf("read storage file: %w", err)
	}
	if err := toml.Unmarshal(data, &f); err != nil {
		return fileSchema{}, fmt.Errorf("decode storage file: %w", err)
	}
	if f.Version > schemaVersion {
		return fileSchema{}, fmt.Errorf("unsupported storage file version %d", f.Version)
	}
	f.applyDefaults()
	return f, nil
}

func (f *fileSchema) applyDefaults() {
	if f.Version == 0 {
		f.Version = schemaVersion
	}
	if f.Items == nil {
		f.Items = map[string]string{}
	}
	if f.Snapshots == nil {
		f.Snapshots = map[string]string{}
	}
}

func (s *Store) write(f fileSchema) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp storage file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp storage file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp storage file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	cleanup = false
	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}
	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
