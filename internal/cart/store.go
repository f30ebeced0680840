package cart

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"storestock/backend/internal/domain"
	"storestock/backend/internal/logger"
)

// Store persists whole carts under a key. Load never fails on missing or
// unreadable data; it returns an empty cart instead.
type Store interface {
	Load(ctx context.Context, key string) (domain.Cart, error)
	Save(ctx context.Context, key string, c domain.Cart) error
	Delete(ctx context.Context, key string) error
}

type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, key string) (domain.Cart, error) {
	s.mu.Lock()
	payload, ok := s.blobs[key]
	s.mu.Unlock()
	if !ok {
		return New(), nil
	}
	return decode(ctx, key, payload), nil
}

func (s *MemoryStore) Save(_ context.Context, key string, c domain.Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.blobs[key] = payload
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

// FileStore writes one JSON file per key under dir. Writes go through a
// temporary file and a rename so a reader never sees half a cart.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cart dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// path names the file by a digest of key so any key length fits in a file name.
func (s *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, "cart-"+hex.EncodeToString(sum[:])+".json")
}

func (s *FileStore) Load(ctx context.Context, key string) (domain.Cart, error) {
	payload, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return domain.Cart{}, err
	}
	return decode(ctx, key, payload), nil
}

func (s *FileStore) Save(_ context.Context, key string, c domain.Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "cart-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func decode(ctx context.Context, key string, payload []byte) domain.Cart {
	var c domain.Cart
	if err := json.Unmarshal(payload, &c); err != nil {
		logger.Warn(ctx, "discarding unreadable cart blob", "component", "cart", "key", key, "error", err)
		return New()
	}
	return Normalize(c)
}
