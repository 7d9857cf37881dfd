package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Store persists catalog snapshots keyed by a hash of connection
// parameters. A missing key is not an error.
type Store interface {
	Load(key string) (*Catalog, bool, error)
	Save(key string, c *Catalog) error
}

// CacheKey hashes the adapter name, connection strings and options into a
// stable key. encoding/json sorts map keys, so equal parameters always
// produce the same key.
func CacheKey(adapterName string, connStr []string, opts map[string]any) (string, error) {
	b, err := json.Marshal(struct {
		Adapter string         `json:"adapter"`
		ConnStr []string       `json:"conn_str"`
		Options map[string]any `json:"options"`
	}{adapterName, connStr, opts})
	if err != nil {
		return "", fmt.Errorf("catalog cache key: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// FileStore keeps one JSON file per key under Dir.
type FileStore struct {
	Dir string
}

func (s FileStore) path(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

func (s FileStore) Load(key string) (*Catalog, bool, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read catalog cache: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, false, fmt.Errorf("decode catalog cache: %w", err)
	}
	return &c, true, nil
}

func (s FileStore) Save(key string, c *Catalog) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create catalog cache dir: %w", err)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode catalog cache: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write catalog cache: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write catalog cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write catalog cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("write catalog cache: %w", err)
	}
	return nil
}

// MemoryStore is an expiring LRU in front of an optional backing Store.
type MemoryStore struct {
	cache   *lru.LRU[string, *Catalog]
	backing Store
}

// NewMemoryStore returns a MemoryStore holding up to size snapshots for
// ttl. backing may be nil.
func NewMemoryStore(size int, ttl time.Duration, backing Store) *MemoryStore {
	return &MemoryStore{
		cache:   lru.NewLRU[string, *Catalog](size, nil, ttl),
		backing: backing,
	}
}

func (s *MemoryStore) Load(key string) (*Catalog, bool, error) {
	if c, ok := s.cache.Get(key); ok {
		return c, true, nil
	}
	if s.backing == nil {
		return nil, false, nil
	}
	c, ok, err := s.backing.Load(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	s.cache.Add(key, c)
	return c, true, nil
}

func (s *MemoryStore) Save(key string, c *Catalog) error {
	s.cache.Add(key, c)
	if s.backing == nil {
		return nil
	}
	return s.backing.Save(key, c)
}
