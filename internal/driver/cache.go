package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"piecemeal/internal/gogen"
	"piecemeal/internal/loader"
	"piecemeal/internal/project"
	"piecemeal/internal/registry"
)

// Current schema version - increment when DiskPayload or the key input changes
const diskCacheSchemaVersion uint16 = 1

// DiskCache хранит сгенерированный код по хешу входа генератора.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiskPayload is one cached generator output.
type DiskPayload struct {
	Schema  uint16
	Package string
	Source  []byte
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return NewDiskCache(filepath.Join(base, app))
}

// NewDiskCache uses dir as the cache root, creating it when needed.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key project.Digest) string {
	// подкаталог "gen", чтобы кэш было удобно чистить
	return filepath.Join(c.dir, "gen", key.String()+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key project.Digest, payload *DiskPayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Атомарная замена
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Get reads a payload. Entries from another schema count as misses.
func (c *DiskCache) Get(key project.Digest, out *DiskPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, fmt.Errorf("decode cache entry: %w", err)
	}
	return out.Schema == diskCacheSchemaVersion, nil
}

// DropAll invalidates the cache.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "gen"))
}

// cacheKeyHead is the part of the key shared by every member of a package.
type cacheKeyHead struct {
	Schema  uint16
	Header  string
	Package string
	Name    string
}

// cacheKey combines the package head with one digest per member, in scope
// order, so the key is everything the generated bytes depend on.
func cacheKey(p *loader.Package, members []registry.Members) (project.Digest, error) {
	head, err := msgpack.Marshal(&cacheKeyHead{
		Schema:  diskCacheSchemaVersion,
		Header:  gogen.Header,
		Package: p.Path,
		Name:    p.Name,
	})
	if err != nil {
		return project.Digest{}, err
	}
	parts := make([]project.Digest, 0, len(members))
	for i := range members {
		data, err := msgpack.Marshal(&members[i])
		if err != nil {
			return project.Digest{}, err
		}
		parts = append(parts, project.Sum(data))
	}
	return project.Combine(project.Sum(head), parts...), nil
}
