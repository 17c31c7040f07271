// Package registrycache implements §4.1: a disk-backed, content-hashed
// key/value store of per-package version indexes, fronted by a bounded
// in-memory LRU so one run never re-parses the same file twice.
//
// Grounded on the teacher's internal/packagemanager/fileregistry.go
// (one-file-per-key layout, JSON-on-disk) and on
// matzehuels-stacktower/pkg/cache/file.go (hash-bucketed file names,
// cacheEntry{Data,ExpiresAt} shape) — neither of those shows atomic
// replacement, which §4.1 requires, so temp-file-then-rename is added
// here as the one deviation from both.
package registrycache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dertin/cargo-cooldown/internal/cderrors"
	"github.com/dertin/cargo-cooldown/internal/cooldown"
)

// l1Size bounds the in-memory layer; a typical workspace graph rarely
// exceeds a few hundred distinct package names per run.
const l1Size = 512

// Cache is a file-backed key/value store keyed by package name.
type Cache struct {
	dir string
	mu  sync.Mutex
	l1  *lru.Cache[string, cooldown.VersionIndex]
}

// New creates a Cache rooted at dir, creating it if absent.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cderrors.CacheError("could not create cache directory", map[string]string{"dir": dir})
	}
	l1, err := lru.New[string, cooldown.VersionIndex](l1Size)
	if err != nil {
		return nil, cderrors.CacheError("could not allocate in-memory cache layer", nil)
	}
	return &Cache{dir: dir, l1: l1}, nil
}

// diskEntry is the on-disk shape of one cached version index.
type diskEntry struct {
	Name      string        `json:"name"`
	WrittenAt time.Time     `json:"written_at"`
	Versions  []diskVersion `json:"versions"`
}

type diskVersion struct {
	Version string    `json:"version"`
	Created time.Time `json:"created_at"`
	Yanked  bool      `json:"yanked"`
}

// PublishedAt returns the cached publication instant for an exact node
// identity, satisfying resolverloop.VersionLookup.
func (c *Cache) PublishedAt(id cooldown.Identity) (time.Time, bool) {
	vi, ok := c.Get(id.Name)
	if !ok {
		return time.Time{}, false
	}
	rec, ok := vi.Find(id.Version)
	if !ok {
		return time.Time{}, false
	}
	return rec.PublicationTime, true
}

// keyPath returns the content-addressed path for a package name,
// mirroring ComputeCID's sha256-hex approach in the teacher's
// registry.go and pkg/cache/hash.go's identical technique.
func (c *Cache) keyPath(name string) string {
	sum := sha256.Sum256([]byte(name))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, hash[:2], hash[2:]+".json")
}

// Get returns the cached version index for name, if present. A corrupt
// or unreadable entry is treated as a miss, never as an error (§4.1
// Failure).
func (c *Cache) Get(name string) (cooldown.VersionIndex, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if vi, ok := c.l1.Get(name); ok {
		return vi, true
	}

	data, err := os.ReadFile(c.keyPath(name))
	if err != nil {
		return cooldown.VersionIndex{}, false
	}

	var de diskEntry
	if err := json.Unmarshal(data, &de); err != nil {
		return cooldown.VersionIndex{}, false
	}

	vi, ok := fromDisk(de)
	if !ok {
		return cooldown.VersionIndex{}, false
	}
	c.l1.Add(name, vi)
	return vi, true
}

// IsFresh reports whether the cached entry for name was written within
// ttl of now.
func (c *Cache) IsFresh(name string, ttl time.Duration, now time.Time) bool {
	vi, ok := c.Get(name)
	return ok && vi.Fresh(now, ttl)
}

// Put writes vi for name, atomically replacing any prior entry via
// write-temp-then-rename (§4.1 Storage).
func (c *Cache) Put(vi cooldown.VersionIndex) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.keyPath(vi.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cderrors.CacheError("could not create cache bucket directory", map[string]string{"name": vi.Name})
	}

	data, err := json.Marshal(toDisk(vi))
	if err != nil {
		return cderrors.CacheError("could not serialize version index", map[string]string{"name": vi.Name})
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return cderrors.CacheError("could not create temp cache file", map[string]string{"name": vi.Name})
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cderrors.CacheError("could not write temp cache file", map[string]string{"name": vi.Name})
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cderrors.CacheError("could not close temp cache file", map[string]string{"name": vi.Name})
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cderrors.CacheError("could not finalize cache file", map[string]string{"name": vi.Name})
	}

	c.l1.Add(vi.Name, vi)
	return nil
}

func toDisk(vi cooldown.VersionIndex) diskEntry {
	de := diskEntry{Name: vi.Name, WrittenAt: vi.WrittenAt}
	for _, rec := range vi.Versions {
		de.Versions = append(de.Versions, diskVersion{
			Version: rec.Version.String(),
			Created: rec.PublicationTime,
			Yanked:  rec.Yanked,
		})
	}
	return de
}

func fromDisk(de diskEntry) (cooldown.VersionIndex, bool) {
	vi := cooldown.VersionIndex{Name: de.Name, WrittenAt: de.WrittenAt}
	for _, dv := range de.Versions {
		v, err := parseVersion(dv.Version)
		if err != nil {
			continue
		}
		vi.Versions = append(vi.Versions, cooldown.VersionRecord{
			Version:         v,
			PublicationTime: dv.Created,
			Yanked:          dv.Yanked,
		})
	}
	return vi, true
}
