package drivers

import (
	"github.com/FocuswithJustin/swordshelf/core/cache"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
)

// ContentStore maps string keys to one or more text entries. Keyed
// drivers (dictionaries and general books) build one at open time;
// whether the text itself is resident depends on the load mode.
type ContentStore interface {
	// Get returns every entry stored under key, in the order the
	// module's index listed them. Missing keys return ErrNotFound.
	Get(key string) ([]string, error)
	Has(key string) bool
	// Keys returns all keys in index order.
	Keys() []string
}

// Locator points at one entry's bytes. Raw formats use Offset and
// Size into the data file; compressed formats address a block by its
// index entry plus the chunk number inside the inflated block.
type Locator struct {
	Offset uint32
	Size   uint32
	Block  uint32
	Chunk  uint32
}

// EagerStore holds fully decoded entries in memory.
type EagerStore struct {
	module  string
	order   []string
	entries map[string][]string
}

// NewEagerStore returns an empty store; module names error values.
func NewEagerStore(module string) *EagerStore {
	return &EagerStore{module: module, entries: make(map[string][]string)}
}

// Add appends an entry under key. Duplicate keys accumulate.
func (s *EagerStore) Add(key, text string) {
	if _, ok := s.entries[key]; !ok {
		s.order = append(s.order, key)
	}
	s.entries[key] = append(s.entries[key], text)
}

func (s *EagerStore) Get(key string) ([]string, error) {
	entries, ok := s.entries[key]
	if !ok {
		return nil, swerrors.NewNotFound(s.module, key, nil)
	}
	return entries, nil
}

func (s *EagerStore) Has(key string) bool {
	_, ok := s.entries[key]
	return ok
}

// AddText is Add; eager entries are always literal text.
func (s *EagerStore) AddText(key, text string) { s.Add(key, text) }

func (s *EagerStore) Keys() []string { return s.order }

// lazyEntryCacheBytes bounds the resolved-entry cache per store.
const lazyEntryCacheBytes = 256 << 10

// LazyStore holds locators and fetches entry text on demand. Entries
// added as literal text (auto-generated cross-references) are served
// without touching the data file. Resolved entries are kept in a
// byte-bounded cache so repeated lookups skip the fetch.
type LazyStore struct {
	module   string
	order    []string
	refs     map[string][]Locator
	literals map[string][]string
	fetch    func(Locator) (string, error)
	resolved *cache.BoundedCache[string, []string]
}

// NewLazyStore returns an empty store backed by fetch.
func NewLazyStore(module string, fetch func(Locator) (string, error)) *LazyStore {
	return &LazyStore{
		module:   module,
		refs:     make(map[string][]Locator),
		literals: make(map[string][]string),
		fetch:    fetch,
		resolved: cache.NewBoundedCache[string, []string](
			cache.DefaultConfig(), lazyEntryCacheBytes, entryBytes),
	}
}

func entryBytes(entries []string) int64 {
	var n int64
	for _, e := range entries {
		n += int64(len(e))
	}
	return n
}

// Add appends a locator under key. Duplicate keys accumulate.
func (s *LazyStore) Add(key string, loc Locator) {
	if !s.Has(key) {
		s.order = append(s.order, key)
	}
	s.refs[key] = append(s.refs[key], loc)
	s.resolved.Remove(key)
}

// AddText appends a literal entry under key.
func (s *LazyStore) AddText(key, text string) {
	if !s.Has(key) {
		s.order = append(s.order, key)
	}
	s.literals[key] = append(s.literals[key], text)
}

func (s *LazyStore) Get(key string) ([]string, error) {
	if texts, ok := s.literals[key]; ok {
		return texts, nil
	}
	locs, ok := s.refs[key]
	if !ok {
		return nil, swerrors.NewNotFound(s.module, key, nil)
	}
	if entries, ok := s.resolved.Get(key); ok {
		return entries, nil
	}
	entries := make([]string, 0, len(locs))
	for _, loc := range locs {
		text, err := s.fetch(loc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, text)
	}
	s.resolved.Put(key, entries)
	return entries, nil
}

func (s *LazyStore) Has(key string) bool {
	if _, ok := s.literals[key]; ok {
		return true
	}
	_, ok := s.refs[key]
	return ok
}

func (s *LazyStore) Keys() []string { return s.order }
