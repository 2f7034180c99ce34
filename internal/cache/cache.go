// Package cache keeps the last fragment each builder produced in an
// embedded Badger database, keyed by language and the content hashes of
// every unit it observed. A hit lets a run skip re-building a language
// whose sources have not changed.
package cache

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

const keyPrefix = "fragment/"

// Config holds configuration for a fragment cache.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string

	// InMemory disables disk persistence. Useful for testing.
	InMemory bool

	// Logger receives Badger's internal log lines. Nil disables them.
	Logger *zap.Logger
}

// Cache is a fragment cache. It is safe for concurrent use.
type Cache struct {
	db     *badger.DB
	logger *zap.Logger
}

// badgerLogger adapts zap to Badger's Logger interface.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.s.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.s.Debugf(format, args...) }

// Open opens the cache described by cfg.
func Open(cfg Config) (*Cache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("cache: path is required for a persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("cache: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{s: logger.Named("badger").Sugar()})
	} else {
		logger = zap.NewNop()
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	return &Cache{db: db, logger: logger}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key derives the cache key for a language build. hashes maps each unit
// path to its content hash; schemaVersion ties the entry to the schema the
// fragment was gated against.
func Key(language, schemaVersion string, hashes map[string]string) string {
	paths := make([]string, 0, len(hashes))
	for p := range hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	fmt.Fprintf(h, "schema=%s\n", schemaVersion)
	for _, p := range paths {
		fmt.Fprintf(h, "%s=%s\n", p, hashes[p])
	}
	return fmt.Sprintf("%s%s/%x", keyPrefix, language, h.Sum(nil))
}

func languagePrefix(language string) []byte {
	return []byte(keyPrefix + language + "/")
}

// Get returns the fragment stored under key. The boolean is false on a
// miss.
func (c *Cache) Get(key string) (*graph.Fragment, bool, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}

	var f graph.Fragment
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return &f, true, nil
}

// Put stores f under key, replacing any earlier entry for the same
// language. Only one fragment per language is retained.
func (c *Cache) Put(key, language string, f *graph.Fragment) error {
	data, err := graph.Encode(f)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		stale, err := keysWithPrefix(txn, languagePrefix(language))
		if err != nil {
			return err
		}
		for _, k := range stale {
			if string(k) == key {
				continue
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}
	c.logger.Debug("fragment cached", zap.String("language", language), zap.Int("bytes", len(data)))
	return nil
}

// Invalidate drops every entry for language.
func (c *Cache) Invalidate(language string) error {
	if err := c.db.DropPrefix(languagePrefix(language)); err != nil {
		return fmt.Errorf("cache: invalidate %s: %w", language, err)
	}
	return nil
}

// Languages returns the languages that currently have an entry, sorted.
func (c *Cache) Languages() ([]string, error) {
	seen := make(map[string]bool)
	err := c.db.View(func(txn *badger.Txn) error {
		keys, err := keysWithPrefix(txn, []byte(keyPrefix))
		if err != nil {
			return err
		}
		for _, k := range keys {
			rest := string(k[len(keyPrefix):])
			for i := 0; i < len(rest); i++ {
				if rest[i] == '/' {
					seen[rest[:i]] = true
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: list: %w", err)
	}
	out := make([]string, 0, len(seen))
	for lang := range seen {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out, nil
}

func keysWithPrefix(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}
