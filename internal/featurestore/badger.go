// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package featurestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/seawatch/internal/cache"
	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
)

const featureKeyPrefix = "feature:"

// Options configures OpenBadger.
type Options struct {
	Path       string
	InMemory   bool
	SyncWrites bool

	// CacheSize bounds the snapshot cache. 0 uses the default of 100000.
	CacheSize int
}

type cacheKey struct {
	name string
	cell int64
}

// keyState serializes writers of one key. version moves on every committed
// write so a reader that raced with a write does not cache the older value.
type keyState struct {
	mu      sync.Mutex
	version atomic.Uint64
}

// BadgerStore is a Store on BadgerDB with an in-process snapshot cache.
// Readers get frozen snapshots and never wait for writers.
type BadgerStore struct {
	db    *badger.DB
	owned bool

	snapshots *cache.LRU[cacheKey, *Data]
	keys      sync.Map // cacheKey -> *keyState
}

// OpenBadger opens (or creates) a BadgerDB at opts.Path.
func OpenBadger(opts Options) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open feature store: %w", err)
	}
	s := NewBadgerStore(db, opts.CacheSize)
	s.owned = true

	logging.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Msg("Feature store opened")
	return s, nil
}

// NewBadgerStore wraps an already open database. Close will not close db.
func NewBadgerStore(db *badger.DB, cacheSize int) *BadgerStore {
	if cacheSize <= 0 {
		cacheSize = 100000
	}
	return &BadgerStore{
		db:        db,
		snapshots: cache.NewLRU[cacheKey, *Data](cacheSize, 0),
	}
}

func validName(name string) error {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// encodeKey lays out prefix|name|0x00|cell so that a cell scan for one
// feature is a prefix iteration. The sign bit is flipped so negative ids
// sort before positive ones.
func encodeKey(name string, cellID int64) []byte {
	b := make([]byte, 0, len(featureKeyPrefix)+len(name)+9)
	b = append(b, featureKeyPrefix...)
	b = append(b, name...)
	b = append(b, 0)
	return binary.BigEndian.AppendUint64(b, uint64(cellID)^(1<<63))
}

func namePrefix(name string) []byte {
	b := make([]byte, 0, len(featureKeyPrefix)+len(name)+1)
	b = append(b, featureKeyPrefix...)
	b = append(b, name...)
	return append(b, 0)
}

func (s *BadgerStore) state(k cacheKey) *keyState {
	if st, ok := s.keys.Load(k); ok {
		return st.(*keyState)
	}
	st, _ := s.keys.LoadOrStore(k, &keyState{})
	return st.(*keyState)
}

// Get implements Reader.
func (s *BadgerStore) Get(ctx context.Context, name string, cellID int64) (*Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	k := cacheKey{name: name, cell: cellID}

	if d, ok := s.snapshots.Get(k); ok {
		return s.hit(d), nil
	}

	st := s.state(k)
	for {
		before := st.version.Load()
		d, err := s.read(name, cellID)
		if err != nil {
			metrics.FeatureStoreReads.WithLabelValues("error").Inc()
			return nil, err
		}
		if st.version.Load() != before {
			// a write landed while reading; its value is already cached
			if cur, ok := s.snapshots.Get(k); ok {
				return s.hit(cur), nil
			}
			continue
		}
		actual, _ := s.snapshots.AddIfAbsent(k, d)
		return s.hit(actual), nil
	}
}

func (s *BadgerStore) hit(d *Data) *Data {
	if d == nil {
		metrics.FeatureStoreReads.WithLabelValues("miss").Inc()
	} else {
		metrics.FeatureStoreReads.WithLabelValues("hit").Inc()
	}
	return d
}

func (s *BadgerStore) read(name string, cellID int64) (*Data, error) {
	var d *Data
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(name, cellID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get feature %s/%d: %w", name, cellID, err)
		}
		return item.Value(func(val []byte) error {
			d = &Data{}
			if err := json.Unmarshal(val, d); err != nil {
				return fmt.Errorf("decode feature %s/%d: %w", name, cellID, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if d != nil {
		d.freeze()
	}
	return d, nil
}

// Put stores a private copy of data under name/cellID, replacing any
// previous value. Writers of the same key are serialized.
func (s *BadgerStore) Put(ctx context.Context, name string, cellID int64, data *Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("featurestore: nil data for %s/%d", name, cellID)
	}

	snapshot := data.Clone().freeze()
	val, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode feature %s/%d: %w", name, cellID, err)
	}

	k := cacheKey{name: name, cell: cellID}
	st := s.state(k)
	st.mu.Lock()
	defer st.mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(name, cellID), val)
	})
	if err != nil {
		metrics.FeatureStoreWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("put feature %s/%d: %w", name, cellID, err)
	}

	st.version.Add(1)
	s.snapshots.Add(k, snapshot)
	metrics.FeatureStoreWrites.WithLabelValues("ok").Inc()
	return nil
}

// CellIDs lists the cells that have data for name, in ascending order.
func (s *BadgerStore) CellIDs(ctx context.Context, name string) ([]int64, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	prefix := namePrefix(name)
	var ids []int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			if len(key) != len(prefix)+8 {
				continue
			}
			ids = append(ids, int64(binary.BigEndian.Uint64(key[len(prefix):])^(1<<63)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list cells for %s: %w", name, err)
	}
	return ids, nil
}

// FeatureNames lists every feature name with at least one cell, sorted.
func (s *BadgerStore) FeatureNames(ctx context.Context) ([]string, error) {
	prefix := []byte(featureKeyPrefix)
	seen := make(map[string]struct{})

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rest := it.Item().Key()[len(prefix):]
			if i := bytes.IndexByte(rest, 0); i > 0 {
				seen[string(rest[:i])] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list feature names: %w", err)
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the database if it was opened by OpenBadger.
func (s *BadgerStore) Close() error {
	s.snapshots.Clear()
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
