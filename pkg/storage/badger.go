package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/types"
)

// BadgerProvider implements Database using an embedded BadgerDB. It is meant
// for single-host installs that don't run a separate time-series server.
type BadgerProvider struct {
	path     string
	inMemory bool

	db *badger.DB
}

// configuredBadger sets up the Badger provider.
// It registers flags for configuration.
func configuredBadger() *BadgerProvider {
	path := lflag.String("badger-path", "./data/badger", "Directory for the embedded Badger store")

	b := &BadgerProvider{}

	lflag.Do(func() {
		b.path = *path
	})

	return b
}

// NewInMemoryBadger returns an initialized Badger provider that keeps
// everything in memory.
func NewInMemoryBadger(ctx context.Context) (*BadgerProvider, error) {
	b := &BadgerProvider{inMemory: true}
	if err := b.Init(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks if the provider is properly configured.
func (b *BadgerProvider) Validate() error {
	if b.path == "" && !b.inMemory {
		return errors.New("badger-path is required")
	}
	return nil
}

// Init opens the database.
// This must be called before using the provider methods.
func (b *BadgerProvider) Init(ctx context.Context) error {
	var opts badger.Options
	if b.inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(b.path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open badger at %q: %w", b.path, err)
	}
	log.Ctx(ctx).DebugContext(ctx, "opened badger", slog.String("path", b.path), slog.Bool("inMemory", b.inMemory))
	b.db = db
	return nil
}

// Close closes the database.
func (b *BadgerProvider) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// measurementPrefix is the measurement name followed by a zero byte so one
// measurement's name can't be a prefix of another's keys.
func measurementPrefix(measurement string) []byte {
	prefix := make([]byte, 0, len(measurement)+1)
	prefix = append(prefix, measurement...)
	return append(prefix, 0)
}

// badgerKey orders a measurement's points by time. The trailing tag hash
// keeps series apart at the same instant.
func badgerKey(p types.Point) []byte {
	key := measurementPrefix(p.Measurement)
	key = binary.BigEndian.AppendUint64(key, uint64(p.Time.Unix()))
	return binary.BigEndian.AppendUint64(key, xxhash.Sum64String(p.TagString()))
}

// LatestTime implements Database.
func (b *BadgerProvider) LatestTime(ctx context.Context, measurement string) (time.Time, error) {
	prefix := measurementPrefix(measurement)
	var latest time.Time
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xFF}, 16)...)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		key := it.Item().Key()
		if len(key) < len(prefix)+8 {
			return fmt.Errorf("malformed key %x", key)
		}
		secs := binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8])
		latest = time.Unix(int64(secs), 0).UTC()
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest %s: %w", measurement, err)
	}
	return latest, nil
}

// WriteBatch implements Database. Points are written oldest first.
func (b *BadgerProvider) WriteBatch(ctx context.Context, points []types.Point) error {
	sorted := make([]types.Point, len(points))
	copy(sorted, points)
	types.SortPoints(sorted)

	txn := b.db.NewTransaction(true)
	defer func() { txn.Discard() }()
	for _, p := range sorted {
		val, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode point %s: %w", p.Key(), err)
		}
		key := badgerKey(p)
		err = txn.Set(key, val)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return fmt.Errorf("failed to commit points before %s: %w", p.Key(), err)
			}
			txn = b.db.NewTransaction(true)
			err = txn.Set(key, val)
		}
		if err != nil {
			return fmt.Errorf("failed to write point %s: %w", p.Key(), err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit %d points: %w", len(points), err)
	}
	return nil
}

// Points returns every stored point of the measurement in time order.
func (b *BadgerProvider) Points(ctx context.Context, measurement string) ([]types.Point, error) {
	prefix := measurementPrefix(measurement)
	var points []types.Point
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var p types.Point
				if err := json.Unmarshal(val, &p); err != nil {
					return err
				}
				points = append(points, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s points: %w", measurement, err)
	}
	return points, nil
}
