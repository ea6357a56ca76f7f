// Package ratelimit keeps keyed counters and one-shot flags with an explicit
// TTL in BadgerDB, so limits survive restarts.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"booklend/internal/logging"
)

const (
	counterPrefix = "rl:"
	oncePrefix    = "once:"
	maxTxnRetries = 5
)

type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens the store at path. An empty path keeps everything in memory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open rate limit store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type window struct {
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Allow counts one hit against key within a fixed window starting at the
// first hit. It implements httpx.Limiter.
func (s *Store) Allow(ctx context.Context, key string, limit int, period time.Duration) (bool, int, error) {
	var allowed bool
	var remaining int

	err := s.update(ctx, func(txn *badger.Txn) error {
		now := s.now()
		k := []byte(counterPrefix + key)

		w := window{ExpiresAt: now.Add(period)}
		item, err := txn.Get(k)
		switch {
		case err == nil:
			var cur window
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &cur) }); err != nil {
				return err
			}
			if now.Before(cur.ExpiresAt) {
				w = cur
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if w.Count >= limit {
			allowed, remaining = false, 0
			return nil
		}
		w.Count++
		allowed, remaining = true, limit-w.Count

		data, err := json.Marshal(w)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(k, data).WithTTL(ttlUntil(now, w.ExpiresAt)))
	})
	if err != nil {
		return false, 0, err
	}
	return allowed, remaining, nil
}

// Once reports true the first time it is called for key within ttl and false
// afterwards, until the flag expires.
func (s *Store) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var first bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		now := s.now()
		k := []byte(oncePrefix + key)

		item, err := txn.Get(k)
		switch {
		case err == nil:
			var until time.Time
			if err := item.Value(func(val []byte) error { return until.UnmarshalText(val) }); err != nil {
				return err
			}
			if now.Before(until) {
				first = false
				return nil
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		until := now.Add(ttl)
		data, err := until.MarshalText()
		if err != nil {
			return err
		}
		first = true
		return txn.SetEntry(badger.NewEntry(k, data).WithTTL(ttlUntil(now, until)))
	})
	return first, err
}

// Forget clears the flag for key, so the next Once call reports true again.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(oncePrefix + key))
	})
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		logging.Debug().Int("attempt", i+1).Msg("rate limit transaction conflict, retrying")
	}
	return err
}

// ttlUntil converts an absolute expiry to a badger TTL. Badger stores expiry
// with second precision, so the TTL is rounded up.
func ttlUntil(now, until time.Time) time.Duration {
	d := until.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d.Truncate(time.Second) + time.Second
}
