package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/imitune/internal/db"
)

// memStore is an in-memory counter store for tests.
type memStore struct {
	mu       sync.Mutex
	counters map[string]int64
	ttls     map[string]time.Duration

	getErr    error
	incrErr   error
	expireErr error
}

func newMemStore() *memStore {
	return &memStore{counters: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	n, ok := m.counters[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(strconv.FormatInt(n, 10)), nil
}

func (m *memStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.counters[key] += val
	return m.counters[key], nil
}

func (m *memStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expireErr != nil {
		return m.expireErr
	}
	if _, ok := m.ttls[key]; ok && nx {
		return nil
	}
	m.ttls[key] = ttl
	return nil
}
