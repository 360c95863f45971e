//go:build !integration

package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	red "github.com/smitsergei/tma-subscription-sub002/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerProductRepo mocks the database repository that the product decorator wraps.
type mockInnerProductRepo struct {
	SaveFunc       func(ctx context.Context, tx repository.Tx, p *model.Product) error
	FindByIDFunc   func(ctx context.Context, tx repository.Tx, id string) (*model.Product, error)
	ListActiveFunc func(ctx context.Context, tx repository.Tx) ([]*model.Product, error)

	findCalls int
}

func (m *mockInnerProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	m.findCalls++
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerProductRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	return m.ListActiveFunc(ctx, tx)
}

// memRedis is a map-backed RedisClient; expirations are ignored.
type memRedis struct {
	mu      sync.Mutex
	data    map[string]string
	deleted []string
	getErr  error
}

var _ red.RedisClient = (*memRedis)(nil)

func newMemRedis() *memRedis { return &memRedis{data: map[string]string{}} }

func (m *memRedis) Ping(context.Context) error { return nil }

func (m *memRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memRedis) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	m.mu.Lock()
	_, ok := m.data[key]
	m.mu.Unlock()
	if ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, exp)
}

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", red.Nil
	}
	return v, nil
}

func (m *memRedis) Incr(context.Context, string) (int64, error)        { return 0, nil }
func (m *memRedis) Expire(context.Context, string, time.Duration) error { return nil }

func (m *memRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func (m *memRedis) Close() error { return nil }
