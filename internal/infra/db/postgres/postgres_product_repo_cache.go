package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
	red "github.com/smitsergei/tma-subscription-sub002/internal/infra/redis"
)

var _ repository.ProductRepository = (*productRepoCacheDecorator)(nil)

const productListKey = "products:active"

func productKey(id string) string { return fmt.Sprintf("product:%s", id) }

// productRepoCacheDecorator is a read-through cache over the product catalog.
// Redis errors degrade to a miss.
type productRepoCacheDecorator struct {
	inner repository.ProductRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewProductRepoCacheDecorator(inner repository.ProductRepository, cache red.RedisClient, ttl time.Duration) repository.ProductRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &productRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *productRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	key := productKey(id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var p model.Product
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("product", "hit")
			return &p, nil
		}
	} else if !errors.Is(err, red.Nil) {
		metrics.IncCacheRequest("product", "error")
	}

	metrics.IncCacheRequest("product", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}

func (d *productRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	if val, err := d.cache.Get(ctx, productListKey); err == nil {
		var products []*model.Product
		if json.Unmarshal([]byte(val), &products) == nil {
			metrics.IncCacheRequest("product_list", "hit")
			return products, nil
		}
	}

	metrics.IncCacheRequest("product_list", "miss")
	products, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(products); err == nil {
		_ = d.cache.Set(ctx, productListKey, b, d.ttl)
	}
	return products, nil
}

// Save writes through and then drops both the row and the list entry.
func (d *productRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, productKey(p.ID), productListKey)
	return nil
}
