package cache

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/chunkloader/internal/chunk"
	"github.com/annel0/chunkloader/internal/logging"
	"github.com/annel0/chunkloader/internal/storage_adapter"
	"github.com/annel0/chunkloader/internal/storage_interface"
)

// CachedProvider реализует SetProvider поверх другого провайдера:
// чтение через кеш (read-through), запись сразу в оба (write-through).
// В кеше лежат байты NBT, ключ — имя мира.
type CachedProvider struct {
	inner       storage_interface.SetProvider
	cache       CacheRepo
	invalidator CacheInvalidator // может быть nil
	codec       storage_adapter.SetCodec
	ttl         time.Duration
}

// NewCachedProvider оборачивает провайдер кешем.
// invalidator может быть nil (один узел).
func NewCachedProvider(inner storage_interface.SetProvider, cache CacheRepo, invalidator CacheInvalidator, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner:       inner,
		cache:       cache,
		invalidator: invalidator,
		codec:       storage_adapter.DefaultCodec,
		ttl:         ttl,
	}
}

// Start подписывается на инвалидации других узлов
func (p *CachedProvider) Start(ctx context.Context) error {
	if p.invalidator == nil {
		return nil
	}
	return p.invalidator.SubscribeInvalidations(ctx, p.handleInvalidation)
}

func (p *CachedProvider) handleInvalidation(world string) error {
	return p.cache.Delete(context.Background(), world)
}

// SaveSet пишет в хранилище, затем обновляет кеш и оповещает узлы
func (p *CachedProvider) SaveSet(ctx context.Context, set *chunk.Set) error {
	if err := p.inner.SaveSet(ctx, set); err != nil {
		return err
	}
	p.store(ctx, set)
	p.publish(ctx, set.Name())
	return nil
}

// SaveSets сохраняет пачкой, если внутренний провайдер это умеет
func (p *CachedProvider) SaveSets(ctx context.Context, sets []*chunk.Set) error {
	if batch, ok := p.inner.(storage_interface.BatchSetSaver); ok {
		if err := batch.SaveSets(ctx, sets); err != nil {
			return err
		}
	} else {
		for _, set := range sets {
			if err := p.inner.SaveSet(ctx, set); err != nil {
				return err
			}
		}
	}

	for _, set := range sets {
		p.store(ctx, set)
		p.publish(ctx, set.Name())
	}
	return nil
}

// LoadSet читает из кеша, при промахе из хранилища
func (p *CachedProvider) LoadSet(ctx context.Context, world string) (*chunk.Set, bool, error) {
	data, err := p.cache.Get(ctx, world)
	switch {
	case err == nil:
		set, decodeErr := p.codec.Decode(data)
		if decodeErr == nil {
			set.SetName(world)
			return set, true, nil
		}
		// Битая запись в кеше не должна маскировать хранилище
		logging.GetCacheLogger().Warn("Cache entry for %s is malformed, dropping: %v", world, decodeErr)
		_ = p.cache.Delete(ctx, world)
	case !errors.Is(err, ErrCacheMiss):
		logging.GetCacheLogger().Warn("Cache get failed for %s, falling back to storage: %v", world, err)
	}

	set, found, err := p.inner.LoadSet(ctx, world)
	if err != nil || !found {
		return set, found, err
	}

	p.store(ctx, set)
	return set, true, nil
}

// DeleteSet удаляет из хранилища и кеша, затем оповещает узлы
func (p *CachedProvider) DeleteSet(ctx context.Context, world string) error {
	if err := p.inner.DeleteSet(ctx, world); err != nil {
		return err
	}
	if err := p.cache.Delete(ctx, world); err != nil {
		logging.GetCacheLogger().Warn("Cache delete failed for %s: %v", world, err)
	}
	p.publish(ctx, world)
	return nil
}

// ListSets всегда идёт в хранилище
func (p *CachedProvider) ListSets(ctx context.Context) ([]string, error) {
	return p.inner.ListSets(ctx)
}

// Close закрывает invalidator, кеш и хранилище
func (p *CachedProvider) Close() error {
	var errs []error
	if p.invalidator != nil {
		errs = append(errs, p.invalidator.Close())
	}
	errs = append(errs, p.cache.Close(), p.inner.Close())
	return errors.Join(errs...)
}

// store кладёт набор в кеш; ошибки кеша только логируются
func (p *CachedProvider) store(ctx context.Context, set *chunk.Set) {
	data, err := p.codec.Encode(set)
	if err != nil {
		logging.GetCacheLogger().Warn("Failed to encode %s for cache: %v", set.Name(), err)
		return
	}
	if err := p.cache.Set(ctx, set.Name(), data, p.ttl); err != nil {
		logging.GetCacheLogger().Warn("Cache set failed for %s: %v", set.Name(), err)
	}
}

func (p *CachedProvider) publish(ctx context.Context, world string) {
	if p.invalidator == nil {
		return
	}
	if err := p.invalidator.PublishInvalidation(ctx, world); err != nil {
		logging.GetCacheLogger().Warn("Failed to publish invalidation for %s: %v", world, err)
	}
}

var (
	_ storage_interface.SetProvider   = (*CachedProvider)(nil)
	_ storage_interface.BatchSetSaver = (*CachedProvider)(nil)
)
