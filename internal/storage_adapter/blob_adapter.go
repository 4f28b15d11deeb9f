package storage_adapter

import (
	"context"
	"fmt"

	"github.com/annel0/chunkloader/internal/chunk"
	"github.com/annel0/chunkloader/internal/logging"
	"github.com/annel0/chunkloader/internal/storage"
	"github.com/annel0/chunkloader/internal/storage_interface"
)

// BlobSetAdapter адаптирует BlobRepo для использования интерфейса SetProvider
type BlobSetAdapter struct {
	repo  storage.BlobRepo
	codec SetCodec
}

// NewBlobSetAdapter создает адаптер поверх любого BlobRepo
func NewBlobSetAdapter(repo storage.BlobRepo, codec SetCodec) *BlobSetAdapter {
	return &BlobSetAdapter{repo: repo, codec: codec}
}

// SaveSet кодирует набор и сохраняет его под именем мира
func (a *BlobSetAdapter) SaveSet(ctx context.Context, set *chunk.Set) error {
	data, err := a.codec.Encode(set)
	if err != nil {
		return fmt.Errorf("ошибка сериализации набора %s: %w", set.Name(), err)
	}
	return a.repo.Put(ctx, set.Name(), data)
}

// SaveSets сохраняет несколько наборов одной транзакцией хранилища
func (a *BlobSetAdapter) SaveSets(ctx context.Context, sets []*chunk.Set) error {
	items := make(map[string][]byte, len(sets))
	for _, set := range sets {
		data, err := a.codec.Encode(set)
		if err != nil {
			return fmt.Errorf("ошибка сериализации набора %s: %w", set.Name(), err)
		}
		items[set.Name()] = data
	}
	return a.repo.BatchPut(ctx, items)
}

// LoadSet загружает и декодирует набор мира
func (a *BlobSetAdapter) LoadSet(ctx context.Context, world string) (*chunk.Set, bool, error) {
	data, found, err := a.repo.Get(ctx, world)
	if err != nil || !found {
		return nil, false, err
	}

	set, err := a.codec.Decode(data)
	if err != nil {
		logging.LogTagError("хранилища мира "+world, err, data)
		return nil, false, fmt.Errorf("набор мира %s: %w", world, err)
	}

	// Ключ хранилища главнее имени тега
	set.SetName(world)
	return set, true, nil
}

// DeleteSet удаляет набор мира
func (a *BlobSetAdapter) DeleteSet(ctx context.Context, world string) error {
	return a.repo.Delete(ctx, world)
}

// ListSets возвращает имена сохранённых миров
func (a *BlobSetAdapter) ListSets(ctx context.Context) ([]string, error) {
	return a.repo.List(ctx)
}

// Close закрывает хранилище
func (a *BlobSetAdapter) Close() error {
	return a.repo.Close()
}

var _ storage_interface.SetProvider = (*BlobSetAdapter)(nil)
