package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryBlobRepo реализует BlobRepo в памяти.
// Используется для CI/локальной разработки без БД.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryBlobRepo struct {
	mu   sync.RWMutex
	data map[string][]byte // мир -> сериализованный набор
}

// NewMemoryBlobRepo создает новый репозиторий в памяти.
func NewMemoryBlobRepo() *MemoryBlobRepo {
	return &MemoryBlobRepo{
		data: make(map[string][]byte),
	}
}

func (r *MemoryBlobRepo) Put(ctx context.Context, world string, data []byte) error {
	if err := validateWorld(world); err != nil {
		return err
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[world] = append([]byte(nil), data...)
	return nil
}

func (r *MemoryBlobRepo) Get(ctx context.Context, world string) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.data[world]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (r *MemoryBlobRepo) Delete(ctx context.Context, world string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.data, world)
	return nil
}

// BatchPut сохраняет все записи под одной блокировкой
func (r *MemoryBlobRepo) BatchPut(ctx context.Context, items map[string][]byte) error {
	for world := range items {
		if err := validateWorld(world); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for world, data := range items {
		r.data[world] = append([]byte(nil), data...)
	}
	return nil
}

func (r *MemoryBlobRepo) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	worlds := make([]string, 0, len(r.data))
	for world := range r.data {
		worlds = append(worlds, world)
	}
	sort.Strings(worlds)
	return worlds, nil
}

// Close для хранилища в памяти ничего не делает
func (r *MemoryBlobRepo) Close() error {
	return nil
}

// Проверка соответствия интерфейсу на этапе компиляции
var (
	_ BlobRepo = (*MemoryBlobRepo)(nil)
	_ BlobRepo = (*WorldStorage)(nil)
	_ BlobRepo = (*MariaSetRepo)(nil)
)
