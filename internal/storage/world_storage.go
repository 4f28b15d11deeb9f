package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// keyPrefix префикс ключей наборов чанков в BadgerDB
const keyPrefix = "chunkset:"

// WorldStorage хранит сериализованные наборы чанков в BadgerDB
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewWorldStorage открывает (или создаёт) базу в каталоге dataPath/world
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// NewInMemoryWorldStorage открывает BadgerDB без диска (для тестов)
func NewInMemoryWorldStorage() (*WorldStorage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &WorldStorage{db: db, isReady: true}, nil
}

// Path возвращает каталог базы
func (ws *WorldStorage) Path() string {
	return ws.dbPath
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	return ws.db.Close()
}

func worldKey(world string) []byte {
	return []byte(keyPrefix + world)
}

// Put сохраняет набор чанков мира
func (ws *WorldStorage) Put(ctx context.Context, world string, data []byte) error {
	if err := validateWorld(world); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	err := ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set(worldKey(world), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	return nil
}

// BatchPut сохраняет несколько миров в одной транзакции
func (ws *WorldStorage) BatchPut(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil // Нечего сохранять
	}
	for world := range items {
		if err := validateWorld(world); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	wb := ws.db.NewWriteBatch()
	defer wb.Cancel()

	for world, data := range items {
		if err := wb.Set(worldKey(world), data); err != nil {
			return fmt.Errorf("ошибка записи %s в batch: %w", world, err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка сохранения batch в BadgerDB: %w", err)
	}
	return nil
}

// Get загружает набор чанков мира
func (ws *WorldStorage) Get(ctx context.Context, world string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, false, ErrNotReady
	}

	var data []byte

	// Читаем данные из BadgerDB
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(worldKey(world))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	// Если мир не найден, это не ошибка
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return data, true, nil
}

// Delete удаляет набор чанков мира
func (ws *WorldStorage) Delete(ctx context.Context, world string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	err := ws.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(worldKey(world))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// List возвращает имена всех сохранённых миров
func (ws *WorldStorage) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	worlds := make([]string, 0)
	err := ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			worlds = append(worlds, strings.TrimPrefix(key, keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка миров из BadgerDB: %w", err)
	}

	sort.Strings(worlds)
	return worlds, nil
}
