package storage_adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/annel0/chunkloader/internal/chunk"
	"github.com/annel0/chunkloader/internal/logging"
	"github.com/annel0/chunkloader/internal/nbt"
	"github.com/annel0/chunkloader/internal/storage_interface"
)

// FileStorageAdapter хранит все миры в одном NBT файле.
// Корень: безымянный Compound, внутри по одному списку на мир.
type FileStorageAdapter struct {
	path  string        // Полный путь к файлу данных
	codec SetCodec      // Порядок байт и сжатие
	root  *nbt.Compound // Содержимое файла в памяти
	mu    sync.RWMutex  // Мьютекс для безопасного доступа
}

// NewFileStorageAdapter открывает файл данных basePath/fileName.
// Отсутствующий файл означает пустое хранилище.
func NewFileStorageAdapter(basePath, fileName string, codec SetCodec) (*FileStorageAdapter, error) {
	// Создаём директорию если её нет
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}

	fsa := &FileStorageAdapter{
		path:  filepath.Join(basePath, fileName),
		codec: codec,
		root:  nbt.NewCompound(""),
	}

	if err := fsa.readFile(); err != nil {
		return nil, err
	}
	return fsa, nil
}

// Path возвращает путь к файлу данных
func (fsa *FileStorageAdapter) Path() string {
	return fsa.path
}

func (fsa *FileStorageAdapter) readFile() error {
	f, err := os.Open(fsa.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка чтения файла %s: %w", fsa.path, err)
	}
	defer f.Close()

	tag, err := nbt.ReadFile(f, fsa.codec.Order)
	if err != nil {
		return fmt.Errorf("%w: файл %s: %w", chunk.ErrMalformedTag, fsa.path, err)
	}

	root, ok := tag.(*nbt.Compound)
	if !ok {
		return fmt.Errorf("%w: корень файла %s имеет тип %s, ожидался Compound", chunk.ErrMalformedTag, fsa.path, tag.Type())
	}
	fsa.root = root
	return nil
}

// commit атомарно записывает root в файл и только после успешной
// записи делает его текущим содержимым. Вызывается под fsa.mu.
func (fsa *FileStorageAdapter) commit(root *nbt.Compound) error {
	if err := fsa.writeFile(root); err != nil {
		return err
	}
	fsa.root = root
	return nil
}

// staged возвращает копию корня, которую можно менять без влияния на fsa.root
func (fsa *FileStorageAdapter) staged() *nbt.Compound {
	return nbt.NewCompound(fsa.root.Name(), slices.Clone(fsa.root.Items)...)
}

// writeFile перезаписывает файл через временный файл и rename
func (fsa *FileStorageAdapter) writeFile(root *nbt.Compound) error {
	var (
		data []byte
		err  error
	)
	if fsa.codec.Uncompressed {
		data, err = nbt.Marshal(root, fsa.codec.Order)
	} else {
		data, err = nbt.MarshalCompressed(root, fsa.codec.Order)
	}
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", fsa.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fsa.path), filepath.Base(fsa.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи файла %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка fsync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, fsa.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка замены файла %s: %w", fsa.path, err)
	}
	return nil
}

// SaveSet заменяет список мира и перезаписывает файл
func (fsa *FileStorageAdapter) SaveSet(ctx context.Context, set *chunk.Set) error {
	return fsa.SaveSets(ctx, []*chunk.Set{set})
}

// SaveSets заменяет списки нескольких миров одной записью файла
func (fsa *FileStorageAdapter) SaveSets(ctx context.Context, sets []*chunk.Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, set := range sets {
		if set.Name() == "" {
			return errors.New("пустое имя мира")
		}
	}

	fsa.mu.Lock()
	defer fsa.mu.Unlock()

	root := fsa.staged()
	for _, set := range sets {
		root.Set(set.Serialize())
	}
	return fsa.commit(root)
}

// LoadSet декодирует список мира из файла
func (fsa *FileStorageAdapter) LoadSet(ctx context.Context, world string) (*chunk.Set, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	fsa.mu.RLock()
	tag := fsa.root.Get(world)
	fsa.mu.RUnlock()

	if tag == nil {
		return nil, false, nil
	}

	set, err := chunk.DeserializeTag(tag)
	if err != nil {
		logging.GetStorageLogger().Error("Мир %s в %s повреждён: %v", world, fsa.path, err)
		return nil, false, fmt.Errorf("набор мира %s: %w", world, err)
	}
	return set, true, nil
}

// DeleteSet удаляет список мира; файл переписывается только при изменении
func (fsa *FileStorageAdapter) DeleteSet(ctx context.Context, world string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fsa.mu.Lock()
	defer fsa.mu.Unlock()

	root := fsa.staged()
	if !root.Remove(world) {
		return nil
	}
	return fsa.commit(root)
}

// ListSets возвращает имена миров в файле
func (fsa *FileStorageAdapter) ListSets(ctx context.Context) ([]string, error) {
	fsa.mu.RLock()
	defer fsa.mu.RUnlock()

	names := fsa.root.Names()
	sort.Strings(names)
	return names, nil
}

// GetStorageStats возвращает статистику хранилища
func (fsa *FileStorageAdapter) GetStorageStats() map[string]interface{} {
	fsa.mu.RLock()
	worlds := len(fsa.root.Items)
	fsa.mu.RUnlock()

	var size int64
	if info, err := os.Stat(fsa.path); err == nil {
		size = info.Size()
	}

	return map[string]interface{}{
		"worlds":     worlds,
		"file":       fsa.path,
		"file_bytes": size,
		"compressed": !fsa.codec.Uncompressed,
	}
}

// Close ничего не сбрасывает: каждое изменение уже записано
func (fsa *FileStorageAdapter) Close() error {
	return nil
}

var (
	_ storage_interface.SetProvider   = (*FileStorageAdapter)(nil)
	_ storage_interface.BatchSetSaver = (*FileStorageAdapter)(nil)
	_ storage_interface.BatchSetSaver = (*BlobSetAdapter)(nil)
)
