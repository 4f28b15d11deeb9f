package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotReady хранилище закрыто или ещё не открыто
var ErrNotReady = errors.New("хранилище не готово")

// BlobRepo определяет интерфейс для хранения сериализованных наборов чанков.
// Ключ — имя мира, значение — закодированный тег (см. storage_adapter).
type BlobRepo interface {
	// Put сохраняет значение для мира, перезаписывая предыдущее.
	Put(ctx context.Context, world string, data []byte) error

	// Get загружает значение.
	// Возвращает:
	//   []byte - данные
	//   bool - true если запись найдена
	//   error - ошибка при загрузке
	Get(ctx context.Context, world string) ([]byte, bool, error)

	// Delete удаляет запись. Отсутствие записи ошибкой не считается.
	Delete(ctx context.Context, world string) error

	// BatchPut сохраняет несколько миров одной транзакцией (для автосохранения).
	BatchPut(ctx context.Context, items map[string][]byte) error

	// List возвращает имена всех сохранённых миров по возрастанию.
	List(ctx context.Context) ([]string, error)

	// Close закрывает хранилище.
	Close() error
}

// validateWorld проверяет имя мира перед записью
func validateWorld(world string) error {
	if world == "" {
		return errors.New("пустое имя мира")
	}
	if strings.ContainsRune(world, 0) {
		return errors.New("имя мира содержит нулевой байт")
	}
	return nil
}
