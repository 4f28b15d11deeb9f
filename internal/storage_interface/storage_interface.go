package storage_interface

import (
	"context"

	"github.com/annel0/chunkloader/internal/chunk"
)

// SetProvider определяет интерфейс для взаимодействия с хранилищем наборов чанков
type SetProvider interface {
	// SaveSet сохраняет набор под его именем (имя мира), перезаписывая предыдущий
	SaveSet(ctx context.Context, set *chunk.Set) error

	// LoadSet загружает набор мира. bool == false, если мир ещё не сохранялся.
	// Повреждённые данные возвращают ошибку, оборачивающую chunk.ErrMalformedTag.
	LoadSet(ctx context.Context, world string) (*chunk.Set, bool, error)

	// DeleteSet удаляет сохранённый набор мира
	DeleteSet(ctx context.Context, world string) error

	// ListSets возвращает имена всех сохранённых миров по возрастанию
	ListSets(ctx context.Context) ([]string, error)

	// Close закрывает хранилище
	Close() error
}

// BatchSetSaver реализуется провайдерами, умеющими сохранять несколько
// наборов за одну операцию (используется автосохранением)
type BatchSetSaver interface {
	SaveSets(ctx context.Context, sets []*chunk.Set) error
}
