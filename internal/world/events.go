package world

import (
	"github.com/annel0/chunkloader/internal/vec"
)

// EventType определяет тип события
type EventType uint8

const (
	EventTypeChunkChanged   EventType = iota // Содержимое чанка изменилось
	EventTypeChunkLoaded                     // Чанк загружен хостом
	EventTypeChunkUnloaded                   // Чанк выгружен хостом
	EventTypeChunkPopulated                  // Чанк заполнен генератором
	EventTypeBlockChanged                    // Изменение блока
)

func (t EventType) String() string {
	switch t {
	case EventTypeChunkChanged:
		return "chunk_changed"
	case EventTypeChunkLoaded:
		return "chunk_loaded"
	case EventTypeChunkUnloaded:
		return "chunk_unloaded"
	case EventTypeChunkPopulated:
		return "chunk_populated"
	case EventTypeBlockChanged:
		return "block_changed"
	}
	return "unknown"
}

// Event представляет собой интерфейс для всех событий
type Event interface {
	GetType() EventType
}

// ChunkEvent событие, связанное с чанком
type ChunkEvent struct {
	EventType EventType
	Chunk     ChunkRef
}

// GetType возвращает тип события
func (e ChunkEvent) GetType() EventType {
	return e.EventType
}

// BlockEvent событие изменения блока
type BlockEvent struct {
	Position vec.Vec3 // Мировые координаты блока
}

// GetType возвращает тип события
func (e BlockEvent) GetType() EventType {
	return EventTypeBlockChanged
}

// Dispatch передаёт событие соответствующему методу hooks.
// Возвращает false для неизвестного события.
func Dispatch(h ChunkHooks, ev Event) bool {
	if h == nil {
		return false
	}

	switch e := ev.(type) {
	case ChunkEvent:
		switch e.EventType {
		case EventTypeChunkChanged:
			h.OnChunkChanged(e.Chunk)
		case EventTypeChunkLoaded:
			h.OnChunkLoaded(e.Chunk)
		case EventTypeChunkUnloaded:
			h.OnChunkUnloaded(e.Chunk)
		case EventTypeChunkPopulated:
			h.OnChunkPopulated(e.Chunk)
		default:
			return false
		}
	case BlockEvent:
		h.OnBlockChanged(e.Position)
	default:
		return false
	}
	return true
}
