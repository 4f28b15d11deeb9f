package world

import (
	"sync/atomic"

	"github.com/annel0/chunkloader/internal/logging"
	"github.com/annel0/chunkloader/internal/vec"
	"github.com/google/uuid"
)

// Loader держатель чанков от имени сервиса.
// Хост спрашивает у него ID, активность и позицию; уведомления только считаются.
type Loader struct {
	NopHooks

	id       string
	position vec.Vec3
	active   func() bool

	loaded   int64
	unloaded int64
	changed  int64
}

// NewLoader создаёт загрузчик с новым UUID.
// active опрашивается при каждом IsActive; nil означает "всегда активен".
func NewLoader(position vec.Vec3, active func() bool) *Loader {
	return &Loader{
		id:       uuid.New().String(),
		position: position,
		active:   active,
	}
}

// ID уникальный идентификатор загрузчика
func (l *Loader) ID() string {
	return l.id
}

// IsActive сообщает, удерживает ли загрузчик чанки сейчас
func (l *Loader) IsActive() bool {
	if l.active == nil {
		return true
	}
	return l.active()
}

// Position точка привязки загрузчика
func (l *Loader) Position() vec.Vec3 {
	return l.position
}

func (l *Loader) OnChunkLoaded(c ChunkRef) {
	atomic.AddInt64(&l.loaded, 1)
	logging.Trace("Loader %s: chunk loaded %s", l.id, c)
}

func (l *Loader) OnChunkUnloaded(c ChunkRef) {
	atomic.AddInt64(&l.unloaded, 1)
	logging.Trace("Loader %s: chunk unloaded %s", l.id, c)
}

func (l *Loader) OnChunkChanged(c ChunkRef) {
	atomic.AddInt64(&l.changed, 1)
}

// LoaderStats счётчики полученных уведомлений
type LoaderStats struct {
	ID       string `json:"id"`
	Active   bool   `json:"active"`
	Loaded   int64  `json:"loaded"`
	Unloaded int64  `json:"unloaded"`
	Changed  int64  `json:"changed"`
}

// Stats возвращает снимок счётчиков
func (l *Loader) Stats() LoaderStats {
	return LoaderStats{
		ID:       l.id,
		Active:   l.IsActive(),
		Loaded:   atomic.LoadInt64(&l.loaded),
		Unloaded: atomic.LoadInt64(&l.unloaded),
		Changed:  atomic.LoadInt64(&l.changed),
	}
}

var _ ChunkHooks = (*Loader)(nil)
