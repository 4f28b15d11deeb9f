package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/annel0/chunkloader/internal/logging"
	"github.com/annel0/chunkloader/internal/vec"
	"github.com/annel0/chunkloader/internal/world"
	"github.com/google/uuid"
)

// publishTimeout ограничивает ожидание шины внутри обратного вызова реестра
const publishTimeout = 2 * time.Second

// BusHooks превращает уведомления реестра в события шины
type BusHooks struct {
	bus    EventBus
	source string
	log    *logging.Logger
}

// NewBusHooks создаёт hooks, публикующие события от имени узла source
func NewBusHooks(bus EventBus, source string, log *logging.Logger) *BusHooks {
	if log == nil {
		log = logging.GetComponentLogger("eventbus")
	}
	return &BusHooks{bus: bus, source: source, log: log}
}

func (h *BusHooks) OnChunkChanged(c world.ChunkRef)   { h.publish(world.EventTypeChunkChanged, c) }
func (h *BusHooks) OnChunkLoaded(c world.ChunkRef)    { h.publish(world.EventTypeChunkLoaded, c) }
func (h *BusHooks) OnChunkUnloaded(c world.ChunkRef)  { h.publish(world.EventTypeChunkUnloaded, c) }
func (h *BusHooks) OnChunkPopulated(c world.ChunkRef) { h.publish(world.EventTypeChunkPopulated, c) }
func (h *BusHooks) OnBlockChanged(pos vec.Vec3)       { h.publish(world.EventTypeBlockChanged, pos) }

func (h *BusHooks) publish(t world.EventType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("Ошибка сериализации события %s: %v", t, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	ev := &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    h.source,
		EventType: t.String(),
		Payload:   data,
	}
	if err := h.bus.Publish(ctx, ev); err != nil {
		h.log.Warn("Событие %s не опубликовано: %v", t, err)
	}
}

var _ world.ChunkHooks = (*BusHooks)(nil)
