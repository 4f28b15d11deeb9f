package world

import (
	"fmt"

	"github.com/annel0/chunkloader/internal/vec"
)

// ChunkRef указывает чанк в конкретном мире
type ChunkRef struct {
	World string `json:"world"`
	X     int32  `json:"x"`
	Z     int32  `json:"z"`
}

func (c ChunkRef) String() string {
	return fmt.Sprintf("%s(%d,%d)", c.World, c.X, c.Z)
}

// ChunkHooks уведомления хоста о жизненном цикле чанков.
// Данные в набор координат через них не попадают.
type ChunkHooks interface {
	OnChunkChanged(c ChunkRef)
	OnChunkLoaded(c ChunkRef)
	OnChunkUnloaded(c ChunkRef)
	OnChunkPopulated(c ChunkRef)
	OnBlockChanged(pos vec.Vec3)
}

// NopHooks ничего не делает; встраивается, чтобы переопределить часть методов
type NopHooks struct{}

func (NopHooks) OnChunkChanged(ChunkRef)   {}
func (NopHooks) OnChunkLoaded(ChunkRef)    {}
func (NopHooks) OnChunkUnloaded(ChunkRef)  {}
func (NopHooks) OnChunkPopulated(ChunkRef) {}
func (NopHooks) OnBlockChanged(vec.Vec3)   {}

var _ ChunkHooks = NopHooks{}

// MultiHooks рассылает уведомления всем hooks по порядку
type MultiHooks []ChunkHooks

func (m MultiHooks) OnChunkChanged(c ChunkRef) {
	for _, h := range m {
		h.OnChunkChanged(c)
	}
}

func (m MultiHooks) OnChunkLoaded(c ChunkRef) {
	for _, h := range m {
		h.OnChunkLoaded(c)
	}
}

func (m MultiHooks) OnChunkUnloaded(c ChunkRef) {
	for _, h := range m {
		h.OnChunkUnloaded(c)
	}
}

func (m MultiHooks) OnChunkPopulated(c ChunkRef) {
	for _, h := range m {
		h.OnChunkPopulated(c)
	}
}

func (m MultiHooks) OnBlockChanged(pos vec.Vec3) {
	for _, h := range m {
		h.OnBlockChanged(pos)
	}
}

var _ ChunkHooks = MultiHooks(nil)
