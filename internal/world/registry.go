package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/chunkloader/internal/chunk"
	"github.com/annel0/chunkloader/internal/logging"
	"github.com/annel0/chunkloader/internal/storage_interface"
	"github.com/annel0/chunkloader/internal/vec"
)

// Registry владеет именованными наборами чанков, по одному на мир.
// Сам chunk.Set не синхронизирован, поэтому все обращения идут под mu.
type Registry struct {
	mu      sync.RWMutex
	sets    map[string]*chunk.Set
	dirty   map[string]uint64   // мир -> поколение последнего изменения
	dropped map[string]struct{} // миры, которые нужно удалить из хранилища
	gen     uint64

	saveMu  sync.Mutex // сохранения не пересекаются
	hooks   ChunkHooks
	metrics *RegistryMetrics
}

// NewRegistry создаёт пустой реестр. metrics может быть nil.
func NewRegistry(metrics *RegistryMetrics) *Registry {
	return &Registry{
		sets:    make(map[string]*chunk.Set),
		dirty:   make(map[string]uint64),
		dropped: make(map[string]struct{}),
		hooks:   NopHooks{},
		metrics: metrics,
	}
}

// SetHooks задаёт получателя уведомлений; nil возвращает NopHooks
func (r *Registry) SetHooks(h ChunkHooks) {
	if h == nil {
		h = NopHooks{}
	}
	r.mu.Lock()
	r.hooks = h
	r.mu.Unlock()
}

// markDirty вызывается под r.mu
func (r *Registry) markDirty(world string) {
	r.gen++
	r.dirty[world] = r.gen
}

// AddChunk добавляет чанк; false если он уже был в наборе
func (r *Registry) AddChunk(world string, x, z int32) bool {
	r.mu.Lock()
	set, ok := r.sets[world]
	if !ok {
		set = chunk.NewSet(world)
		r.sets[world] = set
		delete(r.dropped, world)
	}
	added := set.Add(x, z)
	if added {
		r.markDirty(world)
	}
	n := set.Len()
	hooks := r.hooks
	r.mu.Unlock()

	r.metrics.setChunks(world, n)
	logging.LogChunkChange(world, "add", x, z, added)
	if !added {
		r.metrics.op("add", "present")
		return false
	}

	r.metrics.op("add", "added")
	Dispatch(hooks, ChunkEvent{EventType: EventTypeChunkLoaded, Chunk: ChunkRef{World: world, X: x, Z: z}})
	return true
}

// RemoveChunk убирает чанк; false если его не было
func (r *Registry) RemoveChunk(world string, x, z int32) bool {
	r.mu.Lock()
	set, ok := r.sets[world]
	removed := ok && set.Remove(x, z)
	if removed {
		r.markDirty(world)
	}
	n := 0
	if ok {
		n = set.Len()
	}
	hooks := r.hooks
	r.mu.Unlock()

	logging.LogChunkChange(world, "remove", x, z, removed)
	if !removed {
		r.metrics.op("remove", "absent")
		return false
	}

	r.metrics.setChunks(world, n)
	r.metrics.op("remove", "removed")
	Dispatch(hooks, ChunkEvent{EventType: EventTypeChunkUnloaded, Chunk: ChunkRef{World: world, X: x, Z: z}})
	return true
}

// HasChunk проверяет наличие чанка в наборе мира
func (r *Registry) HasChunk(world string, x, z int32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[world]
	return ok && set.Exists(x, z)
}

// AddBlock добавляет чанк, содержащий блок pos.
// false если чанк уже был или его координаты не помещаются в int32.
func (r *Registry) AddBlock(world string, pos vec.Vec2) bool {
	x, z, ok := pos.ChunkCoords()
	if !ok {
		r.metrics.op("add", "out_of_range")
		return false
	}
	return r.AddChunk(world, x, z)
}

// Chunks возвращает координаты мира по возрастанию ключа; nil если мира нет
func (r *Registry) Chunks(world string) []chunk.Coord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[world]
	if !ok {
		return nil
	}
	return set.Coords()
}

// Worlds возвращает имена известных миров по возрастанию
func (r *Registry) Worlds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	worlds := make([]string, 0, len(r.sets))
	for world := range r.sets {
		worlds = append(worlds, world)
	}
	sort.Strings(worlds)
	return worlds
}

// Counts возвращает число чанков по мирам
func (r *Registry) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.sets))
	for world, set := range r.sets {
		counts[world] = set.Len()
	}
	return counts
}

// Snapshot возвращает независимую копию набора мира
func (r *Registry) Snapshot(world string) (*chunk.Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[world]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

// Replace заменяет набор мира копией set (имя мира — set.Name())
func (r *Registry) Replace(set *chunk.Set) error {
	if set == nil || set.Name() == "" {
		return errors.New("набор без имени мира")
	}

	c := set.Clone()
	r.mu.Lock()
	r.sets[c.Name()] = c
	delete(r.dropped, c.Name())
	r.markDirty(c.Name())
	hooks := r.hooks
	r.mu.Unlock()

	r.metrics.setChunks(c.Name(), c.Len())
	r.metrics.op("replace", "ok")
	for _, coord := range c.Coords() {
		Dispatch(hooks, ChunkEvent{EventType: EventTypeChunkChanged, Chunk: ChunkRef{World: c.Name(), X: coord.X, Z: coord.Z}})
	}
	return nil
}

// DropWorld забывает мир; при следующем Save он удаляется из хранилища
func (r *Registry) DropWorld(world string) bool {
	r.mu.Lock()
	_, ok := r.sets[world]
	if ok {
		delete(r.sets, world)
		delete(r.dirty, world)
		r.dropped[world] = struct{}{}
	}
	r.mu.Unlock()

	if ok {
		r.metrics.dropWorld(world)
		r.metrics.op("drop", "ok")
	}
	return ok
}

// Dirty возвращает миры с несохранёнными изменениями
func (r *Registry) Dirty() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	worlds := make([]string, 0, len(r.dirty)+len(r.dropped))
	for world := range r.dirty {
		worlds = append(worlds, world)
	}
	for world := range r.dropped {
		worlds = append(worlds, world)
	}
	sort.Strings(worlds)
	return worlds
}

// Load заполняет реестр всеми сохранёнными наборами.
// Повреждённый набор прерывает загрузку: пустым он не становится.
func (r *Registry) Load(ctx context.Context, provider storage_interface.SetProvider) (int, error) {
	worlds, err := provider.ListSets(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения списка миров: %w", err)
	}

	loaded := make([]*chunk.Set, 0, len(worlds))
	for _, world := range worlds {
		set, found, err := provider.LoadSet(ctx, world)
		if err != nil {
			return 0, fmt.Errorf("ошибка загрузки мира %s: %w", world, err)
		}
		if !found {
			continue // удалён между ListSets и LoadSet
		}
		loaded = append(loaded, set)
	}

	r.mu.Lock()
	for _, set := range loaded {
		r.sets[set.Name()] = set
		delete(r.dirty, set.Name())
	}
	r.mu.Unlock()

	total := 0
	for _, set := range loaded {
		r.metrics.setChunks(set.Name(), set.Len())
		total += set.Len()
	}
	logging.GetLoaderLogger().Info("📦 Загружено миров: %d, чанков: %d", len(loaded), total)
	return len(loaded), nil
}

// Save записывает только изменённые миры и удаляет забытые.
// Флаг изменений снимается, если мир не менялся во время записи.
func (r *Registry) Save(ctx context.Context, provider storage_interface.SetProvider) (err error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	defer func() { r.metrics.save(err) }()

	r.mu.RLock()
	sets := make([]*chunk.Set, 0, len(r.dirty))
	gens := make(map[string]uint64, len(r.dirty))
	for world, gen := range r.dirty {
		if set, ok := r.sets[world]; ok {
			sets = append(sets, set.Clone())
			gens[world] = gen
		}
	}
	dropped := make([]string, 0, len(r.dropped))
	for world := range r.dropped {
		dropped = append(dropped, world)
	}
	r.mu.RUnlock()

	if len(sets) == 0 && len(dropped) == 0 {
		return nil
	}

	if batch, ok := provider.(storage_interface.BatchSetSaver); ok && len(sets) > 0 {
		if err := batch.SaveSets(ctx, sets); err != nil {
			return fmt.Errorf("ошибка сохранения %d миров: %w", len(sets), err)
		}
	} else {
		for _, set := range sets {
			if err := provider.SaveSet(ctx, set); err != nil {
				return fmt.Errorf("ошибка сохранения мира %s: %w", set.Name(), err)
			}
		}
	}

	deleted := make([]string, 0, len(dropped))
	for _, world := range dropped {
		if err := provider.DeleteSet(ctx, world); err != nil {
			r.clearSaved(gens, deleted)
			return fmt.Errorf("ошибка удаления мира %s: %w", world, err)
		}
		deleted = append(deleted, world)
	}

	r.clearSaved(gens, deleted)
	logging.GetLoaderLogger().Debug("💾 Сохранено миров: %d, удалено: %d", len(sets), len(deleted))
	return nil
}

func (r *Registry) clearSaved(gens map[string]uint64, deleted []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for world, gen := range gens {
		if r.dirty[world] == gen {
			delete(r.dirty, world)
		}
	}
	for _, world := range deleted {
		if _, recreated := r.sets[world]; !recreated {
			delete(r.dropped, world)
		}
	}
}

// SaveAll помечает все миры изменёнными и сохраняет их
func (r *Registry) SaveAll(ctx context.Context, provider storage_interface.SetProvider) error {
	r.mu.Lock()
	for world := range r.sets {
		r.markDirty(world)
	}
	r.mu.Unlock()

	return r.Save(ctx, provider)
}

// Autosave периодически вызывает Save, пока ctx не отменён.
// interval <= 0 — сразу возвращается.
func (r *Registry) Autosave(ctx context.Context, provider storage_interface.SetProvider, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Save(ctx, provider); err != nil {
				logging.GetLoaderLogger().Error("❌ Ошибка автосохранения: %v", err)
			}
		}
	}
}
