package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/annel0/chunkloader/internal/chunk"
	"github.com/annel0/chunkloader/internal/nbt"
	"github.com/annel0/chunkloader/internal/storage"
	"github.com/annel0/chunkloader/internal/storage_adapter"
	"github.com/annel0/chunkloader/internal/storage_interface"
	"github.com/annel0/chunkloader/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryProvider() *storage_adapter.BlobSetAdapter {
	return storage_adapter.NewBlobSetAdapter(storage.NewMemoryBlobRepo(), storage_adapter.DefaultCodec)
}

// recordingHooks запоминает полученные уведомления
type recordingHooks struct {
	NopHooks
	mu       sync.Mutex
	loaded   []ChunkRef
	unloaded []ChunkRef
	changed  []ChunkRef
}

func (h *recordingHooks) OnChunkLoaded(c ChunkRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loaded = append(h.loaded, c)
}

func (h *recordingHooks) OnChunkUnloaded(c ChunkRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unloaded = append(h.unloaded, c)
}

func (h *recordingHooks) OnChunkChanged(c ChunkRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changed = append(h.changed, c)
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry(nil)
	hooks := &recordingHooks{}
	r.SetHooks(hooks)

	assert.True(t, r.AddChunk("world", 1, 2))
	assert.False(t, r.AddChunk("world", 1, 2), "повторное добавление")
	assert.True(t, r.HasChunk("world", 1, 2))
	assert.False(t, r.HasChunk("nether", 1, 2), "миры независимы")

	assert.False(t, r.RemoveChunk("nether", 1, 2))
	assert.False(t, r.RemoveChunk("world", 2, 1))
	assert.True(t, r.RemoveChunk("world", 1, 2))
	assert.False(t, r.HasChunk("world", 1, 2))

	assert.Equal(t, []ChunkRef{{World: "world", X: 1, Z: 2}}, hooks.loaded)
	assert.Equal(t, []ChunkRef{{World: "world", X: 1, Z: 2}}, hooks.unloaded)
}

func TestRegistryAddBlock(t *testing.T) {
	r := NewRegistry(nil)

	assert.True(t, r.AddBlock("world", vec.Vec2{X: 17, Z: -1}))
	assert.True(t, r.HasChunk("world", 1, -1))
	assert.False(t, r.AddBlock("world", vec.Vec2{X: 31, Z: -16}), "тот же чанк")

	assert.False(t, r.AddBlock("world", vec.Vec2{X: 1 << 40, Z: 0}), "за пределами int32")
}

func TestRegistryQueries(t *testing.T) {
	r := NewRegistry(nil)
	r.AddChunk("world", 1, 2)
	r.AddChunk("world", -3, 4)
	r.AddChunk("nether", 0, 0)

	assert.Equal(t, []string{"nether", "world"}, r.Worlds())
	assert.Equal(t, []chunk.Coord{{X: -3, Z: 4}, {X: 1, Z: 2}}, r.Chunks("world"))
	assert.Nil(t, r.Chunks("end"))
	assert.Equal(t, map[string]int{"world": 2, "nether": 1}, r.Counts())

	snap, ok := r.Snapshot("world")
	require.True(t, ok)
	snap.Add(9, 9)
	assert.False(t, r.HasChunk("world", 9, 9), "снимок независим")

	_, ok = r.Snapshot("end")
	assert.False(t, ok)
}

func TestRegistryReplaceAndDrop(t *testing.T) {
	r := NewRegistry(nil)
	hooks := &recordingHooks{}
	r.SetHooks(hooks)

	r.AddChunk("world", 5, 5)
	set := chunk.NewSet("world")
	set.Add(1, 1)
	require.NoError(t, r.Replace(set))
	set.Add(2, 2)

	assert.False(t, r.HasChunk("world", 5, 5))
	assert.True(t, r.HasChunk("world", 1, 1))
	assert.False(t, r.HasChunk("world", 2, 2), "реестр хранит копию")
	assert.Equal(t, []ChunkRef{{World: "world", X: 1, Z: 1}}, hooks.changed)

	assert.Error(t, r.Replace(chunk.NewSet("")))
	assert.Error(t, r.Replace(nil))

	assert.True(t, r.DropWorld("world"))
	assert.False(t, r.DropWorld("world"))
	assert.Empty(t, r.Worlds())
}

func TestRegistrySaveOnlyDirty(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider()
	r := NewRegistry(nil)

	r.AddChunk("world", 1, 2)
	r.AddChunk("nether", 3, 4)
	assert.Equal(t, []string{"nether", "world"}, r.Dirty())

	require.NoError(t, r.Save(ctx, provider))
	assert.Empty(t, r.Dirty())

	worlds, err := provider.ListSets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nether", "world"}, worlds)

	r.AddChunk("world", 7, 7)
	assert.Equal(t, []string{"world"}, r.Dirty())
	require.NoError(t, r.Save(ctx, provider))

	stored, found, err := provider.LoadSet(ctx, "world")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, stored.Exists(7, 7))

	// Удалённый мир удаляется из хранилища при сохранении
	r.DropWorld("nether")
	assert.Equal(t, []string{"nether"}, r.Dirty())
	require.NoError(t, r.Save(ctx, provider))
	_, found, err = provider.LoadSet(ctx, "nether")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, r.Dirty())
}

func TestRegistryLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider()

	src := NewRegistry(nil)
	src.AddChunk("world1", 0, 0)
	src.AddChunk("world1", 1, 2)
	src.AddChunk("world1", -3, 4)
	src.AddChunk("empty", 0, 0)
	src.RemoveChunk("empty", 0, 0)
	require.NoError(t, src.SaveAll(ctx, provider))

	dst := NewRegistry(nil)
	n, err := dst.Load(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"empty", "world1"}, dst.Worlds())
	assert.Equal(t, src.Chunks("world1"), dst.Chunks("world1"))
	assert.Empty(t, dst.Chunks("empty"))
	assert.Empty(t, dst.Dirty(), "загруженные миры не изменены")
}

func TestRegistryLoadMalformed(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryBlobRepo()
	provider := storage_adapter.NewBlobSetAdapter(repo, storage_adapter.DefaultCodec)

	bad := nbt.NewList("bad", nbt.TagList,
		nbt.NewList("", nbt.TagInt, nbt.NewInt("", 1), nbt.NewInt("", 2), nbt.NewInt("", 3)))
	data, err := nbt.MarshalCompressed(bad, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, "bad", data))

	r := NewRegistry(nil)
	_, err = r.Load(ctx, provider)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chunk.ErrMalformedTag))
	assert.Empty(t, r.Worlds(), "битый мир не становится пустым набором")
}

// failingProvider отказывает в записи
type failingProvider struct {
	storage_interface.SetProvider
}

func (f failingProvider) SaveSet(ctx context.Context, set *chunk.Set) error {
	return errors.New("disk full")
}

func TestRegistrySaveFailureKeepsDirty(t *testing.T) {
	r := NewRegistry(nil)
	r.AddChunk("world", 1, 1)

	err := r.Save(context.Background(), failingProvider{newMemoryProvider()})
	require.Error(t, err)
	assert.Equal(t, []string{"world"}, r.Dirty())
}

func TestRegistryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRegistryMetrics(reg)
	r := NewRegistry(metrics)

	r.AddChunk("world", 1, 1)
	r.AddChunk("world", 1, 1)
	r.AddChunk("world", 2, 2)
	r.RemoveChunk("world", 9, 9)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.chunks.WithLabelValues("world")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ops.WithLabelValues("add", "added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ops.WithLabelValues("add", "present")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ops.WithLabelValues("remove", "absent")))

	require.NoError(t, r.Save(context.Background(), newMemoryProvider()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.saves.WithLabelValues("ok")))
}

func TestRegistryMetricsSeriesLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRegistryMetrics(reg)
	r := NewRegistry(metrics)

	for i := 0; i < MaxWorldSeries+10; i++ {
		r.AddChunk(fmt.Sprintf("w%d", i), 0, 0)
	}

	assert.Equal(t, MaxWorldSeries, testutil.CollectAndCount(metrics.chunks))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.unlabelled))

	// Удалённый мир освобождает серию
	require.True(t, r.DropWorld("w0"))
	r.AddChunk("fresh", 1, 1)
	assert.Equal(t, MaxWorldSeries, testutil.CollectAndCount(metrics.chunks))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.chunks.WithLabelValues("fresh")))

	require.True(t, r.DropWorld(fmt.Sprintf("w%d", MaxWorldSeries+9)))
	assert.Equal(t, 9.0, testutil.ToFloat64(metrics.unlabelled))
}

func TestRegistryAutosave(t *testing.T) {
	provider := newMemoryProvider()
	r := NewRegistry(nil)
	r.AddChunk("world", 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Autosave(ctx, provider, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(r.Dirty()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Autosave не завершился после отмены контекста")
	}

	// Нулевой интервал — выход сразу
	r.Autosave(context.Background(), provider, 0)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := int32(0); i < 200; i++ {
				r.AddChunk("world", i, int32(g))
				r.HasChunk("world", i, int32(g))
				_ = r.Chunks("world")
			}
		}(g)
	}
	wg.Wait()

	assert.Len(t, r.Chunks("world"), 8*200)
}

func TestDispatch(t *testing.T) {
	h := &recordingHooks{}
	ref := ChunkRef{World: "w", X: 1, Z: 2}

	assert.True(t, Dispatch(h, ChunkEvent{EventType: EventTypeChunkLoaded, Chunk: ref}))
	assert.True(t, Dispatch(h, ChunkEvent{EventType: EventTypeChunkChanged, Chunk: ref}))
	assert.True(t, Dispatch(h, ChunkEvent{EventType: EventTypeChunkPopulated, Chunk: ref}))
	assert.True(t, Dispatch(h, BlockEvent{Position: vec.Vec3{X: 1, Y: 64, Z: 2}}))
	assert.False(t, Dispatch(h, ChunkEvent{EventType: EventTypeBlockChanged, Chunk: ref}))
	assert.False(t, Dispatch(nil, ChunkEvent{EventType: EventTypeChunkLoaded, Chunk: ref}))

	assert.Equal(t, []ChunkRef{ref}, h.loaded)
	assert.Equal(t, []ChunkRef{ref}, h.changed)
	assert.Equal(t, "chunk_populated", EventTypeChunkPopulated.String())
}

func TestLoader(t *testing.T) {
	active := true
	l := NewLoader(vec.Vec3{X: 0, Y: 64, Z: 0}, func() bool { return active })

	assert.Len(t, l.ID(), 36)
	assert.NotEqual(t, l.ID(), NewLoader(vec.Vec3{}, nil).ID())
	assert.True(t, l.IsActive())
	active = false
	assert.False(t, l.IsActive())
	assert.True(t, NewLoader(vec.Vec3{}, nil).IsActive())
	assert.Equal(t, vec.Vec3{X: 0, Y: 64, Z: 0}, l.Position())

	r := NewRegistry(nil)
	r.SetHooks(l)
	r.AddChunk("world", 1, 1)
	r.RemoveChunk("world", 1, 1)
	l.OnBlockChanged(vec.Vec3{})

	stats := l.Stats()
	assert.Equal(t, int64(1), stats.Loaded)
	assert.Equal(t, int64(1), stats.Unloaded)
	assert.False(t, stats.Active)
}

func TestMultiHooks(t *testing.T) {
	a, b := &recordingHooks{}, &recordingHooks{}
	r := NewRegistry(nil)
	r.SetHooks(MultiHooks{a, b})

	r.AddChunk("w", 3, 4)
	r.RemoveChunk("w", 3, 4)

	want := []ChunkRef{{World: "w", X: 3, Z: 4}}
	for _, h := range []*recordingHooks{a, b} {
		assert.Equal(t, want, h.loaded)
		assert.Equal(t, want, h.unloaded)
	}
}
