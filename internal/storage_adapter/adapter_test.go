package storage_adapter

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/chunkloader/internal/chunk"
	"github.com/annel0/chunkloader/internal/config"
	"github.com/annel0/chunkloader/internal/nbt"
	"github.com/annel0/chunkloader/internal/storage"
	"github.com/annel0/chunkloader/internal/storage_interface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSet(name string) *chunk.Set {
	s := chunk.NewSet(name)
	s.Add(0, 0)
	s.Add(1, 2)
	s.Add(-3, 4)
	return s
}

// testProvider общий набор проверок для SetProvider
func testProvider(t *testing.T, p storage_interface.SetProvider) {
	ctx := context.Background()

	_, found, err := p.LoadSet(ctx, "world1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, p.SaveSet(ctx, sampleSet("world1")))
	require.NoError(t, p.SaveSet(ctx, chunk.NewSet("empty")))

	loaded, found, err := p.LoadSet(ctx, "world1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "world1", loaded.Name())
	assert.True(t, loaded.Equal(sampleSet("world1")))

	empty, found, err := p.LoadSet(ctx, "empty")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0, empty.Len())

	worlds, err := p.ListSets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "world1"}, worlds)

	require.NoError(t, p.DeleteSet(ctx, "empty"))
	_, found, err = p.LoadSet(ctx, "empty")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBlobSetAdapter(t *testing.T) {
	testProvider(t, NewBlobSetAdapter(storage.NewMemoryBlobRepo(), DefaultCodec))
}

func TestBlobSetAdapterBadger(t *testing.T) {
	ws, err := storage.NewWorldStorage(t.TempDir())
	require.NoError(t, err)

	p := NewBlobSetAdapter(ws, SetCodec{Order: binary.LittleEndian, Uncompressed: true})
	defer p.Close()
	testProvider(t, p)
}

func TestBlobSetAdapterStoresGzipNBT(t *testing.T) {
	repo := storage.NewMemoryBlobRepo()
	p := NewBlobSetAdapter(repo, DefaultCodec)
	ctx := context.Background()

	require.NoError(t, p.SaveSet(ctx, sampleSet("world1")))

	data, found, err := repo.Get(ctx, "world1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, nbt.IsCompressed(data))

	tag, err := nbt.UnmarshalCompressed(data, nil)
	require.NoError(t, err)
	assert.Equal(t, "world1", tag.Name())
	assert.Equal(t, nbt.TagList, tag.Type())
}

func TestBlobSetAdapterMalformed(t *testing.T) {
	repo := storage.NewMemoryBlobRepo()
	p := NewBlobSetAdapter(repo, DefaultCodec)
	ctx := context.Background()

	// Список из трёх чисел вместо пары
	bad := nbt.NewList("w", nbt.TagList,
		nbt.NewList("", nbt.TagInt, nbt.NewInt("", 1), nbt.NewInt("", 2), nbt.NewInt("", 3)))
	data, err := nbt.Marshal(bad, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, "w", data))
	require.NoError(t, repo.Put(ctx, "garbage", []byte{0xff, 0x00}))

	for _, world := range []string{"w", "garbage"} {
		set, found, err := p.LoadSet(ctx, world)
		require.Error(t, err, world)
		assert.True(t, errors.Is(err, chunk.ErrMalformedTag), "%s: %v", world, err)
		assert.False(t, found)
		assert.Nil(t, set)
	}
}

func TestBlobSetAdapterNameFromKey(t *testing.T) {
	repo := storage.NewMemoryBlobRepo()
	p := NewBlobSetAdapter(repo, DefaultCodec)
	ctx := context.Background()

	data, err := DefaultCodec.Encode(sampleSet("other"))
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, "world1", data))

	set, found, err := p.LoadSet(ctx, "world1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "world1", set.Name())
}

func TestSaveSetsBatch(t *testing.T) {
	p := NewBlobSetAdapter(storage.NewMemoryBlobRepo(), DefaultCodec)
	ctx := context.Background()

	require.NoError(t, p.SaveSets(ctx, []*chunk.Set{sampleSet("a"), sampleSet("b")}))
	worlds, err := p.ListSets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, worlds)
}

func TestFileStorageAdapter(t *testing.T) {
	fsa, err := NewFileStorageAdapter(t.TempDir(), "chunks.dat", DefaultCodec)
	require.NoError(t, err)
	defer fsa.Close()

	testProvider(t, fsa)
}

func TestFileStorageAdapterPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fsa, err := NewFileStorageAdapter(dir, "chunks.dat", DefaultCodec)
	require.NoError(t, err)
	require.NoError(t, fsa.SaveSets(ctx, []*chunk.Set{sampleSet("world1"), sampleSet("nether")}))

	// Файл: gzip NBT с безымянным Compound в корне
	data, err := os.ReadFile(filepath.Join(dir, "chunks.dat"))
	require.NoError(t, err)
	assert.True(t, nbt.IsCompressed(data))
	tag, err := nbt.UnmarshalAuto(data, nil)
	require.NoError(t, err)
	root, ok := tag.(*nbt.Compound)
	require.True(t, ok)
	assert.Equal(t, "", root.Name())
	assert.ElementsMatch(t, []string{"world1", "nether"}, root.Names())

	// Временных файлов не остаётся
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	reopened, err := NewFileStorageAdapter(dir, "chunks.dat", DefaultCodec)
	require.NoError(t, err)
	set, found, err := reopened.LoadSet(ctx, "nether")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, set.Equal(sampleSet("nether")))

	stats := reopened.GetStorageStats()
	assert.Equal(t, 2, stats["worlds"])
}

func TestFileStorageAdapterFailedWriteKeepsState(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "data")
	ctx := context.Background()

	fsa, err := NewFileStorageAdapter(dir, "chunks.dat", DefaultCodec)
	require.NoError(t, err)
	require.NoError(t, fsa.SaveSets(ctx, []*chunk.Set{sampleSet("world1"), sampleSet("nether")}))

	// Директория исчезла: временный файл создать нельзя
	require.NoError(t, os.RemoveAll(dir))

	require.Error(t, fsa.DeleteSet(ctx, "nether"))
	_, found, err := fsa.LoadSet(ctx, "nether")
	require.NoError(t, err)
	assert.True(t, found, "неудачное удаление не должно менять состояние")

	require.Error(t, fsa.SaveSet(ctx, sampleSet("end")))
	_, found, err = fsa.LoadSet(ctx, "end")
	require.NoError(t, err)
	assert.False(t, found, "неудачное сохранение не должно менять состояние")

	// Повтор после восстановления директории доходит до файла
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, fsa.DeleteSet(ctx, "nether"))

	reopened, err := NewFileStorageAdapter(dir, "chunks.dat", DefaultCodec)
	require.NoError(t, err)
	names, err := reopened.ListSets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"world1"}, names)
}

func TestFileStorageAdapterSaveSetsEmptyName(t *testing.T) {
	ctx := context.Background()
	fsa, err := NewFileStorageAdapter(t.TempDir(), "chunks.dat", DefaultCodec)
	require.NoError(t, err)

	err = fsa.SaveSets(ctx, []*chunk.Set{sampleSet("world1"), sampleSet("")})
	require.Error(t, err)

	names, err := fsa.ListSets(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFileStorageAdapterRejectsBadRoot(t *testing.T) {
	dir := t.TempDir()
	data, err := nbt.MarshalCompressed(nbt.NewList("", nbt.TagEnd), nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunks.dat"), data, 0o644))

	_, err = NewFileStorageAdapter(dir, "chunks.dat", DefaultCodec)
	assert.ErrorIs(t, err, chunk.ErrMalformedTag)
}

func TestFileStorageAdapterMalformedWorld(t *testing.T) {
	dir := t.TempDir()
	root := nbt.NewCompound("",
		nbt.NewList("bad", nbt.TagList, nbt.NewList("", nbt.TagInt, nbt.NewInt("", 1))))
	data, err := nbt.MarshalCompressed(root, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunks.dat"), data, 0o644))

	fsa, err := NewFileStorageAdapter(dir, "chunks.dat", DefaultCodec)
	require.NoError(t, err)

	_, _, err = fsa.LoadSet(context.Background(), "bad")
	assert.ErrorIs(t, err, chunk.ErrMalformedTag)
}

func TestNewProvider(t *testing.T) {
	for _, backend := range []string{config.BackendBadger, config.BackendFile, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			p, err := NewProvider(config.StorageConfig{
				Backend:  backend,
				DataPath: t.TempDir(),
				FileName: "chunks.dat",
			})
			require.NoError(t, err)
			defer p.Close()
			testProvider(t, p)
		})
	}

	_, err := NewProvider(config.StorageConfig{Backend: "floppy"})
	assert.Error(t, err)
}

func TestCodecFromConfig(t *testing.T) {
	codec := CodecFromConfig(config.StorageConfig{LittleEndian: true, Uncompressed: true})
	assert.Equal(t, binary.LittleEndian, codec.Order)
	assert.True(t, codec.Uncompressed)

	data, err := codec.Encode(sampleSet("w"))
	require.NoError(t, err)
	assert.False(t, nbt.IsCompressed(data))

	set, err := codec.Decode(data)
	require.NoError(t, err)
	assert.True(t, set.Equal(sampleSet("w")))
}
