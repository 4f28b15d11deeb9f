package nbt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCompound() *Compound {
	pair := NewList("", TagInt, NewInt("", 3), NewInt("", -5))
	return NewCompound("root",
		NewByte("b", -1),
		NewShort("s", 1234),
		NewInt("i", -70000),
		NewLong("l", 1<<40),
		NewFloat("f", 1.5),
		NewDouble("d", -2.25),
		NewByteArray("ba", []byte{1, 2, 3}),
		NewString("str", "мир"),
		NewIntArray("ia", []int32{7, -8}),
		NewLongArray("la", []int64{9, -10}),
		NewList("world", TagList, pair),
		NewCompound("nested", NewString("k", "v")),
	)
}

func TestEncodeDecodeAllTypes(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		data, err := Marshal(sampleCompound(), order)
		require.NoError(t, err)

		tag, err := Unmarshal(data, order)
		require.NoError(t, err)

		root, ok := tag.(*Compound)
		require.True(t, ok, "корень должен быть Compound, получен %T", tag)
		assert.Equal(t, "root", root.Name())
		assert.Equal(t, sampleCompound().Names(), root.Names())

		assert.Equal(t, int8(-1), root.Get("b").(*Byte).Value)
		assert.Equal(t, int16(1234), root.Get("s").(*Short).Value)
		assert.Equal(t, int32(-70000), root.Get("i").(*Int).Value)
		assert.Equal(t, int64(1<<40), root.Get("l").(*Long).Value)
		assert.Equal(t, float32(1.5), root.Get("f").(*Float).Value)
		assert.Equal(t, -2.25, root.Get("d").(*Double).Value)
		assert.Equal(t, []byte{1, 2, 3}, root.Get("ba").(*ByteArray).Value)
		assert.Equal(t, "мир", root.Get("str").(*String).Value)
		assert.Equal(t, []int32{7, -8}, root.Get("ia").(*IntArray).Value)
		assert.Equal(t, []int64{9, -10}, root.Get("la").(*LongArray).Value)

		world := root.Get("world").(*List)
		assert.Equal(t, TagList, world.ElemType)
		require.Equal(t, 1, world.Len())
		pair := world.Items[0].(*List)
		assert.Equal(t, TagInt, pair.ElemType)
		assert.Equal(t, int32(3), pair.Items[0].(*Int).Value)
		assert.Equal(t, int32(-5), pair.Items[1].(*Int).Value)

		nested := root.Get("nested").(*Compound)
		assert.Equal(t, "v", nested.Get("k").(*String).Value)
	}
}

func TestBigEndianWireLayout(t *testing.T) {
	data, err := Marshal(NewInt("a", 1), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(TagInt), 0, 1, 'a', 0, 0, 0, 1}, data)
}

func TestEmptyListEncodesAsEnd(t *testing.T) {
	data, err := Marshal(NewList("w", TagType(200)), nil)
	require.NoError(t, err)

	tag, err := Unmarshal(data, nil)
	require.NoError(t, err)
	list := tag.(*List)
	assert.Equal(t, TagEnd, list.ElemType)
	assert.Equal(t, 0, list.Len())
}

func TestEncodeRejectsHeterogeneousList(t *testing.T) {
	list := NewList("bad", TagInt, NewInt("", 1), NewString("", "x"))
	_, err := Marshal(list, nil)
	assert.True(t, errors.Is(err, ErrListType))
}

func TestListAdd(t *testing.T) {
	list := NewList("", TagEnd)
	require.NoError(t, list.Add(NewInt("", 1)))
	assert.Equal(t, TagInt, list.ElemType)

	err := list.Add(NewLong("", 2))
	assert.True(t, errors.Is(err, ErrListType))
	assert.Equal(t, 1, list.Len())
}

func TestDecodeErrors(t *testing.T) {
	valid, err := Marshal(sampleCompound(), nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"пустой поток", nil, io.EOF},
		{"обрезанный тег", valid[:len(valid)/2], io.ErrUnexpectedEOF},
		{"неизвестный тип", []byte{42, 0, 0}, ErrUnknownTag},
		{"End в корне", []byte{0}, ErrUnexpectedEnd},
		{"отрицательная длина", []byte{byte(TagIntArray), 0, 0, 0xff, 0xff, 0xff, 0xff}, ErrNegativeLength},
		{"список End с элементами", []byte{byte(TagList), 0, 0, 0, 0, 0, 0, 1}, ErrListType},
		{"огромный ByteArray без данных", []byte{byte(TagByteArray), 0, 0, 0x7f, 0xff, 0xff, 0xff}, io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "ожидалась %v, получена %v", tt.want, err)
		})
	}
}

func TestDecodeByteArrayBoundedAlloc(t *testing.T) {
	data := []byte{byte(TagByteArray), 0, 0, 0x7f, 0xff, 0xff, 0xff, 1, 2, 3}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	_, err := Unmarshal(data, nil)
	runtime.ReadMemStats(&after)

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "получена %v", err)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(4<<20))
}

func TestDecodeDepthLimit(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{byte(TagList), 0, 0})
	for i := 0; i <= MaxDepth+1; i++ {
		buf.Write([]byte{byte(TagList), 0, 0, 0, 1})
	}

	_, err := Unmarshal(buf.Bytes(), nil)
	assert.True(t, errors.Is(err, ErrTooDeep), "получена %v", err)
}

func TestCompressedRoundTrip(t *testing.T) {
	data, err := MarshalCompressed(sampleCompound(), nil)
	require.NoError(t, err)
	assert.True(t, IsCompressed(data))

	tag, err := UnmarshalAuto(data, nil)
	require.NoError(t, err)
	assert.Equal(t, "root", tag.Name())

	raw, err := Marshal(sampleCompound(), nil)
	require.NoError(t, err)
	assert.False(t, IsCompressed(raw))

	tag, err = ReadFile(bytes.NewReader(raw), nil)
	require.NoError(t, err)
	assert.Equal(t, "root", tag.Name())
}

func TestCompoundSetRemove(t *testing.T) {
	c := NewCompound("")
	c.Set(NewInt("a", 1))
	c.Set(NewInt("b", 2))
	c.Set(NewInt("a", 3))

	assert.Equal(t, []string{"a", "b"}, c.Names())
	assert.Equal(t, int32(3), c.Get("a").(*Int).Value)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Nil(t, c.Get("a"))
}

func TestRename(t *testing.T) {
	list := NewList("old", TagInt, NewInt("", 1))
	renamed := Rename(list, "new").(*List)
	assert.Equal(t, "new", renamed.Name())
	assert.Equal(t, "old", list.Name())
	assert.Equal(t, list.Items, renamed.Items)
}
