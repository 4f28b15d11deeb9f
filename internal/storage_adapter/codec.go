package storage_adapter

import (
	"encoding/binary"
	"fmt"

	"github.com/annel0/chunkloader/internal/chunk"
	"github.com/annel0/chunkloader/internal/nbt"
)

// SetCodec переводит набор чанков в байты NBT и обратно
type SetCodec struct {
	Order        binary.ByteOrder // nil — nbt.DefaultOrder (big-endian)
	Uncompressed bool             // true — писать без gzip
}

// DefaultCodec gzip + big-endian, формат файлов сохранений хоста
var DefaultCodec = SetCodec{}

// Encode сериализует набор; имя тега — имя набора
func (c SetCodec) Encode(set *chunk.Set) ([]byte, error) {
	tag := set.Serialize()
	if c.Uncompressed {
		return nbt.Marshal(tag, c.Order)
	}
	return nbt.MarshalCompressed(tag, c.Order)
}

// Decode разбирает байты (сжатие определяется автоматически).
// Любая ошибка разбора оборачивает chunk.ErrMalformedTag.
func (c SetCodec) Decode(data []byte) (*chunk.Set, error) {
	tag, err := nbt.UnmarshalAuto(data, c.Order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chunk.ErrMalformedTag, err)
	}
	return chunk.DeserializeTag(tag)
}
