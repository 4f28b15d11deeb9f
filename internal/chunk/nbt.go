package chunk

import (
	"errors"
	"fmt"

	"github.com/annel0/chunkloader/internal/nbt"
)

// ErrMalformedTag тег не соответствует форме "список пар Int"
var ErrMalformedTag = errors.New("malformed chunk set tag")

// Serialize строит дерево тегов:
//
//	List(name, elem=List)
//	  List("", elem=Int): [Int("", x), Int("", z)]
//
// Имя тега по умолчанию совпадает с именем набора. Если tagName передан,
// используется первый аргумент как есть, в том числе пустая строка.
// Записи идут по возрастанию упакованного ключа.
func (s *Set) Serialize(tagName ...string) *nbt.List {
	name := s.name
	if len(tagName) > 0 {
		name = tagName[0]
	}

	keys := s.sortedKeys()
	items := make([]nbt.Tag, 0, len(keys))
	for _, key := range keys {
		x, z := Unpack(key)
		items = append(items, nbt.NewList("", nbt.TagInt, nbt.NewInt("", x), nbt.NewInt("", z)))
	}
	return nbt.NewList(name, nbt.TagList, items...)
}

// Deserialize восстанавливает набор из тега, созданного Serialize.
// Имя набора берётся из имени тега.
func Deserialize(tag *nbt.List) (*Set, error) {
	if tag == nil {
		return nil, fmt.Errorf("%w: nil tag", ErrMalformedTag)
	}
	emptyEnd := tag.ElemType == nbt.TagEnd && tag.Len() == 0
	if tag.ElemType != nbt.TagList && !emptyEnd {
		return nil, fmt.Errorf("%w: %q is a list of %s, want list of List", ErrMalformedTag, tag.Name(), tag.ElemType)
	}

	keys := make([]int64, 0, tag.Len())
	for i, item := range tag.Items {
		pair, ok := item.(*nbt.List)
		if !ok {
			return nil, fmt.Errorf("%w: %q entry %d is %T", ErrMalformedTag, tag.Name(), i, item)
		}
		if pair.Len() != 2 {
			return nil, fmt.Errorf("%w: %q entry %d has %d values, want 2", ErrMalformedTag, tag.Name(), i, pair.Len())
		}
		x, okX := pair.Items[0].(*nbt.Int)
		z, okZ := pair.Items[1].(*nbt.Int)
		if !okX || !okZ {
			return nil, fmt.Errorf("%w: %q entry %d is not an Int pair", ErrMalformedTag, tag.Name(), i)
		}
		keys = append(keys, Pack(x.Value, z.Value))
	}

	return NewSet(tag.Name(), keys...), nil
}

// DeserializeTag как Deserialize, но принимает произвольный тег
func DeserializeTag(tag nbt.Tag) (*Set, error) {
	list, ok := tag.(*nbt.List)
	if !ok {
		return nil, fmt.Errorf("%w: root is %T, want list", ErrMalformedTag, tag)
	}
	return Deserialize(list)
}
