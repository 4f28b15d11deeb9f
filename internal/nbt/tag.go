package nbt

import "fmt"

// TagType идентификатор типа тега в бинарном формате.
// Значения совпадают с форматом сохранений хоста.
type TagType byte

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagNames = [...]string{
	TagEnd:       "End",
	TagByte:      "Byte",
	TagShort:     "Short",
	TagInt:       "Int",
	TagLong:      "Long",
	TagFloat:     "Float",
	TagDouble:    "Double",
	TagByteArray: "ByteArray",
	TagString:    "String",
	TagList:      "List",
	TagCompound:  "Compound",
	TagIntArray:  "IntArray",
	TagLongArray: "LongArray",
}

// String возвращает имя типа тега
func (t TagType) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("TagType(%d)", byte(t))
}

// Valid сообщает, известен ли тип тега
func (t TagType) Valid() bool {
	return t <= TagLongArray
}

// Tag узел именованного дерева тегов.
// Анонимные теги (элементы списков) имеют пустое имя.
type Tag interface {
	Type() TagType
	Name() string
}

type Byte struct {
	name  string
	Value int8
}

func NewByte(name string, v int8) *Byte { return &Byte{name: name, Value: v} }
func (t *Byte) Type() TagType           { return TagByte }
func (t *Byte) Name() string            { return t.name }

type Short struct {
	name  string
	Value int16
}

func NewShort(name string, v int16) *Short { return &Short{name: name, Value: v} }
func (t *Short) Type() TagType             { return TagShort }
func (t *Short) Name() string              { return t.name }

type Int struct {
	name  string
	Value int32
}

func NewInt(name string, v int32) *Int { return &Int{name: name, Value: v} }
func (t *Int) Type() TagType           { return TagInt }
func (t *Int) Name() string            { return t.name }

type Long struct {
	name  string
	Value int64
}

func NewLong(name string, v int64) *Long { return &Long{name: name, Value: v} }
func (t *Long) Type() TagType            { return TagLong }
func (t *Long) Name() string             { return t.name }

type Float struct {
	name  string
	Value float32
}

func NewFloat(name string, v float32) *Float { return &Float{name: name, Value: v} }
func (t *Float) Type() TagType               { return TagFloat }
func (t *Float) Name() string                { return t.name }

type Double struct {
	name  string
	Value float64
}

func NewDouble(name string, v float64) *Double { return &Double{name: name, Value: v} }
func (t *Double) Type() TagType                { return TagDouble }
func (t *Double) Name() string                 { return t.name }

type ByteArray struct {
	name  string
	Value []byte
}

func NewByteArray(name string, v []byte) *ByteArray { return &ByteArray{name: name, Value: v} }
func (t *ByteArray) Type() TagType                  { return TagByteArray }
func (t *ByteArray) Name() string                   { return t.name }

type String struct {
	name  string
	Value string
}

func NewString(name string, v string) *String { return &String{name: name, Value: v} }
func (t *String) Type() TagType               { return TagString }
func (t *String) Name() string                { return t.name }

type IntArray struct {
	name  string
	Value []int32
}

func NewIntArray(name string, v []int32) *IntArray { return &IntArray{name: name, Value: v} }
func (t *IntArray) Type() TagType                  { return TagIntArray }
func (t *IntArray) Name() string                   { return t.name }

type LongArray struct {
	name  string
	Value []int64
}

func NewLongArray(name string, v []int64) *LongArray { return &LongArray{name: name, Value: v} }
func (t *LongArray) Type() TagType                   { return TagLongArray }
func (t *LongArray) Name() string                    { return t.name }

// List однородный список анонимных тегов.
// ElemType обязан совпадать с типом каждого элемента; пустой список
// может иметь ElemType == TagEnd.
type List struct {
	name     string
	ElemType TagType
	Items    []Tag
}

// NewList создаёт список. Однородность проверяется в Add и при кодировании.
func NewList(name string, elem TagType, items ...Tag) *List {
	return &List{name: name, ElemType: elem, Items: items}
}

func (t *List) Type() TagType { return TagList }
func (t *List) Name() string  { return t.name }

// Len возвращает количество элементов
func (t *List) Len() int { return len(t.Items) }

// Add добавляет элемент, проверяя его тип
func (t *List) Add(item Tag) error {
	if item == nil {
		return fmt.Errorf("%w: nil element", ErrListType)
	}
	if t.ElemType == TagEnd && len(t.Items) == 0 {
		t.ElemType = item.Type()
	}
	if item.Type() != t.ElemType {
		return fmt.Errorf("%w: list of %s, got %s", ErrListType, t.ElemType, item.Type())
	}
	t.Items = append(t.Items, item)
	return nil
}

// Compound упорядоченный набор именованных тегов.
type Compound struct {
	name  string
	Items []Tag
}

func NewCompound(name string, items ...Tag) *Compound {
	return &Compound{name: name, Items: items}
}

func (t *Compound) Type() TagType { return TagCompound }
func (t *Compound) Name() string  { return t.name }

// Get возвращает дочерний тег по имени или nil
func (t *Compound) Get(name string) Tag {
	for _, item := range t.Items {
		if item.Name() == name {
			return item
		}
	}
	return nil
}

// Set заменяет тег с тем же именем или добавляет новый в конец
func (t *Compound) Set(tag Tag) {
	for i, item := range t.Items {
		if item.Name() == tag.Name() {
			t.Items[i] = tag
			return
		}
	}
	t.Items = append(t.Items, tag)
}

// Remove удаляет тег по имени
func (t *Compound) Remove(name string) bool {
	for i, item := range t.Items {
		if item.Name() == name {
			t.Items = append(t.Items[:i], t.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Names возвращает имена дочерних тегов в порядке хранения
func (t *Compound) Names() []string {
	names := make([]string, 0, len(t.Items))
	for _, item := range t.Items {
		names = append(names, item.Name())
	}
	return names
}

// Rename возвращает копию тега верхнего уровня с другим именем.
// Дочерние теги не копируются.
func Rename(tag Tag, name string) Tag {
	switch t := tag.(type) {
	case *Byte:
		return NewByte(name, t.Value)
	case *Short:
		return NewShort(name, t.Value)
	case *Int:
		return NewInt(name, t.Value)
	case *Long:
		return NewLong(name, t.Value)
	case *Float:
		return NewFloat(name, t.Value)
	case *Double:
		return NewDouble(name, t.Value)
	case *ByteArray:
		return NewByteArray(name, t.Value)
	case *String:
		return NewString(name, t.Value)
	case *IntArray:
		return NewIntArray(name, t.Value)
	case *LongArray:
		return NewLongArray(name, t.Value)
	case *List:
		return NewList(name, t.ElemType, t.Items...)
	case *Compound:
		return NewCompound(name, t.Items...)
	}
	return tag
}
