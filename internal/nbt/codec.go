package nbt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// MaxDepth ограничивает вложенность списков и compound-тегов при чтении
const MaxDepth = 512

// maxPrealloc ограничивает предварительное выделение памяти под массивы,
// длина которых прочитана из недоверенного источника
const maxPrealloc = 1 << 16

var (
	ErrUnknownTag     = errors.New("nbt: unknown tag type")
	ErrListType       = errors.New("nbt: list element type mismatch")
	ErrNegativeLength = errors.New("nbt: negative length")
	ErrTooDeep        = errors.New("nbt: nesting too deep")
	ErrUnexpectedEnd  = errors.New("nbt: unexpected End tag")
	ErrStringTooLong  = errors.New("nbt: string longer than 65535 bytes")
)

// DefaultOrder порядок байт файлов сохранений хоста
var DefaultOrder binary.ByteOrder = binary.BigEndian

// Encoder пишет именованные теги в поток
type Encoder struct {
	w     io.Writer
	order binary.ByteOrder
	buf   [8]byte
}

// NewEncoder создаёт кодировщик. order == nil означает DefaultOrder.
func NewEncoder(w io.Writer, order binary.ByteOrder) *Encoder {
	if order == nil {
		order = DefaultOrder
	}
	return &Encoder{w: w, order: order}
}

// Encode записывает один корневой тег вместе с его именем
func (e *Encoder) Encode(tag Tag) error {
	if tag == nil {
		return errors.New("nbt: nil tag")
	}
	if err := e.writeByte(byte(tag.Type())); err != nil {
		return err
	}
	if err := e.writeString(tag.Name()); err != nil {
		return err
	}
	return e.writePayload(tag)
}

func (e *Encoder) writePayload(tag Tag) error {
	switch t := tag.(type) {
	case *Byte:
		return e.writeByte(byte(t.Value))
	case *Short:
		e.order.PutUint16(e.buf[:2], uint16(t.Value))
		return e.write(e.buf[:2])
	case *Int:
		return e.writeInt32(t.Value)
	case *Long:
		return e.writeInt64(t.Value)
	case *Float:
		return e.writeInt32(int32(math.Float32bits(t.Value)))
	case *Double:
		return e.writeInt64(int64(math.Float64bits(t.Value)))
	case *ByteArray:
		if err := e.writeInt32(int32(len(t.Value))); err != nil {
			return err
		}
		return e.write(t.Value)
	case *String:
		return e.writeString(t.Value)
	case *IntArray:
		if err := e.writeInt32(int32(len(t.Value))); err != nil {
			return err
		}
		for _, v := range t.Value {
			if err := e.writeInt32(v); err != nil {
				return err
			}
		}
		return nil
	case *LongArray:
		if err := e.writeInt32(int32(len(t.Value))); err != nil {
			return err
		}
		for _, v := range t.Value {
			if err := e.writeInt64(v); err != nil {
				return err
			}
		}
		return nil
	case *List:
		elem := t.ElemType
		if len(t.Items) == 0 && !elem.Valid() {
			elem = TagEnd
		}
		if err := e.writeByte(byte(elem)); err != nil {
			return err
		}
		if err := e.writeInt32(int32(len(t.Items))); err != nil {
			return err
		}
		for i, item := range t.Items {
			if item == nil || item.Type() != elem {
				return fmt.Errorf("%w: list %q item %d", ErrListType, t.name, i)
			}
			if err := e.writePayload(item); err != nil {
				return err
			}
		}
		return nil
	case *Compound:
		for _, item := range t.Items {
			if err := e.Encode(item); err != nil {
				return err
			}
		}
		return e.writeByte(byte(TagEnd))
	}
	return fmt.Errorf("%w: %T", ErrUnknownTag, tag)
}

func (e *Encoder) write(p []byte) error {
	_, err := e.w.Write(p)
	return err
}

func (e *Encoder) writeByte(b byte) error {
	e.buf[0] = b
	return e.write(e.buf[:1])
}

func (e *Encoder) writeInt32(v int32) error {
	e.order.PutUint32(e.buf[:4], uint32(v))
	return e.write(e.buf[:4])
}

func (e *Encoder) writeInt64(v int64) error {
	e.order.PutUint64(e.buf[:8], uint64(v))
	return e.write(e.buf[:8])
}

func (e *Encoder) writeString(s string) error {
	if len(s) > math.MaxUint16 {
		return ErrStringTooLong
	}
	e.order.PutUint16(e.buf[:2], uint16(len(s)))
	if err := e.write(e.buf[:2]); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

// Decoder читает именованные теги из потока
type Decoder struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [8]byte
}

// NewDecoder создаёт декодер. order == nil означает DefaultOrder.
func NewDecoder(r io.Reader, order binary.ByteOrder) *Decoder {
	if order == nil {
		order = DefaultOrder
	}
	return &Decoder{r: r, order: order}
}

// Decode читает один корневой тег.
// Обрезанный поток возвращает io.ErrUnexpectedEOF, пустой — io.EOF.
func (d *Decoder) Decode() (Tag, error) {
	typ, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if TagType(typ) == TagEnd {
		return nil, ErrUnexpectedEnd
	}
	name, err := d.readString()
	if err != nil {
		return nil, eof(err)
	}
	return d.readPayload(TagType(typ), name, 0)
}

func (d *Decoder) readPayload(typ TagType, name string, depth int) (Tag, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	switch typ {
	case TagByte:
		b, err := d.readByte()
		if err != nil {
			return nil, eof(err)
		}
		return NewByte(name, int8(b)), nil
	case TagShort:
		if err := d.read(2); err != nil {
			return nil, err
		}
		return NewShort(name, int16(d.order.Uint16(d.buf[:2]))), nil
	case TagInt:
		v, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		return NewInt(name, v), nil
	case TagLong:
		v, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return NewLong(name, v), nil
	case TagFloat:
		v, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		return NewFloat(name, math.Float32frombits(uint32(v))), nil
	case TagDouble:
		v, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return NewDouble(name, math.Float64frombits(uint64(v))), nil
	case TagByteArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.Grow(min(n, maxPrealloc))
		if _, err := io.CopyN(&buf, d.r, int64(n)); err != nil {
			return nil, eof(err)
		}
		return NewByteArray(name, buf.Bytes()), nil
	case TagString:
		s, err := d.readString()
		if err != nil {
			return nil, eof(err)
		}
		return NewString(name, s), nil
	case TagIntArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		values := make([]int32, 0, min(n, maxPrealloc))
		for i := 0; i < n; i++ {
			v, err := d.readInt32()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return NewIntArray(name, values), nil
	case TagLongArray:
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		values := make([]int64, 0, min(n, maxPrealloc))
		for i := 0; i < n; i++ {
			v, err := d.readInt64()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return NewLongArray(name, values), nil
	case TagList:
		elem, err := d.readByte()
		if err != nil {
			return nil, eof(err)
		}
		if !TagType(elem).Valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownTag, elem)
		}
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		if TagType(elem) == TagEnd && n > 0 {
			return nil, fmt.Errorf("%w: list of End with %d items", ErrListType, n)
		}
		list := NewList(name, TagType(elem))
		list.Items = make([]Tag, 0, min(n, maxPrealloc))
		for i := 0; i < n; i++ {
			item, err := d.readPayload(TagType(elem), "", depth+1)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
		}
		return list, nil
	case TagCompound:
		compound := NewCompound(name)
		for {
			t, err := d.readByte()
			if err != nil {
				return nil, eof(err)
			}
			if TagType(t) == TagEnd {
				return compound, nil
			}
			childName, err := d.readString()
			if err != nil {
				return nil, eof(err)
			}
			child, err := d.readPayload(TagType(t), childName, depth+1)
			if err != nil {
				return nil, err
			}
			compound.Set(child)
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownTag, byte(typ))
}

func (d *Decoder) read(n int) error {
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		return eof(err)
	}
	return nil
}

func (d *Decoder) readByte() (byte, error) {
	if _, err := io.ReadFull(d.r, d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *Decoder) readInt32() (int32, error) {
	if err := d.read(4); err != nil {
		return 0, err
	}
	return int32(d.order.Uint32(d.buf[:4])), nil
}

func (d *Decoder) readInt64() (int64, error) {
	if err := d.read(8); err != nil {
		return 0, err
	}
	return int64(d.order.Uint64(d.buf[:8])), nil
}

func (d *Decoder) readLength() (int, error) {
	n, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeLength, n)
	}
	return int(n), nil
}

func (d *Decoder) readString() (string, error) {
	if err := d.read(2); err != nil {
		return "", err
	}
	n := int(d.order.Uint16(d.buf[:2]))
	if n == 0 {
		return "", nil
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return "", eof(err)
	}
	return string(data), nil
}

// eof превращает io.EOF внутри тега в io.ErrUnexpectedEOF
func eof(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
