package nbt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Marshal кодирует корневой тег без сжатия
func Marshal(tag Tag, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, order).Encode(tag); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal декодирует корневой тег без сжатия
func Unmarshal(data []byte, order binary.ByteOrder) (Tag, error) {
	return NewDecoder(bytes.NewReader(data), order).Decode()
}

// MarshalCompressed кодирует тег и сжимает его gzip, как это делает хост
// для файлов сохранений
func MarshalCompressed(tag Tag, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := NewEncoder(gz, order).Encode(tag); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("nbt: gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalCompressed распаковывает gzip и декодирует тег
func UnmarshalCompressed(data []byte, order binary.ByteOrder) (Tag, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("nbt: gzip: %w", err)
	}
	defer gz.Close()
	return NewDecoder(gz, order).Decode()
}

// UnmarshalAuto определяет сжатие по сигнатуре gzip
func UnmarshalAuto(data []byte, order binary.ByteOrder) (Tag, error) {
	if IsCompressed(data) {
		return UnmarshalCompressed(data, order)
	}
	return Unmarshal(data, order)
}

// IsCompressed проверяет сигнатуру gzip
func IsCompressed(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// ReadFile читает тег из потока, автоматически распознавая сжатие
func ReadFile(r io.Reader, order binary.ByteOrder) (Tag, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalAuto(data, order)
}
