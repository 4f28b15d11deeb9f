package chunk

import "fmt"

// KeyLayoutVersion версия раскладки упакованного ключа.
// Любое изменение Pack/Unpack обязано увеличить версию: ключи попадают на диск.
const KeyLayoutVersion = 1

// Pack упаковывает координаты чанка в 64-битный ключ.
// Старшие 32 бита — x, младшие 32 бита — z как беззнаковое значение.
// Раскладка совпадает с хешем чанка хоста.
func Pack(x, z int32) int64 {
	return int64(x)<<32 | int64(uint32(z))
}

// Unpack обратная к Pack функция. Любой int64 раскладывается в какую-то пару.
func Unpack(key int64) (x, z int32) {
	return int32(key >> 32), int32(key)
}

// Coord координаты чанка в мире
type Coord struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

// CoordOf восстанавливает координаты из ключа
func CoordOf(key int64) Coord {
	x, z := Unpack(key)
	return Coord{X: x, Z: z}
}

// Key возвращает упакованный ключ
func (c Coord) Key() int64 {
	return Pack(c.X, c.Z)
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}
