package vec

import "math"

// Vec2 представляет 2D координаты блока на плоскости X/Z
type Vec2 struct {
	X, Z int
}

// ToChunkCoords преобразует глобальные координаты в координаты чанка
func (v Vec2) ToChunkCoords() Vec2 {
	return Vec2{X: v.X >> 4, Z: v.Z >> 4} // Деление на 16
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec2) LocalInChunk() Vec2 {
	return Vec2{X: v.X & 0xF, Z: v.Z & 0xF} // Модуль 16
}

// ChunkCoords возвращает координаты чанка, содержащего блок.
// ok == false, если координаты чанка не помещаются в int32.
func (v Vec2) ChunkCoords() (x, z int32, ok bool) {
	c := v.ToChunkCoords()
	if !fitsInt32(c.X) || !fitsInt32(c.Z) {
		return 0, 0, false
	}
	return int32(c.X), int32(c.Z), true
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dz*dz)
}

func fitsInt32(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}
