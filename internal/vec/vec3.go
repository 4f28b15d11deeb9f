package vec

// Vec3 представляет позицию блока в мире (Y — высота)
type Vec3 struct {
	X int
	Y int
	Z int
}

// ToVec2 проецирует позицию на плоскость X/Z
func (v Vec3) ToVec2() Vec2 {
	return Vec2{
		X: v.X,
		Z: v.Z,
	}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}
