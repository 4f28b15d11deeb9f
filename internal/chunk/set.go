package chunk

import "sort"

// Set именованный набор координат чанков без повторов.
// Например, чанки мира, которые должны оставаться загруженными.
//
// Set не синхронизирован: владелец обязан сам сериализовать доступ
// из разных горутин (см. world.Registry).
type Set struct {
	name string
	keys map[int64]struct{}
}

// NewSet создаёт набор с именем мира и, опционально, начальными ключами
func NewSet(name string, keys ...int64) *Set {
	s := &Set{name: name}
	s.ReplaceAll(keys)
	return s
}

// Name возвращает имя мира
func (s *Set) Name() string {
	return s.name
}

// SetName меняет имя мира
func (s *Set) SetName(name string) {
	s.name = name
}

// Len возвращает количество чанков
func (s *Set) Len() int {
	return len(s.keys)
}

// Keys возвращает все упакованные ключи в произвольном порядке
func (s *Set) Keys() []int64 {
	keys := make([]int64, 0, len(s.keys))
	for key := range s.keys {
		keys = append(keys, key)
	}
	return keys
}

// sortedKeys возвращает ключи по возрастанию
func (s *Set) sortedKeys() []int64 {
	keys := s.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Coords возвращает координаты, отсортированные по упакованному ключу
func (s *Set) Coords() []Coord {
	keys := s.sortedKeys()
	coords := make([]Coord, len(keys))
	for i, key := range keys {
		coords[i] = CoordOf(key)
	}
	return coords
}

// ReplaceAll очищает набор и заполняет его заново.
// Каждый ключ раскладывается в координаты и добавляется через Add,
// поэтому дубликаты схлопываются.
func (s *Set) ReplaceAll(keys []int64) {
	s.keys = make(map[int64]struct{}, len(keys))
	for _, key := range keys {
		s.Add(Unpack(key))
	}
}

// Add добавляет чанк. Возвращает false, если он уже есть.
func (s *Set) Add(x, z int32) bool {
	key := Pack(x, z)
	if _, exists := s.keys[key]; exists {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Remove удаляет чанк. Возвращает false, если его не было.
func (s *Set) Remove(x, z int32) bool {
	key := Pack(x, z)
	if _, exists := s.keys[key]; !exists {
		return false
	}
	delete(s.keys, key)
	return true
}

// Exists проверяет наличие чанка
func (s *Set) Exists(x, z int32) bool {
	_, exists := s.keys[Pack(x, z)]
	return exists
}

// Clone возвращает независимую копию
func (s *Set) Clone() *Set {
	c := &Set{name: s.name, keys: make(map[int64]struct{}, len(s.keys))}
	for key := range s.keys {
		c.keys[key] = struct{}{}
	}
	return c
}

// Equal сравнивает имя и состав наборов без учёта порядка
func (s *Set) Equal(other *Set) bool {
	if other == nil || s.name != other.name || len(s.keys) != len(other.keys) {
		return false
	}
	for key := range s.keys {
		if _, ok := other.keys[key]; !ok {
			return false
		}
	}
	return true
}
