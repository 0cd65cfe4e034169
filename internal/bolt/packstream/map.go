package packstream

// Map is an insertion-ordered string-keyed map. PackStream serialization is order-sensitive:
// encoding must reproduce the order entries were inserted. A Map never holds duplicate keys,
// because Set overwrites an existing key in place, so encoding cannot emit one. Decoding applies
// last-wins for duplicate keys on the wire, matching the wire format's permissiveness.
type Map struct {
	keys   []string
	values map[string]interface{}
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{values: make(map[string]interface{})}
}

// Set inserts or updates key. Updating an existing key keeps its original position.
func (m *Map) Set(key string, value interface{}) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key string) (interface{}, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. Callers must not mutate the returned slice.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Equal reports whether m and other have the same keys, in the same order, with equal values
// as compared by ValueEqual.
func (m *Map) Equal(other *Map) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.keys) != len(other.keys) {
		return false
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		if !ValueEqual(m.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

// Range calls fn for each entry in insertion order. Iteration stops early if fn returns false.
func (m *Map) Range(fn func(key string, value interface{}) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}
