package value

import "github.com/dartleaf/miniscript/internal/errs"

// IsaKey is the map entry that names a map's prototype.
const IsaKey = "__isa"

// Map is a mutable, insertion-ordered mapping with value-identity keys.
// Keys hash by identity (numbers by bits, strings by text, lists
// recursively, maps and functions by object), and an entry chain under
// each hash resolves collisions.
type Map struct {
	id      uint64
	ord     []Value           // keys in insertion order
	buckets map[uint64][]mapEntry

	// AssignOverride, when set, intercepts script assignments into the
	// map. A true result means the assignment was handled (or refused)
	// and the normal store is skipped.
	AssignOverride func(key, value Value) (bool, error)
}

type mapEntry struct {
	key   Value
	value Value
}

func NewMap() *Map {
	return &Map{id: newRefID(), buckets: make(map[uint64][]mapEntry)}
}

func (m *Map) Len() int {
	return len(m.ord)
}

// Keys returns the keys in insertion order. The slice is shared; callers
// must not mutate it.
func (m *Map) Keys() []Value {
	return m.ord
}

// Get finds key in this map only (no __isa walk).
func (m *Map) Get(key Value) (Value, bool) {
	h := identityHash(key, nil)
	for _, e := range m.buckets[h] {
		if Identical(e.key, key) {
			return e.value, true
		}
	}
	return Value{}, false
}

// GetString is Get with a string key, the common case for identifier
// lookups.
func (m *Map) GetString(key string) (Value, bool) {
	return m.Get(NewString(key))
}

// Lookup finds key in this map or anywhere up its __isa chain. The walk
// is capped at MaxIsaDepth so cyclic chains fail instead of spinning.
func (m *Map) Lookup(key Value) (Value, bool, error) {
	cur := m
	for depth := 0; cur != nil; depth++ {
		if depth > MaxIsaDepth {
			return Value{}, false, errs.NewLimitExceeded("__isa depth exceeded (perhaps a reference loop?)")
		}
		if v, ok := cur.Get(key); ok {
			return v, true, nil
		}
		isa, ok := cur.GetString(IsaKey)
		if !ok || isa.Kind != KindMap {
			return Value{}, false, nil
		}
		cur = isa.Map
	}
	return Value{}, false, nil
}

// Set stores key→value directly, bypassing any AssignOverride.
func (m *Map) Set(key, value Value) {
	h := identityHash(key, nil)
	chain := m.buckets[h]
	for i, e := range chain {
		if Identical(e.key, key) {
			chain[i].value = value
			return
		}
	}
	m.buckets[h] = append(chain, mapEntry{key: key, value: value})
	m.ord = append(m.ord, key)
}

// SetString is Set with a string key.
func (m *Map) SetString(key string, value Value) {
	m.Set(NewString(key), value)
}

// Assign stores key→value on behalf of running script code, honoring the
// AssignOverride callback.
func (m *Map) Assign(key, value Value) error {
	if m.AssignOverride != nil {
		handled, err := m.AssignOverride(key, value)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	m.Set(key, value)
	return nil
}

// Remove deletes key from this map only. Reports whether it was present.
func (m *Map) Remove(key Value) bool {
	h := identityHash(key, nil)
	chain := m.buckets[h]
	for i, e := range chain {
		if Identical(e.key, key) {
			m.buckets[h] = append(chain[:i], chain[i+1:]...)
			for j, k := range m.ord {
				if Identical(k, key) {
					m.ord = append(m.ord[:j], m.ord[j+1:]...)
					break
				}
			}
			return true
		}
	}
	return false
}

// IsA walks the __isa chain of m looking for target.
func (m *Map) IsA(target *Map) (bool, error) {
	cur := m
	for depth := 0; cur != nil; depth++ {
		if depth > MaxIsaDepth {
			return false, errs.NewLimitExceeded("__isa depth exceeded (perhaps a reference loop?)")
		}
		if cur == target {
			return true, nil
		}
		isa, ok := cur.GetString(IsaKey)
		if !ok || isa.Kind != KindMap {
			return false, nil
		}
		cur = isa.Map
	}
	return false, nil
}

// ShallowClone copies the entries (not the values they reference) into a
// fresh map.
func (m *Map) ShallowClone() *Map {
	out := NewMap()
	for _, k := range m.ord {
		v, _ := m.Get(k)
		out.Set(k, v)
	}
	return out
}
