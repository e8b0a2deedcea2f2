package ds

const (
	mapMinCap     = 16
	mapMaxLoadNum = 7
	mapMaxLoadDen = 10
)

type mapEntry[V any] struct {
	key   uint64
	value V
	live  bool
}

// Map is an open-addressing uint64 -> V map with linear probing and
// backshift deletion (no tombstones). Key 0 is reserved for "empty" and must
// never be inserted; X resource ids and packed (window, atom) keys are never
// zero in practice.
//
// Probe invariant: every live key is reachable from its home slot by walking
// forward without crossing an empty slot. Backshift deletion preserves it.
type Map[V any] struct {
	entries []mapEntry[V]
	size    int
}

func NewMap[V any]() *Map[V] {
	return &Map[V]{}
}

func (m *Map[V]) Len() int { return m.size }

func (m *Map[V]) home(key uint64) int {
	// Fibonacci hashing spreads dense resource ids across the table.
	return int((key * 0x9E3779B97F4A7C15) >> 32 & uint64(len(m.entries)-1))
}

func (m *Map[V]) probe(key uint64) int {
	i := m.home(key)
	mask := len(m.entries) - 1
	for m.entries[i].live && m.entries[i].key != key {
		i = (i + 1) & mask
	}
	return i
}

func (m *Map[V]) grow(newCap int) {
	old := m.entries
	if newCap < mapMinCap {
		newCap = mapMinCap
	}
	m.entries = make([]mapEntry[V], newCap)
	m.size = 0
	for i := range old {
		if old[i].live {
			idx := m.probe(old[i].key)
			m.entries[idx] = old[i]
			m.size++
		}
	}
}

// Put inserts or overwrites. key must be non-zero.
func (m *Map[V]) Put(key uint64, value V) {
	if key == 0 {
		panic("ds.Map: zero key is reserved")
	}
	if len(m.entries) == 0 || (m.size+1)*mapMaxLoadDen >= len(m.entries)*mapMaxLoadNum {
		next := len(m.entries) * 2
		if next == 0 {
			next = mapMinCap
		}
		m.grow(next)
	}

	i := m.probe(key)
	if !m.entries[i].live {
		m.size++
	}
	m.entries[i] = mapEntry[V]{key: key, value: value, live: true}
}

func (m *Map[V]) Get(key uint64) (V, bool) {
	var zero V
	if key == 0 || len(m.entries) == 0 {
		return zero, false
	}
	i := m.probe(key)
	if !m.entries[i].live {
		return zero, false
	}
	return m.entries[i].value, true
}

func (m *Map[V]) Has(key uint64) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key if present, backshifting the following cluster so probe
// chains stay intact.
func (m *Map[V]) Delete(key uint64) bool {
	if key == 0 || len(m.entries) == 0 {
		return false
	}
	i := m.probe(key)
	if !m.entries[i].live {
		return false
	}

	mask := len(m.entries) - 1
	m.entries[i] = mapEntry[V]{}
	m.size--

	hole := i
	j := (i + 1) & mask
	for m.entries[j].live {
		home := m.home(m.entries[j].key)

		var move bool
		if home <= j {
			move = home <= hole && hole < j
		} else {
			move = hole < j || home <= hole
		}

		if move {
			m.entries[hole] = m.entries[j]
			m.entries[j] = mapEntry[V]{}
			hole = j
		}
		j = (j + 1) & mask
	}
	return true
}

// Range calls fn for each live entry until fn returns false. Mutating the map
// during Range is not supported.
func (m *Map[V]) Range(fn func(key uint64, value V) bool) {
	for i := range m.entries {
		if m.entries[i].live {
			if !fn(m.entries[i].key, m.entries[i].value) {
				return
			}
		}
	}
}

// Clear removes all entries but keeps capacity for the next tick.
func (m *Map[V]) Clear() {
	clear(m.entries)
	m.size = 0
}
