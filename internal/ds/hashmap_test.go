package ds

import (
	"math/rand"
	"testing"
)

// checkProbeInvariant verifies that every live key is reachable by linear
// probe from its home slot without crossing an empty slot.
func checkProbeInvariant(t *testing.T, m *Map[int]) {
	t.Helper()
	mask := len(m.entries) - 1
	for i := range m.entries {
		if !m.entries[i].live {
			continue
		}
		j := m.home(m.entries[i].key)
		for j != i {
			if !m.entries[j].live {
				t.Fatalf("key %d at slot %d unreachable: empty slot %d in probe path from home %d",
					m.entries[i].key, i, j, m.home(m.entries[i].key))
			}
			j = (j + 1) & mask
		}
	}
}

func TestMapPutGetDelete(t *testing.T) {
	m := NewMap[int]()

	for i := uint64(1); i <= 100; i++ {
		m.Put(i, int(i*10))
	}
	if m.Len() != 100 {
		t.Fatalf("expected 100 entries, got %d", m.Len())
	}

	v, ok := m.Get(42)
	if !ok || v != 420 {
		t.Fatalf("Get(42) = %d, %v", v, ok)
	}

	if !m.Delete(42) {
		t.Fatal("Delete(42) reported missing")
	}
	if m.Delete(42) {
		t.Fatal("second Delete(42) reported present")
	}
	if _, ok := m.Get(42); ok {
		t.Fatal("Get(42) after delete succeeded")
	}
	checkProbeInvariant(t, m)
}

func TestMapOverwrite(t *testing.T) {
	m := NewMap[int]()
	m.Put(7, 1)
	m.Put(7, 2)
	if m.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", m.Len())
	}
	if v, _ := m.Get(7); v != 2 {
		t.Fatalf("expected overwrite to 2, got %d", v)
	}
}

func TestMapBackshiftChurn(t *testing.T) {
	// Random insert/delete churn at several capacities; the probe invariant
	// must hold after every deletion.
	for _, n := range []int{2, 16, 1024} {
		m := NewMap[int]()
		rng := rand.New(rand.NewSource(int64(n)))
		live := map[uint64]int{}

		for op := 0; op < n*20; op++ {
			if rng.Intn(3) != 0 {
				k := uint64(rng.Intn(n*2) + 1)
				m.Put(k, op)
				live[k] = op
			} else {
				k := uint64(rng.Intn(n*2) + 1)
				delete(live, k)
				m.Delete(k)
			}
		}
		checkProbeInvariant(t, m)

		if m.Len() != len(live) {
			t.Fatalf("n=%d: size %d, want %d", n, m.Len(), len(live))
		}
		for k, v := range live {
			got, ok := m.Get(k)
			if !ok || got != v {
				t.Fatalf("n=%d: Get(%d) = %d, %v; want %d", n, k, got, ok, v)
			}
		}
	}
}

func TestMapGrowthLarge(t *testing.T) {
	m := NewMap[int]()
	const n = 120_000
	for i := uint64(1); i <= n; i++ {
		m.Put(i, int(i))
	}
	if m.Len() != n {
		t.Fatalf("expected %d entries, got %d", n, m.Len())
	}
	checkProbeInvariant(t, m)
	for _, k := range []uint64{1, n / 2, n} {
		if v, ok := m.Get(k); !ok || v != int(k) {
			t.Fatalf("Get(%d) = %d, %v", k, v, ok)
		}
	}
}

func TestMapClearKeepsCapacity(t *testing.T) {
	m := NewMap[int]()
	for i := uint64(1); i <= 50; i++ {
		m.Put(i, 0)
	}
	capBefore := len(m.entries)
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("expected empty map, got %d", m.Len())
	}
	if len(m.entries) != capBefore {
		t.Fatalf("Clear changed capacity %d -> %d", capBefore, len(m.entries))
	}
	if m.Has(3) {
		t.Fatal("Has(3) after Clear")
	}
}
