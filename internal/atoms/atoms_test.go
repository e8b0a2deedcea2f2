package atoms

import "testing"

// Every table field must be wired to an intern entry with a unique name, and
// Static must populate all of them with distinct values. Catches a field
// added to the struct but missing from entries (or the reverse).
func TestStaticPopulatesEveryEntry(t *testing.T) {
	tab := Static()

	names := map[string]bool{}
	for _, e := range tab.entries() {
		if names[e.name] {
			t.Fatalf("duplicate intern name %q", e.name)
		}
		names[e.name] = true
		if *e.dst == 0 {
			t.Fatalf("entry %q left unpopulated", e.name)
		}
	}

	seen := map[uint32]string{}
	for _, e := range tab.entries() {
		if prev, ok := seen[uint32(*e.dst)]; ok {
			t.Fatalf("atoms %q and %q collide", prev, e.name)
		}
		seen[uint32(*e.dst)] = e.name
	}
}

func TestHintAtomsPresent(t *testing.T) {
	tab := Static()
	if tab.WMHints == 0 || tab.WMNormalHints == 0 {
		t.Fatal("hint atoms missing from the table")
	}
	if tab.WMHints == tab.WMNormalHints {
		t.Fatal("hint atoms collide")
	}
}

func TestSupportedListNonZero(t *testing.T) {
	tab := Static()
	for i, a := range tab.Supported() {
		if a == 0 {
			t.Fatalf("supported[%d] is zero", i)
		}
	}
}
