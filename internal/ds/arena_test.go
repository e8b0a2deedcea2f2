package ds

import "testing"

func TestArenaAllocAndReset(t *testing.T) {
	a := NewArena()

	b1 := a.Alloc(100)
	if len(b1) != 100 {
		t.Fatalf("Alloc(100) returned len %d", len(b1))
	}
	for i := range b1 {
		b1[i] = 0xFF
	}

	a.Reset()

	b2 := a.Alloc(100)
	for i, v := range b2 {
		if v != 0 {
			t.Fatalf("byte %d not zeroed after reset: %#x", i, v)
		}
	}
}

func TestArenaResetKeepsBlocks(t *testing.T) {
	a := NewArena()
	a.Alloc(1024)
	capBefore := a.Cap()
	a.Reset()
	if a.Cap() != capBefore {
		t.Fatalf("Reset released blocks: %d -> %d", capBefore, a.Cap())
	}
	a.Alloc(1024)
	if a.Cap() != capBefore {
		t.Fatalf("post-reset alloc grew arena: %d -> %d", capBefore, a.Cap())
	}
}

func TestArenaLargeAlloc(t *testing.T) {
	a := NewArena()
	b := a.Alloc(arenaBlockSize * 2)
	if len(b) != arenaBlockSize*2 {
		t.Fatalf("oversized alloc returned len %d", len(b))
	}
}

func TestArenaCopyString(t *testing.T) {
	a := NewArena()
	s := a.CopyString("hello")
	if s != "hello" {
		t.Fatalf("CopyString = %q", s)
	}
	if a.CopyString("") != "" {
		t.Fatal("CopyString(\"\") != \"\"")
	}
}
