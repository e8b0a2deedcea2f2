// Package ds holds the small allocation-conscious containers the tick loop
// is built on: a per-tick arena, an open-addressing hash map and a small
// vector with inline storage.
package ds

const arenaBlockSize = 64 * 1024

type arenaBlock struct {
	buf  []byte
	used int
}

// Arena is a bump allocator for per-tick scratch memory. Reset invalidates
// everything handed out in O(1) without returning blocks to the runtime, so
// steady-state ticks allocate nothing.
type Arena struct {
	blocks  []arenaBlock
	current int
}

func NewArena() *Arena {
	return &Arena{}
}

// Alloc returns a zeroed byte slice of length n valid until the next Reset.
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}

	for a.current < len(a.blocks) {
		b := &a.blocks[a.current]
		if b.used+n <= len(b.buf) {
			out := b.buf[b.used : b.used+n : b.used+n]
			b.used += n
			clear(out)
			return out
		}
		a.current++
	}

	size := arenaBlockSize
	if n > size {
		size = n
	}
	a.blocks = append(a.blocks, arenaBlock{buf: make([]byte, size)})
	a.current = len(a.blocks) - 1

	b := &a.blocks[a.current]
	out := b.buf[:n:n]
	b.used = n
	clear(out)
	return out
}

// CopyString copies s into the arena so the original backing memory (often a
// protocol reply buffer) can be released.
func (a *Arena) CopyString(s string) string {
	if s == "" {
		return ""
	}
	buf := a.Alloc(len(s))
	copy(buf, s)
	return string(buf)
}

// Reset forgets all outstanding allocations but keeps the blocks.
func (a *Arena) Reset() {
	for i := range a.blocks {
		a.blocks[i].used = 0
	}
	a.current = 0
}

// Cap reports the total backing capacity in bytes.
func (a *Arena) Cap() int {
	total := 0
	for i := range a.blocks {
		total += len(a.blocks[i].buf)
	}
	return total
}
