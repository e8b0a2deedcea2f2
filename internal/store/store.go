// Package store provides a handle-based object store: records live behind
// (generation, index) handles so indices can be reused without old references
// silently resolving into new occupants. Handles are the only cross-component
// reference in the window manager; pointers into the store must not be held
// across operations that can allocate or free slots.
package store

import "fmt"

// Handle packs a slot index in the low 32 bits and a generation in the high
// 32 bits. The zero Handle is invalid.
type Handle uint64

const Invalid Handle = 0

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) Index() uint32      { return uint32(h) }
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

func (h Handle) String() string {
	if h == Invalid {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d.%d)", h.Index(), h.Generation())
}

type slotHeader struct {
	generation uint32
	nextFree   uint32
	live       bool
}

// Store owns one Hot and one Cold record per live handle. Hot holds the
// fields the per-tick whole-store scan touches; Cold holds strings and
// decoded protocol lists. Both share the slot's lifetime.
//
// Freeing a stale or already-freed handle is a safe no-op: asynchronous
// replies may legally outlive the window they were issued for.
type Store[Hot, Cold any] struct {
	headers  []slotHeader
	hot      []Hot
	cold     []Cold
	freeHead uint32
	live     int
}

// New creates a store with the given initial capacity. Slot 0 is reserved so
// the zero Handle never resolves.
func New[Hot, Cold any](capacity uint32) *Store[Hot, Cold] {
	if capacity < 2 {
		capacity = 2
	}
	s := &Store[Hot, Cold]{
		headers: make([]slotHeader, capacity),
		hot:     make([]Hot, capacity),
		cold:    make([]Cold, capacity),
	}
	for i := uint32(1); i < capacity; i++ {
		s.headers[i].generation = 1
		if i+1 < capacity {
			s.headers[i].nextFree = i + 1
		}
	}
	s.freeHead = 1
	return s
}

// Len reports the number of live records.
func (s *Store[Hot, Cold]) Len() int { return s.live }

// Cap reports the slot capacity, for capacity-indexed iteration.
func (s *Store[Hot, Cold]) Cap() uint32 { return uint32(len(s.headers)) }

// Alloc reserves a slot and returns its handle together with pointers to the
// zeroed hot and cold records. Growth never invalidates existing handles.
func (s *Store[Hot, Cold]) Alloc() (Handle, *Hot, *Cold) {
	if s.freeHead == 0 {
		s.grow()
	}

	idx := s.freeHead
	hdr := &s.headers[idx]
	s.freeHead = hdr.nextFree
	hdr.nextFree = 0
	hdr.live = true
	s.live++

	var zeroHot Hot
	var zeroCold Cold
	s.hot[idx] = zeroHot
	s.cold[idx] = zeroCold

	return makeHandle(idx, hdr.generation), &s.hot[idx], &s.cold[idx]
}

func (s *Store[Hot, Cold]) grow() {
	oldCap := uint32(len(s.headers))
	newCap := oldCap * 2

	headers := make([]slotHeader, newCap)
	hot := make([]Hot, newCap)
	cold := make([]Cold, newCap)
	copy(headers, s.headers)
	copy(hot, s.hot)
	copy(cold, s.cold)
	s.headers, s.hot, s.cold = headers, hot, cold

	for i := oldCap; i < newCap; i++ {
		s.headers[i].generation = 1
		if i+1 < newCap {
			s.headers[i].nextFree = i + 1
		}
	}
	s.freeHead = oldCap
}

// Free releases the slot behind h. The generation is bumped so outstanding
// copies of h go stale. No-op for invalid, stale or already-freed handles.
func (s *Store[Hot, Cold]) Free(h Handle) {
	idx := h.Index()
	if idx == 0 || idx >= uint32(len(s.headers)) {
		return
	}
	hdr := &s.headers[idx]
	if !hdr.live || hdr.generation != h.Generation() {
		return
	}

	hdr.live = false
	hdr.generation++
	hdr.nextFree = s.freeHead
	s.freeHead = idx
	s.live--
}

// Live reports whether h refers to a currently allocated slot.
func (s *Store[Hot, Cold]) Live(h Handle) bool {
	idx := h.Index()
	if idx == 0 || idx >= uint32(len(s.headers)) {
		return false
	}
	hdr := &s.headers[idx]
	return hdr.live && hdr.generation == h.Generation()
}

// Hot returns the hot record for h, or nil if h is stale.
func (s *Store[Hot, Cold]) Hot(h Handle) *Hot {
	if !s.Live(h) {
		return nil
	}
	return &s.hot[h.Index()]
}

// Cold returns the cold record for h, or nil if h is stale.
func (s *Store[Hot, Cold]) Cold(h Handle) *Cold {
	if !s.Live(h) {
		return nil
	}
	return &s.cold[h.Index()]
}

// HandleAt returns the live handle occupying slot idx, or Invalid.
func (s *Store[Hot, Cold]) HandleAt(idx uint32) Handle {
	if idx == 0 || idx >= uint32(len(s.headers)) || !s.headers[idx].live {
		return Invalid
	}
	return makeHandle(idx, s.headers[idx].generation)
}

// ForEach visits every live record in ascending slot order. fn may free the
// visited handle or allocate new slots; records freed mid-iteration are
// skipped, never dereferenced.
func (s *Store[Hot, Cold]) ForEach(fn func(h Handle, hot *Hot, cold *Cold)) {
	for idx := uint32(1); idx < uint32(len(s.headers)); idx++ {
		h := s.HandleAt(idx)
		if h == Invalid {
			continue
		}
		fn(h, &s.hot[idx], &s.cold[idx])
	}
}
