// Package jar correlates in-flight asynchronous protocol requests with their
// eventual answers. Every request with a reply gets a slot keyed by its wire
// sequence number; completions are posted with Ready and delivered by Drain
// on the tick goroutine. Each slot's handler runs exactly once, with exactly
// one of: a reply, a protocol error, or neither (timeout).
package jar

import (
	"log/slog"
	"time"

	"github.com/stratawm/strata/internal/store"
)

// Kind tags what request a cookie belongs to, so a shared dispatch handler
// knows how to interpret the payload.
type Kind uint8

const (
	KindNone Kind = iota
	KindGetAttributes
	KindGetGeometry
	KindGetProperty
	KindQueryTree
	KindQueryPointer
)

// Slot is the bookkeeping for one outstanding request. Data carries
// kind-specific context (for property fetches, the packed window and atom).
type Slot struct {
	Sequence uint32
	Kind     Kind
	Client   store.Handle
	Data     uint64
	Enqueued time.Time
}

// Handler consumes the answer for a slot. reply and err are never both
// non-nil; both nil means the cookie timed out and the operation must be
// treated as failed, not retried.
type Handler func(slot Slot, reply any, err error)

type jarSlot struct {
	Slot
	handler Handler
	reply   any
	err     error
	ready   bool
	live    bool
}

const (
	jarMinCap     = 16
	jarMaxLoadNum = 7
	jarMaxLoadDen = 10
)

// Jar is an open-addressing table (power-of-two capacity, linear probing,
// backshift deletion) owned exclusively by the tick goroutine.
type Jar struct {
	slots   []jarSlot
	live    int
	cursor  int
	timeout time.Duration

	now func() time.Time
}

func New(timeout time.Duration) *Jar {
	return &Jar{
		slots:   make([]jarSlot, jarMinCap),
		timeout: timeout,
		now:     time.Now,
	}
}

// Pending reports the number of live cookies.
func (j *Jar) Pending() int { return j.live }

func (j *Jar) home(seq uint32, mask int) int {
	return int(seq) & mask
}

func (j *Jar) probe(seq uint32) int {
	mask := len(j.slots) - 1
	i := j.home(seq, mask)
	for j.slots[i].live && j.slots[i].Sequence != seq {
		i = (i + 1) & mask
	}
	return i
}

func (j *Jar) grow(newCap int) {
	old := j.slots
	j.slots = make([]jarSlot, newCap)
	j.live = 0
	j.cursor = 0
	for i := range old {
		if !old[i].live {
			continue
		}
		idx := j.probe(old[i].Sequence)
		j.slots[idx] = old[i]
		j.live++
	}
}

// Push registers interest in the reply for seq. Pushing a sequence that is
// already live overwrites its metadata (the old handler is dropped without
// running). seq must be non-zero.
func (j *Jar) Push(seq uint32, kind Kind, client store.Handle, data uint64, handler Handler) {
	if seq == 0 {
		slog.Warn("Dropping cookie with zero sequence", "kind", kind)
		return
	}
	if (j.live+1)*jarMaxLoadDen >= len(j.slots)*jarMaxLoadNum {
		j.grow(len(j.slots) * 2)
	}

	i := j.probe(seq)
	if !j.slots[i].live {
		j.live++
	}
	j.slots[i] = jarSlot{
		Slot: Slot{
			Sequence: seq,
			Kind:     kind,
			Client:   client,
			Data:     data,
			Enqueued: j.now(),
		},
		handler: handler,
		live:    true,
	}
}

// Ready marks the cookie for seq as answered. Exactly one of reply and err
// may be non-nil. Answers for unknown sequences (already expired or never
// registered) are dropped.
func (j *Jar) Ready(seq uint32, reply any, err error) bool {
	if seq == 0 {
		return false
	}
	i := j.probe(seq)
	if !j.slots[i].live {
		slog.Debug("Dropping answer for unknown cookie", "sequence", seq)
		return false
	}
	j.slots[i].reply = reply
	j.slots[i].err = err
	j.slots[i].ready = true
	return true
}

// remove clears slot i and backshifts the following cluster so every
// remaining key stays reachable by linear probe from its home slot.
func (j *Jar) remove(i int) {
	mask := len(j.slots) - 1
	j.slots[i] = jarSlot{}
	j.live--

	hole := i
	k := (i + 1) & mask
	for j.slots[k].live {
		home := j.home(j.slots[k].Sequence, mask)

		var move bool
		if home <= k {
			move = home <= hole && hole < k
		} else {
			move = hole < k || home <= hole
		}

		if move {
			j.slots[hole] = j.slots[k]
			j.slots[k] = jarSlot{}
			hole = k
		}
		k = (k + 1) & mask
	}
}

// Drain invokes handlers for up to maxReplies ready slots and expires slots
// older than the timeout (their handlers run with neither reply nor error).
// Work per call is bounded by the table capacity regardless of how many
// answers are pending; the persistent cursor makes repeated bounded calls
// fair. The slot is released before its handler runs, so handlers may
// re-enter Push freely.
func (j *Jar) Drain(maxReplies int) int {
	if j.live == 0 || maxReplies <= 0 {
		return 0
	}

	processed := 0
	scanned := 0
	budget := len(j.slots)
	idx := j.cursor
	now := j.now()

	for scanned < budget && processed < maxReplies && j.live > 0 {
		if idx >= len(j.slots) {
			idx = 0
		}
		s := &j.slots[idx]

		if s.live && s.ready {
			local := *s
			j.remove(idx)
			if local.handler != nil {
				local.handler(local.Slot, local.reply, local.err)
			}
			processed++
			// A handler may push and grow the table; stay in bounds.
			if idx >= len(j.slots) {
				idx = 0
			}
			continue
		}

		if s.live && j.timeout > 0 && now.Sub(s.Enqueued) > j.timeout {
			local := *s
			j.remove(idx)
			slog.Warn("Cookie timed out", "sequence", local.Sequence, "kind", local.Kind)
			if local.handler != nil {
				local.handler(local.Slot, nil, nil)
			}
			processed++
			if idx >= len(j.slots) {
				idx = 0
			}
			continue
		}

		idx = (idx + 1) % len(j.slots)
		scanned++
	}

	j.cursor = idx % len(j.slots)
	return processed
}
