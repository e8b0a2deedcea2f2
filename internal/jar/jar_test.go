package jar

import (
	"testing"
	"time"

	"github.com/stratawm/strata/internal/store"
)

func checkProbeInvariant(t *testing.T, j *Jar) {
	t.Helper()
	mask := len(j.slots) - 1
	for i := range j.slots {
		if !j.slots[i].live {
			continue
		}
		k := j.home(j.slots[i].Sequence, mask)
		for k != i {
			if !j.slots[k].live {
				t.Fatalf("sequence %d at slot %d unreachable from home %d (empty slot %d)",
					j.slots[i].Sequence, i, j.home(j.slots[i].Sequence, mask), k)
			}
			k = (k + 1) & mask
		}
	}
}

func TestPushDrainScenario(t *testing.T) {
	j := New(5 * time.Second)
	h := store.Handle(0x100000001)

	calls := 0
	var gotSlot Slot
	var gotReply any
	var gotErr error

	j.Push(42, KindGetGeometry, h, 0, func(slot Slot, reply any, err error) {
		calls++
		gotSlot, gotReply, gotErr = slot, reply, err
	})

	// Drain before the answer arrives: handler must not fire.
	if n := j.Drain(64); n != 0 {
		t.Fatalf("Drain before ready processed %d", n)
	}
	if calls != 0 {
		t.Fatalf("handler ran early (%d calls)", calls)
	}

	payload := "geometry-reply"
	if !j.Ready(42, payload, nil) {
		t.Fatal("Ready(42) did not find the slot")
	}

	if n := j.Drain(64); n != 1 {
		t.Fatalf("Drain processed %d, want 1", n)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	if gotSlot.Client != h || gotSlot.Sequence != 42 || gotSlot.Kind != KindGetGeometry {
		t.Fatalf("slot = %+v", gotSlot)
	}
	if gotReply != payload || gotErr != nil {
		t.Fatalf("reply = %v, err = %v", gotReply, gotErr)
	}
	if j.Pending() != 0 {
		t.Fatalf("live count = %d", j.Pending())
	}

	// Second drain must not re-fire.
	j.Drain(64)
	if calls != 1 {
		t.Fatalf("handler re-fired, %d calls", calls)
	}
}

func TestExactlyOnceAcrossManyCookies(t *testing.T) {
	j := New(time.Minute)
	fired := map[uint32]int{}

	for seq := uint32(1); seq <= 500; seq++ {
		seq := seq
		j.Push(seq, KindGetProperty, store.Invalid, uint64(seq), func(slot Slot, reply any, err error) {
			fired[slot.Sequence]++
		})
	}
	for seq := uint32(1); seq <= 500; seq++ {
		j.Ready(seq, int(seq), nil)
	}

	// Bounded drains: no single call may exceed its budget, but repeated
	// calls must deliver everything exactly once.
	total := 0
	for i := 0; i < 100 && j.Pending() > 0; i++ {
		n := j.Drain(64)
		if n > 64 {
			t.Fatalf("Drain exceeded budget: %d", n)
		}
		total += n
	}
	if total != 500 {
		t.Fatalf("delivered %d answers, want 500", total)
	}
	for seq := uint32(1); seq <= 500; seq++ {
		if fired[seq] != 1 {
			t.Fatalf("sequence %d fired %d times", seq, fired[seq])
		}
	}
}

func TestTimeoutDeliversNeither(t *testing.T) {
	j := New(100 * time.Millisecond)
	now := time.Now()
	j.now = func() time.Time { return now }

	var calls int
	var gotReply any
	var gotErr error
	j.Push(7, KindGetAttributes, store.Invalid, 0, func(slot Slot, reply any, err error) {
		calls++
		gotReply, gotErr = reply, err
	})

	j.Drain(8)
	if calls != 0 {
		t.Fatal("handler ran before timeout")
	}

	now = now.Add(time.Second)
	j.Drain(8)
	if calls != 1 {
		t.Fatalf("handler ran %d times after timeout", calls)
	}
	if gotReply != nil || gotErr != nil {
		t.Fatalf("timeout delivered reply=%v err=%v", gotReply, gotErr)
	}

	// A late answer after expiry is dropped.
	if j.Ready(7, "late", nil) {
		t.Fatal("Ready accepted an expired sequence")
	}
	j.Drain(8)
	if calls != 1 {
		t.Fatalf("late answer re-fired handler (%d calls)", calls)
	}
}

func TestErrorDelivery(t *testing.T) {
	j := New(time.Minute)
	wantErr := &testProtoError{}

	var gotErr error
	j.Push(9, KindGetProperty, store.Invalid, 0, func(slot Slot, reply any, err error) {
		gotErr = err
	})
	j.Ready(9, nil, wantErr)
	j.Drain(1)
	if gotErr != wantErr {
		t.Fatalf("err = %v", gotErr)
	}
}

type testProtoError struct{}

func (*testProtoError) Error() string { return "protocol error" }

func TestRepushOverwrites(t *testing.T) {
	j := New(time.Minute)

	first, second := 0, 0
	j.Push(5, KindGetProperty, store.Invalid, 1, func(Slot, any, error) { first++ })
	j.Push(5, KindGetGeometry, store.Invalid, 2, func(Slot, any, error) { second++ })

	if j.Pending() != 1 {
		t.Fatalf("live = %d after re-push", j.Pending())
	}
	j.Ready(5, nil, nil)
	j.Drain(4)
	if first != 0 || second != 1 {
		t.Fatalf("first=%d second=%d", first, second)
	}
}

func TestReentrantPushFromHandler(t *testing.T) {
	j := New(time.Minute)

	chained := 0
	j.Push(1, KindGetProperty, store.Invalid, 0, func(Slot, any, error) {
		j.Push(2, KindGetProperty, store.Invalid, 0, func(Slot, any, error) {
			chained++
		})
		j.Ready(2, "chained", nil)
	})
	j.Ready(1, "root", nil)

	j.Drain(16)
	if chained != 1 {
		t.Fatalf("chained handler ran %d times", chained)
	}
	if j.Pending() != 0 {
		t.Fatalf("live = %d", j.Pending())
	}
}

func TestProbeInvariantAtCapacities(t *testing.T) {
	for _, n := range []int{2, 16, 1024} {
		j := New(time.Minute)
		for seq := uint32(1); seq <= uint32(n); seq++ {
			j.Push(seq, KindNone, store.Invalid, 0, func(Slot, any, error) {})
		}
		// Remove a scattering of entries.
		for seq := uint32(1); seq <= uint32(n); seq += 3 {
			j.Ready(seq, nil, nil)
		}
		for j.Drain(64) > 0 {
		}
		checkProbeInvariant(t, j)
	}
}

func TestGrowthPast100k(t *testing.T) {
	j := New(time.Hour)
	const n = 120_000

	fired := 0
	for seq := uint32(1); seq <= n; seq++ {
		j.Push(seq, KindGetProperty, store.Invalid, 0, func(Slot, any, error) { fired++ })
	}
	if j.Pending() != n {
		t.Fatalf("live = %d, want %d", j.Pending(), n)
	}
	checkProbeInvariant(t, j)

	for seq := uint32(1); seq <= n; seq++ {
		j.Ready(seq, nil, nil)
	}
	for j.Pending() > 0 {
		if j.Drain(1024) == 0 {
			t.Fatal("Drain made no progress")
		}
	}
	if fired != n {
		t.Fatalf("fired %d handlers, want %d", fired, n)
	}
}

func TestDrainFairnessAcrossCalls(t *testing.T) {
	j := New(time.Hour)

	// All ready at once; with budget 1 per call, every cookie must still be
	// delivered within len(slots) calls thanks to the persistent cursor.
	const n = 32
	delivered := map[uint32]bool{}
	for seq := uint32(1); seq <= n; seq++ {
		j.Push(seq, KindNone, store.Invalid, 0, func(s Slot, _ any, _ error) {
			delivered[s.Sequence] = true
		})
		j.Ready(seq, nil, nil)
	}

	for i := 0; i < 1000 && j.Pending() > 0; i++ {
		if got := j.Drain(1); got > 1 {
			t.Fatalf("budget 1 exceeded: %d", got)
		}
	}
	if len(delivered) != n {
		t.Fatalf("delivered %d, want %d", len(delivered), n)
	}
}
