package wm

import (
	"testing"

	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/store"
)

func TestDiscoveryAbortOnOverrideRedirect(t *testing.T) {
	s := newTestServer()
	win := xproto.Window(0x600001)

	h := s.observe(win)
	hot := s.clients.Hot(h)
	hot.PendingReplies = discoveryFetches

	// 27 of 28 replies land; the window must stay New.
	for i := 0; i < discoveryFetches-1; i++ {
		s.discoveryStep(h)
	}
	if got := s.clients.Hot(h).State; got != StateNew {
		t.Fatalf("state after %d replies = %v, want new", discoveryFetches-1, got)
	}

	// The last reply signals override-redirect: the attempt aborts.
	s.applyAttributes(h, &xproto.GetWindowAttributesReply{OverrideRedirect: true})

	if s.lookup(win) != store.Invalid {
		t.Fatal("aborted window still resolvable by id")
	}
	if s.clients.Hot(h) != nil {
		t.Fatal("aborted handle still live")
	}
	for l := Layer(0); l < layerCount; l++ {
		if s.layers[l].Len() != 0 {
			t.Fatalf("aborted window reached layer %v", l)
		}
	}
	if s.focusHead != store.Invalid {
		t.Fatal("aborted window reached focus history")
	}
	if s.stats.Aborted != 1 {
		t.Fatalf("abort counter = %d", s.stats.Aborted)
	}
}

func TestDiscoveryCompletesToMapped(t *testing.T) {
	s := newTestServer()
	win := xproto.Window(0x600001)

	h := s.observe(win)
	hot := s.clients.Hot(h)
	hot.PendingReplies = 3

	s.applyGeometry(h, &xproto.GetGeometryReply{X: 10, Y: 20, Width: 300, Height: 200})
	s.discoveryStep(h)
	s.discoveryStep(h)
	s.discoveryStep(h)

	if got := s.clients.Hot(h).State; got != StateReady {
		t.Fatalf("state = %v, want ready", got)
	}

	// Flush step zero finishes management.
	s.flush()
	hot = s.clients.Hot(h)
	if hot.State != StateMapped {
		t.Fatalf("state after flush = %v, want mapped", hot.State)
	}
	if s.indexInLayer(h) < 0 {
		t.Fatal("managed window not in its layer")
	}
	if s.focused != h {
		t.Fatal("new window did not take focus")
	}
}

func TestQueuedStateReplaysAfterManage(t *testing.T) {
	s := newTestServer()
	win := xproto.Window(0x600001)

	h := s.observe(win)
	hot := s.clients.Hot(h)
	hot.PendingReplies = 1

	// A fullscreen wish arrives while discovery is still outstanding.
	s.processClientMessage(&xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   s.Atoms.NetWMState,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			StateAdd, uint32(s.Atoms.NetWMStateFullscreen), 0, 0, 0,
		}),
	})
	if hot.Flags&FlagFullscreen != 0 {
		t.Fatal("state applied before management finished")
	}

	s.discoveryStep(h)
	s.flush()

	hot = s.clients.Hot(h)
	if hot.Flags&FlagFullscreen == 0 {
		t.Fatal("queued state message was not replayed")
	}
	if hot.Layer != LayerFullscreen {
		t.Fatalf("layer = %v, want fullscreen", hot.Layer)
	}
}

func TestQueuedStateOverflowDropped(t *testing.T) {
	s := newTestServer()
	h := s.observe(0x600001)
	for i := 0; i < maxQueuedState+5; i++ {
		s.queueStateMessage(h, StateMessage{Action: StateAdd, First: s.Atoms.NetWMStateSticky})
	}
	if n := len(s.clients.Cold(h).QueuedState); n != maxQueuedState {
		t.Fatalf("queued %d messages, want bound %d", n, maxQueuedState)
	}
}

func TestUnmanageIsIdempotent(t *testing.T) {
	s := newTestServer()
	a := s.addMapped(0x600001)
	b := s.addMapped(0x600002)
	s.SetFocus(a)
	s.SetFocus(b)

	s.unmanage(b, false)
	if s.lookup(0x600002) != store.Invalid {
		t.Fatal("unmanaged window still resolvable")
	}
	if s.focused != a {
		t.Fatalf("focus = %v, want %v", s.focused, a)
	}
	before := s.stats.Unmanaged

	// Double teardown equals single teardown.
	s.unmanage(b, false)
	s.unmanage(b, true)
	if s.stats.Unmanaged != before {
		t.Fatal("second teardown was not a no-op")
	}
	if s.clients.Len() != 1 {
		t.Fatalf("live clients = %d", s.clients.Len())
	}
}

func TestRefocusPrefersTransientParent(t *testing.T) {
	s := newTestServer()
	a := s.addMapped(0x600001)
	b := s.addMapped(0x600002)
	dialog := s.addMapped(0x600003)
	s.linkTransient(dialog, a)

	s.SetFocus(b)
	s.SetFocus(dialog)

	// The dialog goes away; its mapped parent wins over the MRU entry b.
	s.unmanage(dialog, true)
	if s.focused != a {
		t.Fatalf("focus = %v, want transient parent %v", s.focused, a)
	}

	// Without a parent, the most recently used mapped window is next.
	s.unmanage(a, true)
	if s.focused != b {
		t.Fatalf("focus = %v, want MRU %v", s.focused, b)
	}
}

func TestRestoredActiveWindowWinsInitialFocus(t *testing.T) {
	s := newTestServer()
	s.restoredActive = 0x600001

	a := s.observe(0x600001)
	s.clients.Hot(a).PendingReplies = 1
	b := s.observe(0x600002)
	s.clients.Hot(b).PendingReplies = 1

	// b finishes discovery first; focus waits for the previously active window.
	s.discoveryStep(b)
	s.flush()
	if s.focused == b {
		t.Fatal("later window stole focus from the restored one")
	}

	s.discoveryStep(a)
	s.flush()
	if s.focused != a {
		t.Fatalf("focus = %v, want restored window %v", s.focused, a)
	}
	if s.restoredActive != 0 {
		t.Fatal("restored-focus claim not consumed")
	}

	// Once consumed, new windows take focus as usual.
	c := s.observe(0x600003)
	s.clients.Hot(c).PendingReplies = 1
	s.discoveryStep(c)
	s.flush()
	if s.focused != c {
		t.Fatalf("focus = %v, want %v", s.focused, c)
	}
}

func TestUnmanageOrphansChildren(t *testing.T) {
	s := newTestServer()
	parent := s.addMapped(0x600001)
	c1 := s.addMapped(0x600002)
	c2 := s.addMapped(0x600003)
	s.linkTransient(c1, parent)
	s.linkTransient(c2, parent)

	s.unmanage(parent, true)

	for _, c := range []store.Handle{c1, c2} {
		hot := s.clients.Hot(c)
		if hot == nil {
			t.Fatal("child freed with parent")
		}
		if hot.Parent != store.Invalid || hot.PrevSibling != store.Invalid || hot.NextSibling != store.Invalid {
			t.Fatalf("child still linked: %+v", hot)
		}
	}
}

func TestCancelInteractionIdempotent(t *testing.T) {
	s := newTestServer()
	h := s.addMapped(0x600001)
	hot := s.clients.Hot(h)
	hot.Geom = Geometry{X: 100, Y: 100, W: 400, H: 300}

	s.CancelInteraction() // nothing active: no-op

	s.BeginMove(h, 150, 150)
	if s.interaction.Kind != InteractMove {
		t.Fatal("move did not start")
	}
	s.updateInteraction(250, 130)
	hot = s.clients.Hot(h)
	if hot.Geom.X != 200 || hot.Geom.Y != 80 {
		t.Fatalf("moved geometry = %+v", hot.Geom)
	}
	if hot.Dirty&DirtyGeom == 0 {
		t.Fatal("move did not mark geometry dirty")
	}

	s.CancelInteraction()
	s.CancelInteraction()
	if s.interaction.Kind != InteractNone {
		t.Fatal("interaction state not reset")
	}

	// Unmanaging the drag target mid-interaction cancels it.
	s.BeginMove(h, 0, 0)
	s.unmanage(h, true)
	if s.interaction.Kind != InteractNone {
		t.Fatal("teardown left a dangling interaction")
	}
}

func TestStaleReplyAfterTeardownIsDropped(t *testing.T) {
	s := newTestServer()
	h := s.addMapped(0x600001)
	s.unmanage(h, true)

	// A discovery reply for the dead handle must not touch anything.
	s.applyGeometry(h, &xproto.GetGeometryReply{Width: 999, Height: 999})
	s.applyProperty(h, s.Atoms.NetWMName, nil)
	s.discoveryStep(h)
	if s.clients.Len() != 0 {
		t.Fatal("stale reply resurrected state")
	}
}
