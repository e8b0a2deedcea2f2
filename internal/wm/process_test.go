package wm

import (
	"testing"

	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/store"
)

func TestConfigureRequestAppliedToRecord(t *testing.T) {
	s := newTestServer()
	win := xproto.Window(0x700001)
	h := s.addMapped(win)
	s.clients.Hot(h).Geom = Geometry{X: 5, Y: 5, W: 100, H: 100}

	s.buckets.Add(xproto.ConfigureRequestEvent{Window: win,
		ValueMask: xproto.ConfigWindowWidth, Width: 640})
	s.buckets.Add(xproto.ConfigureRequestEvent{Window: win,
		ValueMask: xproto.ConfigWindowX, X: 30})
	s.processBuckets()

	hot := s.clients.Hot(h)
	if hot.Geom.X != 30 || hot.Geom.Y != 5 || hot.Geom.W != 640 || hot.Geom.H != 100 {
		t.Fatalf("geometry = %+v", hot.Geom)
	}
	if hot.Dirty&DirtyGeom == 0 {
		t.Fatal("configure did not mark geometry dirty")
	}
}

func TestDestroyBeforeConfigureInOneTick(t *testing.T) {
	s := newTestServer()
	win := xproto.Window(0x700001)
	s.addMapped(win)

	// Destroy then a straggling configure-request in the same tick: the
	// window is gone by the time configure processing runs.
	s.buckets.Add(xproto.ConfigureRequestEvent{Window: win,
		ValueMask: xproto.ConfigWindowWidth, Width: 9999})
	s.buckets.Add(xproto.DestroyNotifyEvent{Window: win})
	s.processBuckets()

	if s.lookup(win) != store.Invalid {
		t.Fatal("destroyed window still managed")
	}
	if s.clients.Len() != 0 {
		t.Fatalf("live clients = %d", s.clients.Len())
	}
}

func TestStackModeRequestRaises(t *testing.T) {
	s := newTestServer()
	a := s.addMapped(0x700001)
	b := s.addMapped(0x700002)

	s.buckets.Add(xproto.ConfigureRequestEvent{
		Window:    s.clients.Hot(a).Window,
		ValueMask: xproto.ConfigWindowStackMode,
		StackMode: xproto.StackModeAbove,
	})
	s.processBuckets()

	if got := layerHandles(s, LayerNormal); !sameOrder(got, []store.Handle{b, a}) {
		t.Fatalf("order = %v, want [b a]", got)
	}
}

func TestPropertyNotifyMarksDirty(t *testing.T) {
	s := newTestServer()
	win := xproto.Window(0x700001)
	h := s.addMapped(win)

	s.buckets.Add(xproto.PropertyNotifyEvent{Window: win, Atom: s.Atoms.NetWMName})
	s.buckets.Add(xproto.PropertyNotifyEvent{Window: win, Atom: s.Atoms.NetWMStrutPartial})
	s.processBuckets()

	hot := s.clients.Hot(h)
	if hot.Dirty&DirtyTitle == 0 {
		t.Fatal("title change not marked")
	}
	if hot.Dirty&DirtyStrut == 0 {
		t.Fatal("strut change not marked")
	}
}

func TestDesktopSwitchTogglesVisibility(t *testing.T) {
	s := newTestServer()
	a := s.addMapped(0x700001)
	b := s.addMapped(0x700002)
	s.clients.Hot(b).Desktop = 1
	s.clients.Hot(b).State = StateUnmapped
	sticky := s.addMapped(0x700003)
	s.clients.Hot(sticky).Flags |= FlagSticky
	s.SetFocus(a)

	s.switchDesktop(1)

	if got := s.clients.Hot(a).State; got != StateUnmapped {
		t.Fatalf("old-desktop window state = %v, want unmapped", got)
	}
	if got := s.clients.Hot(b).State; got != StateMapped {
		t.Fatalf("new-desktop window state = %v, want mapped", got)
	}
	if got := s.clients.Hot(sticky).State; got != StateMapped {
		t.Fatalf("sticky window state = %v, want mapped", got)
	}
	if s.rootDirty&RootDirtyCurrentDesktop == 0 {
		t.Fatal("desktop switch did not mark root dirty")
	}
	if s.focused == a {
		t.Fatal("focus stayed on a hidden window")
	}
}

func TestActiveWindowMessageUnhidesAndFocuses(t *testing.T) {
	s := newTestServer()
	win := xproto.Window(0x700001)
	h := s.addMapped(win)
	s.minimize(h)
	if got := s.clients.Hot(h).State; got != StateUnmapped {
		t.Fatalf("state after minimize = %v", got)
	}

	s.processClientMessage(&xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   s.Atoms.NetActiveWindow,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{2, 0, 0, 0, 0}),
	})

	hot := s.clients.Hot(h)
	if hot.State != StateMapped || hot.Flags&FlagHidden != 0 {
		t.Fatalf("state = %v flags = %v after activation", hot.State, hot.Flags)
	}
	if s.focused != h {
		t.Fatal("activation did not focus")
	}
}

func TestDeferredUnmapOfHiddenWindowIgnored(t *testing.T) {
	s := newTestServer()
	win := xproto.Window(0x700001)
	h := s.addMapped(win)

	// Hiding unmaps on the wire; the resulting UnmapNotify arrives after the
	// state already flipped and must not tear the window down.
	s.minimize(h)
	s.clients.Hot(h).IgnoreUnmaps = 1

	s.buckets.Add(xproto.UnmapNotifyEvent{Window: win})
	s.processBuckets()

	if s.lookup(win) != h {
		t.Fatal("hidden window was unmanaged by its own deferred UnmapNotify")
	}
	if got := s.clients.Hot(h).IgnoreUnmaps; got != 0 {
		t.Fatalf("ignore counter = %d, want consumed", got)
	}

	// A later client-initiated unmap really withdraws it.
	s.buckets.Reset()
	s.buckets.Add(xproto.UnmapNotifyEvent{Window: win})
	s.processBuckets()
	if s.lookup(win) != store.Invalid {
		t.Fatal("real withdraw was ignored")
	}
}

func TestControlMessageRestart(t *testing.T) {
	s := newTestServer()
	s.processClientMessage(&xproto.ClientMessageEvent{
		Format: 32,
		Window: s.Root,
		Type:   s.Atoms.StrataControl,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{CtlRestart, 0, 0, 0, 0}),
	})
	if !s.Restarting() {
		t.Fatal("restart message did not flag a restart")
	}
}

func TestControlMessageArrange(t *testing.T) {
	s := newTestServer()
	a := s.addMapped(0x700001)
	b := s.addMapped(0x700002)

	s.processClientMessage(&xproto.ClientMessageEvent{
		Format: 32,
		Window: s.Root,
		Type:   s.Atoms.StrataControl,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{CtlArrange, 0, 0, 0, 0}),
	})

	ga := s.clients.Hot(a).Geom
	gb := s.clients.Hot(b).Geom
	if ga.W == 0 || gb.W == 0 || ga.X == gb.X {
		t.Fatalf("arrange produced %+v and %+v", ga, gb)
	}
}

func TestFlushClearsDirtyBits(t *testing.T) {
	s := newTestServer()
	h := s.addMapped(0x700001)
	hot := s.clients.Hot(h)
	hot.Geom = Geometry{X: 10, Y: 10, W: 200, H: 100}
	hot.Dirty = DirtyGeom | DirtyStack | DirtyState | DirtyDesktop

	s.flush()

	hot = s.clients.Hot(h)
	if hot.Dirty != 0 {
		t.Fatalf("dirty bits after flush = %#x", hot.Dirty)
	}
	if hot.FrameGeom.W == 0 {
		t.Fatal("flush did not recompute the frame rectangle")
	}
	if s.rootDirty != 0 {
		t.Fatalf("root dirty bits after flush = %#x", s.rootDirty)
	}
}
