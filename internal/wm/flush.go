package wm

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/deco"
	"github.com/stratawm/strata/internal/store"
)

// flush runs once per tick after all event processing. It finishes Ready
// windows, syncs visibility, translates per-window dirty bits into outbound
// requests, restacks, then republishes the root properties the tick touched.
// Dirty bits are cleared here and nowhere else.
func (s *Server) flush() {
	s.stats.Flushes++

	// Step zero: windows whose discovery completed this tick join the world.
	s.clients.ForEach(func(h store.Handle, hot *ClientHot, _ *ClientCold) {
		if hot.State == StateReady && hot.PendingReplies == 0 {
			s.finishManage(h)
		}
	})

	var restack []store.Handle
	s.clients.ForEach(func(h store.Handle, hot *ClientHot, cold *ClientCold) {
		if hot.State != StateMapped && hot.State != StateUnmapped {
			return
		}
		s.syncVisibility(h, hot)
		if hot.Dirty == 0 {
			return
		}
		if hot.Dirty&DirtyStack != 0 {
			restack = append(restack, h)
		}
		s.flushClient(h, hot, cold)
	})

	if len(restack) > 0 {
		s.flushRestacks(restack)
	}
	if s.rootDirty != 0 {
		s.flushRoot()
	}
}

// syncVisibility reconciles the lifecycle state with what is mapped on the
// server.
func (s *Server) syncVisibility(h store.Handle, hot *ClientHot) {
	if s.X == nil {
		return
	}
	switch {
	case hot.State == StateMapped && !hot.MappedOnServer:
		s.mapClient(h)
	case hot.State == StateUnmapped && hot.MappedOnServer:
		if hot.Frame != 0 {
			xproto.UnmapWindow(s.X, hot.Frame)
		}
		xproto.UnmapWindow(s.X, hot.Window)
		hot.IgnoreUnmaps++
		hot.MappedOnServer = false
	}
}

// flushClient issues the requests one window's dirty bits call for and
// clears each bit as its action goes out.
func (s *Server) flushClient(h store.Handle, hot *ClientHot, cold *ClientCold) {
	a := s.Atoms

	// Changed properties are re-fetched rather than trusted from cache; the
	// refetch handler re-marks whatever the new value affects.
	if hot.Dirty&DirtyTitle != 0 {
		s.refetchProperty(h, a.NetWMName)
		s.refetchProperty(h, a.WMName)
		hot.Dirty &^= DirtyTitle
	}
	if hot.Dirty&DirtyHints != 0 {
		s.refetchProperty(h, a.WMHints)
		s.refetchProperty(h, a.WMNormalHints)
		s.refetchProperty(h, a.WMProtocols)
		s.refetchProperty(h, a.MotifWMHints)
		hot.Dirty &^= DirtyHints
	}
	if hot.Dirty&DirtyStrut != 0 {
		s.refetchProperty(h, a.NetWMStrutPartial)
		s.refetchProperty(h, a.NetWMStrut)
		hot.Dirty &^= DirtyStrut
	}
	if hot.Dirty&DirtyOpacity != 0 {
		s.refetchProperty(h, a.NetWMWindowOpacity)
		hot.Dirty &^= DirtyOpacity
	}

	if hot.Dirty&DirtyGeom != 0 {
		s.flushGeometry(h, hot)
		hot.Dirty &^= DirtyGeom
	}
	if hot.Dirty&DirtyState != 0 {
		s.publishState(h, hot)
		hot.Dirty &^= DirtyState
	}
	if hot.Dirty&DirtyDesktop != 0 {
		if s.X != nil {
			xproto.ChangeProperty(s.X, xproto.PropModeReplace, hot.Window,
				a.NetWMDesktop, xproto.AtomCardinal, 32, 1,
				s.encodeCardinals([]uint32{hot.Desktop}))
		}
		hot.Dirty &^= DirtyDesktop
	}
	if hot.Dirty&(DirtyFrame|DirtyFrameStyle) != 0 {
		s.paintFrame(h, hot, cold)
		hot.Dirty &^= DirtyFrame | DirtyFrameStyle
	}
	// DirtyStack clears in flushRestacks once the wire request is out.
}

// flushGeometry recomputes the frame and content rectangles from theme
// metrics, reconfigures both windows and synthesizes the client-visible
// configure notification ICCCM requires for reparented windows.
func (s *Server) flushGeometry(h store.Handle, hot *ClientHot) {
	fg := s.frameGeometry(hot)
	hot.FrameGeom = fg
	if s.X == nil {
		return
	}

	l, _, t, _ := s.opts.Theme.FrameExtents()
	if !hot.Decorated || hot.Flags&FlagFullscreen != 0 {
		l, t = 0, 0
	}

	if hot.Frame != 0 {
		xproto.ConfigureWindow(s.X, hot.Frame,
			xproto.ConfigWindowX|xproto.ConfigWindowY|
				xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
			[]uint32{uint32(uint16(fg.X)), uint32(uint16(fg.Y)), uint32(fg.W), uint32(fg.H)})
		xproto.ConfigureWindow(s.X, hot.Window,
			xproto.ConfigWindowX|xproto.ConfigWindowY|
				xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
			[]uint32{uint32(l), uint32(t), uint32(hot.Geom.W), uint32(hot.Geom.H)})
	} else {
		xproto.ConfigureWindow(s.X, hot.Window,
			xproto.ConfigWindowX|xproto.ConfigWindowY|
				xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
			[]uint32{uint32(uint16(hot.Geom.X)), uint32(uint16(hot.Geom.Y)),
				uint32(hot.Geom.W), uint32(hot.Geom.H)})
	}

	s.sendSyntheticConfigure(hot)
	s.publishFrameExtents(hot)
	hot.Dirty |= DirtyFrame
}

func (s *Server) sendSyntheticConfigure(hot *ClientHot) {
	ev := xproto.ConfigureNotifyEvent{
		Event:  hot.Window,
		Window: hot.Window,
		X:      hot.Geom.X,
		Y:      hot.Geom.Y,
		Width:  hot.Geom.W,
		Height: hot.Geom.H,
	}
	xproto.SendEvent(s.X, false, hot.Window,
		xproto.EventMaskStructureNotify, string(ev.Bytes()))
}

func (s *Server) publishFrameExtents(hot *ClientHot) {
	l, r, t, b := s.opts.Theme.FrameExtents()
	if !hot.Decorated || hot.Flags&FlagFullscreen != 0 {
		l, r, t, b = 0, 0, 0, 0
	}
	xproto.ChangeProperty(s.X, xproto.PropModeReplace, hot.Window,
		s.Atoms.NetFrameExtents, xproto.AtomCardinal, 32, 4,
		s.encodeCardinals([]uint32{uint32(l), uint32(r), uint32(t), uint32(b)}))
}

// publishState recomputes the full _NET_WM_STATE atom list from the current
// flags and republishes it atomically, plus the allowed-actions list.
func (s *Server) publishState(h store.Handle, hot *ClientHot) {
	if s.X == nil {
		return
	}
	a := s.Atoms

	var states []xproto.Atom
	add := func(flag StateFlags, atom xproto.Atom) {
		if hot.Flags&flag != 0 {
			states = append(states, atom)
		}
	}
	add(FlagFullscreen, a.NetWMStateFullscreen)
	add(FlagAbove, a.NetWMStateAbove)
	add(FlagBelow, a.NetWMStateBelow)
	add(FlagSticky, a.NetWMStateSticky)
	add(FlagHidden, a.NetWMStateHidden)
	add(FlagMaxHorz, a.NetWMStateMaximizedHorz)
	add(FlagMaxVert, a.NetWMStateMaximizedVert)
	add(FlagModal, a.NetWMStateModal)
	add(FlagShaded, a.NetWMStateShaded)
	add(FlagSkipTaskbar, a.NetWMStateSkipTaskbar)
	add(FlagSkipPager, a.NetWMStateSkipPager)
	add(FlagDemandsAttention, a.NetWMStateDemandsAttention)
	if h == s.focused {
		states = append(states, a.NetWMStateFocused)
	}

	xproto.ChangeProperty(s.X, xproto.PropModeReplace, hot.Window,
		a.NetWMState, xproto.AtomAtom, 32, uint32(len(states)),
		s.encodeAtoms(states))

	actions := []xproto.Atom{
		a.NetWMActionMove, a.NetWMActionResize, a.NetWMActionMinimize,
		a.NetWMActionStick, a.NetWMActionMaximizeHorz, a.NetWMActionMaximizeVert,
		a.NetWMActionFullscreen, a.NetWMActionChangeDesktop, a.NetWMActionClose,
		a.NetWMActionAbove, a.NetWMActionBelow,
	}
	xproto.ChangeProperty(s.X, xproto.PropModeReplace, hot.Window,
		a.NetWMAllowedActions, xproto.AtomAtom, 32, uint32(len(actions)),
		s.encodeAtoms(actions))
}

func (s *Server) paintFrame(h store.Handle, hot *ClientHot, cold *ClientCold) {
	if hot.Frame == 0 || s.renderer == nil {
		return
	}
	s.renderer.Paint(s.opts.Theme, deco.Target{
		Frame:   hot.Frame,
		Title:   cold.Title,
		Focused: h == s.focused,
		Urgent:  hot.Urgent,
		Width:   hot.FrameGeom.W,
		Height:  hot.FrameGeom.H,
	})
}

// flushRestacks expresses each moved window's position relative to its
// physical neighbor in the flattened z-order, minimizing redundant restack
// traffic.
func (s *Server) flushRestacks(dirty []store.Handle) {
	order := s.globalOrder()
	for _, h := range dirty {
		hot := s.clients.Hot(h)
		if hot == nil {
			continue
		}
		plan, ok := s.planRestack(h, order)
		hot.Dirty &^= DirtyStack
		if !ok {
			continue
		}
		s.stats.Restacks++
		if s.X == nil {
			continue
		}
		if plan.Sibling != 0 {
			xproto.ConfigureWindow(s.X, plan.Window,
				xproto.ConfigWindowSibling|xproto.ConfigWindowStackMode,
				[]uint32{uint32(plan.Sibling), uint32(plan.Mode)})
		} else {
			xproto.ConfigureWindow(s.X, plan.Window,
				xproto.ConfigWindowStackMode, []uint32{uint32(plan.Mode)})
		}
	}
}

// flushRoot republishes the server-wide lists after the per-window pass,
// rebuilding each from current store and layer state.
func (s *Server) flushRoot() {
	dirty := s.rootDirty
	s.rootDirty = 0
	if s.X == nil {
		return
	}
	a := s.Atoms

	if dirty&RootDirtyClientList != 0 {
		var wins []xproto.Window
		s.clients.ForEach(func(_ store.Handle, hot *ClientHot, _ *ClientCold) {
			if hot.State == StateMapped || hot.State == StateUnmapped {
				wins = append(wins, hot.Window)
			}
		})
		xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.Root,
			a.NetClientList, xproto.AtomWindow, 32, uint32(len(wins)),
			s.encodeWindows(wins))
	}

	if dirty&(RootDirtyClientListStacking|RootDirtyVisibility) != 0 {
		var wins []xproto.Window
		for _, h := range s.globalOrder() {
			if hot := s.clients.Hot(h); hot != nil {
				wins = append(wins, hot.Window)
			}
		}
		xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.Root,
			a.NetClientListStacking, xproto.AtomWindow, 32, uint32(len(wins)),
			s.encodeWindows(wins))
	}

	if dirty&RootDirtyActiveWindow != 0 {
		var active xproto.Window
		if hot := s.clients.Hot(s.focused); hot != nil {
			active = hot.Window
		}
		xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.Root,
			a.NetActiveWindow, xproto.AtomWindow, 32, 1,
			s.encodeWindows([]xproto.Window{active}))
		s.commitFocus()
	}

	if dirty&RootDirtyWorkarea != 0 {
		wa := s.workarea()
		vals := make([]uint32, 0, 4*s.opts.Desktops)
		for i := uint32(0); i < s.opts.Desktops; i++ {
			vals = append(vals, uint32(uint16(wa.X)), uint32(uint16(wa.Y)),
				uint32(wa.W), uint32(wa.H))
		}
		xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.Root,
			a.NetWorkarea, xproto.AtomCardinal, 32, uint32(len(vals)),
			s.encodeCardinals(vals))
	}

	if dirty&RootDirtyCurrentDesktop != 0 {
		xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.Root,
			a.NetCurrentDesktop, xproto.AtomCardinal, 32, 1,
			s.encodeCardinals([]uint32{s.currentDesktop}))
	}
}

// Arena-backed property encoders: the buffers live until the end-of-tick
// reset, exactly as long as the requests that reference them.

func (s *Server) encodeCardinals(vals []uint32) []byte {
	buf := s.scratch.Alloc(len(vals) * 4)
	for i, v := range vals {
		xgb.Put32(buf[i*4:], v)
	}
	return buf
}

func (s *Server) encodeWindows(wins []xproto.Window) []byte {
	buf := s.scratch.Alloc(len(wins) * 4)
	for i, w := range wins {
		xgb.Put32(buf[i*4:], uint32(w))
	}
	return buf
}

func (s *Server) encodeAtoms(atoms []xproto.Atom) []byte {
	buf := s.scratch.Alloc(len(atoms) * 4)
	for i, at := range atoms {
		xgb.Put32(buf[i*4:], uint32(at))
	}
	return buf
}
