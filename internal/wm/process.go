package wm

import (
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/store"
)

// processBuckets consumes one tick's staged events in the fixed kind order:
// lifecycle, input, expose, client messages, motion, configure-request,
// configure-notify, property-notify, damage, monitor geometry. The order is
// what guarantees a window destroyed early in a tick is never touched later
// in the same tick.
func (s *Server) processBuckets() {
	b := s.buckets

	for i := 0; i < b.lifecycle.Len(); i++ {
		s.processLifecycle(b.lifecycle.At(i))
	}
	for i := 0; i < b.input.Len(); i++ {
		s.processInput(b.input.At(i))
	}
	for i := range b.expose {
		s.processExpose(&b.expose[i])
	}
	for i := range b.messages {
		s.processClientMessage(&b.messages[i])
	}
	for i := range b.motion {
		s.processMotion(&b.motion[i])
	}
	for i := range b.configs {
		s.processConfigureRequest(&b.configs[i])
	}
	for i := range b.confNote {
		s.processConfigureNotify(&b.confNote[i])
	}
	for i := range b.props {
		s.processPropertyNotify(&b.props[i])
	}
	for i := range b.damages {
		s.processDamage(&b.damages[i])
	}
	if b.screenChanged {
		s.processScreenChange()
	}
}

func (s *Server) processLifecycle(ev LifecycleEvent) {
	switch ev.Kind {
	case LifeCreate:
		// Wait for the map request; creating is not a reason to manage.
	case LifeMapRequest:
		if h := s.lookup(ev.Window); h != store.Invalid {
			// Remap of a window we know: bring it back.
			if hot := s.clients.Hot(h); hot != nil && hot.State == StateUnmapped {
				hot.State = StateMapped
				hot.Flags &^= FlagHidden
				hot.Dirty |= DirtyGeom | DirtyStack | DirtyState
				if s.X != nil {
					s.mapClient(h)
				}
				s.rootDirty |= RootDirtyClientList
			}
			return
		}
		s.manageStart(ev.Window, false)
	case LifeMapNotify:
		if hot := s.clients.Hot(s.lookup(ev.Window)); hot != nil {
			hot.MappedOnServer = true
		}
	case LifeUnmapNotify:
		h := s.lookup(ev.Window)
		hot := s.clients.Hot(h)
		if hot == nil {
			return
		}
		if hot.Frame != 0 && ev.Window == hot.Frame {
			return
		}
		// Our own reparents and unmaps each generate one expected UnmapNotify,
		// regardless of the state the window is in by the time it arrives; a
		// further one means the client really withdrew.
		if !ev.Synthetic && hot.IgnoreUnmaps > 0 {
			hot.IgnoreUnmaps--
			return
		}
		s.unmanage(h, false)
	case LifeDestroyNotify:
		if h := s.lookup(ev.Window); h != store.Invalid {
			s.unmanage(h, true)
		}
	case LifeReparentNotify:
		// Our own reparent into the frame shows up here; anyone else taking
		// the window away means we stop managing it.
		h := s.lookup(ev.Window)
		hot := s.clients.Hot(h)
		if hot == nil {
			return
		}
		if ev.Parent != hot.Frame && ev.Parent != s.Root {
			s.unmanage(h, true)
		}
	}
}

func (s *Server) processInput(ev InputEvent) {
	s.lastTime = ev.Time
	if ev.Key {
		return
	}

	if !ev.Press {
		s.EndInteraction()
		return
	}

	h := s.lookup(ev.Window)
	if h == store.Invalid && ev.Child != 0 {
		h = s.lookup(ev.Child)
	}
	if h == store.Invalid {
		return
	}

	const (
		button1  = 1
		button3  = 3
		modMask1 = xproto.ModMask1
	)
	s.SetFocus(h)
	s.Raise(h)
	switch {
	case ev.Detail == button1 && ev.Mods&modMask1 != 0:
		s.BeginMove(h, ev.RootX, ev.RootY)
	case ev.Detail == button3 && ev.Mods&modMask1 != 0:
		s.BeginResize(h, ev.RootX, ev.RootY)
	}
}

func (s *Server) processExpose(e *RectEntry) {
	h, ok := s.byFrame.Get(uint64(e.Window))
	if !ok {
		return
	}
	if hot := s.clients.Hot(h); hot != nil {
		hot.Dirty |= DirtyFrame
	}
}

func (s *Server) processMotion(e *MotionEntry) {
	s.lastTime = e.Time
	if s.interaction.Kind != InteractNone {
		s.updateInteraction(e.RootX, e.RootY)
		return
	}
	if s.opts.FocusFollows {
		if h := s.lookup(e.Window); h != store.Invalid {
			s.SetFocus(h)
		}
	}
}

// processConfigureRequest applies the coalesced request. Managed windows get
// their pending fields folded into the record and a geometry flush; unknown
// windows get the request forwarded verbatim.
func (s *Server) processConfigureRequest(e *ConfigureEntry) {
	h := s.lookup(e.Window)
	hot := s.clients.Hot(h)
	if hot == nil {
		s.forwardConfigure(e)
		return
	}

	if e.Mask&xproto.ConfigWindowX != 0 {
		hot.Geom.X = e.X
	}
	if e.Mask&xproto.ConfigWindowY != 0 {
		hot.Geom.Y = e.Y
	}
	if e.Mask&xproto.ConfigWindowWidth != 0 {
		hot.Geom.W = e.W
	}
	if e.Mask&xproto.ConfigWindowHeight != 0 {
		hot.Geom.H = e.H
	}
	if e.Mask&(xproto.ConfigWindowWidth|xproto.ConfigWindowHeight) != 0 {
		cold := s.clients.Cold(h)
		hot.Geom.W, hot.Geom.H = constrainSize(cold.SizeHints, hot.Geom.W, hot.Geom.H)
	}

	if e.Mask&xproto.ConfigWindowStackMode != 0 {
		sibling := s.lookup(e.Sibling)
		switch e.StackMode {
		case xproto.StackModeAbove:
			if sibling != store.Invalid {
				s.PlaceAbove(h, sibling)
			} else {
				s.Raise(h)
			}
		case xproto.StackModeBelow:
			if sibling != store.Invalid {
				s.PlaceBelow(h, sibling)
			} else {
				s.Lower(h)
			}
		}
	}
	hot.Dirty |= DirtyGeom
}

// forwardConfigure passes an unmanaged window's request through unchanged.
func (s *Server) forwardConfigure(e *ConfigureEntry) {
	if s.X == nil {
		return
	}
	var values []uint32
	mask := uint16(0)
	add := func(bit uint16, v uint32) {
		if e.Mask&bit != 0 {
			mask |= bit
			values = append(values, v)
		}
	}
	add(xproto.ConfigWindowX, uint32(uint16(e.X)))
	add(xproto.ConfigWindowY, uint32(uint16(e.Y)))
	add(xproto.ConfigWindowWidth, uint32(e.W))
	add(xproto.ConfigWindowHeight, uint32(e.H))
	add(xproto.ConfigWindowBorderWidth, uint32(e.Border))
	add(xproto.ConfigWindowSibling, uint32(e.Sibling))
	add(xproto.ConfigWindowStackMode, uint32(e.StackMode))
	if mask != 0 {
		xproto.ConfigureWindow(s.X, e.Window, mask, values)
	}
}

func (s *Server) processConfigureNotify(e *ConfigureNotifyEntry) {
	if e.Window == s.Root {
		s.screenW, s.screenH = e.W, e.H
		s.rootDirty |= RootDirtyWorkarea
		s.markAllGeometry()
	}
}

func (s *Server) processPropertyNotify(e *PropertyEntry) {
	h := s.lookup(e.Window)
	hot := s.clients.Hot(h)
	if hot == nil || hot.State == StateNew {
		return
	}
	a := s.Atoms

	// Cached data is not trusted after a change notification; the flush pass
	// sees the dirty bit and re-fetches.
	switch e.Atom {
	case a.NetWMName, a.WMName:
		hot.Dirty |= DirtyTitle
	case a.WMHints, a.WMNormalHints, a.WMProtocols:
		hot.Dirty |= DirtyHints
	case a.NetWMStrut, a.NetWMStrutPartial:
		hot.Dirty |= DirtyStrut
	case a.NetWMWindowOpacity:
		hot.Dirty |= DirtyOpacity
	case a.MotifWMHints:
		hot.Dirty |= DirtyFrameStyle | DirtyHints
	}
}

func (s *Server) processDamage(e *RectEntry) {
	h := s.lookup(e.Window)
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	hot.Dirty |= DirtyFrame
	// Acknowledge the accumulated region or the extension stays silent.
	if s.X != nil && hot.Damage != 0 {
		damage.Subtract(s.X, hot.Damage, 0, 0)
	}
}

func (s *Server) processScreenChange() {
	if s.X != nil {
		if setup := xproto.Setup(s.X); setup != nil {
			scr := setup.DefaultScreen(s.X)
			s.screenW = scr.WidthInPixels
			s.screenH = scr.HeightInPixels
		}
	}
	s.rootDirty |= RootDirtyWorkarea
	s.markAllGeometry()
	s.log.Info("Monitor geometry changed", "width", s.screenW, "height", s.screenH)
}

func (s *Server) markAllGeometry() {
	s.clients.ForEach(func(_ store.Handle, hot *ClientHot, _ *ClientCold) {
		if hot.State == StateMapped {
			hot.Dirty |= DirtyGeom
		}
	})
}

// processClientMessage handles EWMH requests from clients and pagers.
func (s *Server) processClientMessage(e *xproto.ClientMessageEvent) {
	a := s.Atoms
	if e.Format != 32 {
		return
	}
	data := e.Data.Data32

	switch e.Type {
	case a.NetWMState:
		h := s.lookup(e.Window)
		hot := s.clients.Hot(h)
		if hot == nil {
			return
		}
		msg := StateMessage{
			Action: data[0],
			First:  xproto.Atom(data[1]),
			Second: xproto.Atom(data[2]),
		}
		if hot.State == StateNew || hot.State == StateReady {
			s.queueStateMessage(h, msg)
			return
		}
		s.applyStateMessage(h, msg)

	case a.NetActiveWindow:
		h := s.lookup(e.Window)
		hot := s.clients.Hot(h)
		if hot == nil {
			return
		}
		if hot.State == StateUnmapped {
			hot.State = StateMapped
			hot.Flags &^= FlagHidden
			hot.Dirty |= DirtyGeom | DirtyStack | DirtyState
			if s.X != nil {
				s.mapClient(h)
			}
		}
		s.SetFocus(h)
		s.Raise(h)

	case a.NetCloseWindow:
		if h := s.lookup(e.Window); h != store.Invalid {
			s.CloseClient(h)
		}

	case a.NetCurrentDesktop:
		s.switchDesktop(data[0])

	case a.NetWMDesktop:
		h := s.lookup(e.Window)
		hot := s.clients.Hot(h)
		if hot == nil {
			return
		}
		hot.Desktop = data[0]
		hot.Dirty |= DirtyDesktop
		s.applyDesktopVisibility(h)

	case a.WMChangeState:
		h := s.lookup(e.Window)
		hot := s.clients.Hot(h)
		if hot == nil {
			return
		}
		if data[0] == ewmhIconic && hot.State == StateMapped {
			s.minimize(h)
		}

	case a.NetShowingDesktop:
		s.setShowingDesktop(data[0] != 0)

	case a.WMProtocols:
		// _NET_WM_PING replies come back addressed to the root.
		if xproto.Atom(data[0]) == a.NetWMPing {
			s.log.Debug("Ping reply", "window", data[2])
		}

	case a.StrataControl:
		s.processControlMessage(data[0])
	}
}

// Control message codes sent by the ctl subcommands.
const (
	CtlQuit uint32 = iota + 1
	CtlRestart
	CtlArrange
)

func (s *Server) processControlMessage(code uint32) {
	switch code {
	case CtlQuit:
		s.log.Info("Quit requested over control message")
		s.Stop()
	case CtlRestart:
		s.log.Info("Restart requested over control message")
		s.RequestRestart()
	case CtlArrange:
		s.ArrangeGrid()
	default:
		s.log.Warn("Unknown control message", "code", code)
	}
}

const ewmhIconic = 3

func (s *Server) minimize(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil || hot.State != StateMapped {
		return
	}
	hot.State = StateUnmapped
	hot.Flags |= FlagHidden
	hot.Dirty |= DirtyState
	if s.X != nil {
		if hot.Frame != 0 {
			xproto.UnmapWindow(s.X, hot.Frame)
		}
		xproto.UnmapWindow(s.X, hot.Window)
		s.setICCCMState(hot.Window, ewmhIconic)
		hot.IgnoreUnmaps++
	}
	s.refocusAfter(h)
	s.rootDirty |= RootDirtyClientList
}

// switchDesktop hides windows of the old desktop and shows the new one's.
func (s *Server) switchDesktop(desktop uint32) {
	if desktop >= s.opts.Desktops || desktop == s.currentDesktop {
		return
	}
	s.currentDesktop = desktop
	s.rootDirty |= RootDirtyCurrentDesktop | RootDirtyVisibility

	var refocus bool
	s.clients.ForEach(func(h store.Handle, hot *ClientHot, _ *ClientCold) {
		if hot.State != StateMapped && hot.State != StateUnmapped {
			return
		}
		if s.onCurrentDesktop(hot) {
			if hot.State == StateUnmapped && hot.Flags&FlagHidden == 0 {
				hot.State = StateMapped
				hot.Dirty |= DirtyState
			}
		} else if hot.State == StateMapped {
			hot.State = StateUnmapped
			hot.Dirty |= DirtyState
			if h == s.focused {
				refocus = true
			}
		}
	})
	if refocus || s.focused == store.Invalid {
		s.SetFocus(s.focusCandidate(store.Invalid))
	}
}

func (s *Server) applyDesktopVisibility(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	if s.onCurrentDesktop(hot) {
		if hot.State == StateUnmapped && hot.Flags&FlagHidden == 0 {
			hot.State = StateMapped
			hot.Dirty |= DirtyState
		}
	} else if hot.State == StateMapped {
		hot.State = StateUnmapped
		hot.Dirty |= DirtyState
		s.refocusAfter(h)
	}
	s.rootDirty |= RootDirtyVisibility
}

func (s *Server) setShowingDesktop(show bool) {
	if show == s.showingDesktop {
		return
	}
	s.showingDesktop = show
	s.clients.ForEach(func(h store.Handle, hot *ClientHot, _ *ClientCold) {
		switch {
		case show && hot.State == StateMapped:
			hot.State = StateUnmapped
			hot.Dirty |= DirtyState
		case !show && hot.State == StateUnmapped && hot.Flags&FlagHidden == 0:
			hot.State = StateMapped
			hot.Dirty |= DirtyState
		}
	})
	s.rootDirty |= RootDirtyVisibility
	if show {
		s.SetFocus(store.Invalid)
	} else {
		s.SetFocus(s.focusCandidate(store.Invalid))
	}
}
