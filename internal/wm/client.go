package wm

import (
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/ewmh"
	"github.com/stratawm/strata/internal/store"
)

// Discovery issues this many independent async fetches per new window; the
// pending counter must hit zero before management can finish.
const discoveryFetches = 28

// observe allocates the record for a newly seen window and registers it in
// the lookup map. The window is not yet in any layer or the focus history.
func (s *Server) observe(win xproto.Window) store.Handle {
	if h := s.lookup(win); h != store.Invalid {
		return h
	}
	h, hot, _ := s.clients.Alloc()
	hot.Window = win
	hot.State = StateNew
	hot.Layer = LayerNormal
	hot.LayerIndex = -1
	hot.Desktop = s.currentDesktop
	hot.Decorated = true
	s.byWindow.Put(uint64(win), h)
	return h
}

// manageStart begins managing win: one record, one burst of async property
// fetches, no blocking. existing marks adopted windows that are already
// mapped on the server.
func (s *Server) manageStart(win xproto.Window, existing bool) {
	if s.lookup(win) != store.Invalid {
		return
	}
	h := s.observe(win)
	hot := s.clients.Hot(h)
	hot.MappedOnServer = existing
	hot.PendingReplies = discoveryFetches
	s.issueDiscovery(h, win)
	s.log.Debug("Managing window", "window", win, "handle", h.String(), "adopted", existing)
}

// discoveryStep consumes one answered fetch. When the last reply lands and
// the window is still New, it becomes Ready; the flush pass finishes the job.
func (s *Server) discoveryStep(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	if hot.PendingReplies > 0 {
		hot.PendingReplies--
	}
	if hot.PendingReplies == 0 && hot.State == StateNew {
		hot.State = StateReady
	}
}

// abortManage tears down a half-discovered window: override-redirect, a
// destroy race, or a fetch that never answered. The handle was only ever in
// the lookup map, so nothing externally visible needs repair.
func (s *Server) abortManage(h store.Handle, reason string) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	if hot.State != StateNew {
		return
	}
	hot.State = StateDestroyed
	s.byWindow.Delete(uint64(hot.Window))
	s.clients.Free(h)
	s.stats.Aborted++
	s.log.Debug("Aborted manage", "handle", h.String(), "reason", reason)
}

// finishManage runs once discovery is complete, from flush step zero: frame,
// reparent, map, grabs, initial stacking and focus. Queued state messages
// replay at the end so wishes that raced discovery are honored.
func (s *Server) finishManage(h store.Handle) {
	hot := s.clients.Hot(h)
	cold := s.clients.Cold(h)
	if hot == nil || hot.State != StateReady {
		return
	}

	if cold.TransientForWin != 0 {
		if parent := s.lookup(cold.TransientForWin); parent != store.Invalid {
			s.linkTransient(h, parent)
		}
	}
	hot.Layer = s.initialLayer(h)
	s.placeInitial(h)

	if s.X != nil {
		s.createFrame(h)
		s.mapClient(h)
	}

	hot.State = StateMapped
	s.appendToLayer(h, hot.Layer)
	hot.Dirty |= DirtyGeom | DirtyStack | DirtyState | DirtyFrame
	s.rootDirty |= RootDirtyClientList | RootDirtyClientListStacking
	if cold.HasStrut {
		s.rootDirty |= RootDirtyWorkarea
	}
	s.stats.Managed++

	if !hot.StartIconic {
		switch {
		case hot.Window == s.restoredActive:
			// The pre-restart active window takes its focus back.
			s.restoredActive = 0
			s.SetFocus(h)
		case s.restoredActive == 0 || s.lookup(s.restoredActive) == store.Invalid:
			s.SetFocus(h)
		}
	} else {
		hot.Flags |= FlagHidden
		hot.State = StateUnmapped
	}

	queued := cold.QueuedState
	cold.QueuedState = nil
	for _, msg := range queued {
		s.applyStateMessage(h, msg)
	}
	s.log.Info("Managed window", "window", hot.Window, "handle", h.String(),
		"class", cold.Class, "layer", hot.Layer.String())
}

// initialLayer derives the starting layer from window type and state flags.
func (s *Server) initialLayer(h store.Handle) Layer {
	hot := s.clients.Hot(h)
	cold := s.clients.Cold(h)
	a := s.Atoms

	if hot.Flags&FlagFullscreen != 0 {
		return LayerFullscreen
	}
	for _, t := range cold.WindowTypes {
		switch t {
		case a.NetWMWindowTypeDesktop:
			return LayerDesktop
		case a.NetWMWindowTypeDock:
			return LayerDock
		case a.NetWMWindowTypeNotification, a.NetWMWindowTypeTooltip:
			return LayerOverlay
		}
	}
	if hot.Flags&FlagAbove != 0 {
		return LayerAbove
	}
	if hot.Flags&FlagBelow != 0 {
		return LayerBelow
	}
	return LayerNormal
}

func (s *Server) createFrame(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot.Frame != 0 || !hot.Decorated {
		return
	}
	frame, err := xproto.NewWindowId(s.X)
	if err != nil {
		s.log.Error("Allocating frame id failed", "err", err)
		return
	}
	hot.Frame = frame
	s.byFrame.Put(uint64(frame), h)

	fg := s.frameGeometry(hot)
	hot.FrameGeom = fg
	mask := uint32(xproto.CwEventMask)
	values := []uint32{
		xproto.EventMaskSubstructureRedirect | xproto.EventMaskSubstructureNotify |
			xproto.EventMaskExposure | xproto.EventMaskButtonPress |
			xproto.EventMaskButtonRelease | xproto.EventMaskPointerMotion |
			xproto.EventMaskEnterWindow,
	}
	xproto.CreateWindow(s.X, s.Screen.RootDepth, frame, s.Root,
		fg.X, fg.Y, fg.W, fg.H, 0, xproto.WindowClassInputOutput,
		s.Screen.RootVisual, mask, values)

	if s.damageOK {
		if did, err := damage.NewDamageId(s.X); err == nil {
			hot.Damage = did
			damage.Create(s.X, did, xproto.Drawable(frame), damage.ReportLevelNonEmpty)
		}
	}

	l, _, t, _ := s.opts.Theme.FrameExtents()
	xproto.ChangeSaveSet(s.X, xproto.SetModeInsert, hot.Window)
	if hot.MappedOnServer {
		// Reparenting a mapped window generates one unmap we must ignore.
		hot.IgnoreUnmaps++
	}
	xproto.ReparentWindow(s.X, hot.Window, frame, int16(l), int16(t))
	xproto.ChangeWindowAttributes(s.X, hot.Window, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange | xproto.EventMaskStructureNotify |
			xproto.EventMaskFocusChange})
}

func (s *Server) mapClient(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot.Frame != 0 {
		xproto.MapWindow(s.X, hot.Window)
		xproto.MapWindow(s.X, hot.Frame)
	} else {
		xproto.MapWindow(s.X, hot.Window)
	}
	hot.MappedOnServer = true
	s.setICCCMState(hot.Window, ewmh.NormalState)
}

// unmanage is the idempotent teardown path. Any second call while already
// Unmanaging or after destruction is a no-op; stale handles fall out at the
// store lookup.
func (s *Server) unmanage(h store.Handle, destroyed bool) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	if hot.State == StateUnmanaging || hot.State == StateDestroyed {
		return
	}
	if hot.State == StateNew {
		s.abortManage(h, "destroyed during discovery")
		return
	}
	hot.State = StateUnmanaging
	cold := s.clients.Cold(h)

	if s.interaction.Target == h {
		s.CancelInteraction()
	}
	s.removeFromLayer(h)
	s.focusUnlink(h)
	// Refocus reads the transient parent link, so it runs before the unlink.
	s.refocusAfter(h)
	s.unlinkTransient(h)

	if hot.Frame != 0 {
		s.byFrame.Delete(uint64(hot.Frame))
		if s.X != nil {
			if hot.Damage != 0 {
				damage.Destroy(s.X, hot.Damage)
				hot.Damage = 0
			}
			if !destroyed {
				l, _, t, _ := s.opts.Theme.FrameExtents()
				xproto.ReparentWindow(s.X, hot.Window, s.Root,
					hot.Geom.X-int16(l), hot.Geom.Y-int16(t))
				xproto.ChangeSaveSet(s.X, xproto.SetModeDelete, hot.Window)
			}
			xproto.DestroyWindow(s.X, hot.Frame)
		}
	}
	if !destroyed && s.X != nil {
		s.setICCCMState(hot.Window, ewmh.WithdrawnState)
	}

	s.byWindow.Delete(uint64(hot.Window))
	if cold.HasStrut {
		s.rootDirty |= RootDirtyWorkarea
	}
	s.rootDirty |= RootDirtyClientList | RootDirtyClientListStacking
	hot.State = StateDestroyed
	s.clients.Free(h)
	s.stats.Unmanaged++
	s.log.Debug("Unmanaged window", "handle", h.String(), "destroyed", destroyed)
}

func (s *Server) setICCCMState(win xproto.Window, state uint32) {
	xproto.ChangeProperty(s.X, xproto.PropModeReplace, win, s.Atoms.WMState,
		s.Atoms.WMState, 32, 2, encodeCardPair(state, 0))
}

// sendProtocolMessage delivers a WM_PROTOCOLS client message (ping, delete,
// take-focus) to win.
func (s *Server) sendProtocolMessage(win xproto.Window, protocol xproto.Atom) {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   s.Atoms.WMProtocols,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(protocol), uint32(s.lastTime), 0, 0, 0,
		}),
	}
	xproto.SendEvent(s.X, false, win, xproto.EventMaskNoEvent, string(ev.Bytes()))
}

// CloseClient asks win to go away politely when it speaks WM_DELETE_WINDOW,
// otherwise kills the connection.
func (s *Server) CloseClient(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	if hot.DeletesSelf {
		s.sendProtocolMessage(hot.Window, s.Atoms.WMDeleteWindow)
		return
	}
	xproto.KillClient(s.X, uint32(hot.Window))
}

// queueStateMessage holds a _NET_WM_STATE wish that arrived before discovery
// finished. The queue is bounded; overflow is dropped loudly.
func (s *Server) queueStateMessage(h store.Handle, msg StateMessage) {
	cold := s.clients.Cold(h)
	if cold == nil {
		return
	}
	if len(cold.QueuedState) >= maxQueuedState {
		s.log.Warn("Dropping queued state message", "handle", h.String(), "action", msg.Action)
		return
	}
	cold.QueuedState = append(cold.QueuedState, msg)
}

// applyStateMessage mutates the window's state flags per one _NET_WM_STATE
// message and marks the affected dirty bits.
func (s *Server) applyStateMessage(h store.Handle, msg StateMessage) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}

	apply := func(flag StateFlags) {
		switch msg.Action {
		case StateAdd:
			hot.Flags |= flag
		case StateRemove:
			hot.Flags &^= flag
		case StateToggle:
			hot.Flags ^= flag
		}
	}

	for _, atom := range []xproto.Atom{msg.First, msg.Second} {
		if atom == 0 {
			continue
		}
		a := s.Atoms
		switch atom {
		case a.NetWMStateFullscreen:
			was := hot.Flags & FlagFullscreen
			apply(FlagFullscreen)
			if hot.Flags&FlagFullscreen != was {
				if hot.Flags&FlagFullscreen != 0 {
					s.MoveToLayer(h, LayerFullscreen)
				} else {
					s.MoveToLayer(h, s.initialLayerAfterFullscreen(h))
				}
				hot.Dirty |= DirtyGeom | DirtyFrameStyle
			}
		case a.NetWMStateAbove:
			apply(FlagAbove)
			s.MoveToLayer(h, s.layerForFlags(hot.Flags))
		case a.NetWMStateBelow:
			apply(FlagBelow)
			s.MoveToLayer(h, s.layerForFlags(hot.Flags))
		case a.NetWMStateSticky:
			apply(FlagSticky)
		case a.NetWMStateHidden:
			apply(FlagHidden)
		case a.NetWMStateMaximizedHorz:
			apply(FlagMaxHorz)
			hot.Dirty |= DirtyGeom
		case a.NetWMStateMaximizedVert:
			apply(FlagMaxVert)
			hot.Dirty |= DirtyGeom
		case a.NetWMStateModal:
			apply(FlagModal)
		case a.NetWMStateShaded:
			apply(FlagShaded)
			hot.Dirty |= DirtyGeom
		case a.NetWMStateSkipTaskbar:
			apply(FlagSkipTaskbar)
		case a.NetWMStateSkipPager:
			apply(FlagSkipPager)
		case a.NetWMStateDemandsAttention:
			apply(FlagDemandsAttention)
			hot.Urgent = msg.Action != StateRemove
			hot.Dirty |= DirtyFrameStyle
		default:
			continue
		}
		hot.Dirty |= DirtyState
	}
}

func (s *Server) layerForFlags(flags StateFlags) Layer {
	switch {
	case flags&FlagFullscreen != 0:
		return LayerFullscreen
	case flags&FlagAbove != 0:
		return LayerAbove
	case flags&FlagBelow != 0:
		return LayerBelow
	}
	return LayerNormal
}

func (s *Server) initialLayerAfterFullscreen(h store.Handle) Layer {
	hot := s.clients.Hot(h)
	if hot == nil {
		return LayerNormal
	}
	return s.layerForFlags(hot.Flags &^ FlagFullscreen)
}

func encodeCardPair(a, b uint32) []byte {
	return ewmh.EncodeCardinals([]uint32{a, b})
}
