package wm

import (
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/ewmh"
	"github.com/stratawm/strata/internal/jar"
	"github.com/stratawm/strata/internal/store"
)

// Property fetch length cap, in 32-bit units. Icons are the only large
// property and this admits a 1024x1024 ARGB image.
const propWords = 1 << 20

// fetch glue: every async request registers its cookie in the jar, then a
// goroutine blocks on the typed reply and posts the completion. The tick
// goroutine feeds completions into the jar and drains at the tick boundary,
// so handlers always run with exclusive ownership of all state.

func (s *Server) fetchAttributes(h store.Handle, win xproto.Window) {
	cookie := xproto.GetWindowAttributes(s.X, win)
	seq := uint32(cookie.Sequence)
	s.jar.Push(seq, jar.KindGetAttributes, h, 0, s.onDiscoveryReply)
	go func() {
		reply, err := cookie.Reply()
		s.postCompletion(seq, reply, err)
	}()
}

func (s *Server) fetchGeometry(h store.Handle, win xproto.Window) {
	cookie := xproto.GetGeometry(s.X, xproto.Drawable(win))
	seq := uint32(cookie.Sequence)
	s.jar.Push(seq, jar.KindGetGeometry, h, 0, s.onDiscoveryReply)
	go func() {
		reply, err := cookie.Reply()
		s.postCompletion(seq, reply, err)
	}()
}

func (s *Server) fetchProperty(h store.Handle, win xproto.Window, atom xproto.Atom, handler jar.Handler) {
	cookie := xproto.GetProperty(s.X, false, win, atom, xproto.GetPropertyTypeAny, 0, propWords)
	seq := uint32(cookie.Sequence)
	s.jar.Push(seq, jar.KindGetProperty, h, uint64(atom), handler)
	go func() {
		reply, err := cookie.Reply()
		s.postCompletion(seq, reply, err)
	}()
}

func (s *Server) postCompletion(seq uint32, reply any, err error) {
	if err != nil {
		// Keep the interface nil when the typed pointer is nil.
		s.completions <- completion{seq: seq, err: err}
		return
	}
	s.completions <- completion{seq: seq, reply: reply}
}

// issueDiscovery fires the full fetch burst for a new window. The count must
// match discoveryFetches; the pending counter is what gates finishManage.
func (s *Server) issueDiscovery(h store.Handle, win xproto.Window) {
	a := s.Atoms
	s.fetchAttributes(h, win)
	s.fetchGeometry(h, win)
	for _, atom := range []xproto.Atom{
		a.WMClass,
		a.WMName,
		a.NetWMName,
		a.WMIconName,
		a.NetWMIconName,
		a.WMHints,
		a.WMNormalHints,
		a.WMProtocols,
		a.WMTransientFor,
		a.WMClientMachine,
		a.WMColormapWindows,
		a.WMState,
		a.NetWMState,
		a.NetWMWindowType,
		a.NetWMDesktop,
		a.NetWMStrut,
		a.NetWMStrutPartial,
		a.NetWMIcon,
		a.NetWMIconGeometry,
		a.NetWMPid,
		a.NetWMUserTime,
		a.NetWMUserTimeWindow,
		a.NetWMSyncRequestCounter,
		a.MotifWMHints,
		a.NetWMWindowOpacity,
		a.GTKFrameExtents,
	} {
		s.fetchProperty(h, win, atom, s.onDiscoveryReply)
	}
}

// onDiscoveryReply is the shared handler for the discovery burst. Timeouts
// and protocol errors count the step done but leave the field absent;
// override-redirect aborts the whole attempt.
func (s *Server) onDiscoveryReply(slot jar.Slot, reply any, err error) {
	h := slot.Client
	hot := s.clients.Hot(h)
	if hot == nil {
		// Window torn down while the reply was in flight. Stale handle, drop.
		return
	}

	switch {
	case err != nil:
		s.stats.ProtoErrors++
		s.log.Debug("Discovery fetch failed", "handle", h.String(), "kind", slot.Kind, "err", err)
	case reply == nil:
		s.stats.Timeouts++
		s.log.Warn("Discovery fetch timed out", "handle", h.String(), "kind", slot.Kind)
	default:
		s.applyDiscoveryReply(h, slot, reply)
	}

	if hot = s.clients.Hot(h); hot != nil {
		s.discoveryStep(h)
	}
}

func (s *Server) applyDiscoveryReply(h store.Handle, slot jar.Slot, reply any) {
	switch slot.Kind {
	case jar.KindGetAttributes:
		if r, ok := reply.(*xproto.GetWindowAttributesReply); ok {
			s.applyAttributes(h, r)
		}
	case jar.KindGetGeometry:
		if r, ok := reply.(*xproto.GetGeometryReply); ok {
			s.applyGeometry(h, r)
		}
	case jar.KindGetProperty:
		if r, ok := reply.(*xproto.GetPropertyReply); ok {
			s.applyProperty(h, xproto.Atom(slot.Data), r)
		}
	}
}

// applyAttributes handles the one reply that can veto management.
func (s *Server) applyAttributes(h store.Handle, r *xproto.GetWindowAttributesReply) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	if r.OverrideRedirect {
		hot.OverrideRedirect = true
		s.abortManage(h, "override-redirect")
		return
	}
	hot.MappedOnServer = r.MapState == xproto.MapStateViewable
}

func (s *Server) applyGeometry(h store.Handle, r *xproto.GetGeometryReply) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	hot.Geom = Geometry{X: r.X, Y: r.Y, W: r.Width, H: r.Height}
	hot.Border = r.BorderWidth
}

// applyProperty decodes one property reply into the record. Garbage decodes
// to "absent"; nothing here can fail the manage attempt.
func (s *Server) applyProperty(h store.Handle, atom xproto.Atom, r *xproto.GetPropertyReply) {
	hot := s.clients.Hot(h)
	cold := s.clients.Cold(h)
	if hot == nil {
		return
	}
	a := s.Atoms

	switch atom {
	case a.WMClass:
		if inst, class, ok := ewmh.Class(r); ok {
			cold.Instance, cold.Class = inst, class
		}
	case a.NetWMName:
		if t, ok := ewmh.Text(r); ok {
			cold.Title = t
		}
	case a.WMName:
		if cold.Title == "" {
			if t, ok := ewmh.Latin1Text(r); ok {
				cold.Title = t
			}
		}
	case a.NetWMIconName:
		if t, ok := ewmh.Text(r); ok {
			cold.IconTitle = t
		}
	case a.WMIconName:
		if cold.IconTitle == "" {
			if t, ok := ewmh.Latin1Text(r); ok {
				cold.IconTitle = t
			}
		}
	case a.WMHints:
		if hints, ok := ewmh.Hints(r); ok {
			cold.Hints = hints
			hot.InputHint = !hints.InputSet || hints.Input
			hot.Urgent = hints.Urgent
			hot.StartIconic = hints.StateSet && hints.InitialState == ewmh.IconicState
		} else {
			hot.InputHint = true
		}
	case a.WMNormalHints:
		if sh, ok := ewmh.NormalHints(r); ok {
			cold.SizeHints = sh
		}
	case a.WMProtocols:
		cold.Protocols = ewmh.Atoms(r)
		for _, p := range cold.Protocols {
			switch p {
			case a.WMDeleteWindow:
				hot.DeletesSelf = true
			case a.WMTakeFocus:
				hot.TakesFocus = true
			case a.NetWMPing:
				hot.AnswersPing = true
			}
		}
	case a.WMTransientFor:
		if win, ok := ewmh.Window(r); ok {
			cold.TransientForWin = win
		}
	case a.WMClientMachine:
		if t, ok := ewmh.Latin1Text(r); ok {
			cold.Machine = t
		}
	case a.NetWMState:
		for _, st := range ewmh.Atoms(r) {
			s.applyStateMessage(h, StateMessage{Action: StateAdd, First: st})
		}
	case a.NetWMWindowType:
		cold.WindowTypes = ewmh.Atoms(r)
	case a.NetWMDesktop:
		if v, ok := ewmh.Cardinal(r); ok {
			hot.Desktop = v
		}
	case a.NetWMStrutPartial:
		if strut, ok := ewmh.StrutPartial(r); ok && !strut.Zero() {
			cold.Strut = strut
			cold.HasStrut = true
		}
	case a.NetWMStrut:
		if !cold.HasStrut {
			if strut, ok := ewmh.StrutPlain(r, uint32(s.screenW), uint32(s.screenH)); ok && !strut.Zero() {
				cold.Strut = strut
				cold.HasStrut = true
			}
		}
	case a.NetWMIcon:
		if !ewmh.IconSane(r) {
			s.log.Debug("Rejecting malformed icon", "handle", h.String())
		}
	case a.NetWMPid:
		if v, ok := ewmh.Cardinal(r); ok {
			cold.Pid = v
		}
	case a.NetWMUserTime:
		if v, ok := ewmh.Cardinal(r); ok {
			cold.UserTime = v
		}
	case a.NetWMUserTimeWindow:
		if win, ok := ewmh.Window(r); ok {
			cold.UserTimeWindow = win
		}
	case a.NetWMSyncRequestCounter:
		if v, ok := ewmh.Cardinal(r); ok {
			cold.SyncCounter = v
		}
	case a.MotifWMHints:
		if m, ok := ewmh.Motif(r); ok && m.DecorationsSet {
			hot.Decorated = m.Decorated
		}
	case a.NetWMWindowOpacity:
		if v, ok := ewmh.Opacity(r); ok {
			hot.HasOpacity = true
			hot.Opacity = v
		}
	}
}

// refetchProperty re-issues a single property fetch for a managed window,
// used by the flush engine instead of trusting cached data.
func (s *Server) refetchProperty(h store.Handle, atom xproto.Atom) {
	hot := s.clients.Hot(h)
	if hot == nil || s.X == nil {
		return
	}
	s.fetchProperty(h, hot.Window, atom, s.onRefetchReply)
}

// onRefetchReply applies a post-management property update and re-marks the
// dependent dirty bits so the next flush pushes the new value.
func (s *Server) onRefetchReply(slot jar.Slot, reply any, err error) {
	h := slot.Client
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	if err != nil {
		s.stats.ProtoErrors++
		return
	}
	r, ok := reply.(*xproto.GetPropertyReply)
	if !ok {
		s.stats.Timeouts++
		return
	}
	atom := xproto.Atom(slot.Data)

	a := s.Atoms
	cold := s.clients.Cold(h)
	oldTitle := cold.Title
	hadStrut := cold.HasStrut
	if atom == a.NetWMName || atom == a.WMName {
		cold.Title = ""
	}
	if atom == a.NetWMStrut || atom == a.NetWMStrutPartial {
		cold.HasStrut = false
		cold.Strut = ewmh.Strut{}
	}

	s.applyProperty(h, atom, r)

	if (atom == a.NetWMName || atom == a.WMName) && cold.Title != oldTitle {
		hot.Dirty |= DirtyFrame
	}
	if (atom == a.NetWMStrut || atom == a.NetWMStrutPartial) &&
		(hadStrut || cold.HasStrut) {
		s.rootDirty |= RootDirtyWorkarea
	}
	if atom == a.NetWMWindowOpacity || atom == a.MotifWMHints {
		hot.Dirty |= DirtyFrameStyle
	}
}
