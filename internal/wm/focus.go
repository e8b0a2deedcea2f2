package wm

import (
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/store"
)

// Focus history is a doubly linked MRU list threaded through the hot records
// (FocusPrev/FocusNext), head most-recent. Unlinking always clears the node's
// own links so a removed window can never chain into live list state.

func (s *Server) focusUnlink(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	if prev := s.clients.Hot(hot.FocusPrev); prev != nil {
		prev.FocusNext = hot.FocusNext
	}
	if next := s.clients.Hot(hot.FocusNext); next != nil {
		next.FocusPrev = hot.FocusPrev
	}
	if s.focusHead == h {
		s.focusHead = hot.FocusNext
	}
	hot.FocusPrev = store.Invalid
	hot.FocusNext = store.Invalid
}

// focusTouch moves h to the front of the MRU list.
func (s *Server) focusTouch(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	if s.focusHead == h {
		return
	}
	s.focusUnlink(h)
	hot.FocusNext = s.focusHead
	if head := s.clients.Hot(s.focusHead); head != nil {
		head.FocusPrev = h
	}
	s.focusHead = h
}

// focusCandidate walks the MRU list for the most recent window that is
// mapped, on the current desktop and not excluded.
func (s *Server) focusCandidate(exclude store.Handle) store.Handle {
	for h := s.focusHead; h != store.Invalid; {
		hot := s.clients.Hot(h)
		if hot == nil {
			break
		}
		if h != exclude && hot.State == StateMapped && s.onCurrentDesktop(hot) {
			return h
		}
		h = hot.FocusNext
	}
	return store.Invalid
}

func (s *Server) onCurrentDesktop(hot *ClientHot) bool {
	return hot.Flags&FlagSticky != 0 || hot.Desktop == s.currentDesktop || hot.Desktop == 0xFFFFFFFF
}

// SetFocus makes h the focused window (Invalid reverts to the root). The
// input focus itself is committed during flush via the active-window bit.
func (s *Server) SetFocus(h store.Handle) {
	if s.focused == h {
		return
	}
	if old := s.clients.Hot(s.focused); old != nil {
		old.Dirty |= DirtyFrameStyle | DirtyState
	}
	s.focused = h
	if hot := s.clients.Hot(h); hot != nil {
		hot.Dirty |= DirtyFrameStyle | DirtyState
		hot.Urgent = false
		s.focusTouch(h)
	}
	s.rootDirty |= RootDirtyActiveWindow
}

// refocusAfter picks a replacement when leaving leaves the focus: a mapped
// transient parent wins, then the MRU list, then nothing.
func (s *Server) refocusAfter(leaving store.Handle) {
	if s.focused != leaving {
		return
	}
	if hot := s.clients.Hot(leaving); hot != nil {
		if parent := s.clients.Hot(hot.Parent); parent != nil && parent.State == StateMapped {
			s.SetFocus(hot.Parent)
			return
		}
	}
	s.SetFocus(s.focusCandidate(leaving))
}

// commitFocus pushes the current focus to the server. Windows with the
// no-input hint get WM_TAKE_FOCUS instead of a SetInputFocus.
func (s *Server) commitFocus() {
	hot := s.clients.Hot(s.focused)
	if hot == nil || hot.State != StateMapped {
		xproto.SetInputFocus(s.X, xproto.InputFocusPointerRoot,
			xproto.Window(xproto.InputFocusPointerRoot), s.lastTime)
		return
	}
	if hot.InputHint {
		xproto.SetInputFocus(s.X, xproto.InputFocusParent, hot.Window, s.lastTime)
	}
	if hot.TakesFocus {
		s.sendProtocolMessage(hot.Window, s.Atoms.WMTakeFocus)
	}
}

// Transient parent/child tree, also intrusive handle links. A bounded-depth
// ancestor walk rejects cycles before linking.

const transientMaxDepth = 32

func (s *Server) linkTransient(child, parent store.Handle) {
	if child == parent || child == store.Invalid || parent == store.Invalid {
		return
	}
	for anc, depth := parent, 0; anc != store.Invalid && depth < transientMaxDepth; depth++ {
		if anc == child {
			s.log.Warn("Rejecting transient cycle", "child", child.String(), "parent", parent.String())
			return
		}
		hot := s.clients.Hot(anc)
		if hot == nil {
			break
		}
		anc = hot.Parent
	}

	ch := s.clients.Hot(child)
	ph := s.clients.Hot(parent)
	if ch == nil || ph == nil {
		return
	}
	s.unlinkTransient(child)

	ch.Parent = parent
	ch.NextSibling = ph.FirstChild
	if first := s.clients.Hot(ph.FirstChild); first != nil {
		first.PrevSibling = child
	}
	ph.FirstChild = child
}

// unlinkTransient detaches h from its parent's child list and orphans h's
// own children rather than leaving them pointing at a dead handle.
func (s *Server) unlinkTransient(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}

	if parent := s.clients.Hot(hot.Parent); parent != nil && parent.FirstChild == h {
		parent.FirstChild = hot.NextSibling
	}
	if prev := s.clients.Hot(hot.PrevSibling); prev != nil {
		prev.NextSibling = hot.NextSibling
	}
	if next := s.clients.Hot(hot.NextSibling); next != nil {
		next.PrevSibling = hot.PrevSibling
	}
	hot.Parent = store.Invalid
	hot.PrevSibling = store.Invalid
	hot.NextSibling = store.Invalid

	for child := hot.FirstChild; child != store.Invalid; {
		ch := s.clients.Hot(child)
		if ch == nil {
			break
		}
		next := ch.NextSibling
		ch.Parent = store.Invalid
		ch.PrevSibling = store.Invalid
		ch.NextSibling = store.Invalid
		child = next
	}
	hot.FirstChild = store.Invalid
}
