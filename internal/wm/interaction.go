package wm

import (
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/store"
)

// InteractionKind says what the pointer grab is doing.
type InteractionKind uint8

const (
	InteractNone InteractionKind = iota
	InteractMove
	InteractResize
)

// Interaction is the state of an active pointer move or resize. There is at
// most one at a time.
type Interaction struct {
	Kind   InteractionKind
	Target store.Handle

	// Pointer and window geometry at grab time.
	StartX, StartY int16
	StartGeom      Geometry

	// Resize edge mask, bit 0 left, 1 right, 2 top, 3 bottom.
	Edges uint8
}

const (
	edgeLeft = 1 << iota
	edgeRight
	edgeTop
	edgeBottom
)

// BeginMove starts a pointer move of h anchored at the given root position.
func (s *Server) BeginMove(h store.Handle, rootX, rootY int16) {
	hot := s.clients.Hot(h)
	if hot == nil || hot.State != StateMapped {
		return
	}
	s.CancelInteraction()
	s.interaction = Interaction{
		Kind:   InteractMove,
		Target: h,
		StartX: rootX, StartY: rootY,
		StartGeom: hot.Geom,
	}
	s.grabPointer(s.cursors.Move)
	s.Raise(h)
}

// BeginResize starts a pointer resize. The dragged edges are chosen from the
// grab position's quadrant within the window.
func (s *Server) BeginResize(h store.Handle, rootX, rootY int16) {
	hot := s.clients.Hot(h)
	if hot == nil || hot.State != StateMapped {
		return
	}
	s.CancelInteraction()

	var edges uint8
	if rootX < hot.Geom.X+int16(hot.Geom.W/2) {
		edges |= edgeLeft
	} else {
		edges |= edgeRight
	}
	if rootY < hot.Geom.Y+int16(hot.Geom.H/2) {
		edges |= edgeTop
	} else {
		edges |= edgeBottom
	}

	s.interaction = Interaction{
		Kind:   InteractResize,
		Target: h,
		StartX: rootX, StartY: rootY,
		StartGeom: hot.Geom,
		Edges:     edges,
	}
	s.grabPointer(s.cursors.Resize)
	s.Raise(h)
}

func (s *Server) grabPointer(c xproto.Cursor) {
	if s.X == nil {
		return
	}
	xproto.GrabPointer(s.X, false, s.Root,
		xproto.EventMaskButtonRelease|xproto.EventMaskPointerMotion,
		xproto.GrabModeAsync, xproto.GrabModeAsync, s.Root, c,
		s.lastTime)
}

// CancelInteraction releases any pointer grab and resets interaction state.
// Safe to call when nothing is active, any number of times.
func (s *Server) CancelInteraction() {
	if s.interaction.Kind == InteractNone {
		return
	}
	s.interaction = Interaction{}
	if s.X != nil {
		xproto.UngrabPointer(s.X, s.lastTime)
	}
}

// updateInteraction applies one (coalesced) pointer position to the active
// move or resize. Geometry changes go through the dirty bit, so at most one
// reconfigure reaches the wire per tick regardless of motion event volume.
func (s *Server) updateInteraction(rootX, rootY int16) {
	in := &s.interaction
	if in.Kind == InteractNone {
		return
	}
	hot := s.clients.Hot(in.Target)
	if hot == nil {
		s.CancelInteraction()
		return
	}

	dx := rootX - in.StartX
	dy := rootY - in.StartY

	switch in.Kind {
	case InteractMove:
		hot.Geom.X = in.StartGeom.X + dx
		hot.Geom.Y = in.StartGeom.Y + dy
		hot.Geom = s.snapToEdges(hot.Geom)

	case InteractResize:
		g := in.StartGeom
		if in.Edges&edgeRight != 0 {
			g.W = addClamped(g.W, int32(dx))
		}
		if in.Edges&edgeBottom != 0 {
			g.H = addClamped(g.H, int32(dy))
		}
		if in.Edges&edgeLeft != 0 {
			g.W = addClamped(g.W, int32(-dx))
			g.X = in.StartGeom.X + dx
		}
		if in.Edges&edgeTop != 0 {
			g.H = addClamped(g.H, int32(-dy))
			g.Y = in.StartGeom.Y + dy
		}
		cold := s.clients.Cold(in.Target)
		g.W, g.H = constrainSize(cold.SizeHints, g.W, g.H)
		// Keep the opposite edge anchored after constraining.
		if in.Edges&edgeLeft != 0 {
			g.X = in.StartGeom.X + int16(int32(in.StartGeom.W)-int32(g.W))
		}
		if in.Edges&edgeTop != 0 {
			g.Y = in.StartGeom.Y + int16(int32(in.StartGeom.H)-int32(g.H))
		}
		hot.Geom = g
	}
	hot.Dirty |= DirtyGeom
}

// EndInteraction commits the final geometry and releases the grab.
func (s *Server) EndInteraction() {
	if s.interaction.Kind == InteractNone {
		return
	}
	if hot := s.clients.Hot(s.interaction.Target); hot != nil {
		hot.Dirty |= DirtyGeom
	}
	s.CancelInteraction()
}

func addClamped(base uint16, delta int32) uint16 {
	v := int32(base) + delta
	if v < 1 {
		return 1
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

const snapDistance = 16

// snapToEdges pulls a moving window flush against the screen borders when it
// gets close enough.
func (s *Server) snapToEdges(g Geometry) Geometry {
	if abs16(g.X) <= snapDistance {
		g.X = 0
	}
	if abs16(g.Y) <= snapDistance {
		g.Y = 0
	}
	right := int32(s.screenW) - int32(g.X) - int32(g.W)
	if right >= -snapDistance && right <= snapDistance {
		g.X = int16(int32(s.screenW) - int32(g.W))
	}
	bottom := int32(s.screenH) - int32(g.Y) - int32(g.H)
	if bottom >= -snapDistance && bottom <= snapDistance {
		g.Y = int16(int32(s.screenH) - int32(g.H))
	}
	return g
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
