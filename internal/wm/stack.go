package wm

import (
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/store"
)

// Layer stacks are ordered bottom to top. Each hot record caches its index
// within its layer; the cache is verified before use and a linear scan backs
// it up, so a stale index can never remove the wrong window.

// indexInLayer finds h inside its layer, trusting the cached index only when
// it still points at h.
func (s *Server) indexInLayer(h store.Handle) int {
	hot := s.clients.Hot(h)
	if hot == nil {
		return -1
	}
	stack := &s.layers[hot.Layer]
	if hot.LayerIndex >= 0 && hot.LayerIndex < stack.Len() && stack.At(hot.LayerIndex) == h {
		return hot.LayerIndex
	}
	return stack.Index(func(x store.Handle) bool { return x == h })
}

// removeFromLayer takes h out of its layer. Idempotent: absent windows are a
// no-op.
func (s *Server) removeFromLayer(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	i := s.indexInLayer(h)
	if i < 0 {
		return
	}
	stack := &s.layers[hot.Layer]
	stack.Remove(i)
	for k := i; k < stack.Len(); k++ {
		if sib := s.clients.Hot(stack.At(k)); sib != nil {
			sib.LayerIndex = k
		}
	}
	hot.LayerIndex = -1
}

func (s *Server) appendToLayer(h store.Handle, layer Layer) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	hot.Layer = layer
	hot.LayerIndex = s.layers[layer].Len()
	s.layers[layer].Push(h)
}

func (s *Server) insertInLayer(h store.Handle, layer Layer, at int) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	stack := &s.layers[layer]
	if at < 0 {
		at = 0
	}
	if at > stack.Len() {
		at = stack.Len()
	}
	stack.Insert(at, h)
	hot.Layer = layer
	for k := at; k < stack.Len(); k++ {
		if sib := s.clients.Hot(stack.At(k)); sib != nil {
			sib.LayerIndex = k
		}
	}
}

// Raise moves h to the top of its layer, then re-raises its transient
// children above it, preserving their relative order. The whole parent and
// dialog group moves together.
func (s *Server) Raise(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	s.raiseOne(h)
	s.raiseChildren(h)
}

func (s *Server) raiseOne(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	s.removeFromLayer(h)
	s.appendToLayer(h, hot.Layer)
	hot.Dirty |= DirtyStack
	s.rootDirty |= RootDirtyClientListStacking
}

func (s *Server) raiseChildren(h store.Handle) {
	for _, child := range s.childrenInStackOrder(h) {
		s.raiseOne(child)
		s.raiseChildren(child)
	}
}

// Lower sinks h's transient children first, then h itself, so the group ends
// at the layer bottom with the parent below its dialogs.
func (s *Server) Lower(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	kids := s.childrenInStackOrder(h)
	for i := len(kids) - 1; i >= 0; i-- {
		s.Lower(kids[i])
	}
	s.lowerOne(h)
}

func (s *Server) lowerOne(h store.Handle) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return
	}
	s.removeFromLayer(h)
	s.insertInLayer(h, hot.Layer, 0)
	hot.Dirty |= DirtyStack
	s.rootDirty |= RootDirtyClientListStacking
}

// PlaceAbove puts h directly above sibling. Cross-layer requests degrade to a
// plain raise of h in its own layer.
func (s *Server) PlaceAbove(h, sibling store.Handle) {
	hot := s.clients.Hot(h)
	sib := s.clients.Hot(sibling)
	if hot == nil {
		return
	}
	if sib == nil || sib.Layer != hot.Layer {
		s.Raise(h)
		return
	}
	s.removeFromLayer(h)
	at := s.indexInLayer(sibling) + 1
	s.insertInLayer(h, hot.Layer, at)
	hot.Dirty |= DirtyStack
	s.rootDirty |= RootDirtyClientListStacking
}

// PlaceBelow puts h directly below sibling, degrading to a full lower across
// layers.
func (s *Server) PlaceBelow(h, sibling store.Handle) {
	hot := s.clients.Hot(h)
	sib := s.clients.Hot(sibling)
	if hot == nil {
		return
	}
	if sib == nil || sib.Layer != hot.Layer {
		s.Lower(h)
		return
	}
	s.removeFromLayer(h)
	at := s.indexInLayer(sibling)
	s.insertInLayer(h, hot.Layer, at)
	hot.Dirty |= DirtyStack
	s.rootDirty |= RootDirtyClientListStacking
}

// MoveToLayer reassigns h's layer band and raises it within the new one.
// Windows not yet in any stack (still under discovery) only get the layer
// recorded; finishManage inserts them later.
func (s *Server) MoveToLayer(h store.Handle, layer Layer) {
	hot := s.clients.Hot(h)
	if hot == nil || hot.Layer == layer {
		return
	}
	if s.indexInLayer(h) < 0 {
		hot.Layer = layer
		return
	}
	s.removeFromLayer(h)
	s.appendToLayer(h, layer)
	hot.Dirty |= DirtyStack
	s.rootDirty |= RootDirtyClientListStacking
	s.raiseChildren(h)
}

// childrenInStackOrder collects h's transient children sorted by their
// current global stacking position, bottom first.
func (s *Server) childrenInStackOrder(h store.Handle) []store.Handle {
	hot := s.clients.Hot(h)
	if hot == nil || hot.FirstChild == store.Invalid {
		return nil
	}

	var kids []store.Handle
	for child := hot.FirstChild; child != store.Invalid; {
		ch := s.clients.Hot(child)
		if ch == nil {
			break
		}
		kids = append(kids, child)
		child = ch.NextSibling
	}
	if len(kids) < 2 {
		return kids
	}

	pos := make(map[store.Handle]int, len(kids))
	order := 0
	for layer := Layer(0); layer < layerCount; layer++ {
		stack := &s.layers[layer]
		for i := 0; i < stack.Len(); i++ {
			pos[stack.At(i)] = order
			order++
		}
	}
	// Insertion sort; transient groups are tiny.
	for i := 1; i < len(kids); i++ {
		for j := i; j > 0 && pos[kids[j-1]] > pos[kids[j]]; j-- {
			kids[j-1], kids[j] = kids[j], kids[j-1]
		}
	}
	return kids
}

// globalOrder flattens all layers into the total bottom-to-top z-order.
func (s *Server) globalOrder() []store.Handle {
	var out []store.Handle
	for layer := Layer(0); layer < layerCount; layer++ {
		stack := &s.layers[layer]
		for i := 0; i < stack.Len(); i++ {
			out = append(out, stack.At(i))
		}
	}
	return out
}

// restackPlan expresses h's position for the wire: above the neighbor
// directly below it if one exists, else below the neighbor above, else an
// absolute raise. Anchoring to the physical neighbor keeps restacks minimal.
type restackPlan struct {
	Window  xproto.Window
	Sibling xproto.Window
	Mode    byte
}

func (s *Server) planRestack(h store.Handle, order []store.Handle) (restackPlan, bool) {
	hot := s.clients.Hot(h)
	if hot == nil {
		return restackPlan{}, false
	}
	target := hot.Frame
	if target == 0 {
		target = hot.Window
	}

	at := -1
	for i, x := range order {
		if x == h {
			at = i
			break
		}
	}
	if at < 0 {
		return restackPlan{}, false
	}

	if at > 0 {
		if below := s.clients.Hot(order[at-1]); below != nil {
			sib := below.Frame
			if sib == 0 {
				sib = below.Window
			}
			return restackPlan{Window: target, Sibling: sib, Mode: xproto.StackModeAbove}, true
		}
	}
	if at+1 < len(order) {
		if above := s.clients.Hot(order[at+1]); above != nil {
			sib := above.Frame
			if sib == 0 {
				sib = above.Window
			}
			return restackPlan{Window: target, Sibling: sib, Mode: xproto.StackModeBelow}, true
		}
	}
	return restackPlan{Window: target, Mode: xproto.StackModeAbove}, true
}
