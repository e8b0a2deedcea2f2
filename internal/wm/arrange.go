package wm

import "github.com/stratawm/strata/internal/store"

// gridDims picks the smallest grid with at least count cells, widening before
// deepening, so 2 windows tile side by side and 3 become a 2x2 with a gap.
func gridDims(count int) (cols, rows int) {
	for cols*rows < count {
		cols++
		if cols*rows >= count {
			break
		}
		rows++
	}
	return cols, rows
}

// ArrangeGrid tiles the normal-layer windows of the current desktop into an
// even grid over the workarea. Windows on other layers, other desktops, or in
// any state but mapped are left where they are. Geometry reaches the wire
// through the usual dirty-flag flush.
func (s *Server) ArrangeGrid() {
	var targets []store.Handle
	for i := 0; i < s.layers[LayerNormal].Len(); i++ {
		h := s.layers[LayerNormal].At(i)
		hot := s.clients.Hot(h)
		if hot == nil || hot.State != StateMapped || !s.onCurrentDesktop(hot) {
			continue
		}
		targets = append(targets, h)
	}
	if len(targets) == 0 {
		return
	}

	wa := s.workarea()
	cols, rows := gridDims(len(targets))
	cellW := wa.W / uint16(cols)
	cellH := wa.H / uint16(rows)
	if cellW == 0 || cellH == 0 {
		return
	}

	for i, h := range targets {
		hot := s.clients.Hot(h)
		cold := s.clients.Cold(h)

		cell := Geometry{
			X: wa.X + int16(uint16(i%cols)*cellW),
			Y: wa.Y + int16(uint16(i/cols)*cellH),
			W: cellW, H: cellH,
		}

		// The cell bounds the frame; the client gets what remains inside
		// the chrome.
		g := cell
		if hot.Decorated && hot.Flags&FlagFullscreen == 0 {
			l, r, t, b := s.opts.Theme.FrameExtents()
			if cell.W > l+r && cell.H > t+b {
				g.X += int16(l)
				g.Y += int16(t)
				g.W -= l + r
				g.H -= t + b
			}
		}
		g.W, g.H = constrainSize(cold.SizeHints, g.W, g.H)

		hot.Geom = g
		hot.Dirty |= DirtyGeom
	}
	s.log.Debug("Arranged grid", "windows", len(targets), "cols", cols, "rows", rows)
}
