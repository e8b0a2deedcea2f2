package wm

import (
	"github.com/stratawm/strata/internal/ewmh"
	"github.com/stratawm/strata/internal/store"
)

// Workarea is the screen minus every dock strut.
type Workarea struct {
	X, Y int16
	W, H uint16
}

// workarea folds all live struts into the usable screen rectangle.
func (s *Server) workarea() Workarea {
	var left, right, top, bottom uint32
	s.clients.ForEach(func(_ store.Handle, hot *ClientHot, cold *ClientCold) {
		if !cold.HasStrut || hot.State == StateUnmanaging {
			return
		}
		st := cold.Strut
		if st.Left > left {
			left = st.Left
		}
		if st.Right > right {
			right = st.Right
		}
		if st.Top > top {
			top = st.Top
		}
		if st.Bottom > bottom {
			bottom = st.Bottom
		}
	})

	w := uint32(s.screenW)
	h := uint32(s.screenH)
	if left+right >= w || top+bottom >= h {
		return Workarea{W: s.screenW, H: s.screenH}
	}
	return Workarea{
		X: int16(left), Y: int16(top),
		W: uint16(w - left - right), H: uint16(h - top - bottom),
	}
}

// placeInitial positions a new window: honor requested geometry when the
// client supplied one away from the origin, otherwise center inside the
// workarea, then clamp on-screen.
func (s *Server) placeInitial(h store.Handle) {
	hot := s.clients.Hot(h)
	cold := s.clients.Cold(h)
	if hot == nil {
		return
	}
	wa := s.workarea()

	hot.Geom.W, hot.Geom.H = constrainSize(cold.SizeHints, hot.Geom.W, hot.Geom.H)
	if hot.Geom.W == 0 {
		hot.Geom.W = 1
	}
	if hot.Geom.H == 0 {
		hot.Geom.H = 1
	}

	// Dialogs center over their parent.
	if parent := s.clients.Hot(hot.Parent); parent != nil {
		hot.Geom.X = parent.Geom.X + int16(parent.Geom.W/2) - int16(hot.Geom.W/2)
		hot.Geom.Y = parent.Geom.Y + int16(parent.Geom.H/2) - int16(hot.Geom.H/2)
	} else if hot.Geom.X == 0 && hot.Geom.Y == 0 {
		hot.Geom.X = wa.X + int16(wa.W/2) - int16(hot.Geom.W/2)
		hot.Geom.Y = wa.Y + int16(wa.H/2) - int16(hot.Geom.H/2)
	}

	hot.Geom = clampToArea(hot.Geom, wa)
}

func clampToArea(g Geometry, wa Workarea) Geometry {
	maxX := int32(wa.X) + int32(wa.W) - int32(g.W)
	maxY := int32(wa.Y) + int32(wa.H) - int32(g.H)
	if int32(g.X) > maxX {
		g.X = int16(maxX)
	}
	if int32(g.Y) > maxY {
		g.Y = int16(maxY)
	}
	if g.X < wa.X {
		g.X = wa.X
	}
	if g.Y < wa.Y {
		g.Y = wa.Y
	}
	return g
}

// constrainSize applies WM_NORMAL_HINTS: min/max bounds, resize increments
// relative to the base size, and the aspect ratio window.
func constrainSize(sh ewmh.SizeHints, w, h uint16) (uint16, uint16) {
	cw, ch := uint32(w), uint32(h)

	if sh.MinSet {
		if cw < sh.MinW {
			cw = sh.MinW
		}
		if ch < sh.MinH {
			ch = sh.MinH
		}
	}
	if sh.MaxSet {
		if sh.MaxW > 0 && cw > sh.MaxW {
			cw = sh.MaxW
		}
		if sh.MaxH > 0 && ch > sh.MaxH {
			ch = sh.MaxH
		}
	}

	if sh.AspectSet && ch > 0 {
		bw, bh := baseSize(sh)
		if cw >= bw && ch > bh {
			aw, ah := cw-bw, ch-bh
			if sh.MinAspectDen > 0 && aw*sh.MinAspectDen < ah*sh.MinAspectNum {
				ah = aw * sh.MinAspectDen / max32(sh.MinAspectNum, 1)
			}
			if sh.MaxAspectDen > 0 && aw*sh.MaxAspectDen > ah*sh.MaxAspectNum {
				aw = ah * sh.MaxAspectNum / max32(sh.MaxAspectDen, 1)
			}
			cw, ch = aw+bw, ah+bh
		}
	}

	if sh.IncSet {
		bw, bh := baseSize(sh)
		if sh.IncW > 1 && cw > bw {
			cw = bw + (cw-bw)/sh.IncW*sh.IncW
		}
		if sh.IncH > 1 && ch > bh {
			ch = bh + (ch-bh)/sh.IncH*sh.IncH
		}
	}

	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	if cw > 0xFFFF {
		cw = 0xFFFF
	}
	if ch > 0xFFFF {
		ch = 0xFFFF
	}
	return uint16(cw), uint16(ch)
}

func baseSize(sh ewmh.SizeHints) (uint32, uint32) {
	if sh.BaseSet {
		return sh.BaseW, sh.BaseH
	}
	if sh.MinSet {
		return sh.MinW, sh.MinH
	}
	return 0, 0
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// frameGeometry derives the frame rectangle around a client rectangle from
// the theme metrics. Fullscreen and undecorated windows have no frame inset.
func (s *Server) frameGeometry(hot *ClientHot) Geometry {
	if !hot.Decorated || hot.Flags&FlagFullscreen != 0 {
		return hot.Geom
	}
	l, r, t, b := s.opts.Theme.FrameExtents()
	return Geometry{
		X: hot.Geom.X - int16(l),
		Y: hot.Geom.Y - int16(t),
		W: hot.Geom.W + l + r,
		H: hot.Geom.H + t + b,
	}
}
