// Package ewmh decodes and encodes the client properties the window manager
// reads and publishes. All functions are pure: they work on property reply
// bytes and never touch the connection, so malformed input from arbitrary
// clients degrades to "property absent" instead of failing the manage flow.
package ewmh

import (
	"unicode/utf8"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// Strut is the reserved screen-edge space of a dock window, in the partial
// form. The plain 4-value form maps onto it with full-width extents.
type Strut struct {
	Left, Right, Top, Bottom                 uint32
	LeftStartY, LeftEndY                     uint32
	RightStartY, RightEndY                   uint32
	TopStartX, TopEndX                       uint32
	BottomStartX, BottomEndX                 uint32
}

// Zero reports whether the strut reserves no space at all.
func (s Strut) Zero() bool {
	return s.Left == 0 && s.Right == 0 && s.Top == 0 && s.Bottom == 0
}

// MotifHints is the subset of _MOTIF_WM_HINTS the manager honors: whether the
// client asked for no decorations.
type MotifHints struct {
	DecorationsSet bool
	Decorated      bool
}

// WMHints mirrors the ICCCM WM_HINTS fields the manager uses.
type WMHints struct {
	InputSet     bool
	Input        bool
	StateSet     bool
	InitialState uint32
	Urgent       bool
}

const (
	wmHintsInputFlag   = 1 << 0
	wmHintsStateFlag   = 1 << 1
	wmHintsUrgencyFlag = 1 << 8

	IconicState    = 3
	NormalState    = 1
	WithdrawnState = 0
)

// SizeHints mirrors the WM_NORMAL_HINTS fields used for constraining client
// geometry. Absent fields are zero with their Set flag false.
type SizeHints struct {
	MinSet, MaxSet, IncSet, BaseSet, AspectSet bool
	MinW, MinH                                 uint32
	MaxW, MaxH                                 uint32
	IncW, IncH                                 uint32
	BaseW, BaseH                               uint32
	MinAspectNum, MinAspectDen                 uint32
	MaxAspectNum, MaxAspectDen                 uint32
}

const (
	sizeHintMinSize   = 1 << 4
	sizeHintMaxSize   = 1 << 5
	sizeHintResizeInc = 1 << 6
	sizeHintAspect    = 1 << 7
	sizeHintBaseSize  = 1 << 8
)

func present(r *xproto.GetPropertyReply) bool {
	return r != nil && r.Format != 0 && len(r.Value) > 0
}

// Cardinals decodes a format-32 property into its 32-bit values.
func Cardinals(r *xproto.GetPropertyReply) []uint32 {
	if !present(r) || r.Format != 32 {
		return nil
	}
	n := len(r.Value) / 4
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = xgb.Get32(r.Value[i*4:])
	}
	return out
}

// Cardinal decodes the first 32-bit value of a format-32 property.
func Cardinal(r *xproto.GetPropertyReply) (uint32, bool) {
	if !present(r) || r.Format != 32 || len(r.Value) < 4 {
		return 0, false
	}
	return xgb.Get32(r.Value), true
}

// Window decodes a WINDOW-valued property.
func Window(r *xproto.GetPropertyReply) (xproto.Window, bool) {
	v, ok := Cardinal(r)
	return xproto.Window(v), ok
}

// Atoms decodes an ATOM list property.
func Atoms(r *xproto.GetPropertyReply) []xproto.Atom {
	vals := Cardinals(r)
	if vals == nil {
		return nil
	}
	out := make([]xproto.Atom, len(vals))
	for i, v := range vals {
		out[i] = xproto.Atom(v)
	}
	return out
}

// Text decodes a format-8 string property. Invalid UTF-8 is rejected rather
// than sanitized; callers fall back to the legacy latin-1 name.
func Text(r *xproto.GetPropertyReply) (string, bool) {
	if !present(r) || r.Format != 8 {
		return "", false
	}
	b := r.Value
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// Latin1Text decodes a legacy STRING property, mapping each byte to the
// corresponding rune.
func Latin1Text(r *xproto.GetPropertyReply) (string, bool) {
	if !present(r) || r.Format != 8 {
		return "", false
	}
	b := r.Value
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes), true
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// Class decodes WM_CLASS into its instance and class parts. The property is
// two NUL-terminated strings back to back.
func Class(r *xproto.GetPropertyReply) (instance, class string, ok bool) {
	if !present(r) || r.Format != 8 {
		return "", "", false
	}
	b := r.Value
	i := indexByte(b, 0)
	if i < 0 {
		return string(b), "", true
	}
	instance = string(b[:i])
	rest := b[i+1:]
	if k := indexByte(rest, 0); k >= 0 {
		rest = rest[:k]
	}
	return instance, string(rest), true
}

// StrutPartial decodes _NET_WM_STRUT_PARTIAL (12 cardinals).
func StrutPartial(r *xproto.GetPropertyReply) (Strut, bool) {
	v := Cardinals(r)
	if len(v) < 12 {
		return Strut{}, false
	}
	return Strut{
		Left: v[0], Right: v[1], Top: v[2], Bottom: v[3],
		LeftStartY: v[4], LeftEndY: v[5],
		RightStartY: v[6], RightEndY: v[7],
		TopStartX: v[8], TopEndX: v[9],
		BottomStartX: v[10], BottomEndX: v[11],
	}, true
}

// StrutPlain decodes the older 4-value _NET_WM_STRUT, extending each edge
// across the full span.
func StrutPlain(r *xproto.GetPropertyReply, screenW, screenH uint32) (Strut, bool) {
	v := Cardinals(r)
	if len(v) < 4 {
		return Strut{}, false
	}
	return Strut{
		Left: v[0], Right: v[1], Top: v[2], Bottom: v[3],
		LeftEndY: screenH, RightEndY: screenH,
		TopEndX: screenW, BottomEndX: screenW,
	}, true
}

// Motif decodes _MOTIF_WM_HINTS. Only the decorations field is consulted.
func Motif(r *xproto.GetPropertyReply) (MotifHints, bool) {
	v := Cardinals(r)
	if len(v) < 3 {
		return MotifHints{}, false
	}
	const flagDecorations = 1 << 1
	h := MotifHints{Decorated: true}
	if v[0]&flagDecorations != 0 {
		h.DecorationsSet = true
		h.Decorated = v[2] != 0
	}
	return h, true
}

// Hints decodes ICCCM WM_HINTS (9 cardinals; older clients send fewer).
func Hints(r *xproto.GetPropertyReply) (WMHints, bool) {
	v := Cardinals(r)
	if len(v) < 1 {
		return WMHints{}, false
	}
	flags := v[0]
	h := WMHints{Urgent: flags&wmHintsUrgencyFlag != 0}
	if flags&wmHintsInputFlag != 0 && len(v) > 1 {
		h.InputSet = true
		h.Input = v[1] != 0
	}
	if flags&wmHintsStateFlag != 0 && len(v) > 2 {
		h.StateSet = true
		h.InitialState = v[2]
	}
	return h, true
}

// NormalHints decodes WM_NORMAL_HINTS (WM_SIZE_HINTS, 18 cardinals).
func NormalHints(r *xproto.GetPropertyReply) (SizeHints, bool) {
	v := Cardinals(r)
	if len(v) < 18 {
		return SizeHints{}, false
	}
	flags := v[0]
	h := SizeHints{}
	if flags&sizeHintMinSize != 0 {
		h.MinSet = true
		h.MinW, h.MinH = v[5], v[6]
	}
	if flags&sizeHintMaxSize != 0 {
		h.MaxSet = true
		h.MaxW, h.MaxH = v[7], v[8]
	}
	if flags&sizeHintResizeInc != 0 {
		h.IncSet = true
		h.IncW, h.IncH = v[9], v[10]
	}
	if flags&sizeHintAspect != 0 {
		h.AspectSet = true
		h.MinAspectNum, h.MinAspectDen = v[11], v[12]
		h.MaxAspectNum, h.MaxAspectDen = v[13], v[14]
	}
	if flags&sizeHintBaseSize != 0 {
		h.BaseSet = true
		h.BaseW, h.BaseH = v[15], v[16]
	} else if h.MinSet {
		h.BaseW, h.BaseH = h.MinW, h.MinH
	}
	return h, true
}

// Opacity decodes _NET_WM_WINDOW_OPACITY into the raw 32-bit value.
func Opacity(r *xproto.GetPropertyReply) (uint32, bool) {
	return Cardinal(r)
}

// IconSane validates a _NET_WM_ICON payload without copying it: each entry is
// width, height, then width*height ARGB values, and hostile dimensions are
// rejected before any allocation happens.
func IconSane(r *xproto.GetPropertyReply) bool {
	v := Cardinals(r)
	const maxDim = 1024
	for len(v) >= 2 {
		w, h := v[0], v[1]
		if w == 0 || h == 0 || w > maxDim || h > maxDim {
			return false
		}
		n := int(w) * int(h)
		if len(v)-2 < n {
			return false
		}
		v = v[2+n:]
	}
	return len(v) == 0
}

// EncodeCardinals packs 32-bit values into property bytes.
func EncodeCardinals(vals []uint32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		xgb.Put32(buf[i*4:], v)
	}
	return buf
}

// EncodeWindows packs a WINDOW list into property bytes.
func EncodeWindows(wins []xproto.Window) []byte {
	buf := make([]byte, len(wins)*4)
	for i, w := range wins {
		xgb.Put32(buf[i*4:], uint32(w))
	}
	return buf
}

// EncodeTextList packs strings into a UTF8_STRING list property: each item
// followed by a NUL, per the EWMH text encoding.
func EncodeTextList(items []string) []byte {
	n := 0
	for _, s := range items {
		n += len(s) + 1
	}
	buf := make([]byte, 0, n)
	for _, s := range items {
		buf = append(buf, s...)
		buf = append(buf, 0)
	}
	return buf
}

// EncodeAtoms packs an ATOM list into property bytes.
func EncodeAtoms(atoms []xproto.Atom) []byte {
	buf := make([]byte, len(atoms)*4)
	for i, a := range atoms {
		xgb.Put32(buf[i*4:], uint32(a))
	}
	return buf
}
