// Package deco draws window frames. The renderer is stateless apart from an
// opaque cache of server-side resources and is invoked only during flush.
package deco

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// Theme is the read-only snapshot of frame metrics and colors. Reload swaps
// the whole snapshot; fields are never mutated in place.
type Theme struct {
	BorderWidth   uint16
	TitleHeight   uint16
	ActiveColor   uint32
	InactiveColor uint32
	ActiveText    uint32
	InactiveText  uint32
	UrgentColor   uint32
	FontName      string
}

// DefaultTheme matches a plain dark frame.
func DefaultTheme() Theme {
	return Theme{
		BorderWidth:   2,
		TitleHeight:   22,
		ActiveColor:   0x3b4252,
		InactiveColor: 0x2e3440,
		ActiveText:    0xeceff4,
		InactiveText:  0x7a8394,
		UrgentColor:   0xbf616a,
		FontName:      "fixed",
	}
}

// FrameExtents returns the left, right, top and bottom border the theme adds
// around client content.
func (t Theme) FrameExtents() (l, r, top, b uint16) {
	return t.BorderWidth, t.BorderWidth, t.TitleHeight + t.BorderWidth, t.BorderWidth
}

// Target describes one paint request.
type Target struct {
	Frame   xproto.Window
	Title   string
	Focused bool
	Urgent  bool
	Width   uint16
	Height  uint16
}

// Renderer paints frame decorations.
type Renderer interface {
	Paint(theme Theme, target Target)
	// Close releases server-side resources.
	Close()
}

// CoreRenderer draws with core protocol fill and text requests. Its only
// state is a lazily created GC and font, reused across paints.
type CoreRenderer struct {
	conn *xgb.Conn
	root xproto.Window

	gc     xproto.Gcontext
	font   xproto.Font
	inited bool
}

func NewCoreRenderer(conn *xgb.Conn, root xproto.Window) *CoreRenderer {
	return &CoreRenderer{conn: conn, root: root}
}

func (r *CoreRenderer) init(theme Theme) {
	if r.inited {
		return
	}
	r.font, _ = xproto.NewFontId(r.conn)
	name := theme.FontName
	if name == "" {
		name = "fixed"
	}
	xproto.OpenFont(r.conn, r.font, uint16(len(name)), name)

	r.gc, _ = xproto.NewGcontextId(r.conn)
	xproto.CreateGC(r.conn, r.gc, xproto.Drawable(r.root),
		xproto.GcFont, []uint32{uint32(r.font)})
	r.inited = true
}

func (r *CoreRenderer) Paint(theme Theme, t Target) {
	r.init(theme)

	bg := theme.InactiveColor
	fg := theme.InactiveText
	if t.Focused {
		bg = theme.ActiveColor
		fg = theme.ActiveText
	}
	if t.Urgent && !t.Focused {
		bg = theme.UrgentColor
		fg = theme.ActiveText
	}

	d := xproto.Drawable(t.Frame)
	xproto.ChangeGC(r.conn, r.gc, xproto.GcForeground, []uint32{bg})
	xproto.PolyFillRectangle(r.conn, d, r.gc, []xproto.Rectangle{
		{X: 0, Y: 0, Width: t.Width, Height: t.Height},
	})

	title := t.Title
	if title == "" {
		return
	}
	if len(title) > 255 {
		title = title[:255]
	}
	xproto.ChangeGC(r.conn, r.gc,
		xproto.GcForeground|xproto.GcBackground, []uint32{fg, bg})
	baseline := int16(theme.TitleHeight) - 6
	xproto.ImageText8(r.conn, byte(len(title)), d, r.gc,
		int16(theme.BorderWidth)+4, baseline, title)
}

func (r *CoreRenderer) Close() {
	if !r.inited {
		return
	}
	xproto.FreeGC(r.conn, r.gc)
	xproto.CloseFont(r.conn, r.font)
	r.inited = false
}

// NopRenderer discards paints. Used when decorations are disabled.
type NopRenderer struct{}

func (NopRenderer) Paint(Theme, Target) {}
func (NopRenderer) Close()              {}
