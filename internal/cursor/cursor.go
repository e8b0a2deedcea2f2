// Package cursor creates the glyph cursors the window manager shows: the
// default pointer on the root, a move cursor while dragging and sizing
// cursors during resizes. Glyph ids come from the standard cursor font.
package cursor

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

const (
	glyphFleur   = 52
	glyphLeftPtr = 68
	glyphSizing  = 120
)

// Set holds the cursors used over a connection's lifetime.
type Set struct {
	Normal xproto.Cursor
	Move   xproto.Cursor
	Resize xproto.Cursor
}

// Create loads the cursor font and builds the full set.
func Create(x *xgb.Conn) (Set, error) {
	var s Set
	var err error
	if s.Normal, err = glyph(x, glyphLeftPtr); err != nil {
		return Set{}, err
	}
	if s.Move, err = glyph(x, glyphFleur); err != nil {
		return Set{}, err
	}
	if s.Resize, err = glyph(x, glyphSizing); err != nil {
		return Set{}, err
	}
	return s, nil
}

func glyph(x *xgb.Conn, id uint16) (xproto.Cursor, error) {
	fontID, err := xproto.NewFontId(x)
	if err != nil {
		return 0, err
	}
	cursorID, err := xproto.NewCursorId(x)
	if err != nil {
		return 0, err
	}
	if err := xproto.OpenFontChecked(x, fontID,
		uint16(len("cursor")), "cursor").Check(); err != nil {
		return 0, err
	}
	if err := xproto.CreateGlyphCursorChecked(x, cursorID, fontID, fontID,
		id, id+1,
		0, 0, 0,
		0xffff, 0xffff, 0xffff).Check(); err != nil {
		return 0, err
	}
	if err := xproto.CloseFontChecked(x, fontID).Check(); err != nil {
		return 0, err
	}
	return cursorID, nil
}
