package ewmh

import (
	"testing"

	"github.com/jezek/xgb/xproto"
)

func prop32(vals ...uint32) *xproto.GetPropertyReply {
	return &xproto.GetPropertyReply{
		Format:   32,
		ValueLen: uint32(len(vals)),
		Value:    EncodeCardinals(vals),
	}
}

func prop8(s string) *xproto.GetPropertyReply {
	return &xproto.GetPropertyReply{
		Format:   8,
		ValueLen: uint32(len(s)),
		Value:    []byte(s),
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		reply *xproto.GetPropertyReply
		want  string
		ok    bool
	}{
		{"plain", prop8("xterm"), "xterm", true},
		{"utf8", prop8("términal"), "términal", true},
		{"embedded nul truncates", prop8("abc\x00def"), "abc", true},
		{"invalid utf8 rejected", prop8("a\xffb"), "", false},
		{"absent", nil, "", false},
		{"empty", prop8(""), "", false},
		{"wrong format", prop32(1, 2), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Text(tt.reply)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("Text() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLatin1Text(t *testing.T) {
	got, ok := Latin1Text(prop8("caf\xe9"))
	if !ok || got != "café" {
		t.Fatalf("Latin1Text() = %q, %v", got, ok)
	}
}

func TestClass(t *testing.T) {
	tests := []struct {
		name            string
		reply           *xproto.GetPropertyReply
		instance, class string
		ok              bool
	}{
		{"both parts", prop8("xterm\x00XTerm\x00"), "xterm", "XTerm", true},
		{"missing class", prop8("xterm"), "xterm", "", true},
		{"empty instance", prop8("\x00Foo\x00"), "", "Foo", true},
		{"absent", nil, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, cls, ok := Class(tt.reply)
			if inst != tt.instance || cls != tt.class || ok != tt.ok {
				t.Fatalf("Class() = %q, %q, %v", inst, cls, ok)
			}
		})
	}
}

func TestCardinals(t *testing.T) {
	if got := Cardinals(prop32(1, 2, 3)); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Cardinals() = %v", got)
	}
	if got := Cardinals(prop8("abcd")); got != nil {
		t.Fatalf("Cardinals(format 8) = %v", got)
	}
	// Truncated trailing bytes are ignored, not misread.
	r := prop32(7)
	r.Value = append(r.Value, 0xAA, 0xBB)
	if got := Cardinals(r); len(got) != 1 || got[0] != 7 {
		t.Fatalf("Cardinals(truncated) = %v", got)
	}
}

func TestStrutPartial(t *testing.T) {
	s, ok := StrutPartial(prop32(0, 0, 30, 0, 0, 0, 0, 0, 0, 1920, 0, 0))
	if !ok || s.Top != 30 || s.TopEndX != 1920 || s.Zero() {
		t.Fatalf("StrutPartial() = %+v, %v", s, ok)
	}
	if _, ok := StrutPartial(prop32(1, 2, 3)); ok {
		t.Fatal("short strut accepted")
	}
}

func TestStrutPlain(t *testing.T) {
	s, ok := StrutPlain(prop32(0, 0, 0, 40), 1920, 1080)
	if !ok || s.Bottom != 40 || s.BottomEndX != 1920 || s.LeftEndY != 1080 {
		t.Fatalf("StrutPlain() = %+v, %v", s, ok)
	}
}

func TestMotif(t *testing.T) {
	tests := []struct {
		name string
		vals []uint32
		set  bool
		dec  bool
	}{
		{"undecorated", []uint32{1 << 1, 0, 0, 0, 0}, true, false},
		{"decorated all", []uint32{1 << 1, 0, 1, 0, 0}, true, true},
		{"flags without decorations bit", []uint32{1 << 0, 1, 0, 0, 0}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := Motif(prop32(tt.vals...))
			if !ok || h.DecorationsSet != tt.set || h.Decorated != tt.dec {
				t.Fatalf("Motif() = %+v, %v", h, ok)
			}
		})
	}
	if _, ok := Motif(prop32(1)); ok {
		t.Fatal("short hints accepted")
	}
}

func TestHints(t *testing.T) {
	h, ok := Hints(prop32(wmHintsInputFlag|wmHintsStateFlag|wmHintsUrgencyFlag, 0, IconicState, 0, 0, 0, 0, 0, 0))
	if !ok {
		t.Fatal("Hints() not ok")
	}
	if !h.InputSet || h.Input {
		t.Fatalf("input = %+v", h)
	}
	if !h.StateSet || h.InitialState != IconicState {
		t.Fatalf("state = %+v", h)
	}
	if !h.Urgent {
		t.Fatalf("urgency = %+v", h)
	}

	// A short property with only flags set is still usable.
	h, ok = Hints(prop32(wmHintsUrgencyFlag))
	if !ok || !h.Urgent || h.InputSet {
		t.Fatalf("short Hints() = %+v, %v", h, ok)
	}
}

func TestNormalHints(t *testing.T) {
	vals := make([]uint32, 18)
	vals[0] = sizeHintMinSize | sizeHintResizeInc
	vals[5], vals[6] = 100, 50
	vals[9], vals[10] = 8, 16

	h, ok := NormalHints(prop32(vals...))
	if !ok {
		t.Fatal("NormalHints() not ok")
	}
	if !h.MinSet || h.MinW != 100 || h.MinH != 50 {
		t.Fatalf("min = %+v", h)
	}
	if !h.IncSet || h.IncW != 8 || h.IncH != 16 {
		t.Fatalf("inc = %+v", h)
	}
	// Base falls back to min when unset.
	if h.BaseW != 100 || h.BaseH != 50 {
		t.Fatalf("base = %+v", h)
	}
	if h.MaxSet {
		t.Fatalf("max spuriously set: %+v", h)
	}
}

func TestIconSane(t *testing.T) {
	icon := append([]uint32{2, 2}, make([]uint32, 4)...)
	if !IconSane(prop32(icon...)) {
		t.Fatal("valid icon rejected")
	}
	if IconSane(prop32(2, 2, 0)) {
		t.Fatal("truncated icon accepted")
	}
	if IconSane(prop32(0xFFFFFFFF, 0xFFFFFFFF)) {
		t.Fatal("hostile dimensions accepted")
	}
	if !IconSane(nil) {
		t.Fatal("absent property should be trivially sane")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	vals := []uint32{0, 1, 0xDEADBEEF}
	r := &xproto.GetPropertyReply{Format: 32, Value: EncodeCardinals(vals)}
	got := Cardinals(r)
	for i := range vals {
		if got[i] != vals[i] {
			t.Fatalf("round trip: %v != %v", got, vals)
		}
	}
}

func TestEncodeTextList(t *testing.T) {
	got := EncodeTextList([]string{"main", "web"})
	want := "main\x00web\x00"
	if string(got) != want {
		t.Fatalf("encoded %q, want %q", got, want)
	}
	if len(EncodeTextList(nil)) != 0 {
		t.Fatal("empty list must encode to no bytes")
	}
}
