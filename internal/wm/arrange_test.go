package wm

import "testing"

func TestGridDims(t *testing.T) {
	tests := []struct {
		count, cols, rows int
	}{
		{1, 1, 1},
		{2, 2, 1},
		{3, 2, 2},
		{4, 2, 2},
		{5, 3, 2},
		{7, 3, 3},
		{9, 3, 3},
		{10, 4, 3},
	}
	for _, tt := range tests {
		cols, rows := gridDims(tt.count)
		if cols != tt.cols || rows != tt.rows {
			t.Errorf("gridDims(%d) = %dx%d, want %dx%d",
				tt.count, cols, rows, tt.cols, tt.rows)
		}
	}
}

func TestArrangeGridTilesCurrentDesktop(t *testing.T) {
	s := newTestServer()
	a := s.addMapped(0x800001)
	b := s.addMapped(0x800002)
	other := s.addMapped(0x800003)
	s.clients.Hot(other).Desktop = 1
	s.clients.Hot(other).State = StateUnmapped
	otherGeom := Geometry{X: 7, Y: 7, W: 70, H: 70}
	s.clients.Hot(other).Geom = otherGeom

	s.ArrangeGrid()

	// Two windows split the screen side by side, minus the frame chrome.
	l, r, ti, bi := s.opts.Theme.FrameExtents()
	ga := s.clients.Hot(a).Geom
	gb := s.clients.Hot(b).Geom
	wantW := s.screenW/2 - l - r
	wantH := s.screenH - ti - bi
	if ga.W != wantW || ga.H != wantH {
		t.Fatalf("first cell = %+v, want %dx%d", ga, wantW, wantH)
	}
	if gb.X <= ga.X {
		t.Fatalf("cells overlap: %+v vs %+v", ga, gb)
	}
	if s.clients.Hot(a).Dirty&DirtyGeom == 0 {
		t.Fatal("arrange did not mark geometry dirty")
	}
	if s.clients.Hot(other).Geom != otherGeom {
		t.Fatal("window on another desktop was moved")
	}
}

func TestArrangeGridSkipsOtherLayers(t *testing.T) {
	s := newTestServer()
	dock := s.addMapped(0x800001)
	s.MoveToLayer(dock, LayerDock)
	dockGeom := s.clients.Hot(dock).Geom

	s.ArrangeGrid()

	if s.clients.Hot(dock).Geom != dockGeom {
		t.Fatal("dock window was rearranged")
	}
}
