package wm

import (
	"context"
	"errors"
	"testing"
)

// The supervisor restarts Serve after a connection loss; every run must get
// its own event channel so the new pump never closes an already-closed one.
func TestServeRestartsAfterConnectionLoss(t *testing.T) {
	s := newTestServer()

	for i := 0; i < 2; i++ {
		err := s.Serve(context.Background())
		if !errors.Is(err, ErrConnectionClosed) {
			t.Fatalf("run %d: err = %v, want %v", i, err, ErrConnectionClosed)
		}
	}
}

func TestPostRunsOnTick(t *testing.T) {
	s := newTestServer()

	ran := false
	s.Post(func(sv *Server) {
		ran = sv == s
	})
	if err := s.tickBody(); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("posted control did not run")
	}
}
