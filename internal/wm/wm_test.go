package wm

import (
	"io"
	"log/slog"
	"time"

	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/atoms"
	"github.com/stratawm/strata/internal/ds"
	"github.com/stratawm/strata/internal/jar"
	"github.com/stratawm/strata/internal/store"
)

// newTestServer builds a server with no display connection. Every request
// path that would hit the wire is gated, so the bookkeeping (store, layers,
// focus, buckets, dirty bits) is exercised exactly as in production.
func newTestServer() *Server {
	return &Server{
		Atoms:    atoms.Static(),
		opts:     DefaultOptions(),
		clients:  store.New[ClientHot, ClientCold](8),
		byWindow: ds.NewMap[store.Handle](),
		byFrame:  ds.NewMap[store.Handle](),
		jar:      jar.New(time.Minute),
		control:  make(chan Control, 16),
		buckets:  NewBuckets(),
		scratch:  ds.NewArena(),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		screenW:  1920,
		screenH:  1080,
	}
}

// addMapped installs a fully managed, mapped window without running the
// discovery burst.
func (s *Server) addMapped(win xproto.Window) store.Handle {
	h := s.observe(win)
	hot := s.clients.Hot(h)
	hot.State = StateMapped
	hot.MappedOnServer = true
	s.appendToLayer(h, LayerNormal)
	return h
}
