// Package diag serves runtime diagnostics over HTTP: counter snapshots,
// build information and a live tick report stream. State is never touched
// directly; every read goes through the manager's control channel.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stratawm/strata/internal/build"
	"github.com/stratawm/strata/internal/bus"
	"github.com/stratawm/strata/internal/wm"
	"github.com/stratawm/strata/pkg/chiext"
)

// Report is one tick statistics sample.
type Report struct {
	Time  time.Time   `json:"time"`
	Stats wm.Counters `json:"stats"`
}

type Server struct {
	addr string
	wm   *wm.Server
	hub  *bus.Hub[Report]
}

func NewServer(addr string, manager *wm.Server, hub *bus.Hub[Report]) *Server {
	return &Server{
		addr: addr,
		wm:   manager,
		hub:  hub,
	}
}

func (s *Server) String() string {
	return "diag.Server"
}

// Serve implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chiext.Logger())

	r.Get("/api/build", s.handleBuild)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/events", s.handleEvents)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("diag listen: %w", err)
	}

	srv := &http.Server{Handler: r, BaseContext: func(net.Listener) context.Context { return ctx }}
	errC := make(chan error, 1)
	go func() { errC <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errC:
		return err
	}
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, build.Current)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := Snapshot(r.Context(), s.wm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, Report{Time: time.Now(), Stats: stats})
}

// handleEvents streams tick reports as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusNotImplemented)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	reports, cancel := s.hub.Subscribe(r.Context())
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case report := <-reports:
			b, err := json.Marshal(report)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Snapshot reads the manager's counters from the tick goroutine.
func Snapshot(ctx context.Context, manager *wm.Server) (wm.Counters, error) {
	ch := make(chan wm.Counters, 1)
	manager.Post(func(s *wm.Server) {
		ch <- s.Stats()
	})
	select {
	case <-ctx.Done():
		return wm.Counters{}, ctx.Err()
	case stats := <-ch:
		return stats, nil
	}
}

// NewPublisher samples the counters once a second and fans them out to every
// event stream subscriber.
func NewPublisher(manager *wm.Server, hub *bus.Hub[Report]) *Publisher {
	return &Publisher{wm: manager, hub: hub}
}

type Publisher struct {
	wm  *wm.Server
	hub *bus.Hub[Report]
}

func (p *Publisher) String() string {
	return "diag.Publisher"
}

// Serve implements suture.Service.
func (p *Publisher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			stats, err := Snapshot(ctx, p.wm)
			if err != nil {
				return err
			}
			p.hub.Broadcast(ctx, Report{Time: now, Stats: stats})
		}
	}
}
