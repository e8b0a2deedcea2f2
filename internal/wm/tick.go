package wm

import (
	"context"
	"errors"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/store"
)

// ErrConnectionClosed reports that the display connection went away.
var ErrConnectionClosed = errors.New("wm: display connection closed")

// maxRepliesPerTick bounds how many cookie handlers one tick runs.
const maxRepliesPerTick = 256

// pumpItem is one delivery from the event pump: an event or a protocol error
// for an unchecked request.
type pumpItem struct {
	ev  xgb.Event
	err xgb.Error
}

// pump is the only goroutine besides the tick loop that reads the
// connection. It forwards everything; the tick loop owns all state.
func (s *Server) pump() {
	if s.X == nil {
		close(s.events)
		return
	}
	for {
		ev, xerr := s.X.WaitForEvent()
		if ev == nil && xerr == nil {
			close(s.events)
			return
		}
		s.events <- pumpItem{ev: ev, err: xerr}
	}
}

// Control is a function run on the tick goroutine between ticks. Signal
// handlers and the diagnostics server use it to touch server state safely.
type Control func(*Server)

// Post schedules fn onto the tick goroutine. Safe from any goroutine.
func (s *Server) Post(fn Control) {
	s.control <- fn
}

// Serve is the tick loop: wait, drain cookies, ingest, process, flush,
// repeat. It blocks until ctx is canceled, Stop is posted, or the connection
// dies. Implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	// A fresh channel per run: the previous pump closed the old one when the
	// connection died, and the supervisor may call Serve again.
	s.events = make(chan pumpItem, 256)
	go s.pump()

	expiry := time.NewTicker(time.Second)
	defer expiry.Stop()

	s.running = true
	for s.running {
		// The blocking wait is skipped when the previous tick hit its
		// ingest bound, so a backlog drains within a few ticks.
		if !s.repollFast {
			select {
			case <-ctx.Done():
				s.teardown()
				return ctx.Err()
			case item, ok := <-s.events:
				if !ok {
					s.teardown()
					return ErrConnectionClosed
				}
				s.ingestItem(item)
			case c := <-s.completions:
				s.jar.Ready(c.seq, c.reply, c.err)
			case fn := <-s.control:
				fn(s)
			case <-expiry.C:
				// Wake to expire timed-out cookies.
			}
		}
		s.repollFast = false

		if err := s.tickBody(); err != nil {
			s.teardown()
			return err
		}
	}

	s.teardown()
	return nil
}

func (s *Server) tickBody() error {
	// Ingest everything queued, up to the per-tick bound.
	for !s.buckets.Full() {
		select {
		case item, ok := <-s.events:
			if !ok {
				return ErrConnectionClosed
			}
			s.ingestItem(item)
		default:
			goto ingested
		}
	}
ingested:
	if s.buckets.Full() {
		s.repollFast = true
	}

	// Pull finished round-trips and pending control work.
	for {
		select {
		case c := <-s.completions:
			s.jar.Ready(c.seq, c.reply, c.err)
			continue
		default:
		}
		select {
		case fn := <-s.control:
			fn(s)
			continue
		default:
		}
		break
	}

	served := s.jar.Drain(maxRepliesPerTick)
	s.stats.RepliesServed += uint64(served)

	s.processBuckets()
	s.flush()

	s.stats.EventsIngested += uint64(s.buckets.Ingested())
	s.stats.Ticks++
	s.buckets.Reset()
	s.scratch.Reset()
	return nil
}

// ingestItem routes one pump delivery: events to the buckets, protocol
// errors to the jar slot that issued the failing request.
func (s *Server) ingestItem(item pumpItem) {
	if item.err != nil {
		seq := uint32(item.err.SequenceId())
		if !s.jar.Ready(seq, nil, item.err) {
			s.stats.ProtoErrors++
			s.log.Debug("Protocol error for unchecked request", "err", item.err.Error())
		}
		return
	}
	s.buckets.Add(item.ev)
}

// Stop ends the loop after the current tick.
func (s *Server) Stop() {
	s.running = false
}

// RequestRestart ends the loop flagged for re-exec after clean teardown.
func (s *Server) RequestRestart() {
	s.restarting = true
	s.running = false
}

// Restarting reports whether the loop stopped for a restart.
func (s *Server) Restarting() bool { return s.restarting }

// teardown reparents every client back to the root and releases what we own,
// so the next manager (or our re-exec) adopts a clean session.
func (s *Server) teardown() {
	if !s.running && s.clients.Len() == 0 && s.checkWin == 0 {
		return
	}
	s.running = false

	var handles []store.Handle
	s.clients.ForEach(func(h store.Handle, _ *ClientHot, _ *ClientCold) {
		handles = append(handles, h)
	})
	for _, h := range handles {
		s.unmanage(h, false)
	}

	if s.renderer != nil {
		s.renderer.Close()
	}
	if s.X != nil && s.checkWin != 0 {
		xproto.DestroyWindow(s.X, s.checkWin)
	}
	s.checkWin = 0
	s.log.Info("Teardown complete", "unmanaged", len(handles))
}
