package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/k0kubun/pp"

	"github.com/stratawm/strata/internal/config"
	"github.com/stratawm/strata/internal/diag"
	"github.com/stratawm/strata/internal/wm"
)

// watchSignals maps process signals onto tick-boundary control functions:
// SIGHUP reloads the configuration, SIGUSR1 dumps counters, SIGUSR2 restarts.
func watchSignals(ctx context.Context, manager *wm.Server, store config.Store) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(c)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-c:
			switch sig {
			case syscall.SIGHUP:
				reload(manager, store)
			case syscall.SIGUSR1:
				stats, err := diag.Snapshot(ctx, manager)
				if err != nil {
					continue
				}
				pp.Println(stats)
			case syscall.SIGUSR2:
				manager.Post(func(s *wm.Server) {
					s.RequestRestart()
				})
			}
		}
	}
}

func reload(manager *wm.Server, store config.Store) {
	cfg, err := store.GetConfig()
	if err != nil {
		slog.Error("Config reload failed", "error", err)
		return
	}
	opts, err := cfg.Options()
	if err != nil {
		slog.Error("Config reload failed", "error", err)
		return
	}
	manager.Post(func(s *wm.Server) {
		s.SetOptions(opts)
	})
	slog.Info("Config reloaded")
}
