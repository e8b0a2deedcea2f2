// Package app wires the window manager, diagnostics server and signal
// handling under one supervision tree.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/jezek/xgb"
	"github.com/thejerf/suture/v4"

	"github.com/stratawm/strata/internal/bus"
	"github.com/stratawm/strata/internal/config"
	"github.com/stratawm/strata/internal/core"
	"github.com/stratawm/strata/internal/diag"
	"github.com/stratawm/strata/internal/wm"
	"github.com/stratawm/strata/pkg/sutureext"
)

// Run is the window manager's whole lifetime: connect, become the manager,
// supervise until stop or restart. On restart the process re-execs itself so
// a new binary picks up the session the old one released.
func Run(ctx context.Context, configPath string) error {
	store, err := config.NewStore(config.NewYAML(configPath))
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	cfg, err := store.GetConfig()
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("connect to display: %w", err)
	}
	defer conn.Close()

	manager, err := wm.New(conn, slog.Default().With("component", "wm"), opts)
	if err != nil {
		return err
	}
	if err := manager.Setup(); err != nil {
		return err
	}

	hub := bus.NewHub[diag.Report]()

	super := sutureext.NewSimple("strata")
	sutureext.Add(super, sutureext.NewServiceFunc("wm.Server", func(ctx context.Context) error {
		if err := manager.Serve(ctx); err != nil {
			return err
		}
		// A clean stop brings the whole tree down instead of restarting.
		return suture.ErrTerminateSupervisorTree
	}))
	sutureext.Add(super, diag.NewServer(core.Address(cfg.HTTP.Host, cfg.HTTP.Port), manager, hub))
	sutureext.Add(super, diag.NewPublisher(manager, hub))

	go watchSignals(ctx, manager, store)

	err = super.Serve(ctx)
	if errors.Is(err, suture.ErrTerminateSupervisorTree) || errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		return err
	}

	if manager.Restarting() {
		return reexec()
	}
	return nil
}

// reexec replaces the process with a fresh image of itself.
func reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	slog.Info("Restarting", "exe", exe)
	return syscall.Exec(exe, os.Args, os.Environ())
}
