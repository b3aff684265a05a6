// Package app assembles the bot from its configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nurjigit18/shipledger/internal/shipbot/bot"
	"github.com/nurjigit18/shipledger/internal/shipbot/commit"
	"github.com/nurjigit18/shipledger/internal/shipbot/config"
	"github.com/nurjigit18/shipledger/internal/shipbot/directory"
	"github.com/nurjigit18/shipledger/internal/shipbot/eventbus"
	"github.com/nurjigit18/shipledger/internal/shipbot/idalloc"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger/gsheets"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger/sqlstore"
	"github.com/nurjigit18/shipledger/internal/shipbot/parse"
	"github.com/nurjigit18/shipledger/internal/shipbot/server"
	"github.com/nurjigit18/shipledger/internal/shipbot/session"
	"github.com/nurjigit18/shipledger/internal/shipbot/tracking"
)

// Transport is a chat platform connection.
type Transport interface {
	commit.Sender
	Start(ctx context.Context) error
	Stop() error
	NotifyExpired(userID string)
}

// App holds the wired components.
type App struct {
	Config      *config.Config
	Gateway     ledger.Gateway
	Bus         *eventbus.Bus
	Allocator   *idalloc.Allocator
	Directory   *directory.Directory
	Machine     *session.Machine
	Coordinator *commit.Coordinator
	Manager     *session.Manager
	Tracking    *tracking.Service
	Dispatcher  *bot.Dispatcher

	closers []func() error
}

// OpenGateway connects the configured ledger backend. The returned close
// function releases it.
func OpenGateway(ctx context.Context, cfg *config.Config) (ledger.Gateway, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Ledger.Backend {
	case "memory":
		return ledger.NewMemory(), noop, nil
	case "sqlite", "postgres":
		st, err := sqlstore.Open(cfg.Ledger.Backend, cfg.Ledger.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "gsheets":
		creds, err := gsheets.LoadCredentials(cfg.Ledger.CredentialsJSON, cfg.Ledger.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		gw, err := gsheets.New(ctx, cfg.Ledger.SheetID, creds)
		if err != nil {
			return nil, nil, err
		}
		return gw, noop, nil
	}
	return nil, nil, config.ErrConfig.Msg("unknown ledger backend " + cfg.Ledger.Backend)
}

// Build opens the ledger and wires every component on top of it.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	raw, closeGW, err := OpenGateway(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return BuildWithGateway(ctx, cfg, raw, closeGW)
}

// BuildWithGateway wires the components on an already opened backend.
func BuildWithGateway(ctx context.Context, cfg *config.Config, raw ledger.Gateway, closeGW func() error) (*App, error) {
	gw := ledger.WithRetry(raw, ledger.RetryPolicy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.RetryDelay(),
		MaxDelay: cfg.RetryMaxDelay(),
	})
	bus := eventbus.New()
	labels := cfg.Sizes.Labels

	dir := directory.New(gw, cfg.DirectoryCacheTTL(), directory.WithFallback(cfg.Factories))
	if err := dir.Bootstrap(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("unable to prepare directory worksheets")
	}

	alloc := idalloc.New(gw, idalloc.WithEventBus(bus))
	var machineOpts []session.MachineOption
	if cfg.Ledger.DefaultSheet != "" {
		machineOpts = append(machineOpts, session.WithDefaultSheet(cfg.Ledger.DefaultSheet))
	}
	machine := session.NewMachine(alloc, dir, parse.NewSizeParser(labels), machineOpts...)
	coord := commit.NewCoordinator(gw, labels, commit.WithEventBus(bus))
	mgr := session.NewManager(machine, coord, cfg.IdleTimeout(), session.WithCommitTimeout(cfg.CommitTimeout()))

	a := &App{
		Config:      cfg,
		Gateway:     gw,
		Bus:         bus,
		Allocator:   alloc,
		Directory:   dir,
		Machine:     machine,
		Coordinator: coord,
		Manager:     mgr,
		Tracking:    tracking.New(gw),
		Dispatcher:  bot.NewDispatcher(mgr, cfg.Discord.CommandPrefix),
	}
	if closeGW != nil {
		a.closers = append(a.closers, closeGW)
	}
	return a, nil
}

// Close shuts the event bus down and releases the ledger.
func (a *App) Close() error {
	a.Bus.Shutdown()
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ready reports whether the ledger answers.
func (a *App) Ready(ctx context.Context) error {
	_, err := a.Gateway.ReadAllRows(ctx, directory.FactoriesSheet)
	return err
}

// AdminServer builds the admin HTTP API.
func (a *App) AdminServer() *server.AdminServer {
	s := server.New(server.Options{
		Tracker:        a.Tracking,
		JWTSecret:      []byte(a.Config.Server.JWTSecret),
		HandleCORS:     a.Config.Server.HandleCORS,
		RequestTimeout: 30 * time.Second,
		Ready:          a.Ready,
	})
	s.MountHandlers()
	return s
}

// Run starts the transport, the admin notifier, the idle sweeper and, when
// enabled, the admin API, and blocks until ctx is done or a component fails.
func (a *App) Run(ctx context.Context, t Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	slog := log.With().Str("state", "run").Logger()

	if err := t.Start(ctx); err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	defer func() {
		if err := t.Stop(); err != nil {
			slog.Error().Err(err).Msg("transport stop failed")
		}
	}()

	done := make(chan struct{}, 2)
	go func() {
		commit.NewNotifier(a.Bus, t, a.Config.Notify.AdminIDs).Run(ctx)
		done <- struct{}{}
	}()
	go func() {
		a.Manager.RunSweeper(ctx, a.Config.SweepInterval(), t.NotifyExpired)
		done <- struct{}{}
	}()

	serverErrors := make(chan error, 1)
	var srv *http.Server
	if a.Config.Server.Enabled {
		srv = &http.Server{
			Addr:              ":" + a.Config.Server.Port,
			Handler:           a.AdminServer().Router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info().Str("port", a.Config.Server.Port).Msg("admin server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info().Msg("shutdown requested")
	case err := <-serverErrors:
		runErr = fmt.Errorf("admin server: %w", err)
	}
	cancel()

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("admin server shutdown failed")
			_ = srv.Close()
		}
	}
	for i := 0; i < 2; i++ {
		<-done
	}
	return runErr
}
