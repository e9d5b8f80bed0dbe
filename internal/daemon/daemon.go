// Package daemon runs the praxus HTTP server with auto planning and
// config hot reload until its context is cancelled.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"praxus/internal/api"
	"praxus/internal/app"
	"praxus/internal/autoplan"
	"praxus/internal/config"
	"praxus/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

// Options select the config file and an optional log level override.
type Options struct {
	ConfigPath string
	LogLevel   string
	// Ready, if set, receives the bound listen address once serving.
	Ready func(addr string)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	logs, log := logx.New(cfg.Logging.LogxConfig(opts.LogLevel))
	defer logs.Close()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	planner := autoplan.New(a.Planner, cfg.Planning, log)
	if err := planner.Start(ctx); err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		planner.Stop(sctx)
	}()

	if opts.ConfigPath != "" {
		go func() {
			err := config.Watch(ctx, opts.ConfigPath, log, func(nc *config.Config) {
				logs.Apply(nc.Logging.LogxConfig(opts.LogLevel))
				if err := a.Apply(nc); err != nil {
					log.Warn("config reload: planning settings kept", logx.Err(err))
					return
				}
				if err := planner.Apply(nc.Planning); err != nil {
					log.Warn("config reload: auto planning kept", logx.Err(err))
				}
			})
			if err != nil && ctx.Err() == nil {
				log.Warn("config watcher stopped", logx.Err(err))
			}
		}()
	}

	handler := api.New(api.Deps{
		Tasks:    a.Stores.Tasks,
		Schedule: a.Stores.Schedule,
		Planner:  a.Planner,
		Bus:      a.Bus,
		Chat:     a.Assistant,
		Log:      log,
	})
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	addr := ln.Addr().String()
	log.Info("praxus listening", logx.String("addr", addr), logx.String("storage", a.DB.Driver))
	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		log.Debug("notified systemd")
	}
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return nil
}
