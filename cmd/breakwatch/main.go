// breakwatch watches the screens for a commercial break and tells the
// enabled reaction modules when one starts and ends.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/breakwatch/internal/compare"
	"github.com/GriffinCanCode/breakwatch/internal/config"
	"github.com/GriffinCanCode/breakwatch/internal/detector"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/orchestrator"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
	"github.com/GriffinCanCode/breakwatch/internal/server"

	// Reaction modules register themselves with module.Default.
	_ "github.com/GriffinCanCode/breakwatch/internal/reaction/chime"
	_ "github.com/GriffinCanCode/breakwatch/internal/reaction/journal"
	_ "github.com/GriffinCanCode/breakwatch/internal/reaction/player"
	_ "github.com/GriffinCanCode/breakwatch/internal/reaction/relay"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	fmt.Printf("breakwatch %s\n", version)
	if *showVersion {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load configuration", err)
	}

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	printSettings(os.Stdout, cfg)
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}

	tmpl, err := compare.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		fatal("failed to load reference template", err)
	}
	comparator, err := compare.New(cfg.Comparator)
	if err != nil {
		fatal("invalid comparator", err)
	}

	capturer, err := screen.NewX11()
	if err != nil {
		fatal("failed to connect to display server", err)
	}
	defer func() { _ = capturer.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if displays, err := capturer.Displays(ctx); err != nil {
		slog.Warn("could not enumerate displays", "error", err)
	} else {
		logDisplayReport(displays, tmpl.Aspect())
	}

	hub := server.NewHub()
	module.Register(server.HubTitle, hub.Provider())

	scorer := detector.NewPipeline(capturer, comparator, tmpl)
	mgr, err := orchestrator.Setup(ctx, cfg, module.Default, capturer, scorer)
	if err != nil {
		fatal("module startup failed", err)
	}
	defer func() {
		if err := module.CloseAll(mgr.Modules()); err != nil {
			slog.Warn("module close error", "error", err)
		}
	}()

	if cfg.HTTPAddr != "" {
		srv := server.New(mgr, hub)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				slog.Error("http server error", "error", err)
			}
		}()
	}

	go func() {
		if err := mgr.Start(ctx); err != nil {
			slog.Error("orchestrator error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	if err := mgr.Stop(); err != nil {
		slog.Warn("orchestrator did not stop cleanly", "error", err)
	}
	cancel()
	slog.Info("shutdown complete")
}

func fatal(msg string, err error) {
	attrs := []any{"error", err}
	if appErr, ok := apperr.As(err); ok {
		attrs = append(attrs, "code", appErr.Code, "kind", appErr.Kind())
	}
	slog.Error(msg, attrs...)
	os.Exit(1)
}
