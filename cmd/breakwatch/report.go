package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/GriffinCanCode/breakwatch/internal/config"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printSettings(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Settings:")
	fmt.Fprintf(w, "  poll interval     %v\n", cfg.PollInterval)
	fmt.Fprintf(w, "  template          %s\n", cfg.TemplatePath)
	fmt.Fprintf(w, "  comparator        %s\n", cfg.Comparator)
	fmt.Fprintf(w, "  modules           %s\n", strings.Join(cfg.Modules, ", "))
	fmt.Fprintf(w, "  init timeout      %v\n", cfg.ModuleInitTimeout)
	fmt.Fprintf(w, "  dispatch timeout  %v\n", cfg.DispatchTimeout)
	if cfg.HTTPAddr != "" {
		fmt.Fprintf(w, "  http              %s\n", cfg.HTTPAddr)
	}
}

// describeDisplay explains how a display's shape relates to the template.
func describeDisplay(d screen.Display, aspect float64) string {
	r := screen.ComputeRegion(d, aspect)
	fit := screen.Classify(d, aspect)
	switch fit {
	case screen.Matches:
		return fmt.Sprintf("%s: aspect ratio matches the template, capturing the full %dx%d",
			d.Name, d.Bounds.Width, d.Bounds.Height)
	default:
		return fmt.Sprintf("%s: %s than the template, capturing %dx%d at offset (%d,%d)",
			d.Name, fit, r.Width, r.Height, r.XOffset, r.YOffset)
	}
}

func logDisplayReport(displays []screen.Display, aspect float64) {
	slog.Info("displays found", "count", len(displays))
	for _, d := range displays {
		slog.Info(describeDisplay(d, aspect), "id", d.ID)
	}
}
