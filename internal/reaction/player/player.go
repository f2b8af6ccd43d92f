// Package player drives a desktop media player: music plays while a break
// is on screen and pauses when the programme returns.
package player

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/GriffinCanCode/breakwatch/internal/config"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/resilience"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
	"github.com/GriffinCanCode/breakwatch/internal/trace"
)

func init() {
	module.Register("player", New)
}

// Player is the media-player module.
type Player struct {
	cfg   config.PlayerConfig
	retry resilience.RetryConfig

	run     func(ctx context.Context, cmdline string) (string, error)
	running func(ctx context.Context, name string) (bool, error)
}

func New(cfg *config.Config) (module.Module, error) {
	pc := cfg.Player
	for key, v := range map[string]string{"PLAYER_PLAY_CMD": pc.PlayCmd, "PLAYER_PAUSE_CMD": pc.PauseCmd} {
		if strings.TrimSpace(v) == "" {
			return nil, apperr.Newf(apperr.CodeConfigInvalid, "%s is empty", key)
		}
	}
	return &Player{
		cfg:     pc,
		retry:   resilience.ConnectRetryConfig(),
		run:     runCommand,
		running: processRunning,
	}, nil
}

func (p *Player) Title() string { return "player" }

// Initialize waits for the player process, then pauses it if it is already
// playing so the first break starts from silence.
func (p *Player) Initialize(ctx context.Context) error {
	log := trace.Logger(ctx).With("module", p.Title())

	if p.cfg.Process != "" {
		log.Info("waiting for player", "process", p.cfg.Process)
		err := resilience.Retry(ctx, p.retry, func() error {
			ok, err := p.running(ctx, p.cfg.Process)
			if err != nil {
				return apperr.Wrap(err, apperr.CodeUnavailable, "list processes")
			}
			if !ok {
				log.Info("player not running yet", "process", p.cfg.Process)
				return apperr.Newf(apperr.CodeUnavailable, "%s is not running", p.cfg.Process)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if p.cfg.StatusCmd == "" {
		return nil
	}
	state, err := p.run(ctx, p.cfg.StatusCmd)
	if err != nil {
		log.Warn("could not read player state", "error", err)
		return nil
	}
	log.Info("connected to player", "state", state)
	if strings.EqualFold(state, "playing") {
		if _, err := p.run(ctx, p.cfg.PauseCmd); err != nil {
			return apperr.Wrap(err, apperr.CodeUnavailable, "pause player")
		}
	}
	return nil
}

func (p *Player) OnStarted(ctx context.Context, _ screen.Display) error {
	_, err := p.run(ctx, p.cfg.PlayCmd)
	return err
}

func (p *Player) OnEnded(ctx context.Context) error {
	_, err := p.run(ctx, p.cfg.PauseCmd)
	return err
}

func runCommand(ctx context.Context, cmdline string) (string, error) {
	args := strings.Fields(cmdline)
	if len(args) == 0 {
		return "", apperr.New(apperr.CodeConfigInvalid, "empty command")
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", apperr.Wrapf(err, apperr.CodeModuleDispatchFailed, "%s", args[0]).
			WithMetadata("stderr", strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

func processRunning(ctx context.Context, name string) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, err
	}
	for _, proc := range procs {
		n, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.EqualFold(n, name) {
			return true, nil
		}
	}
	return false, nil
}
