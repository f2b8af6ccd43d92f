// Package chime plays a short tone on every transition: rising when a break
// starts, falling when it ends.
package chime

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/GriffinCanCode/breakwatch/internal/config"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
	"github.com/GriffinCanCode/breakwatch/internal/trace"
)

const (
	SampleRate   = 44100
	FramesPerBuf = 1024 // ~23ms at 44100Hz
	// Interval between the two notes, as a frequency ratio (a fifth).
	Interval = 1.5
	// Fade in/out applied to each note to avoid clicks.
	Fade = 5 * time.Millisecond
	// Amplitude keeps the tone well below clipping.
	Amplitude = 0.3
)

func init() {
	module.Register("chime", New)
}

type Chime struct {
	freq float64
	dur  time.Duration

	mu          sync.Mutex
	initialized bool
}

func New(cfg *config.Config) (module.Module, error) {
	if cfg.Chime.Frequency <= 0 || cfg.Chime.Frequency >= SampleRate/2 {
		return nil, apperr.Newf(apperr.CodeConfigInvalid, "CHIME_FREQUENCY %v out of range", cfg.Chime.Frequency)
	}
	if cfg.Chime.Duration <= 0 {
		return nil, apperr.New(apperr.CodeConfigInvalid, "CHIME_DURATION_MS must be positive")
	}
	return &Chime{freq: cfg.Chime.Frequency, dur: cfg.Chime.Duration}, nil
}

func (c *Chime) Title() string { return "chime" }

// Initialize opens PortAudio and checks that an output device exists.
func (c *Chime) Initialize(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return apperr.Wrap(err, apperr.CodeUnavailable, "portaudio")
	}
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return apperr.Wrap(err, apperr.CodeUnavailable, "no default output device")
	}
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	trace.Logger(ctx).Info("chime ready", "device", dev.Name)
	return nil
}

func (c *Chime) OnStarted(ctx context.Context, _ screen.Display) error {
	return c.play(ctx, melody(module.Started, c.freq))
}

func (c *Chime) OnEnded(ctx context.Context) error {
	return c.play(ctx, melody(module.Ended, c.freq))
}

// melody returns the note frequencies for a transition.
func melody(kind module.Kind, base float64) []float64 {
	if kind == module.Started {
		return []float64{base, base * Interval}
	}
	return []float64{base * Interval, base}
}

func (c *Chime) play(ctx context.Context, notes []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return apperr.New(apperr.CodeUnavailable, "chime not initialized")
	}

	var samples []float32
	for _, f := range notes {
		samples = append(samples, tone(f, c.dur, SampleRate)...)
	}

	buf := make([]float32, FramesPerBuf)
	stream, err := portaudio.OpenDefaultStream(0, 1, SampleRate, len(buf), buf)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeModuleDispatchFailed, "open output stream")
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return apperr.Wrap(err, apperr.CodeModuleDispatchFailed, "start output stream")
	}
	defer stream.Stop()

	for off := 0; off < len(samples); off += len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, samples[off:])
		clear(buf[n:])
		if err := stream.Write(); err != nil {
			return apperr.Wrap(err, apperr.CodeModuleDispatchFailed, "write output stream")
		}
	}
	return nil
}

// tone synthesizes a sine note with a linear fade at both ends.
func tone(freq float64, dur time.Duration, rate int) []float32 {
	n := int(dur.Seconds() * float64(rate))
	fade := min(int(Fade.Seconds()*float64(rate)), n/2)
	out := make([]float32, n)
	for i := range out {
		env := 1.0
		switch {
		case fade > 0 && i < fade:
			env = float64(i) / float64(fade)
		case fade > 0 && i >= n-fade:
			env = float64(n-1-i) / float64(fade)
		}
		out[i] = float32(Amplitude * env * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

// Close releases PortAudio.
func (c *Chime) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil
	}
	c.initialized = false
	return portaudio.Terminate()
}
