// Package scheduler runs the control loop: sample, decide, actuate, render,
// then wait for the next tick. It is single-threaded; cancellation is only
// observed while waiting, so a tick is never interrupted mid-write.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/acs/internal/actuator"
	"github.com/Guliveer/acs/internal/config"
	"github.com/Guliveer/acs/internal/models"
	"github.com/Guliveer/acs/internal/policy"
	"github.com/Guliveer/acs/internal/sampler"
	"github.com/Guliveer/acs/internal/sysfs"
)

const (
	DefaultDelay        = time.Second
	DefaultDelayBattery = 5 * time.Second
)

// Clock abstracts the inter-tick wait so tests control time.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is a pending inter-tick wait. Stop releases it when the wait ends
// early.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) Timer { return realTimer{t: time.NewTimer(d)} }

type realTimer struct {
	t *time.Timer
}

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }

// Sink receives every tick's triple. The render bridge implements it.
type Sink interface {
	Push(snap models.Snapshot, d models.Decision, out models.Outcome)
}

// Timing holds the cadence flags of run and monitor.
type Timing struct {
	Delay        time.Duration
	DelayBattery time.Duration
	// Graph pins the cadence to Delay so the graph is evenly sampled.
	Graph bool
}

// TickDelay returns the wait after a tick observed on power. The AC delay
// applies in both states when the graph is shown or Delay was changed from
// its default.
func (t Timing) TickDelay(power models.PowerSource) time.Duration {
	if t.Graph || t.Delay != DefaultDelay {
		return t.Delay
	}
	if power == models.PowerBattery {
		return t.DelayBattery
	}
	return t.Delay
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithWake sets a channel that ends the current wait early and resets the
// usage baseline, used on resume from suspend.
func WithWake(wake <-chan struct{}) Option {
	return func(l *Loop) { l.wake = wake }
}

// Loop owns the per-tick pipeline.
type Loop struct {
	sampler  *sampler.Sampler
	engine   *policy.Engine
	actuator *actuator.Actuator
	sink     Sink
	timing   Timing
	clock    Clock
	wake     <-chan struct{}
	logger   *zap.Logger
}

// New creates a Loop from its stages.
func New(s *sampler.Sampler, e *policy.Engine, a *actuator.Actuator, sink Sink, timing Timing, logger *zap.Logger, opts ...Option) *Loop {
	l := &Loop{
		sampler:  s,
		engine:   e,
		actuator: a,
		sink:     sink,
		timing:   timing,
		clock:    realClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run ticks until ctx is cancelled (returns nil) or a fatal condition
// arises: a missing cpufreq driver (sampler.ErrUnsupportedPlatform) or lost
// write access in edit mode (actuator.ErrWriteAccess).
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Control loop started",
		zap.Stringer("mode", l.actuator.Gate()),
		zap.Duration("delay", l.timing.Delay),
		zap.Duration("delay_battery", l.timing.DelayBattery))

	for {
		snap, err := l.sampler.Sample()
		if err != nil {
			l.logger.Error("Sampling failed, stopping", zap.Error(err))
			return err
		}
		d := l.engine.Decide(snap)
		out := l.actuator.Apply(snap, d)
		l.sink.Push(snap, d, out)

		if out.Fatal != nil {
			l.logger.Error("Lost write access, stopping", zap.Error(out.Fatal))
			return out.Fatal
		}

		delay := l.timing.TickDelay(snap.Power)
		l.logger.Debug("Tick complete",
			zap.Uint64("seq", snap.Seq),
			zap.String("governor", d.TargetGovernor),
			zap.Stringer("rationale", d.Rationale),
			zap.Int("writes", out.Writes()),
			zap.Duration("next", delay))

		if ctx.Err() != nil {
			l.logger.Info("Control loop stopped")
			return nil
		}
		timer := l.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.logger.Info("Control loop stopped")
			return nil
		case <-timer.C():
		case <-l.wake:
			timer.Stop()
			l.logger.Info("Resumed from suspend, resampling")
			l.sampler.ResetBaseline()
		}
	}
}

// Preflight runs the start-up guards and returns configuration warnings.
// Errors wrap sampler.ErrUnsupportedPlatform, config.ErrInvalidConfig or
// actuator.ErrWriteAccess.
func Preflight(adapter sysfs.Adapter, cfg *config.Config, gate actuator.Gate) ([]string, error) {
	if err := adapter.DriverPresent(); err != nil {
		return nil, fmt.Errorf("%w: %v", sampler.ErrUnsupportedPlatform, err)
	}
	avail, err := adapter.AvailableGovernors()
	if err != nil {
		return nil, fmt.Errorf("%w: reading available governors: %v", sampler.ErrUnsupportedPlatform, err)
	}
	if len(avail) == 0 {
		return nil, fmt.Errorf("%w: kernel lists no governors", sampler.ErrUnsupportedPlatform)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	warnings := cfg.CheckGovernors(avail)
	if gate.CanWrite() {
		if err := actuator.Probe(adapter); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}
