// Package actuator applies a Decision to the machine. It is the only code
// that writes to sysfs, and it never writes a value that is already in place.
package actuator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Guliveer/acs/internal/models"
	"github.com/Guliveer/acs/internal/sysfs"
)

// ErrWriteAccess is returned when edit mode cannot write the files it needs.
var ErrWriteAccess = errors.New("write access to cpufreq denied")

const (
	targetGovernor = "governor"
	targetTurbo    = "turbo"
)

// Actuator writes governors and the boost flag through an adapter.
type Actuator struct {
	adapter sysfs.Adapter
	gate    Gate
	logger  *zap.Logger
}

// New creates an Actuator. The gate decides whether any write is issued.
func New(adapter sysfs.Adapter, gate Gate, logger *zap.Logger) *Actuator {
	return &Actuator{adapter: adapter, gate: gate, logger: logger}
}

// Gate returns the edit-mode gate the actuator was built with.
func (a *Actuator) Gate() Gate { return a.gate }

// Apply brings the machine described by snap to the state d asks for.
// A failed write is recorded and the remaining writes are still attempted.
func (a *Actuator) Apply(snap models.Snapshot, d models.Decision) models.Outcome {
	out := models.Outcome{Seq: d.Seq}

	for _, cpu := range snap.CPUs {
		target := d.GovernorFor(cpu.ID)
		co := models.CPUOutcome{CPU: cpu.ID, Governor: cpu.Governor}

		switch {
		case target == "" || cpu.Governor == target:
			out.Skipped = append(out.Skipped, models.Skip{CPU: cpu.ID, Target: targetGovernor, Value: target, Reason: models.SkipAlreadyMatches})
		case !a.gate.CanWrite():
			out.Skipped = append(out.Skipped, models.Skip{CPU: cpu.ID, Target: targetGovernor, Value: target, Reason: models.SkipReadOnlySession})
		default:
			if err := a.adapter.WriteCPUField(cpu.ID, sysfs.FieldGovernor, target); err != nil {
				a.fail(&out, cpu.ID, targetGovernor, target, err)
				break
			}
			a.logger.Info("Governor changed",
				zap.Int("cpu", cpu.ID),
				zap.String("from", cpu.Governor),
				zap.String("to", target),
				zap.Stringer("rationale", d.Rationale))
			co.GovernorApplied = true
			co.Governor = target
		}
		out.CPUs = append(out.CPUs, co)
	}

	a.applyTurbo(&out, snap.Turbo, d.TargetTurbo)
	return out
}

func (a *Actuator) applyTurbo(out *models.Outcome, current models.TurboState, action models.TurboAction) {
	var want models.TurboState
	switch action {
	case models.TurboForceOn:
		want = models.TurboOn
	case models.TurboForceOff:
		want = models.TurboOff
	default:
		return
	}
	value := "0"
	if want == models.TurboOn {
		value = "1"
	}
	skip := models.Skip{CPU: models.GlobalCPU, Target: targetTurbo, Value: value}

	switch {
	case current == models.TurboNotSupported:
		skip.Reason = models.SkipNoBoost
	case current == want:
		skip.Reason = models.SkipAlreadyMatches
	case !a.gate.CanWrite():
		skip.Reason = models.SkipReadOnlySession
	default:
		if err := a.adapter.WriteTurbo(want == models.TurboOn); err != nil {
			a.fail(out, models.GlobalCPU, targetTurbo, value, err)
			return
		}
		a.logger.Info("Turbo changed", zap.Stringer("to", want))
		out.TurboApplied = true
		return
	}
	out.Skipped = append(out.Skipped, skip)
}

func (a *Actuator) fail(out *models.Outcome, cpu int, target, value string, err error) {
	a.logger.Warn("Write failed",
		zap.Int("cpu", cpu),
		zap.String("target", target),
		zap.String("value", value),
		zap.Error(err))
	out.Errors = append(out.Errors, models.WriteError{CPU: cpu, Target: target, Value: value, Err: err})
	if sysfs.KindOf(err) == sysfs.KindPermissionDenied && out.Fatal == nil {
		out.Fatal = fmt.Errorf("%w: %v", ErrWriteAccess, err)
	}
}

// Probe checks that every file edit mode writes is writable by this process.
func Probe(adapter sysfs.Adapter) error {
	err := adapter.ProbeWrite()
	if err == nil {
		return nil
	}
	switch sysfs.KindOf(err) {
	case sysfs.KindPermissionDenied, sysfs.KindReadOnlyFile:
		return fmt.Errorf("%w: %v", ErrWriteAccess, err)
	}
	return fmt.Errorf("write probe: %w", err)
}
