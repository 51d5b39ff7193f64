// Package policy decides the target governor and boost state for a tick.
// Decide is pure: it reads its arguments and nothing else.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Guliveer/acs/internal/config"
	"github.com/Guliveer/acs/internal/models"
)

// CoolGovernor is the governor the override rules select.
const CoolGovernor = "powersave"

// ErrUnknownGovernor is returned by Manual for a governor the kernel does
// not list.
var ErrUnknownGovernor = errors.New("governor not available")

type candidate struct {
	governor string
	turbo    models.TurboAction
	tag      models.RationaleTag
}

// Decide evaluates the rules in order against snap. prev is the decision of
// the previous tick, or nil on the first tick.
func Decide(cfg *config.Config, prev *models.Decision, snap models.Snapshot) models.Decision {
	c := evaluate(cfg, prev, snap)

	d := models.Decision{
		Seq:            snap.Seq,
		TargetGovernor: c.governor,
		TargetTurbo:    c.turbo,
		Rationale:      models.Rationale{Tag: c.tag},
	}
	if !snap.HasGovernor(d.TargetGovernor) && len(snap.AvailableGovernors) > 0 {
		d.TargetGovernor = snap.AvailableGovernors[0]
		d.Rationale.FallbackGovernor = true
	}

	if prev == nil {
		return d
	}
	if reverses(cfg, prev, d) && snap.HasGovernor(prev.TargetGovernor) {
		held := *prev
		held.Seq = snap.Seq
		held.Overrides = nil
		held.Rationale.Held = true
		held.Age = prev.Age + 1
		return held
	}
	if d.SameTarget(*prev) {
		d.Age = prev.Age + 1
		d.PrevGovernor = prev.PrevGovernor
		d.PrevTurbo = prev.PrevTurbo
	} else {
		d.PrevGovernor = prev.TargetGovernor
		d.PrevTurbo = prev.TargetTurbo
	}
	return d
}

// reverses reports whether d would undo a change that has not yet been in
// force for hysteresis_ticks ticks. The governor and boost are checked
// separately: undoing either one counts. Override rules are never held back.
func reverses(cfg *config.Config, prev *models.Decision, d models.Decision) bool {
	if d.Rationale.Tag.IsOverride() || prev.PrevGovernor == "" {
		return false
	}
	if prev.Age >= cfg.HysteresisTicks || d.SameTarget(*prev) {
		return false
	}
	governorBack := d.TargetGovernor != prev.TargetGovernor && d.TargetGovernor == prev.PrevGovernor
	turboBack := d.TargetTurbo != prev.TargetTurbo && d.TargetTurbo == prev.PrevTurbo
	return governorBack || turboBack
}

func evaluate(cfg *config.Config, prev *models.Decision, snap models.Snapshot) candidate {
	if cfg.RuleActive(config.RuleTemperature) {
		if t := snap.MaxTemp(); t != nil && *t >= cfg.OverheatThreshold {
			return candidate{CoolGovernor, models.TurboForceOff, models.RationaleOverheat}
		}
	}
	if cfg.RuleActive(config.RuleCharge) && snap.Power == models.PowerBattery &&
		snap.BatteryCharge != nil && *snap.BatteryCharge <= cfg.PowersaveUnder {
		return candidate{CoolGovernor, models.TurboForceOff, models.RationaleLowBattery}
	}
	if cfg.RuleActive(config.RuleLid) && snap.Lid == models.LidClosed {
		return candidate{CoolGovernor, models.TurboForceOff, models.RationaleLidClosed}
	}

	c := carry(prev, snap)
	fired := false
	if cfg.RuleActive(config.RuleBattery) {
		fired = true
		if onAC(snap) {
			c = candidate{cfg.ACGovernor, models.TurboLeave, models.RationaleOnAC}
		} else {
			c = candidate{cfg.BatteryGovernor, models.TurboLeave, models.RationaleOnBattery}
			if cfg.TurboOffOnBattery {
				c.turbo = models.TurboForceOff
			}
		}
	}

	if cfg.RuleActive(config.RuleCPUUsage) {
		switch {
		case snap.CPUUsagePct >= float64(cfg.HighCPUThreshold) && onAC(snap):
			c.turbo = models.TurboLeave
			if !fired {
				c.tag = models.RationaleCPUUsage
			}
		case snap.CPUUsagePct < float64(cfg.LowCPUThreshold):
			c.turbo = models.TurboForceOff
			if !fired {
				c.tag = models.RationaleCPUUsage
			}
		}
	}
	return c
}

// carry is the no-rule default: keep the previous governor, else whatever
// cpu0 runs, else the first available governor.
func carry(prev *models.Decision, snap models.Snapshot) candidate {
	c := candidate{turbo: models.TurboLeave, tag: models.RationaleNoChange}
	switch {
	case prev != nil && prev.TargetGovernor != "":
		c.governor = prev.TargetGovernor
	case len(snap.CPUs) > 0 && snap.CPUs[0].Governor != "":
		c.governor = snap.CPUs[0].Governor
	case len(snap.AvailableGovernors) > 0:
		c.governor = snap.AvailableGovernors[0]
	}
	return c
}

// onAC treats a machine with neither an AC adapter nor a battery reading
// as mains powered.
func onAC(snap models.Snapshot) bool {
	switch snap.Power {
	case models.PowerAC:
		return true
	case models.PowerUnknown:
		return snap.BatteryCharge == nil
	}
	return false
}

// Manual builds the decision for a one-shot governor change. The name must
// be one the kernel lists.
func Manual(snap models.Snapshot, governor string) (models.Decision, error) {
	if !snap.HasGovernor(governor) {
		return models.Decision{}, fmt.Errorf("%w: %q (available: %s)",
			ErrUnknownGovernor, governor, strings.Join(snap.AvailableGovernors, " "))
	}
	return models.Decision{
		Seq:            snap.Seq,
		TargetGovernor: governor,
		TargetTurbo:    models.TurboLeave,
		Rationale:      models.Rationale{Tag: models.RationaleManual},
	}, nil
}

// Engine keeps the previous decision between ticks.
type Engine struct {
	cfg  *config.Config
	prev *models.Decision
}

// NewEngine creates an Engine for cfg.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Decide runs Decide with the engine's previous decision and remembers
// the result.
func (e *Engine) Decide(snap models.Snapshot) models.Decision {
	d := Decide(e.cfg, e.prev, snap)
	e.prev = &d
	return d
}
