// Package models defines the values passed along the control pipeline:
// one Snapshot, one Decision and one Outcome per tick. They are produced
// once and never mutated after being handed to the next stage.
package models

import (
	"strings"
	"time"
)

// PowerSource reports whether the machine runs from mains or battery.
type PowerSource int

const (
	PowerUnknown PowerSource = iota
	PowerAC
	PowerBattery
)

func (p PowerSource) String() string {
	switch p {
	case PowerAC:
		return "AC"
	case PowerBattery:
		return "Battery"
	default:
		return "Unknown"
	}
}

// LidState is the position of the laptop lid.
type LidState int

const (
	LidUnknown LidState = iota
	LidOpen
	LidClosed
)

func (l LidState) String() string {
	switch l {
	case LidOpen:
		return "Open"
	case LidClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// TurboState is the observed state of the boost flag.
type TurboState int

const (
	TurboNotSupported TurboState = iota
	TurboOn
	TurboOff
)

func (t TurboState) String() string {
	switch t {
	case TurboOn:
		return "On"
	case TurboOff:
		return "Off"
	default:
		return "NotSupported"
	}
}

// TurboAction is what a Decision asks of the boost flag.
type TurboAction int

const (
	TurboLeave TurboAction = iota
	TurboForceOn
	TurboForceOff
)

func (t TurboAction) String() string {
	switch t {
	case TurboForceOn:
		return "Force On"
	case TurboForceOff:
		return "Force Off"
	default:
		return "Leave"
	}
}

// RationaleTag names the rule that produced a Decision.
type RationaleTag string

const (
	RationaleOverheat   RationaleTag = "Overheat"
	RationaleLowBattery RationaleTag = "LowBattery"
	RationaleLidClosed  RationaleTag = "LidClosed"
	RationaleOnAC       RationaleTag = "OnAC"
	RationaleOnBattery  RationaleTag = "OnBattery"
	RationaleCPUUsage   RationaleTag = "CPUUsage"
	RationaleNoChange   RationaleTag = "NoChange"
	RationaleManual     RationaleTag = "Manual"
)

// IsOverride reports whether the tag comes from one of the rules that bypass
// hysteresis (overheat, critical battery, lid closed).
func (r RationaleTag) IsOverride() bool {
	switch r {
	case RationaleOverheat, RationaleLowBattery, RationaleLidClosed:
		return true
	}
	return false
}

// Rationale is the tag stamped on a Decision plus annotations added after
// the rule fired.
type Rationale struct {
	Tag RationaleTag `json:"tag" yaml:"tag"`
	// FallbackGovernor is set when the chosen governor was not available and
	// the first available one was substituted.
	FallbackGovernor bool `json:"fallback_governor,omitempty" yaml:"fallback_governor,omitempty"`
	// Held is set when hysteresis kept the previous decision in place.
	Held bool `json:"held,omitempty" yaml:"held,omitempty"`
}

// String renders the tag with its annotations, e.g. "OnAC+FallbackGovernor".
func (r Rationale) String() string {
	parts := []string{string(r.Tag)}
	if r.FallbackGovernor {
		parts = append(parts, "FallbackGovernor")
	}
	if r.Held {
		parts = append(parts, "Hysteresis")
	}
	return strings.Join(parts, "+")
}

// CPUState is the per-logical-CPU part of a Snapshot.
type CPUState struct {
	ID       int    `json:"id"`
	CurKHz   int64  `json:"cur_khz"`
	MinKHz   int64  `json:"min_khz"`
	MaxKHz   int64  `json:"max_khz"`
	Governor string `json:"governor"`
	// TempC is nil when no temperature sensor covers this CPU.
	TempC *int `json:"temp_c"`
}

// Snapshot is the immutable machine state observed in one tick.
type Snapshot struct {
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Power     PowerSource `json:"power_source"`
	Lid       LidState    `json:"lid"`
	// BatteryCharge is nil when no battery is present or readable.
	BatteryCharge      *int       `json:"battery_charge"`
	CPUUsagePct        float64    `json:"cpu_usage_pct"`
	CPUs               []CPUState `json:"cpus"`
	AvailableGovernors []string   `json:"available_governors"`
	Turbo              TurboState `json:"turbo"`
}

// HasGovernor reports whether name is in the snapshot's available list.
func (s Snapshot) HasGovernor(name string) bool {
	for _, g := range s.AvailableGovernors {
		if g == name {
			return true
		}
	}
	return false
}

// MaxTemp returns the hottest known CPU temperature, or nil if none is known.
func (s Snapshot) MaxTemp() *int {
	var hottest *int
	for _, c := range s.CPUs {
		if c.TempC == nil {
			continue
		}
		if hottest == nil || *c.TempC > *hottest {
			t := *c.TempC
			hottest = &t
		}
	}
	return hottest
}

// AvgFreqKHz returns the mean current frequency across CPUs.
func (s Snapshot) AvgFreqKHz() int64 {
	if len(s.CPUs) == 0 {
		return 0
	}
	var sum int64
	for _, c := range s.CPUs {
		sum += c.CurKHz
	}
	return sum / int64(len(s.CPUs))
}

// Decision is the policy output for one tick.
type Decision struct {
	Seq            uint64      `json:"seq"`
	TargetGovernor string      `json:"target_governor"`
	TargetTurbo    TurboAction `json:"target_turbo"`
	// Overrides maps CPU id to a governor. Reserved; the current policy
	// leaves it empty so every CPU receives TargetGovernor.
	Overrides map[int]string `json:"overrides,omitempty"`
	Rationale Rationale      `json:"rationale"`

	// Age counts consecutive ticks this governor/turbo pair has been in
	// force. Zero means the decision changed on this tick.
	Age int `json:"age"`
	// PrevGovernor and PrevTurbo hold the pair that was replaced by the
	// most recent change.
	PrevGovernor string      `json:"prev_governor,omitempty"`
	PrevTurbo    TurboAction `json:"prev_turbo,omitempty"`
}

// GovernorFor returns the governor the decision assigns to cpu.
func (d Decision) GovernorFor(cpu int) string {
	if g, ok := d.Overrides[cpu]; ok {
		return g
	}
	return d.TargetGovernor
}

// SameTarget reports whether two decisions ask for the same machine state.
func (d Decision) SameTarget(o Decision) bool {
	return d.TargetGovernor == o.TargetGovernor && d.TargetTurbo == o.TargetTurbo
}

// SkipReason explains why the actuator withheld a write.
type SkipReason string

const (
	SkipAlreadyMatches  SkipReason = "AlreadyMatches"
	SkipNoBoost         SkipReason = "NoBoost"
	SkipReadOnlySession SkipReason = "ReadOnlySession"
)

// GlobalCPU is the CPU index used for writes that are not per-CPU (boost).
const GlobalCPU = -1

// Skip records a withheld write.
type Skip struct {
	CPU    int        `json:"cpu"`
	Target string     `json:"target"` // "governor" or "turbo"
	Value  string     `json:"value"`
	Reason SkipReason `json:"reason"`
}

// WriteError records a write that was attempted and failed.
type WriteError struct {
	CPU    int    `json:"cpu"`
	Target string `json:"target"`
	Value  string `json:"value"`
	Err    error  `json:"-"`
}

// CPUOutcome is what happened to one CPU's governor.
type CPUOutcome struct {
	CPU             int    `json:"cpu"`
	GovernorApplied bool   `json:"governor_applied"`
	Governor        string `json:"governor"`
}

// Outcome is the actuator's report for one tick.
type Outcome struct {
	Seq          uint64       `json:"seq"`
	CPUs         []CPUOutcome `json:"cpus"`
	TurboApplied bool         `json:"turbo_applied"`
	Skipped      []Skip       `json:"skipped"`
	Errors       []WriteError `json:"errors"`
	// Fatal is set when a failure must stop the loop after this tick.
	Fatal error `json:"-"`
}

// Writes counts the filesystem writes that were issued and succeeded.
func (o Outcome) Writes() int {
	n := 0
	for _, c := range o.CPUs {
		if c.GovernorApplied {
			n++
		}
	}
	if o.TurboApplied {
		n++
	}
	return n
}
