package policy

import (
	"errors"
	"testing"

	"github.com/Guliveer/acs/internal/config"
	"github.com/Guliveer/acs/internal/models"
)

func intp(v int) *int { return &v }

func cfgWith(rules ...config.Rule) *config.Config {
	cfg := config.DefaultConfig()
	cfg.ActiveRules = rules
	return cfg
}

func snapshot(seq uint64, power models.PowerSource, battery *int) models.Snapshot {
	return models.Snapshot{
		Seq:                seq,
		Power:              power,
		Lid:                models.LidOpen,
		BatteryCharge:      battery,
		CPUUsagePct:        50,
		AvailableGovernors: []string{"performance", "powersave"},
		Turbo:              models.TurboOn,
		CPUs: []models.CPUState{
			{ID: 0, Governor: "powersave"},
			{ID: 1, Governor: "powersave"},
		},
	}
}

func assertDecision(t *testing.T, d models.Decision, gov string, turbo models.TurboAction, rationale string) {
	t.Helper()
	if d.TargetGovernor != gov || d.TargetTurbo != turbo || d.Rationale.String() != rationale {
		t.Fatalf("decision = %s/%s/%s, want %s/%s/%s",
			d.TargetGovernor, d.TargetTurbo, d.Rationale, gov, turbo, rationale)
	}
}

func TestDecide_PlugInOnBattery(t *testing.T) {
	cfg := cfgWith(config.RuleBattery)
	e := NewEngine(cfg)

	d0 := e.Decide(snapshot(0, models.PowerBattery, intp(50)))
	assertDecision(t, d0, "powersave", models.TurboLeave, "OnBattery")

	d1 := e.Decide(snapshot(1, models.PowerAC, intp(50)))
	assertDecision(t, d1, "performance", models.TurboLeave, "OnAC")
	if d1.Age != 0 || d1.PrevGovernor != "powersave" {
		t.Errorf("Age/PrevGovernor = %d/%q, want 0/powersave", d1.Age, d1.PrevGovernor)
	}
}

func TestDecide_TurboOffOnBattery(t *testing.T) {
	cfg := cfgWith(config.RuleBattery)
	cfg.TurboOffOnBattery = true
	d := Decide(cfg, nil, snapshot(0, models.PowerBattery, intp(50)))
	assertDecision(t, d, "powersave", models.TurboForceOff, "OnBattery")
}

func TestDecide_Overheat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OverheatThreshold = 85
	snap := snapshot(0, models.PowerAC, intp(90))
	snap.CPUUsagePct = 95
	snap.CPUs[1].TempC = intp(90)

	assertDecision(t, Decide(cfg, nil, snap), "powersave", models.TurboForceOff, "Overheat")

	snap.CPUs[1].TempC = intp(85)
	assertDecision(t, Decide(cfg, nil, snap), "powersave", models.TurboForceOff, "Overheat")

	snap.CPUs[1].TempC = intp(84)
	assertDecision(t, Decide(cfg, nil, snap), "performance", models.TurboLeave, "OnAC")
}

func TestDecide_OverheatIgnoredWhenRuleInactive(t *testing.T) {
	cfg := cfgWith(config.RuleBattery)
	snap := snapshot(0, models.PowerAC, nil)
	snap.CPUs[0].TempC = intp(105)
	assertDecision(t, Decide(cfg, nil, snap), "performance", models.TurboLeave, "OnAC")
}

func TestDecide_CriticalBattery(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PowersaveUnder = 15
	assertDecision(t, Decide(cfg, nil, snapshot(0, models.PowerBattery, intp(10))),
		"powersave", models.TurboForceOff, "LowBattery")

	// Charging at low charge is not critical.
	assertDecision(t, Decide(cfg, nil, snapshot(0, models.PowerAC, intp(10))),
		"performance", models.TurboLeave, "OnAC")
}

func TestDecide_MissingBatterySkipsChargeRule(t *testing.T) {
	cfg := config.DefaultConfig()
	snap := snapshot(0, models.PowerUnknown, nil)
	assertDecision(t, Decide(cfg, nil, snap), "performance", models.TurboLeave, "OnAC")
}

func TestDecide_UnknownPowerWithBatteryIsBattery(t *testing.T) {
	cfg := cfgWith(config.RuleBattery)
	assertDecision(t, Decide(cfg, nil, snapshot(0, models.PowerUnknown, intp(70))),
		"powersave", models.TurboLeave, "OnBattery")
}

func TestDecide_LidClosed(t *testing.T) {
	snap := snapshot(0, models.PowerAC, intp(80))
	snap.Lid = models.LidClosed
	assertDecision(t, Decide(config.DefaultConfig(), nil, snap), "powersave", models.TurboForceOff, "LidClosed")
	assertDecision(t, Decide(cfgWith(config.RuleBattery), nil, snap), "performance", models.TurboLeave, "OnAC")
}

func TestDecide_FallbackGovernor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ACGovernor = "ondemand"
	d := Decide(cfg, nil, snapshot(0, models.PowerAC, nil))
	assertDecision(t, d, "performance", models.TurboLeave, "OnAC+FallbackGovernor")
}

func TestDecide_FallbackForOverride(t *testing.T) {
	snap := snapshot(0, models.PowerAC, nil)
	snap.AvailableGovernors = []string{"schedutil", "performance"}
	snap.CPUs[0].Governor, snap.CPUs[1].Governor = "schedutil", "schedutil"
	snap.Lid = models.LidClosed
	d := Decide(config.DefaultConfig(), nil, snap)
	assertDecision(t, d, "schedutil", models.TurboForceOff, "LidClosed+FallbackGovernor")
}

func TestDecide_CPUUsage(t *testing.T) {
	tests := []struct {
		name      string
		rules     []config.Rule
		power     models.PowerSource
		usage     float64
		turbo     models.TurboAction
		rationale string
	}{
		{"busy on AC", []config.Rule{config.RuleBattery, config.RuleCPUUsage}, models.PowerAC, 90, models.TurboLeave, "OnAC"},
		{"idle on AC", []config.Rule{config.RuleBattery, config.RuleCPUUsage}, models.PowerAC, 10, models.TurboForceOff, "OnAC"},
		{"mid on AC", []config.Rule{config.RuleBattery, config.RuleCPUUsage}, models.PowerAC, 40, models.TurboLeave, "OnAC"},
		{"idle alone", []config.Rule{config.RuleCPUUsage}, models.PowerAC, 10, models.TurboForceOff, "CPUUsage"},
		{"busy alone", []config.Rule{config.RuleCPUUsage}, models.PowerAC, 80, models.TurboLeave, "CPUUsage"},
		{"busy on battery alone", []config.Rule{config.RuleCPUUsage}, models.PowerBattery, 80, models.TurboLeave, "NoChange"},
		{"mid alone", []config.Rule{config.RuleCPUUsage}, models.PowerAC, 40, models.TurboLeave, "NoChange"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshot(0, tt.power, intp(60))
			snap.CPUUsagePct = tt.usage
			d := Decide(cfgWith(tt.rules...), nil, snap)
			if d.TargetTurbo != tt.turbo || d.Rationale.String() != tt.rationale {
				t.Fatalf("turbo/rationale = %s/%s, want %s/%s", d.TargetTurbo, d.Rationale, tt.turbo, tt.rationale)
			}
		})
	}
}

func TestDecide_NoRulesCarriesGovernor(t *testing.T) {
	cfg := cfgWith()
	d0 := Decide(cfg, nil, snapshot(0, models.PowerAC, nil))
	assertDecision(t, d0, "powersave", models.TurboLeave, "NoChange")

	prev := models.Decision{TargetGovernor: "performance"}
	d1 := Decide(cfg, &prev, snapshot(1, models.PowerAC, nil))
	assertDecision(t, d1, "performance", models.TurboLeave, "NoChange")
}

func TestDecide_HysteresisHoldsReversal(t *testing.T) {
	cfg := cfgWith(config.RuleBattery)
	e := NewEngine(cfg)

	e.Decide(snapshot(0, models.PowerAC, intp(50)))
	d1 := e.Decide(snapshot(1, models.PowerBattery, intp(50)))
	assertDecision(t, d1, "powersave", models.TurboLeave, "OnBattery")

	// Flapping straight back is held for one tick.
	d2 := e.Decide(snapshot(2, models.PowerAC, intp(50)))
	assertDecision(t, d2, "powersave", models.TurboLeave, "OnBattery+Hysteresis")
	if d2.Seq != 2 || d2.Age != 1 {
		t.Errorf("Seq/Age = %d/%d, want 2/1", d2.Seq, d2.Age)
	}

	d3 := e.Decide(snapshot(3, models.PowerAC, intp(50)))
	assertDecision(t, d3, "performance", models.TurboLeave, "OnAC")
}

func TestDecide_HysteresisHoldsGovernorReversalWithNewTurbo(t *testing.T) {
	cfg := cfgWith(config.RuleBattery, config.RuleCPUUsage)
	e := NewEngine(cfg)

	s0 := snapshot(0, models.PowerBattery, intp(50))
	s0.CPUUsagePct = 10
	assertDecision(t, e.Decide(s0), "powersave", models.TurboForceOff, "OnBattery")

	d1 := e.Decide(snapshot(1, models.PowerAC, intp(50)))
	assertDecision(t, d1, "performance", models.TurboLeave, "OnAC")

	// The governor goes back to powersave but boost stays Leave: still a
	// reversal of the governor, so it waits.
	d2 := e.Decide(snapshot(2, models.PowerBattery, intp(50)))
	assertDecision(t, d2, "performance", models.TurboLeave, "OnAC+Hysteresis")

	d3 := e.Decide(snapshot(3, models.PowerBattery, intp(50)))
	assertDecision(t, d3, "powersave", models.TurboLeave, "OnBattery")
}

func TestDecide_HysteresisHoldsTurboReversal(t *testing.T) {
	cfg := cfgWith(config.RuleCPUUsage)
	e := NewEngine(cfg)

	s0 := snapshot(0, models.PowerAC, nil)
	s0.CPUUsagePct = 50
	assertDecision(t, e.Decide(s0), "powersave", models.TurboLeave, "NoChange")

	s1 := snapshot(1, models.PowerAC, nil)
	s1.CPUUsagePct = 5
	assertDecision(t, e.Decide(s1), "powersave", models.TurboForceOff, "CPUUsage")

	s2 := snapshot(2, models.PowerAC, nil)
	s2.CPUUsagePct = 90
	assertDecision(t, e.Decide(s2), "powersave", models.TurboForceOff, "CPUUsage+Hysteresis")
}

func TestDecide_HysteresisTicks(t *testing.T) {
	cfg := cfgWith(config.RuleBattery)
	cfg.HysteresisTicks = 3
	e := NewEngine(cfg)

	e.Decide(snapshot(0, models.PowerAC, intp(50)))
	e.Decide(snapshot(1, models.PowerBattery, intp(50)))
	for seq := uint64(2); seq < 5; seq++ {
		d := e.Decide(snapshot(seq, models.PowerAC, intp(50)))
		if !d.Rationale.Held {
			t.Fatalf("tick %d: rationale = %s, want held", seq, d.Rationale)
		}
	}
	d := e.Decide(snapshot(5, models.PowerAC, intp(50)))
	assertDecision(t, d, "performance", models.TurboLeave, "OnAC")
}

func TestDecide_OverrideBypassesHysteresis(t *testing.T) {
	cfg := config.DefaultConfig()
	e := NewEngine(cfg)

	s0 := snapshot(0, models.PowerBattery, intp(50))
	s0.CPUUsagePct = 50
	e.Decide(s0)

	s1 := snapshot(1, models.PowerAC, intp(50))
	s1.CPUUsagePct = 50
	e.Decide(s1)

	s2 := snapshot(2, models.PowerBattery, intp(50))
	s2.CPUs[0].TempC = intp(99)
	assertDecision(t, e.Decide(s2), "powersave", models.TurboForceOff, "Overheat")
}

func TestDecide_GovernorAlwaysAvailable(t *testing.T) {
	govs := [][]string{
		{"performance", "powersave"},
		{"schedutil"},
		{"conservative", "ondemand", "userspace"},
	}
	powers := []models.PowerSource{models.PowerAC, models.PowerBattery, models.PowerUnknown}
	lids := []models.LidState{models.LidOpen, models.LidClosed, models.LidUnknown}
	temps := []*int{nil, intp(40), intp(100)}
	batteries := []*int{nil, intp(5), intp(90)}

	for _, avail := range govs {
		e := NewEngine(config.DefaultConfig())
		seq := uint64(0)
		for _, p := range powers {
			for _, l := range lids {
				for _, temp := range temps {
					for _, b := range batteries {
						snap := models.Snapshot{
							Seq: seq, Power: p, Lid: l, BatteryCharge: b,
							AvailableGovernors: avail,
							CPUs:               []models.CPUState{{ID: 0, Governor: avail[0], TempC: temp}},
						}
						seq++
						d := e.Decide(snap)
						if !snap.HasGovernor(d.TargetGovernor) {
							t.Fatalf("governor %q not in %v (snap %+v)", d.TargetGovernor, avail, snap)
						}
						if temp != nil && *temp >= 80 && d.TargetTurbo != models.TurboForceOff {
							t.Fatalf("overheat turbo = %s, want Force Off", d.TargetTurbo)
						}
					}
				}
			}
		}
	}
}

func TestManual(t *testing.T) {
	snap := snapshot(4, models.PowerAC, nil)
	d, err := Manual(snap, "performance")
	if err != nil {
		t.Fatal(err)
	}
	assertDecision(t, d, "performance", models.TurboLeave, "Manual")

	if _, err := Manual(snap, "ondemand"); !errors.Is(err, ErrUnknownGovernor) {
		t.Fatalf("Manual(ondemand) error = %v, want ErrUnknownGovernor", err)
	}
}
