package sysfs

import "testing"

func TestCPUPercentDelta(t *testing.T) {
	tests := []struct {
		name     string
		previous CPUReading
		current  CPUReading
		expected float64
	}{
		{"50 percent", CPUReading{Busy: 100, Idle: 100}, CPUReading{Busy: 200, Idle: 200}, 50},
		{"100 percent", CPUReading{Busy: 100, Idle: 100}, CPUReading{Busy: 200, Idle: 100}, 100},
		{"0 percent", CPUReading{Busy: 100, Idle: 100}, CPUReading{Busy: 100, Idle: 200}, 0},
		{"no time passed", CPUReading{Busy: 100, Idle: 100}, CPUReading{Busy: 100, Idle: 100}, 0},
		{"counters reset", CPUReading{Busy: 500, Idle: 500}, CPUReading{Busy: 10, Idle: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CPUPercent(tt.previous, tt.current); got != tt.expected {
				t.Errorf("CPUPercent() = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestUsageMeter_FirstObservationIsZero(t *testing.T) {
	var m UsageMeter
	if got := m.Observe(CPUReading{Busy: 900, Idle: 100}); got != 0 {
		t.Fatalf("first Observe() = %f, want 0", got)
	}
	if got := m.Observe(CPUReading{Busy: 975, Idle: 125}); got != 75 {
		t.Fatalf("second Observe() = %f, want 75", got)
	}
	m.Reset()
	if got := m.Observe(CPUReading{Busy: 2000, Idle: 2000}); got != 0 {
		t.Fatalf("Observe() after Reset = %f, want 0", got)
	}
}
