package sysfs

import (
	"github.com/shirou/gopsutil/v3/cpu"
)

// CPUReading is cumulative CPU time in seconds across all CPUs.
//
// busy = user + nice + system + irq + softirq + steal
// idle = idle + iowait
//
// guest and guest_nice are already counted in user and nice.
type CPUReading struct {
	Busy float64
	Idle float64
}

func readingFrom(t cpu.TimesStat) CPUReading {
	return CPUReading{
		Busy: t.User + t.Nice + t.System + t.Irq + t.Softirq + t.Steal,
		Idle: t.Idle + t.Iowait,
	}
}

// CPUPercent computes utilization between two readings. It returns 0 when
// no time has passed or the counters went backwards (CPU hotplug).
func CPUPercent(previous, current CPUReading) float64 {
	if current.Busy < previous.Busy || current.Idle < previous.Idle {
		return 0
	}
	busyDelta := current.Busy - previous.Busy
	idleDelta := current.Idle - previous.Idle
	totalDelta := busyDelta + idleDelta
	if totalDelta == 0 {
		return 0
	}
	return float64(busyDelta) / float64(totalDelta) * 100
}

// UsageMeter turns successive readings into a busy percentage. The first
// reading only establishes the baseline and yields 0.
type UsageMeter struct {
	last        CPUReading
	initialized bool
}

// Observe records current and returns usage since the previous reading.
func (m *UsageMeter) Observe(current CPUReading) float64 {
	var pct float64
	if m.initialized {
		pct = CPUPercent(m.last, current)
	}
	m.last = current
	m.initialized = true
	return pct
}

// Reset drops the baseline so the next Observe returns 0.
func (m *UsageMeter) Reset() {
	m.initialized = false
	m.last = CPUReading{}
}
