// Package hostinfo reads host facts through gopsutil: the CPU model and core
// counts, and the load average shown in the frame header.
package hostinfo

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
)

// CPUInfo describes the processor package.
type CPUInfo struct {
	Model    string
	Physical int
	Logical  int
}

// CPU returns the model name and core counts.
func CPU(ctx context.Context) (CPUInfo, error) {
	var info CPUInfo

	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return info, fmt.Errorf("counting logical CPUs: %w", err)
	}
	info.Logical = logical

	// Physical count and model are best effort; some kernels hide them.
	if physical, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.Physical = physical
	}
	if stats, err := cpu.InfoWithContext(ctx); err == nil && len(stats) > 0 {
		info.Model = stats[0].ModelName
	}
	return info, nil
}

// Load is the 1, 5 and 15 minute load average.
type Load struct {
	Load1, Load5, Load15 float64
}

func (l Load) String() string {
	return fmt.Sprintf("%.2f %.2f %.2f", l.Load1, l.Load5, l.Load15)
}

// LoadAverage reads the system load average.
func LoadAverage(ctx context.Context) (Load, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return Load{}, fmt.Errorf("reading load average: %w", err)
	}
	return Load{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}
