package sysfs

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// cpuSensorDrivers are hwmon drivers that report CPU die temperatures.
// gopsutil keys their sensors as "<driver>_<label>", e.g. coretemp_core_0.
var cpuSensorDrivers = []string{"coretemp", "k10temp", "zenpower", "cpu_thermal"}

// packageLabels identify the package-wide sensor of a CPU hwmon device.
var packageLabels = []string{"package_id_0", "tctl", "tdie"}

// cpuZoneTypes are thermal_zone types that track the CPU package. gopsutil
// reports zones by type when no hwmon input exists.
var cpuZoneTypes = []string{"x86_pkg_temp", "cpu-thermal", "cpu_thermal", "coretemp"}

// Readings outside this range are sensor errors.
const maxValidTemp = 150.0

// ReadTemp prefers the per-core sensor matching the CPU's core_id, then the
// package sensor of a CPU driver, then the hottest CPU sensor of any kind.
func (f *FS) ReadTemp(cpu int) (int, error) {
	sensors := f.path("sys", "class", "hwmon")

	// gopsutil returns partial results alongside warnings for unreadable
	// sensors, so only an empty result is a failure.
	temps, err := host.SensorsTemperaturesWithContext(f.hostContext())
	valid := make(map[string]float64, len(temps))
	for _, t := range temps {
		if t.Temperature > 0 && t.Temperature <= maxValidTemp {
			valid[strings.ToLower(t.SensorKey)] = t.Temperature
		}
	}
	if len(valid) == 0 {
		if err == nil {
			err = fmt.Errorf("no CPU temperature sensor")
		}
		return 0, &Error{Kind: KindNotPresent, Op: "read", Path: sensors, Err: err}
	}

	if coreID, err := readInt(filepath.Join(f.cpuDir(), fmt.Sprintf("cpu%d", cpu), "topology", "core_id")); err == nil {
		for _, drv := range cpuSensorDrivers {
			if v, ok := valid[drv+"_core_"+strconv.FormatInt(coreID, 10)]; ok {
				return whole(v), nil
			}
		}
	}
	for _, drv := range cpuSensorDrivers {
		for _, l := range packageLabels {
			if v, ok := valid[drv+"_"+l]; ok {
				return whole(v), nil
			}
		}
	}

	hottest, found := 0.0, false
	for key, v := range valid {
		if !isCPUSensor(key) {
			continue
		}
		if !found || v > hottest {
			hottest, found = v, true
		}
	}
	if !found {
		return 0, &Error{Kind: KindNotPresent, Op: "read", Path: sensors,
			Err: fmt.Errorf("no CPU temperature sensor among %d readings", len(valid))}
	}
	return whole(hottest), nil
}

func isCPUSensor(key string) bool {
	for _, drv := range cpuSensorDrivers {
		if key == drv || strings.HasPrefix(key, drv+"_") {
			return true
		}
	}
	for _, z := range cpuZoneTypes {
		if key == z {
			return true
		}
	}
	return false
}

func whole(c float64) int { return int(math.Floor(c)) }
