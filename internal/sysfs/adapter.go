// Package sysfs is the typed facade over the kernel files the daemon reads
// and writes: cpufreq, boost, power_supply, the ACPI lid button, /proc/stat
// and the thermal sensors.
//
// Every Adapter call maps to one kernel read or write and reports failures
// as *Error values whose Kind says what went wrong. The FS implementation
// works against a root directory so tests can point it at a fake tree; the
// sysfstest package provides an in-memory double.
package sysfs

import "github.com/Guliveer/acs/internal/models"

// CPUField names a file under /sys/devices/system/cpu/cpuN/cpufreq.
type CPUField string

const (
	FieldCurFreq            CPUField = "scaling_cur_freq"
	FieldMinFreq            CPUField = "scaling_min_freq"
	FieldMaxFreq            CPUField = "scaling_max_freq"
	FieldGovernor           CPUField = "scaling_governor"
	FieldAvailableGovernors CPUField = "scaling_available_governors"
)

// Writable reports whether the daemon may write the field.
func (f CPUField) Writable() bool {
	return f == FieldGovernor
}

// Adapter is the capability set the control loop is generic over.
type Adapter interface {
	// DriverPresent returns a NotPresent error when the cpufreq scaling
	// directory does not exist.
	DriverPresent() error

	// CPUs lists the logical CPUs that expose cpufreq, in ascending order.
	CPUs() ([]int, error)

	ReadCPUField(cpu int, field CPUField) (string, error)

	// WriteCPUField validates value for the field before writing it.
	// Read-only fields fail with ReadOnlyFile; a governor missing from
	// the available list fails with WriteRejected.
	WriteCPUField(cpu int, field CPUField, value string) error

	AvailableGovernors() ([]string, error)

	ReadPower() (models.PowerSource, error)

	// ReadBattery returns the charge percentage of the first battery.
	ReadBattery() (int, error)

	ReadLid() (models.LidState, error)

	// ReadCPUTimes returns the aggregate jiffies from /proc/stat.
	ReadCPUTimes() (CPUReading, error)

	// ReadTemp returns the temperature in whole degrees Celsius of the
	// sensor covering cpu.
	ReadTemp(cpu int) (int, error)

	// ReadTurbo returns a NotPresent error on machines without a boost flag.
	ReadTurbo() (models.TurboState, error)

	WriteTurbo(on bool) error

	// ProbeWrite checks, without writing, that the process may write
	// every file the actuator touches.
	ProbeWrite() error
}
