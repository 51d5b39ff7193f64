// Package sysfstest provides an in-memory sysfs.Adapter for tests. Tests
// set the exported fields to describe the machine, run the code under test,
// then inspect the write counters.
package sysfstest

import (
	"fmt"
	"strconv"

	"github.com/Guliveer/acs/internal/models"
	"github.com/Guliveer/acs/internal/sysfs"
)

// CPU is the state of one fake logical CPU.
type CPU struct {
	CurKHz   int64
	MinKHz   int64
	MaxKHz   int64
	Governor string
	// TempC nil means no sensor covers this CPU.
	TempC *int
	// WriteErr, when set, fails every governor write to this CPU.
	WriteErr error
}

// Fake implements sysfs.Adapter in memory.
type Fake struct {
	NoDriver   bool
	Governors  []string
	Cores      []CPU
	Power      models.PowerSource
	Battery    *int
	Lid        models.LidState
	Times      sysfs.CPUReading
	TimesErr   error
	Turbo      models.TurboState
	TurboErr   error
	ProbeErr   error
	CPUListErr error

	GovernorWrites int
	TurboWrites    int
	// Log records every successful write as "cpuN:governor" or "turbo:0|1".
	Log []string
}

var _ sysfs.Adapter = (*Fake)(nil)

// New returns a Fake with n CPUs running the first governor, on AC, lid
// open and boost enabled.
func New(n int, governors ...string) *Fake {
	if len(governors) == 0 {
		governors = []string{"performance", "powersave"}
	}
	f := &Fake{
		Governors: governors,
		Power:     models.PowerAC,
		Lid:       models.LidOpen,
		Turbo:     models.TurboOn,
	}
	for i := 0; i < n; i++ {
		f.Cores = append(f.Cores, CPU{
			CurKHz:   1800000,
			MinKHz:   400000,
			MaxKHz:   4200000,
			Governor: governors[0],
		})
	}
	return f
}

// Int returns a pointer to v, for Battery and TempC.
func Int(v int) *int { return &v }

// SetTemp sets the temperature of every CPU.
func (f *Fake) SetTemp(c int) {
	for i := range f.Cores {
		f.Cores[i].TempC = Int(c)
	}
}

// SetGovernor changes every CPU's governor without counting a write, as a
// third party would.
func (f *Fake) SetGovernor(g string) {
	for i := range f.Cores {
		f.Cores[i].Governor = g
	}
}

// Writes returns the total number of successful writes.
func (f *Fake) Writes() int { return f.GovernorWrites + f.TurboWrites }

// ResetCounters zeroes the write counters and log.
func (f *Fake) ResetCounters() {
	f.GovernorWrites = 0
	f.TurboWrites = 0
	f.Log = nil
}

func notPresent(what string) error {
	return &sysfs.Error{Kind: sysfs.KindNotPresent, Op: "read", Path: what}
}

func (f *Fake) cpu(id int) (*CPU, error) {
	if id < 0 || id >= len(f.Cores) {
		return nil, notPresent(fmt.Sprintf("cpu%d", id))
	}
	return &f.Cores[id], nil
}

func (f *Fake) DriverPresent() error {
	if f.NoDriver {
		return notPresent("cpufreq")
	}
	return nil
}

func (f *Fake) CPUs() ([]int, error) {
	if f.NoDriver {
		return nil, notPresent("cpufreq")
	}
	if f.CPUListErr != nil {
		return nil, f.CPUListErr
	}
	ids := make([]int, len(f.Cores))
	for i := range ids {
		ids[i] = i
	}
	return ids, nil
}

func (f *Fake) ReadCPUField(id int, field sysfs.CPUField) (string, error) {
	c, err := f.cpu(id)
	if err != nil {
		return "", err
	}
	switch field {
	case sysfs.FieldCurFreq:
		return strconv.FormatInt(c.CurKHz, 10), nil
	case sysfs.FieldMinFreq:
		return strconv.FormatInt(c.MinKHz, 10), nil
	case sysfs.FieldMaxFreq:
		return strconv.FormatInt(c.MaxKHz, 10), nil
	case sysfs.FieldGovernor:
		return c.Governor, nil
	case sysfs.FieldAvailableGovernors:
		s := ""
		for i, g := range f.Governors {
			if i > 0 {
				s += " "
			}
			s += g
		}
		return s, nil
	}
	return "", notPresent(string(field))
}

func (f *Fake) WriteCPUField(id int, field sysfs.CPUField, value string) error {
	c, err := f.cpu(id)
	if err != nil {
		return err
	}
	if !field.Writable() {
		return &sysfs.Error{Kind: sysfs.KindReadOnlyFile, Op: "write", Path: string(field)}
	}
	known := false
	for _, g := range f.Governors {
		if g == value {
			known = true
		}
	}
	if !known {
		return &sysfs.Error{Kind: sysfs.KindWriteRejected, Op: "write", Path: string(field)}
	}
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.Governor = value
	f.GovernorWrites++
	f.Log = append(f.Log, fmt.Sprintf("cpu%d:%s", id, value))
	return nil
}

func (f *Fake) AvailableGovernors() ([]string, error) {
	if f.NoDriver {
		return nil, notPresent("cpufreq")
	}
	if len(f.Governors) == 0 {
		return nil, &sysfs.Error{Kind: sysfs.KindMalformedContent, Op: "read", Path: string(sysfs.FieldAvailableGovernors)}
	}
	return append([]string(nil), f.Governors...), nil
}

func (f *Fake) ReadPower() (models.PowerSource, error) {
	if f.Power == models.PowerUnknown {
		return models.PowerUnknown, notPresent("power_supply/AC")
	}
	return f.Power, nil
}

func (f *Fake) ReadBattery() (int, error) {
	if f.Battery == nil {
		return 0, notPresent("power_supply/BAT")
	}
	return *f.Battery, nil
}

func (f *Fake) ReadLid() (models.LidState, error) {
	if f.Lid == models.LidUnknown {
		return models.LidUnknown, notPresent("button/lid")
	}
	return f.Lid, nil
}

func (f *Fake) ReadCPUTimes() (sysfs.CPUReading, error) {
	if f.TimesErr != nil {
		return sysfs.CPUReading{}, f.TimesErr
	}
	return f.Times, nil
}

// AddTimes advances the fake CPU time counters, in seconds.
func (f *Fake) AddTimes(busy, idle float64) {
	f.Times.Busy += busy
	f.Times.Idle += idle
}

func (f *Fake) ReadTemp(id int) (int, error) {
	c, err := f.cpu(id)
	if err != nil {
		return 0, err
	}
	if c.TempC == nil {
		return 0, notPresent("hwmon")
	}
	return *c.TempC, nil
}

func (f *Fake) ReadTurbo() (models.TurboState, error) {
	if f.TurboErr != nil {
		return models.TurboNotSupported, f.TurboErr
	}
	if f.Turbo == models.TurboNotSupported {
		return models.TurboNotSupported, notPresent("boost")
	}
	return f.Turbo, nil
}

func (f *Fake) WriteTurbo(on bool) error {
	if f.Turbo == models.TurboNotSupported {
		return notPresent("boost")
	}
	if f.TurboErr != nil {
		return f.TurboErr
	}
	value := "0"
	f.Turbo = models.TurboOff
	if on {
		value = "1"
		f.Turbo = models.TurboOn
	}
	f.TurboWrites++
	f.Log = append(f.Log, "turbo:"+value)
	return nil
}

func (f *Fake) ProbeWrite() error { return f.ProbeErr }
