package sysfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/common"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sys/unix"

	"github.com/Guliveer/acs/internal/models"
)

// Option configures an FS.
type Option func(*FS)

// WithLidFallback sets a source consulted when no ACPI lid button exists.
func WithLidFallback(fn func() (models.LidState, error)) Option {
	return func(f *FS) { f.lidFallback = fn }
}

// FS implements Adapter on top of a real (or fake) /sys and /proc tree.
type FS struct {
	root        string
	lidFallback func() (models.LidState, error)
}

// New returns an FS rooted at root. Production code passes "/".
func New(root string, opts ...Option) *FS {
	f := &FS{root: root}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ Adapter = (*FS)(nil)

func (f *FS) path(elem ...string) string {
	return filepath.Join(append([]string{f.root}, elem...)...)
}

func (f *FS) cpuDir() string { return f.path("sys", "devices", "system", "cpu") }

func (f *FS) cpufreqPath(cpu int, field CPUField) string {
	return filepath.Join(f.cpuDir(), fmt.Sprintf("cpu%d", cpu), "cpufreq", string(field))
}

// readFile reads a sysfs file and returns its trimmed content.
func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", classify("read", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func readInt(path string) (int64, error) {
	s, err := readFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, malformed(path, s)
	}
	return v, nil
}

// writeFile writes to an existing kernel file. It never creates files.
func writeFile(path, value string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return classify("write", path, err)
	}
	if _, err := file.WriteString(value); err != nil {
		file.Close()
		return classify("write", path, err)
	}
	return classify("write", path, file.Close())
}

// DriverPresent checks that cpu0 exposes a cpufreq directory.
func (f *FS) DriverPresent() error {
	dir := filepath.Join(f.cpuDir(), "cpu0", "cpufreq")
	info, err := os.Stat(dir)
	if err != nil {
		return classify("stat", dir, err)
	}
	if !info.IsDir() {
		return &Error{Kind: KindNotPresent, Op: "stat", Path: dir, Err: fmt.Errorf("not a directory")}
	}
	return nil
}

// CPUs lists the logical CPUs with a cpufreq policy, sorted by id.
func (f *FS) CPUs() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(f.cpuDir(), "cpu[0-9]*", "cpufreq"))
	if err != nil {
		return nil, classify("glob", f.cpuDir(), err)
	}
	var ids []int
	for _, m := range matches {
		name := filepath.Base(filepath.Dir(m))
		id, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, &Error{Kind: KindNotPresent, Op: "glob", Path: f.cpuDir(), Err: fmt.Errorf("no cpufreq CPUs")}
	}
	sort.Ints(ids)
	return ids, nil
}

// ReadCPUField returns the trimmed content of a cpufreq attribute.
func (f *FS) ReadCPUField(cpu int, field CPUField) (string, error) {
	return readFile(f.cpufreqPath(cpu, field))
}

// WriteCPUField writes a writable cpufreq attribute. A governor must be in
// the CPU's scaling_available_governors.
func (f *FS) WriteCPUField(cpu int, field CPUField, value string) error {
	path := f.cpufreqPath(cpu, field)
	if !field.Writable() {
		return &Error{Kind: KindReadOnlyFile, Op: "write", Path: path}
	}
	if field == FieldGovernor {
		available, err := readFile(f.cpufreqPath(cpu, FieldAvailableGovernors))
		if err != nil {
			return err
		}
		if !contains(strings.Fields(available), value) {
			return &Error{Kind: KindWriteRejected, Op: "write", Path: path,
				Err: fmt.Errorf("governor %q not in %q", value, available)}
		}
	}
	return writeFile(path, value)
}

// AvailableGovernors reads the governor list of the first CPU.
func (f *FS) AvailableGovernors() ([]string, error) {
	cpus, err := f.CPUs()
	if err != nil {
		return nil, err
	}
	path := f.cpufreqPath(cpus[0], FieldAvailableGovernors)
	s, err := readFile(path)
	if err != nil {
		return nil, err
	}
	govs := strings.Fields(s)
	if len(govs) == 0 {
		return nil, malformed(path, s)
	}
	return govs, nil
}

// acSupplyGlobs cover the names mains adapters are registered under.
var acSupplyGlobs = []string{"AC*", "ADP*", "ACAD*"}

// ReadPower reports AC when any mains adapter is online and battery when
// every readable adapter is offline.
func (f *FS) ReadPower() (models.PowerSource, error) {
	var paths []string
	for _, g := range acSupplyGlobs {
		m, _ := filepath.Glob(f.path("sys", "class", "power_supply", g, "online"))
		paths = append(paths, m...)
	}
	if len(paths) == 0 {
		return models.PowerUnknown, &Error{Kind: KindNotPresent, Op: "glob", Path: f.path("sys", "class", "power_supply")}
	}

	var lastErr error
	readable := false
	for _, p := range paths {
		s, err := readFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		switch s {
		case "1":
			return models.PowerAC, nil
		case "0":
			readable = true
		default:
			lastErr = malformed(p, s)
		}
	}
	if readable {
		return models.PowerBattery, nil
	}
	return models.PowerUnknown, lastErr
}

// ReadBattery returns the charge of the first battery in percent.
func (f *FS) ReadBattery() (int, error) {
	matches, _ := filepath.Glob(f.path("sys", "class", "power_supply", "BAT*", "capacity"))
	if len(matches) == 0 {
		return 0, &Error{Kind: KindNotPresent, Op: "glob", Path: f.path("sys", "class", "power_supply")}
	}
	v, err := readInt(matches[0])
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 100 {
		return 0, malformed(matches[0], strconv.FormatInt(v, 10))
	}
	return int(v), nil
}

// ReadLid parses the ACPI lid button state, falling back to the lid
// source set with WithLidFallback.
func (f *FS) ReadLid() (models.LidState, error) {
	matches, _ := filepath.Glob(f.path("proc", "acpi", "button", "lid", "*", "state"))
	if len(matches) == 0 {
		if f.lidFallback != nil {
			return f.lidFallback()
		}
		return models.LidUnknown, &Error{Kind: KindNotPresent, Op: "glob", Path: f.path("proc", "acpi", "button", "lid")}
	}
	s, err := readFile(matches[0])
	if err != nil {
		return models.LidUnknown, err
	}
	// "state:      open"
	switch {
	case strings.Contains(s, "closed"):
		return models.LidClosed, nil
	case strings.Contains(s, "open"):
		return models.LidOpen, nil
	}
	return models.LidUnknown, malformed(matches[0], s)
}

// ReadCPUTimes returns the aggregate line of /proc/stat.
func (f *FS) ReadCPUTimes() (CPUReading, error) {
	path := f.path("proc", "stat")
	times, err := cpu.TimesWithContext(f.hostContext(), false)
	if err != nil {
		return CPUReading{}, classify("read", path, err)
	}
	if len(times) == 0 {
		// gopsutil drops open and parse errors on the aggregate line.
		if _, err := os.Stat(path); err != nil {
			return CPUReading{}, classify("read", path, err)
		}
		return CPUReading{}, malformed(path, "no aggregate cpu line")
	}
	return readingFrom(times[0]), nil
}

// hostContext points gopsutil at the adapter's root.
func (f *FS) hostContext() context.Context {
	return context.WithValue(context.Background(), common.EnvKey, common.EnvMap{
		common.HostProcEnvKey: f.path("proc"),
		common.HostSysEnvKey:  f.path("sys"),
	})
}

func (f *FS) turboFiles() (noTurbo, boost string) {
	return f.path("sys", "devices", "system", "cpu", "intel_pstate", "no_turbo"),
		f.path("sys", "devices", "system", "cpu", "cpufreq", "boost")
}

// ReadTurbo reads intel_pstate/no_turbo, or cpufreq/boost when the
// former is absent.
func (f *FS) ReadTurbo() (models.TurboState, error) {
	noTurbo, boost := f.turboFiles()

	s, err := readFile(noTurbo)
	if err == nil {
		switch s {
		case "0":
			return models.TurboOn, nil
		case "1":
			return models.TurboOff, nil
		}
		return models.TurboNotSupported, malformed(noTurbo, s)
	}
	if KindOf(err) != KindNotPresent {
		return models.TurboNotSupported, err
	}

	s, err = readFile(boost)
	if err != nil {
		return models.TurboNotSupported, err
	}
	switch s {
	case "1":
		return models.TurboOn, nil
	case "0":
		return models.TurboOff, nil
	}
	return models.TurboNotSupported, malformed(boost, s)
}

// WriteTurbo enables or disables boost through whichever flag exists.
func (f *FS) WriteTurbo(on bool) error {
	noTurbo, boost := f.turboFiles()
	if _, err := os.Stat(noTurbo); err == nil {
		// no_turbo has inverted polarity
		return writeFlag(noTurbo, !on)
	}
	if _, err := os.Stat(boost); err == nil {
		return writeFlag(boost, on)
	}
	return &Error{Kind: KindNotPresent, Op: "write", Path: boost}
}

func writeFlag(path string, set bool) error {
	value := "0"
	if set {
		value = "1"
	}
	return writeFile(path, value)
}

// ProbeWrite checks write access to every governor file and the boost flag
// without changing them.
func (f *FS) ProbeWrite() error {
	cpus, err := f.CPUs()
	if err != nil {
		return err
	}
	var paths []string
	for _, cpu := range cpus {
		paths = append(paths, f.cpufreqPath(cpu, FieldGovernor))
	}
	noTurbo, boost := f.turboFiles()
	for _, p := range []string{noTurbo, boost} {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
			break
		}
	}
	for _, p := range paths {
		if err := unix.Access(p, unix.W_OK); err != nil {
			return classify("probe", p, err)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
