// Package sampler turns adapter reads into one models.Snapshot per tick.
// Sensor failures degrade to Unknown values; only a missing cpufreq driver
// stops sampling.
package sampler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/acs/internal/models"
	"github.com/Guliveer/acs/internal/sysfs"
)

// ErrUnsupportedPlatform is returned when the CPU frequency scaling
// directory is absent.
var ErrUnsupportedPlatform = errors.New("unsupported platform: cpufreq scaling interface not present")

// Option configures a Sampler.
type Option func(*Sampler)

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// Sampler composes adapter calls into Snapshots. Not safe for concurrent use.
type Sampler struct {
	adapter sysfs.Adapter
	logger  *zap.Logger
	now     func() time.Time

	meter sysfs.UsageMeter
	seq   uint64
}

// New creates a Sampler reading through adapter.
func New(adapter sysfs.Adapter, logger *zap.Logger, opts ...Option) *Sampler {
	s := &Sampler{
		adapter: adapter,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResetBaseline discards the previous /proc/stat reading so the next
// Snapshot reports 0% usage. Used after resume from suspend.
func (s *Sampler) ResetBaseline() {
	s.meter.Reset()
}

// Sample reads the machine state. The only error it returns wraps
// ErrUnsupportedPlatform; every other failure becomes an Unknown field.
// Sequence numbers start at 0 and advance by one per returned Snapshot.
func (s *Sampler) Sample() (models.Snapshot, error) {
	if err := s.adapter.DriverPresent(); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}
	ids, err := s.adapter.CPUs()
	if err != nil {
		if sysfs.KindOf(err) == sysfs.KindNotPresent {
			return models.Snapshot{}, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
		}
		s.absorb("cpus", err)
	}

	snap := models.Snapshot{
		Seq:       s.seq,
		Timestamp: s.now(),
		Power:     models.PowerUnknown,
		Lid:       models.LidUnknown,
		Turbo:     models.TurboNotSupported,
	}

	if avail, err := s.adapter.AvailableGovernors(); err != nil {
		s.absorb("available_governors", err)
	} else {
		snap.AvailableGovernors = avail
	}

	snap.CPUs = make([]models.CPUState, 0, len(ids))
	for _, id := range ids {
		snap.CPUs = append(snap.CPUs, s.sampleCPU(id))
	}
	snap.AvailableGovernors = coverGovernors(snap.AvailableGovernors, snap.CPUs)

	if p, err := s.adapter.ReadPower(); err != nil {
		s.absorb("power", err)
	} else {
		snap.Power = p
	}
	if l, err := s.adapter.ReadLid(); err != nil {
		s.absorb("lid", err)
	} else {
		snap.Lid = l
	}
	if b, err := s.adapter.ReadBattery(); err != nil {
		s.absorb("battery", err)
	} else {
		snap.BatteryCharge = &b
	}
	if t, err := s.adapter.ReadTurbo(); err != nil {
		s.absorb("turbo", err)
	} else {
		snap.Turbo = t
	}
	if r, err := s.adapter.ReadCPUTimes(); err != nil {
		s.absorb("cpu_times", err)
	} else {
		snap.CPUUsagePct = s.meter.Observe(r)
	}

	s.seq++
	return snap, nil
}

func (s *Sampler) sampleCPU(id int) models.CPUState {
	c := models.CPUState{ID: id}
	c.CurKHz = s.readKHz(id, sysfs.FieldCurFreq)
	c.MinKHz = s.readKHz(id, sysfs.FieldMinFreq)
	c.MaxKHz = s.readKHz(id, sysfs.FieldMaxFreq)

	if g, err := s.adapter.ReadCPUField(id, sysfs.FieldGovernor); err != nil {
		s.absorb("governor", err, zap.Int("cpu", id))
	} else {
		c.Governor = g
	}
	if t, err := s.adapter.ReadTemp(id); err != nil {
		s.absorb("temp", err, zap.Int("cpu", id))
	} else {
		c.TempC = &t
	}
	return c
}

func (s *Sampler) readKHz(id int, field sysfs.CPUField) int64 {
	raw, err := s.adapter.ReadCPUField(id, field)
	if err != nil {
		s.absorb(string(field), err, zap.Int("cpu", id))
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.absorb(string(field), &sysfs.Error{Kind: sysfs.KindMalformedContent, Op: "parse", Path: string(field), Err: err}, zap.Int("cpu", id))
		return 0
	}
	return v
}

func (s *Sampler) absorb(field string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("field", field), zap.Error(err))
	if sysfs.KindOf(err) == sysfs.KindNotPresent {
		s.logger.Debug("Sensor not present", fields...)
		return
	}
	s.logger.Warn("Sensor read failed", fields...)
}

// coverGovernors returns avail extended with any CPU governor it lacks, so
// the list always names every governor in use.
func coverGovernors(avail []string, cpus []models.CPUState) []string {
	out := append([]string(nil), avail...)
	for _, c := range cpus {
		if c.Governor == "" {
			continue
		}
		found := false
		for _, g := range out {
			if g == c.Governor {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c.Governor)
		}
	}
	return out
}
