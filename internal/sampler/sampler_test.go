package sampler

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/acs/internal/models"
	"github.com/Guliveer/acs/internal/sysfs"
	"github.com/Guliveer/acs/internal/sysfs/sysfstest"
)

func TestSample_FullMachine(t *testing.T) {
	fake := sysfstest.New(2)
	fake.Battery = sysfstest.Int(64)
	fake.Cores[1].TempC = sysfstest.Int(58)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := New(fake, zap.NewNop(), WithClock(func() time.Time { return at }))
	snap, err := s.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Seq != 0 || !snap.Timestamp.Equal(at) {
		t.Errorf("Seq/Timestamp = %d/%v", snap.Seq, snap.Timestamp)
	}
	if snap.Power != models.PowerAC || snap.Lid != models.LidOpen || snap.Turbo != models.TurboOn {
		t.Errorf("power/lid/turbo = %v/%v/%v", snap.Power, snap.Lid, snap.Turbo)
	}
	if snap.BatteryCharge == nil || *snap.BatteryCharge != 64 {
		t.Errorf("BatteryCharge = %v, want 64", snap.BatteryCharge)
	}
	if len(snap.CPUs) != 2 {
		t.Fatalf("len(CPUs) = %d, want 2", len(snap.CPUs))
	}
	if snap.CPUs[0].TempC != nil {
		t.Errorf("cpu0 TempC = %d, want nil", *snap.CPUs[0].TempC)
	}
	if snap.CPUs[1].TempC == nil || *snap.CPUs[1].TempC != 58 {
		t.Errorf("cpu1 TempC = %v, want 58", snap.CPUs[1].TempC)
	}
	if snap.CPUs[0].CurKHz != 1800000 || snap.CPUs[0].MaxKHz != 4200000 {
		t.Errorf("cpu0 freq = %+v", snap.CPUs[0])
	}
	if snap.CPUUsagePct != 0 {
		t.Errorf("first CPUUsagePct = %f, want 0", snap.CPUUsagePct)
	}
}

func TestSample_SequenceIsContiguous(t *testing.T) {
	s := New(sysfstest.New(1), zap.NewNop())
	for want := uint64(0); want < 5; want++ {
		snap, err := s.Sample()
		if err != nil {
			t.Fatal(err)
		}
		if snap.Seq != want {
			t.Fatalf("Seq = %d, want %d", snap.Seq, want)
		}
	}
}

func TestSample_UsageDelta(t *testing.T) {
	fake := sysfstest.New(1)
	fake.AddTimes(100, 100)
	s := New(fake, zap.NewNop())
	if _, err := s.Sample(); err != nil {
		t.Fatal(err)
	}

	fake.AddTimes(30, 10)
	snap, err := s.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if snap.CPUUsagePct != 75 {
		t.Errorf("CPUUsagePct = %f, want 75", snap.CPUUsagePct)
	}

	s.ResetBaseline()
	fake.AddTimes(50, 0)
	if snap, _ = s.Sample(); snap.CPUUsagePct != 0 {
		t.Errorf("CPUUsagePct after ResetBaseline = %f, want 0", snap.CPUUsagePct)
	}
}

func TestSample_SensorFailuresDegrade(t *testing.T) {
	fake := sysfstest.New(2)
	fake.Power = models.PowerUnknown
	fake.Lid = models.LidUnknown
	fake.Battery = nil
	fake.Turbo = models.TurboNotSupported
	fake.TimesErr = &sysfs.Error{Kind: sysfs.KindMalformedContent, Op: "read", Path: "/proc/stat"}

	snap, err := New(fake, zap.NewNop()).Sample()
	if err != nil {
		t.Fatalf("Sample() error = %v, want degraded snapshot", err)
	}
	if snap.Power != models.PowerUnknown || snap.Lid != models.LidUnknown {
		t.Errorf("power/lid = %v/%v, want Unknown", snap.Power, snap.Lid)
	}
	if snap.BatteryCharge != nil {
		t.Errorf("BatteryCharge = %d, want nil", *snap.BatteryCharge)
	}
	if snap.Turbo != models.TurboNotSupported {
		t.Errorf("Turbo = %v, want NotSupported", snap.Turbo)
	}
	if len(snap.CPUs) != 2 {
		t.Errorf("len(CPUs) = %d, want 2", len(snap.CPUs))
	}
}

func TestSample_NoDriverIsUnsupported(t *testing.T) {
	fake := sysfstest.New(2)
	fake.NoDriver = true
	s := New(fake, zap.NewNop())
	if _, err := s.Sample(); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("Sample() error = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestSample_CPUListIOErrorDegrades(t *testing.T) {
	fake := sysfstest.New(2)
	fake.CPUListErr = &sysfs.Error{Kind: sysfs.KindIOError, Op: "glob", Path: "cpu"}
	snap, err := New(fake, zap.NewNop()).Sample()
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(snap.CPUs) != 0 {
		t.Errorf("len(CPUs) = %d, want 0", len(snap.CPUs))
	}
}

func TestSample_AvailableCoversCurrentGovernors(t *testing.T) {
	fake := sysfstest.New(2)
	fake.Cores[1].Governor = "userspace"

	snap, err := New(fake, zap.NewNop()).Sample()
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range snap.CPUs {
		if !snap.HasGovernor(c.Governor) {
			t.Errorf("available %v lacks cpu%d governor %q", snap.AvailableGovernors, c.ID, c.Governor)
		}
	}
	if snap.AvailableGovernors[0] != "performance" {
		t.Errorf("AvailableGovernors[0] = %q, want kernel order kept", snap.AvailableGovernors[0])
	}
}
