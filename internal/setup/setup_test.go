package setup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Guliveer/acs/internal/config"
)

type fakeInstaller struct {
	installed string
	existing  bool
	removed   bool
	err       error
}

func (f *fakeInstaller) IsInstalled() (bool, error) { return f.existing, nil }

func (f *fakeInstaller) Install(execPath string) error {
	f.installed = execPath
	return f.err
}

func (f *fakeInstaller) Uninstall() error {
	f.removed = true
	return f.err
}

func (f *fakeInstaller) ServiceName() string { return "acs" }

func TestEnsureConfig(t *testing.T) {
	t.Setenv("ACS_LOG_LEVEL", "")
	t.Setenv("ACS_LOG_FILE", "")
	path := filepath.Join(t.TempDir(), "etc", "acs.toml")

	created, err := EnsureConfig(path)
	if err != nil || !created {
		t.Fatalf("EnsureConfig() = %v, %v, want created", created, err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PowersaveUnder != config.DefaultConfig().PowersaveUnder {
		t.Errorf("PowersaveUnder = %d", cfg.PowersaveUnder)
	}

	if err := os.WriteFile(path, []byte("powersave_under = 33\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	created, err = EnsureConfig(path)
	if err != nil || created {
		t.Fatalf("second EnsureConfig() = %v, %v, want kept", created, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "powersave_under = 33\n" {
		t.Errorf("existing config overwritten: %q", data)
	}
}

func TestInstall(t *testing.T) {
	dir := t.TempDir()
	inst := &fakeInstaller{}
	var out bytes.Buffer
	opts := Options{
		BinPath:    filepath.Join(dir, "bin", "acs"),
		ConfigPath: filepath.Join(dir, "etc", "acs", "acs.toml"),
	}

	if err := Install(&out, "v1.0.0", inst, opts); err != nil {
		t.Fatal(err)
	}
	if inst.installed != opts.BinPath {
		t.Errorf("installed = %q, want %q", inst.installed, opts.BinPath)
	}
	for _, p := range []string{opts.BinPath, opts.ConfigPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not created: %v", p, err)
		}
	}
	if !strings.Contains(out.String(), "Registered service (acs)") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestInstall_ServiceFails(t *testing.T) {
	dir := t.TempDir()
	inst := &fakeInstaller{err: errors.New("systemctl missing")}
	err := Install(&bytes.Buffer{}, "dev", inst, Options{
		BinPath:    filepath.Join(dir, "acs"),
		ConfigPath: filepath.Join(dir, "acs.toml"),
	})
	if err == nil || !strings.Contains(err.Error(), "registering service") {
		t.Fatalf("Install() = %v", err)
	}
}

func TestUninstall(t *testing.T) {
	inst := &fakeInstaller{}
	if err := Uninstall(&bytes.Buffer{}, inst); err != nil || !inst.removed {
		t.Fatalf("Uninstall() = %v, removed=%v", err, inst.removed)
	}
}

func TestCheckElevation(t *testing.T) {
	orig := geteuid
	defer func() { geteuid = orig }()

	geteuid = func() int { return 1000 }
	if err := CheckElevation("acs run"); !errors.Is(err, ErrNotRoot) {
		t.Errorf("CheckElevation() as user = %v, want ErrNotRoot", err)
	}
	geteuid = func() int { return 0 }
	if err := CheckElevation("acs run"); err != nil {
		t.Errorf("CheckElevation() as root = %v", err)
	}
}

func TestFirstRun(t *testing.T) {
	t.Setenv("ACS_LOG_LEVEL", "")
	t.Setenv("ACS_LOG_FILE", "")
	orig := geteuid
	defer func() { geteuid = orig }()
	path := filepath.Join(t.TempDir(), "etc", "acs", "acs.toml")

	geteuid = func() int { return 1000 }
	if created, err := FirstRun(path); err != nil || created {
		t.Fatalf("FirstRun() as user = %v, %v, want nothing written", created, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("config exists after unprivileged FirstRun: %v", err)
	}

	geteuid = func() int { return 0 }
	if created, err := FirstRun(path); err != nil || !created {
		t.Fatalf("FirstRun() as root = %v, %v, want created", created, err)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if created, err := FirstRun(path); err != nil || created {
		t.Fatalf("second FirstRun() = %v, %v, want kept", created, err)
	}
}

func TestInstall_ReportsUpdate(t *testing.T) {
	dir := t.TempDir()
	inst := &fakeInstaller{existing: true}
	var out bytes.Buffer
	opts := Options{
		BinPath:    filepath.Join(dir, "bin", "acs"),
		ConfigPath: filepath.Join(dir, "etc", "acs", "acs.toml"),
	}
	if err := Install(&out, "v1.0.0", inst, opts); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Updated service (acs)") {
		t.Errorf("output = %q, want service update reported", out.String())
	}
}
