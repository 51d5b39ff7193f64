// Package setup handles first-run configuration and service installation.
package setup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Guliveer/acs/internal/config"
)

// DefaultBinPath is where "acs service install" copies the binary.
const DefaultBinPath = "/usr/local/bin/acs"

// Installer registers the daemon with the init system.
type Installer interface {
	IsInstalled() (bool, error)
	Install(execPath string) error
	Uninstall() error
	ServiceName() string
}

// Options holds the paths used by Install.
type Options struct {
	BinPath    string
	ConfigPath string
}

func (o Options) withDefaults() Options {
	if o.BinPath == "" {
		o.BinPath = DefaultBinPath
	}
	if o.ConfigPath == "" {
		o.ConfigPath = config.DefaultPath
	}
	return o
}

// EnsureConfig writes the default configuration to path unless a file is
// already there. It reports whether a file was created.
func EnsureConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("checking config file: %w", err)
	}
	if err := config.WriteConfig(config.DefaultConfig(), path); err != nil {
		return false, fmt.Errorf("writing default config: %w", err)
	}
	return true, nil
}

// FirstRun writes the default configuration to path when the process runs
// as root and no file exists there yet. Unprivileged runs change nothing.
func FirstRun(path string) (bool, error) {
	if geteuid() != 0 {
		return false, nil
	}
	return EnsureConfig(path)
}

// Install copies the running binary into place, writes a default config if
// none exists and registers the service. Progress goes to w.
func Install(w io.Writer, version string, inst Installer, opts Options) error {
	opts = opts.withDefaults()

	fmt.Fprintf(w, "\nacs service setup %s\n", version)
	fmt.Fprintln(w, strings.Repeat("─", 30))

	if err := os.MkdirAll(filepath.Dir(opts.BinPath), 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(opts.BinPath), err)
	}
	copied, err := copyBinary(opts.BinPath)
	if err != nil {
		return fmt.Errorf("copying binary: %w", err)
	}
	if copied {
		fmt.Fprintf(w, "  ✓ Copied binary → %s\n", opts.BinPath)
	} else {
		fmt.Fprintf(w, "  ✓ Binary already at %s\n", opts.BinPath)
	}

	created, err := EnsureConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(w, "  ✓ Written config → %s\n", opts.ConfigPath)
	} else {
		fmt.Fprintf(w, "  ✓ Keeping existing config %s\n", opts.ConfigPath)
	}

	existed, err := inst.IsInstalled()
	if err != nil {
		return fmt.Errorf("checking service: %w", err)
	}
	if err := inst.Install(opts.BinPath); err != nil {
		return fmt.Errorf("registering service: %w", err)
	}
	if existed {
		fmt.Fprintf(w, "  ✓ Updated service (%s)\n", inst.ServiceName())
	} else {
		fmt.Fprintf(w, "  ✓ Registered service (%s)\n", inst.ServiceName())
	}
	fmt.Fprintln(w, "\nDone! acs is running.")
	return nil
}

// Uninstall removes the service. The binary and configuration are kept.
func Uninstall(w io.Writer, inst Installer) error {
	if err := inst.Uninstall(); err != nil {
		return fmt.Errorf("removing service: %w", err)
	}
	fmt.Fprintf(w, "  ✓ Removed service (%s)\n", inst.ServiceName())
	return nil
}

// copyBinary copies the current executable to dst. It returns false when
// the executable already is dst.
func copyBinary(dst string) (bool, error) {
	src, err := os.Executable()
	if err != nil {
		return false, err
	}
	if resolved, err := filepath.EvalSymlinks(src); err == nil {
		src = resolved
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return false, err
	}
	dst, err = filepath.Abs(filepath.Clean(dst))
	if err != nil {
		return false, err
	}
	if src == dst {
		return false, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()

	// Write beside the target and rename so a running copy is not truncated.
	tmp := dst + ".new"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return false, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return false, err
	}
	return true, os.Rename(tmp, dst)
}
