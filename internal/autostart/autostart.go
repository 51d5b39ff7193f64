// Package autostart installs acs as a systemd service running "acs run".
package autostart

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const (
	serviceName     = "acs"
	defaultUnitPath = "/etc/systemd/system/acs.service"
)

// unitTemplate is the systemd unit file written during installation.
// The placeholder {execPath} is replaced with the actual binary path.
const unitTemplate = `[Unit]
Description=acs CPU frequency and power manager
After=systemd-logind.service

[Service]
Type=simple
ExecStart={execPath} run --quiet --no-animation
Restart=on-failure
RestartSec=5
# 2: no write access, 3: no cpufreq driver. Restarting will not help.
RestartPreventExitStatus=2 3
StandardOutput=journal
StandardError=journal
SyslogIdentifier=acs

# Security hardening
NoNewPrivileges=true
ProtectHome=true
PrivateTmp=true

[Install]
WantedBy=multi-user.target
`

// Manager installs and removes the systemd unit.
type Manager struct {
	unitPath string
	run      func(name string, args ...string) error
}

// New returns a Manager for the system unit directory.
func New() *Manager {
	return &Manager{
		unitPath: defaultUnitPath,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Unit returns the unit file contents for execPath.
func Unit(execPath string) string {
	return strings.ReplaceAll(unitTemplate, "{execPath}", execPath)
}

// ServiceName returns the systemd service name.
func (m *Manager) ServiceName() string { return serviceName }

// UnitPath returns where the unit file is written.
func (m *Manager) UnitPath() string { return m.unitPath }

// IsInstalled checks whether the systemd unit file exists.
func (m *Manager) IsInstalled() (bool, error) {
	_, err := os.Stat(m.unitPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking unit file: %w", err)
	}
	return true, nil
}

// Install writes the unit file, reloads systemd, enables and starts the service.
func (m *Manager) Install(execPath string) error {
	if err := os.WriteFile(m.unitPath, []byte(Unit(execPath)), 0o644); err != nil {
		return fmt.Errorf("writing unit file: %w", err)
	}

	commands := [][]string{
		{"systemctl", "daemon-reload"},
		{"systemctl", "enable", serviceName},
		{"systemctl", "start", serviceName},
	}
	for _, args := range commands {
		if err := m.run(args[0], args[1:]...); err != nil {
			return fmt.Errorf("running %s: %w", strings.Join(args, " "), err)
		}
	}
	return nil
}

// Uninstall stops, disables, and removes the systemd service.
func (m *Manager) Uninstall() error {
	// Best-effort stop and disable; ignore errors if the service is already inactive.
	_ = m.run("systemctl", "stop", serviceName)
	_ = m.run("systemctl", "disable", serviceName)

	if err := os.Remove(m.unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}

	_ = m.run("systemctl", "daemon-reload")
	return nil
}
