package setup

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotRoot is returned by CheckElevation for an unprivileged process.
var ErrNotRoot = errors.New("root privileges required")

// geteuid is replaced in tests.
var geteuid = os.Geteuid

// CheckElevation verifies the process runs as root. what names the action
// for the error message, e.g. "acs service install".
func CheckElevation(what string) error {
	if geteuid() != 0 {
		return fmt.Errorf("%w for %s\n\nRun with sudo:\n  sudo %s", ErrNotRoot, what, what)
	}
	return nil
}
