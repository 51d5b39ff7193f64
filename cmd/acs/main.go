// Package main is the entry point for acs, the automatic CPU speed and
// power manager. It parses the command line, loads configuration and runs
// one verb: get, set gov, run, monitor, showconfig or service.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Guliveer/acs/internal/actuator"
	"github.com/Guliveer/acs/internal/config"
	"github.com/Guliveer/acs/internal/render"
	"github.com/Guliveer/acs/internal/sampler"
	"github.com/Guliveer/acs/internal/setup"
	"github.com/Guliveer/acs/internal/sysfs"
)

var (
	// version and commit are set at build time via -ldflags.
	version = "dev"
	commit  = ""
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitPermission  = 2
	exitUnsupported = 3
)

// sysRoot is the filesystem root sysfs and procfs are read under.
const sysRoot = "/"

// defaultConfigPath is where an edit-mode run as root writes the defaults
// on first start.
var defaultConfigPath = config.DefaultPath

const usage = `Usage: acs <command> [flags]

Commands:
  get <field>...      print machine state; fields: %s
  set gov <name>      set the governor on every CPU
  run                 run the control loop and apply decisions
  monitor             run the control loop without writing anything
  showconfig          print the resolved configuration
  service install     install and start the systemd service
  service uninstall   stop and remove the systemd service
  version             print the version

Run "acs <command> --help" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage()
		if len(args) == 0 {
			return exitFailure
		}
		return exitOK
	}

	verb, rest := args[0], args[1:]
	var err error
	switch verb {
	case "get":
		err = cmdGet(rest)
	case "set":
		err = cmdSet(rest)
	case "run":
		err = cmdLoop(verb, rest, actuator.EditMode())
	case "monitor":
		err = cmdLoop(verb, rest, actuator.MonitorMode())
	case "showconfig":
		err = cmdShowConfig(rest)
	case "service":
		err = cmdService(rest)
	case "version", "--version":
		fmt.Printf("acs %s%s\n", version, commitSuffix())
	default:
		fmt.Fprintf(os.Stderr, "acs: unknown command %q\n\n", verb)
		printUsage()
		return exitFailure
	}

	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "acs %s: %v\n", verb, err)
	}
	return exitCode(err)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, usage, strings.Join(render.GetFields, ", "))
}

func commitSuffix() string {
	if commit == "" {
		return ""
	}
	return " (" + commit + ")"
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, sampler.ErrUnsupportedPlatform):
		return exitUnsupported
	case errors.Is(err, actuator.ErrWriteAccess),
		errors.Is(err, setup.ErrNotRoot),
		sysfs.KindOf(err) == sysfs.KindPermissionDenied:
		return exitPermission
	default:
		return exitFailure
	}
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
	verbose    bool
}

func newFlagSet(name string) (*pflag.FlagSet, *commonFlags) {
	fs := pflag.NewFlagSet("acs "+name, pflag.ContinueOnError)
	c := &commonFlags{}
	fs.StringVarP(&c.configPath, "config", "c", "", "configuration file (default "+config.DefaultPath+", or $ACS_CONFIG)")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")
	return fs, c
}

func (c *commonFlags) load() (*config.Config, error) {
	cli := config.CLIOverrides{ConfigPath: c.configPath}
	if c.verbose {
		cli.LogLevel = "debug"
	}
	return config.Resolve(cli)
}
