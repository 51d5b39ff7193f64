package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/Guliveer/acs/internal/actuator"
	"github.com/Guliveer/acs/internal/autostart"
	"github.com/Guliveer/acs/internal/config"
	"github.com/Guliveer/acs/internal/hostinfo"
	"github.com/Guliveer/acs/internal/logind"
	"github.com/Guliveer/acs/internal/policy"
	"github.com/Guliveer/acs/internal/render"
	"github.com/Guliveer/acs/internal/sampler"
	"github.com/Guliveer/acs/internal/scheduler"
	"github.com/Guliveer/acs/internal/setup"
	"github.com/Guliveer/acs/internal/sysfs"
)

// usageInterval separates the two samples "get usage" needs for a delta.
const usageInterval = 500 * time.Millisecond

func cmdGet(args []string) error {
	fs, common := newFlagSet("get")
	raw := fs.Bool("raw", false, "print bare values for scripts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fields := fs.Args()
	if len(fields) == 0 {
		return fmt.Errorf("missing field (want one of %v)", render.GetFields)
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	logger := initLogger(cfg, zapcore.WarnLevel)
	defer logger.Sync()

	adapter := sysfs.New(sysRoot)
	s := sampler.New(adapter, logger.Named("sampler"))
	snap, err := s.Sample()
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f == "usage" {
			time.Sleep(usageInterval)
			if snap, err = s.Sample(); err != nil {
				return err
			}
			break
		}
	}

	info, err := hostinfo.CPU(context.Background())
	if err != nil {
		logger.Debug("CPU info unavailable", zap.Error(err))
	}
	for _, f := range fields {
		if err := render.WriteField(os.Stdout, f, snap, info, *raw); err != nil {
			return err
		}
	}
	return nil
}

func cmdSet(args []string) error {
	fs, common := newFlagSet("set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 || rest[0] != "gov" {
		return errors.New(`usage: acs set gov <name>`)
	}
	name := rest[1]

	cfg, err := common.load()
	if err != nil {
		return err
	}
	logger := initLogger(cfg, zapcore.WarnLevel)
	defer logger.Sync()

	adapter := sysfs.New(sysRoot)
	snap, err := sampler.New(adapter, logger.Named("sampler")).Sample()
	if err != nil {
		return err
	}
	d, err := policy.Manual(snap, name)
	if err != nil {
		return err
	}
	if err := actuator.Probe(adapter); err != nil {
		return err
	}

	out := actuator.New(adapter, actuator.EditMode(), logger.Named("actuator")).Apply(snap, d)
	if len(out.Errors) > 0 {
		errs := make([]error, 0, len(out.Errors))
		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("cpu%d: %w", e.CPU, e.Err))
		}
		return errors.Join(errs...)
	}
	fmt.Printf("Governor set to %s on %d CPUs (%d already set)\n", name, out.Writes(), len(out.Skipped))
	return nil
}

func cmdLoop(verb string, args []string, gate actuator.Gate) error {
	fs, common := newFlagSet(verb)
	delayMS := fs.Int("delay", int(scheduler.DefaultDelay/time.Millisecond), "milliseconds between ticks on AC")
	delayBatteryMS := fs.Int("delay-battery", int(scheduler.DefaultDelayBattery/time.Millisecond), "milliseconds between ticks on battery")
	quiet := fs.BoolP("quiet", "q", false, "print one line per tick")
	noAnimation := fs.Bool("no-animation", false, "append frames instead of redrawing the screen")
	graph := fs.Bool("graph", false, "show usage and frequency graphs")
	showCommit := fs.Bool("commit", false, "show the build commit in the header")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *delayMS <= 0 || *delayBatteryMS <= 0 {
		return errors.New("--delay and --delay-battery must be positive")
	}

	var created bool
	if gate.CanWrite() {
		var err error
		if created, err = setup.FirstRun(defaultConfigPath); err != nil {
			return err
		}
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	animate := !*quiet && !*noAnimation && stdoutTTY
	minConsole := zapcore.DebugLevel
	if animate {
		minConsole = zapcore.WarnLevel
	}
	logger := initLogger(cfg, minConsole)
	defer logger.Sync()

	logger.Info("Starting acs",
		zap.String("version", version),
		zap.String("mode", gate.String()),
		zap.String("config", cfg.Path))
	if created {
		logger.Info("Wrote default configuration", zap.String("path", defaultConfigPath))
	}
	for _, w := range cfg.Warnings {
		logger.Warn("Configuration", zap.String("warning", w))
	}

	var opts []sysfs.Option
	var loopOpts []scheduler.Option
	mon, err := logind.Connect(logger.Named("logind"))
	if err != nil {
		logger.Debug("logind unavailable, no resume or lid fallback", zap.Error(err))
	} else {
		defer mon.Close()
		opts = append(opts, sysfs.WithLidFallback(mon.Lid))
		loopOpts = append(loopOpts, scheduler.WithWake(mon.Wake()))
	}
	adapter := sysfs.New(sysRoot, opts...)

	warnings, err := scheduler.Preflight(adapter, cfg, gate)
	for _, w := range warnings {
		logger.Warn("Configuration", zap.String("warning", w))
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	termOpts := render.TerminalOptions{
		Quiet:       *quiet,
		NoAnimation: !animate,
		Graph:       *graph,
		Mode:        gate.String(),
		Load: func() (hostinfo.Load, error) {
			return hostinfo.LoadAverage(ctx)
		},
	}
	if *showCommit {
		termOpts.Commit = commit
		if termOpts.Commit == "" {
			termOpts.Commit = "unknown"
		}
	}
	var width func() int
	if stdoutTTY {
		width = terminalWidth
	}
	bridge := render.NewBridge(
		render.NewWindow(render.SizeForWidth(terminalWidth())),
		render.NewTerminal(os.Stdout, termOpts),
		width,
		logger.Named("render"),
	)

	loop := scheduler.New(
		sampler.New(adapter, logger.Named("sampler")),
		policy.NewEngine(cfg),
		actuator.New(adapter, gate, logger.Named("actuator")),
		bridge,
		scheduler.Timing{
			Delay:        time.Duration(*delayMS) * time.Millisecond,
			DelayBattery: time.Duration(*delayBatteryMS) * time.Millisecond,
			Graph:        *graph,
		},
		logger.Named("scheduler"),
		loopOpts...,
	)
	return loop.Run(ctx)
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func cmdShowConfig(args []string) error {
	fs, common := newFlagSet("showconfig")
	format := fs.String("format", "toml", "output format: toml or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	source := cfg.Path
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Printf("# loaded from %s\n", source)
	for _, w := range cfg.Warnings {
		fmt.Printf("# warning: %s\n", w)
	}
	return config.Encode(os.Stdout, cfg, *format)
}

func cmdService(args []string) error {
	fs, _ := newFlagSet("service")
	binPath := fs.String("bin", setup.DefaultBinPath, "where to install the binary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return errors.New("usage: acs service install|uninstall")
	}

	switch rest[0] {
	case "install":
		if err := setup.CheckElevation("acs service install"); err != nil {
			return err
		}
		return setup.Install(os.Stdout, version, autostart.New(), setup.Options{BinPath: *binPath})
	case "uninstall":
		if err := setup.CheckElevation("acs service uninstall"); err != nil {
			return err
		}
		return setup.Uninstall(os.Stdout, autostart.New())
	default:
		return fmt.Errorf("unknown service action %q", rest[0])
	}
}
