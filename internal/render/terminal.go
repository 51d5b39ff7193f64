package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Guliveer/acs/internal/hostinfo"
	"github.com/Guliveer/acs/internal/models"
)

const clearScreen = "\033[H\033[2J"

var sparkLevels = []rune(" ▁▂▃▄▅▆▇█")

// TerminalOptions are the display flags of run and monitor.
type TerminalOptions struct {
	// Quiet prints one line per tick.
	Quiet bool
	// NoAnimation appends frames instead of redrawing the screen.
	NoAnimation bool
	// Graph adds usage and frequency sparklines over the window.
	Graph bool
	// Commit, when set, is shown in the header.
	Commit string
	// Mode is "edit" or "monitor".
	Mode string
	// Load supplies the load average for the header; nil omits it.
	Load func() (hostinfo.Load, error)
}

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	good  lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
}

// Terminal renders frames as text. Colors are dropped when w is not a
// terminal.
type Terminal struct {
	w      io.Writer
	opts   TerminalOptions
	styles styles
}

// NewTerminal creates a Terminal writing to w.
func NewTerminal(w io.Writer, opts TerminalOptions) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w:    w,
		opts: opts,
		styles: styles{
			title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
			label: r.NewStyle().Bold(true),
			good:  r.NewStyle().Foreground(lipgloss.Color("10")),
			warn:  r.NewStyle().Foreground(lipgloss.Color("11")),
			bad:   r.NewStyle().Foreground(lipgloss.Color("9")),
			dim:   r.NewStyle().Faint(true),
		},
	}
}

// Render writes one frame.
func (t *Terminal) Render(f Frame, history []Frame) error {
	var b strings.Builder
	if t.opts.Quiet {
		t.quiet(&b, f)
	} else {
		if !t.opts.NoAnimation {
			b.WriteString(clearScreen)
		}
		t.header(&b, f.Snapshot)
		t.machine(&b, f.Snapshot)
		t.cpus(&b, f)
		t.decision(&b, f)
		if t.opts.Graph {
			t.graph(&b, history)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *Terminal) quiet(b *strings.Builder, f Frame) {
	fmt.Fprintf(b, "#%d %s %s %s writes=%d skipped=%d errors=%d\n",
		f.Snapshot.Seq,
		f.Decision.TargetGovernor,
		strings.ReplaceAll(f.Decision.TargetTurbo.String(), " ", ""),
		f.Decision.Rationale,
		f.Outcome.Writes(),
		len(f.Outcome.Skipped),
		len(f.Outcome.Errors))
}

func (t *Terminal) header(b *strings.Builder, s models.Snapshot) {
	parts := []string{t.styles.title.Render("acs"), t.opts.Mode, fmt.Sprintf("tick %d", s.Seq)}
	if t.opts.Commit != "" {
		parts = append(parts, "commit "+t.opts.Commit)
	}
	if t.opts.Load != nil {
		if l, err := t.opts.Load(); err == nil {
			parts = append(parts, "load "+l.String())
		}
	}
	parts = append(parts, t.styles.dim.Render(s.Timestamp.Format("15:04:05")))
	b.WriteString(strings.Join(parts, "  "))
	b.WriteString("\n\n")
}

func (t *Terminal) machine(b *strings.Builder, s models.Snapshot) {
	battery := "n/a"
	if s.BatteryCharge != nil {
		battery = fmt.Sprintf("%d%%", *s.BatteryCharge)
	}
	fmt.Fprintf(b, "%s %s   %s %s   %s %s   %s %.1f%%   %s %s\n",
		t.styles.label.Render("Power:"), s.Power,
		t.styles.label.Render("Battery:"), battery,
		t.styles.label.Render("Lid:"), s.Lid,
		t.styles.label.Render("Usage:"), s.CPUUsagePct,
		t.styles.label.Render("Turbo:"), s.Turbo)
	fmt.Fprintf(b, "%s %s\n\n", t.styles.label.Render("Available:"), strings.Join(s.AvailableGovernors, " "))
}

func (t *Terminal) cpus(b *strings.Builder, f Frame) {
	b.WriteString(t.styles.label.Render(fmt.Sprintf("%-6s %-13s %9s %9s %9s %6s", "CPU", "Governor", "Cur MHz", "Min MHz", "Max MHz", "Temp")))
	b.WriteByte('\n')
	for _, c := range f.Snapshot.CPUs {
		fmt.Fprintf(b, "%-6s %-13s %9d %9d %9d %s\n",
			fmt.Sprintf("cpu%d", c.ID), c.Governor,
			c.CurKHz/1000, c.MinKHz/1000, c.MaxKHz/1000,
			t.temp(c.TempC))
	}
	b.WriteByte('\n')
}

func (t *Terminal) temp(c *int) string {
	if c == nil {
		return fmt.Sprintf("%6s", "n/a")
	}
	s := fmt.Sprintf("%6s", fmt.Sprintf("%d°C", *c))
	switch {
	case *c >= 80:
		return t.styles.bad.Render(s)
	case *c >= 65:
		return t.styles.warn.Render(s)
	}
	return s
}

func (t *Terminal) decision(b *strings.Builder, f Frame) {
	d := f.Decision
	fmt.Fprintf(b, "%s %s, turbo %s (%s)   %s %d\n",
		t.styles.label.Render("Decision:"),
		t.styles.good.Render(d.TargetGovernor), d.TargetTurbo, d.Rationale,
		t.styles.label.Render("Writes:"), f.Outcome.Writes())

	if len(f.Outcome.Skipped) > 0 {
		counts := map[models.SkipReason]int{}
		var order []models.SkipReason
		for _, s := range f.Outcome.Skipped {
			if counts[s.Reason] == 0 {
				order = append(order, s.Reason)
			}
			counts[s.Reason]++
		}
		parts := make([]string, 0, len(order))
		for _, r := range order {
			parts = append(parts, fmt.Sprintf("%d %s", counts[r], r))
		}
		fmt.Fprintf(b, "%s %s\n", t.styles.label.Render("Skipped:"), t.styles.dim.Render(strings.Join(parts, ", ")))
	}
	for _, e := range f.Outcome.Errors {
		where := "turbo"
		if e.CPU != models.GlobalCPU {
			where = fmt.Sprintf("cpu%d", e.CPU)
		}
		fmt.Fprintf(b, "%s %s %s=%s: %v\n", t.styles.bad.Render("Error:"), where, e.Target, e.Value, e.Err)
	}
}

func (t *Terminal) graph(b *strings.Builder, history []Frame) {
	usage := make([]float64, len(history))
	freq := make([]float64, len(history))
	var maxKHz int64
	for _, f := range history {
		for _, c := range f.Snapshot.CPUs {
			if c.MaxKHz > maxKHz {
				maxKHz = c.MaxKHz
			}
		}
	}
	for i, f := range history {
		usage[i] = f.Snapshot.CPUUsagePct / 100
		if maxKHz > 0 {
			freq[i] = float64(f.Snapshot.AvgFreqKHz()) / float64(maxKHz)
		}
	}
	b.WriteByte('\n')
	fmt.Fprintf(b, "%-*s%s\n", graphGutter, "usage", Sparkline(usage))
	fmt.Fprintf(b, "%-*s%s\n", graphGutter, "frequency", Sparkline(freq))
}

// Sparkline draws values in [0,1] as block characters. Out of range values
// are clamped.
func Sparkline(values []float64) string {
	top := len(sparkLevels) - 1
	out := make([]rune, len(values))
	for i, v := range values {
		switch {
		case v < 0:
			v = 0
		case v > 1:
			v = 1
		}
		out[i] = sparkLevels[int(v*float64(top)+0.5)]
	}
	return string(out)
}
