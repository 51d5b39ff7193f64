package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Guliveer/acs/internal/hostinfo"
	"github.com/Guliveer/acs/internal/models"
)

// ErrUnknownField is returned by WriteField for a name not in GetFields.
var ErrUnknownField = errors.New("unknown field")

// GetFields lists what "get" can print.
var GetFields = []string{"freq", "power", "usage", "turbo", "available-govs", "cpus", "speeds", "temp", "govs"}

// WriteField prints one field of snap. Raw output is bare values meant for
// scripts: numbers without units, one CPU per line as "<id> <value>".
func WriteField(w io.Writer, field string, snap models.Snapshot, info hostinfo.CPUInfo, raw bool) error {
	var out string
	switch field {
	case "freq":
		avg := snap.AvgFreqKHz()
		if raw {
			out = strconv.FormatInt(avg, 10)
		} else {
			out = fmt.Sprintf("Average frequency: %d MHz", avg/1000)
		}
	case "power":
		if raw {
			out = snap.Power.String()
		} else if snap.BatteryCharge != nil {
			out = fmt.Sprintf("Power: %s, battery %d%%", snap.Power, *snap.BatteryCharge)
		} else {
			out = fmt.Sprintf("Power: %s, no battery", snap.Power)
		}
	case "usage":
		if raw {
			out = strconv.FormatFloat(snap.CPUUsagePct, 'f', 1, 64)
		} else {
			out = fmt.Sprintf("CPU usage: %.1f%%", snap.CPUUsagePct)
		}
	case "turbo":
		if raw {
			out = snap.Turbo.String()
		} else {
			out = "Turbo: " + snap.Turbo.String()
		}
	case "available-govs":
		if raw {
			out = strings.Join(snap.AvailableGovernors, " ")
		} else {
			out = "Available governors: " + strings.Join(snap.AvailableGovernors, " ")
		}
	case "cpus":
		n := info.Logical
		if n == 0 {
			n = len(snap.CPUs)
		}
		if raw {
			out = strconv.Itoa(n)
		} else {
			out = fmt.Sprintf("CPUs: %d logical", n)
			if info.Physical > 0 {
				out += fmt.Sprintf(", %d physical", info.Physical)
			}
			if info.Model != "" {
				out += " (" + info.Model + ")"
			}
		}
	case "speeds":
		out = perCPU(snap, raw, func(c models.CPUState) string {
			if raw {
				return strconv.FormatInt(c.CurKHz, 10)
			}
			return fmt.Sprintf("%d MHz (%d-%d MHz)", c.CurKHz/1000, c.MinKHz/1000, c.MaxKHz/1000)
		})
	case "temp":
		out = perCPU(snap, raw, func(c models.CPUState) string {
			switch {
			case c.TempC != nil && raw:
				return strconv.Itoa(*c.TempC)
			case c.TempC != nil:
				return fmt.Sprintf("%d°C", *c.TempC)
			case raw:
				return "-"
			}
			return "n/a"
		})
	case "govs":
		out = perCPU(snap, raw, func(c models.CPUState) string { return c.Governor })
	default:
		return fmt.Errorf("%w %q (want one of %s)", ErrUnknownField, field, strings.Join(GetFields, ", "))
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

func perCPU(snap models.Snapshot, raw bool, value func(models.CPUState) string) string {
	lines := make([]string, 0, len(snap.CPUs))
	for _, c := range snap.CPUs {
		if raw {
			lines = append(lines, fmt.Sprintf("%d %s", c.ID, value(c)))
		} else {
			lines = append(lines, fmt.Sprintf("cpu%d: %s", c.ID, value(c)))
		}
	}
	return strings.Join(lines, "\n")
}
