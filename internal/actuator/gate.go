package actuator

// Gate is the edit-mode capability captured once at start-up. When it is
// closed the actuator reports the writes it would have made and issues none.
type Gate struct {
	edit bool
}

// EditMode returns an open gate.
func EditMode() Gate { return Gate{edit: true} }

// MonitorMode returns a closed gate.
func MonitorMode() Gate { return Gate{} }

// CanWrite reports whether writes are allowed.
func (g Gate) CanWrite() bool { return g.edit }

func (g Gate) String() string {
	if g.edit {
		return "edit"
	}
	return "monitor"
}
