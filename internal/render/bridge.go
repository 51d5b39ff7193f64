package render

import (
	"go.uber.org/zap"

	"github.com/Guliveer/acs/internal/models"
)

// Renderer draws a frame. history is the window contents, oldest first,
// ending with frame.
type Renderer interface {
	Render(frame Frame, history []Frame) error
}

// Bridge feeds the control loop's output to a Renderer through a Window.
type Bridge struct {
	window   *Window
	renderer Renderer
	width    func() int
	logger   *zap.Logger
}

// NewBridge creates a Bridge. width, when non-nil, is consulted every tick
// so the window follows terminal resizes.
func NewBridge(window *Window, renderer Renderer, width func() int, logger *zap.Logger) *Bridge {
	return &Bridge{window: window, renderer: renderer, width: width, logger: logger}
}

// Push records one tick and renders it. A render failure is logged; it
// never stops the loop.
func (b *Bridge) Push(snap models.Snapshot, d models.Decision, out models.Outcome) {
	if b.width != nil {
		if n := SizeForWidth(b.width()); n != b.window.Size() {
			b.window.Resize(n)
		}
	}
	f := Frame{Snapshot: snap, Decision: d, Outcome: out}
	b.window.Add(f)
	if err := b.renderer.Render(f, b.window.Frames()); err != nil {
		b.logger.Warn("Render failed", zap.Uint64("seq", snap.Seq), zap.Error(err))
	}
}
