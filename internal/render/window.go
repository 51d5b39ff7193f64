// Package render turns each tick's Snapshot, Decision and Outcome into a
// frame for the terminal. The rolling Window is the only place a Snapshot
// outlives its tick.
package render

import (
	"sync"

	"github.com/Guliveer/acs/internal/models"
)

const (
	// MinWindow is the smallest window kept, even on a narrow terminal.
	MinWindow = 10
	// graphGutter is the width taken by the graph's axis labels.
	graphGutter = 12
)

// Frame is one tick as the renderer sees it.
type Frame struct {
	Snapshot models.Snapshot
	Decision models.Decision
	Outcome  models.Outcome
}

// Window is a bounded FIFO of frames. When full, the oldest frame is dropped.
type Window struct {
	mu     sync.Mutex
	frames []Frame
	size   int
}

// NewWindow creates a window holding at most size frames.
func NewWindow(size int) *Window {
	if size < MinWindow {
		size = MinWindow
	}
	return &Window{size: size, frames: make([]Frame, 0, size)}
}

// SizeForWidth returns the window size whose graph fits a terminal of the
// given width.
func SizeForWidth(width int) int {
	if n := width - graphGutter; n > MinWindow {
		return n
	}
	return MinWindow
}

// Add appends f, dropping the oldest frame if the window is full.
func (w *Window) Add(f Frame) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.frames) >= w.size {
		copy(w.frames, w.frames[len(w.frames)-w.size+1:])
		w.frames = w.frames[:w.size-1]
	}
	w.frames = append(w.frames, f)
}

// Resize changes the capacity, keeping the newest frames.
func (w *Window) Resize(size int) {
	if size < MinWindow {
		size = MinWindow
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.frames) > size {
		w.frames = append([]Frame(nil), w.frames[len(w.frames)-size:]...)
	}
	w.size = size
}

// Frames returns the frames oldest first. The slice is a copy.
func (w *Window) Frames() []Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Frame, len(w.frames))
	copy(out, w.frames)
	return out
}

// Len returns the number of frames held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

// Size returns the capacity.
func (w *Window) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}
