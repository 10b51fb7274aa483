package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dgallion/playmaker/internal/task"
)

// State holds what the status line shows: the task being driven, the stage
// in flight, and the attempt accounting.
type State struct {
	TaskName    string
	Stage       task.Stage
	Attempt     int
	MaxAttempts int
	StartTime   time.Time
}

// Display manages a single self-updating terminal status line while the
// supervisor drives a task's pipeline. Stage transitions update the line in
// place; durable messages go above it via PrintAbove.
type Display struct {
	mu       sync.Mutex
	writer   io.Writer
	state    State
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup // Ensures goroutine exits before Stop() returns
	active   bool
	lastLine string
}

// New creates a new Display writing to the given writer.
func New(w io.Writer) *Display {
	return &Display{
		writer: w,
		done:   make(chan struct{}),
	}
}

// Start begins the display update loop.
func (d *Display) Start(taskName string) {
	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return
	}
	d.active = true
	d.state.TaskName = taskName
	d.state.StartTime = time.Now()
	d.ticker = time.NewTicker(time.Second)
	d.wg.Add(1)
	d.mu.Unlock()

	go d.updateLoop()
}

// Stop halts the display update loop and clears the status line.
// Blocks until the update goroutine has exited to prevent race conditions.
func (d *Display) Stop() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.mu.Unlock()

	d.ticker.Stop()
	close(d.done)
	d.wg.Wait() // Wait for goroutine to exit before clearing
	d.clearLine()
}

// UpdateStage records the stage now in flight and its attempt numbers.
func (d *Display) UpdateStage(stage task.Stage, attempt, maxAttempts int) {
	d.mu.Lock()
	d.state.Stage = stage
	d.state.Attempt = attempt
	d.state.MaxAttempts = maxAttempts
	d.mu.Unlock()
	d.render()
}

// updateLoop periodically renders the status line.
func (d *Display) updateLoop() {
	defer d.wg.Done()
	d.render()
	for {
		select {
		case <-d.ticker.C:
			d.render()
		case <-d.done:
			return
		}
	}
}

// render draws the current status line.
func (d *Display) render() {
	d.mu.Lock()
	state := d.state
	lastLine := d.lastLine
	d.mu.Unlock()

	elapsed := time.Since(state.StartTime)
	line := formatLine(state, elapsed)

	// Only update if changed (reduces flicker)
	if line == lastLine {
		return
	}

	d.mu.Lock()
	d.lastLine = line
	d.mu.Unlock()

	// Move to start of line, clear it, write new content
	fmt.Fprintf(d.writer, "\r\033[K%s", line)
}

// formatLine creates the status line string.
func formatLine(state State, elapsed time.Duration) string {
	if state.Stage == "" {
		return ""
	}

	// Truncate the task name if too long
	name := state.TaskName
	if len(name) > 40 {
		name = name[:37] + "..."
	}

	return fmt.Sprintf("%s │ stage %s │ attempt %d/%d │ ⏱ %s",
		name,
		state.Stage,
		state.Attempt,
		state.MaxAttempts,
		formatDuration(elapsed))
}

// clearLine clears the status line.
func (d *Display) clearLine() {
	fmt.Fprintf(d.writer, "\r\033[K")
}

// PrintAbove prints a message above the status line.
// Use this for important messages that shouldn't be overwritten.
func (d *Display) PrintAbove(format string, args ...interface{}) {
	d.clearLine()
	fmt.Fprintf(d.writer, format+"\n", args...)
	d.render()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
