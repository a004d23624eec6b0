package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/jaa/npk/internal/output/compact"
)

type ProgressRendererOptions struct {
	Interactive bool
	Width       int
	// Color styles the final summary line.
	Color bool
}

var (
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	stopStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// ProgressRenderer keeps a progress bar for the active run. On a terminal
// the bar is redrawn in place and cleared before any other event is passed
// on to next. Otherwise a bar line is printed once per stage.
type ProgressRenderer struct {
	dst         io.Writer
	next        EventEmitter
	interactive bool
	color       bool
	width       int

	mu         sync.Mutex
	view       *compact.StateMachine
	activeLine string
	lastStage  string
}

func NewProgressRenderer(dst io.Writer, next EventEmitter, opts ProgressRendererOptions) *ProgressRenderer {
	if next == nil {
		next = NoopEmitter{}
	}
	width := opts.Width
	if width <= 0 {
		width = 24
	}
	return &ProgressRenderer{
		dst:         dst,
		next:        next,
		interactive: opts.Interactive,
		color:       opts.Color,
		width:       width,
		view:        compact.NewStateMachine(),
	}
}

func SupportsInPlaceUpdates(dst io.Writer) bool {
	file, ok := dst.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

func (r *ProgressRenderer) View() compact.RunView {
	return r.view.Snapshot()
}

func (r *ProgressRenderer) Emit(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Event {
	case EventRunStarted:
		r.view.BeginRun(event.RunID)
		r.lastStage = ""
		return r.forwardLocked(event, true)
	case EventOutputLine:
		r.view.CountLine(compact.ParseLine(event.Message).Kind)
		return r.forwardLocked(event, true)
	case EventStageEntered:
		index, _ := event.IntDetail("index")
		count, _ := event.IntDetail("count")
		r.view.EnterStage(event.StringDetail("stage"), index, count)
		if percent, ok := event.IntDetail("percent"); ok {
			r.view.SetPercent(percent)
		}
		return r.drawLocked()
	case EventProgressChanged:
		percent, _ := event.IntDetail("percent")
		if !r.view.SetPercent(percent) {
			return nil
		}
		return r.drawLocked()
	case EventRunCompleted:
		r.view.Complete(event.StringDetail("artifact_path"))
		if err := r.drawLocked(); err != nil {
			return err
		}
		return r.forwardLocked(event, false)
	case EventRunFailed:
		exitCode, _ := event.IntDetail("exit_code")
		r.view.Fail(exitCode)
		return r.forwardLocked(event, false)
	case EventRunCancelled:
		r.view.Cancel()
		return r.forwardLocked(event, false)
	case EventRunFinished:
		if err := r.finishLocked(); err != nil {
			return err
		}
		return r.next.Emit(event)
	default:
		return r.forwardLocked(event, true)
	}
}

func (r *ProgressRenderer) forwardLocked(event Event, redraw bool) error {
	if err := r.clearActiveLineLocked(); err != nil {
		return err
	}
	if err := r.next.Emit(event); err != nil {
		return err
	}
	if !redraw {
		return nil
	}
	return r.redrawLocked()
}

func (r *ProgressRenderer) drawLocked() error {
	view := r.view.Snapshot()
	line := compact.RenderRunLine(view, r.width)
	if !r.interactive {
		if view.Stage.Name == r.lastStage && view.Lifecycle == compact.RunLifecycleRunning {
			return nil
		}
		r.lastStage = view.Stage.Name
		_, err := fmt.Fprintln(r.dst, line)
		return err
	}
	if line == r.activeLine {
		return nil
	}
	r.activeLine = line
	_, err := fmt.Fprintf(r.dst, "\r\033[2K%s", line)
	return err
}

func (r *ProgressRenderer) redrawLocked() error {
	if !r.interactive || r.view.Snapshot().Lifecycle != compact.RunLifecycleRunning {
		return nil
	}
	return r.drawLocked()
}

func (r *ProgressRenderer) finishLocked() error {
	if err := r.clearActiveLineLocked(); err != nil {
		return err
	}
	view := r.view.Snapshot()
	line := compact.RenderSummaryLine(view)
	if r.color {
		switch view.Lifecycle {
		case compact.RunLifecycleCompleted:
			line = doneStyle.Render(line)
		case compact.RunLifecycleFailed:
			line = failedStyle.Render(line)
		case compact.RunLifecycleCancelled:
			line = stopStyle.Render(line)
		}
	}
	_, err := fmt.Fprintln(r.dst, line)
	return err
}

func (r *ProgressRenderer) clearActiveLineLocked() error {
	if !r.interactive || r.activeLine == "" {
		return nil
	}
	r.activeLine = ""
	_, err := fmt.Fprint(r.dst, "\r\033[2K")
	return err
}
