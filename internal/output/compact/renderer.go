package compact

import (
	"fmt"
	"strings"
)

// RenderRunLine draws the single status line for a run.
func RenderRunLine(view RunView, width int) string {
	line := fmt.Sprintf("[overall] %s", RenderProgress(float64(view.Percent), width))
	if view.Stage.Name != "" {
		if view.Stage.Count > 0 {
			line += fmt.Sprintf(" (%d/%d) %s", view.Stage.Index+1, view.Stage.Count, view.Stage.Name)
		} else {
			line += " " + view.Stage.Name
		}
	}

	bits := []string{}
	if view.Lines.Warnings > 0 {
		bits = append(bits, fmt.Sprintf("warnings:%d", view.Lines.Warnings))
	}
	if view.Lines.Errors > 0 {
		bits = append(bits, fmt.Sprintf("errors:%d", view.Lines.Errors))
	}
	if len(bits) > 0 {
		line += " [" + strings.Join(bits, ", ") + "]"
	}
	return line
}

func RenderSummaryLine(view RunView) string {
	switch view.Lifecycle {
	case RunLifecycleCompleted:
		if view.Artifact != "" {
			return fmt.Sprintf("[done] %s", view.Artifact)
		}
		return "[done] packaging finished"
	case RunLifecycleFailed:
		return fmt.Sprintf("[failed] exit code %d at %d%% (%s)", view.ExitCode, view.Percent, stageOrUnknown(view.Stage.Name))
	case RunLifecycleCancelled:
		return fmt.Sprintf("[stop] cancelled at %d%% (%s)", view.Percent, stageOrUnknown(view.Stage.Name))
	default:
		return fmt.Sprintf("[idle] %d%%", view.Percent)
	}
}

func RenderProgress(percent float64, width int) string {
	clamped := ClampPercent(percent)
	if width <= 0 {
		width = 16
	}
	filled := int((clamped / 100) * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	return fmt.Sprintf("[%s] %5.1f%%", bar, clamped)
}

func ClampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

func stageOrUnknown(name string) string {
	if strings.TrimSpace(name) == "" {
		return "no stage"
	}
	return name
}
