package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jaa/npk/internal/output"
	"github.com/jaa/npk/internal/output/compact"
	"github.com/jaa/npk/internal/progress"
)

const DefaultTickInterval = 80 * time.Millisecond

// TickSource starts a ticker and returns its channel and a stop func.
type TickSource func(interval time.Duration) (<-chan time.Time, func())

func realTicks(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// Supervisor drives one packaging run at a time: it starts the compiler,
// feeds every output line and timer tick through a single loop into the
// tracker, and reports what happened as output events.
type Supervisor struct {
	Runner          LineRunner
	Tracker         *progress.Tracker
	Emitter         output.EventEmitter
	Metrics         *RunMetrics
	Log             logr.Logger
	TickInterval    time.Duration
	MonitorInterval time.Duration
	Sampler         RSSSampler
	Ticks           TickSource
	Now             func() time.Time
	NewRunID        func() string
}

func NewSupervisor(runner LineRunner, tracker *progress.Tracker, emitter output.EventEmitter) *Supervisor {
	if emitter == nil {
		emitter = output.NoopEmitter{}
	}
	if tracker == nil {
		tracker = progress.NewTracker(nil, 0)
	}
	return &Supervisor{
		Runner:       runner,
		Tracker:      tracker,
		Emitter:      emitter,
		Metrics:      NewRunMetrics(nil),
		Log:          logr.Discard(),
		TickInterval: DefaultTickInterval,
		Ticks:        realTicks,
		Now:          time.Now,
		NewRunID:     func() string { return uuid.NewString() },
	}
}

type runState struct {
	id         string
	start      time.Time
	stage      progress.Stage
	stageStart time.Time
	lines      int
	timings    []StageTiming
}

// Run starts spec and blocks until the child has exited and its output is
// fully consumed, or until ctx is done. expectedArtifact is reported when
// the child exits cleanly without printing where it put the result.
//
// A second Run while one is active fails with progress.ErrAlreadyRunning.
func (s *Supervisor) Run(ctx context.Context, spec ExecSpec, expectedArtifact string) (RunResult, error) {
	s.defaults()
	if err := s.Tracker.StartRun(); err != nil {
		return RunResult{}, err
	}

	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
		spec.Timeout = 0
	}

	now := s.Now()
	run := &runState{id: s.NewRunID(), start: now, stageStart: now, stage: s.Tracker.CurrentStage()}
	result := RunResult{RunID: run.id}
	log := s.Log.WithValues("runID", run.id)

	s.emit(run, output.LevelInfo, output.EventRunStarted, "packaging started", map[string]any{
		"command": spec.DisplayCommand,
		"dir":     spec.Dir,
		"stages":  s.Tracker.Model().Len(),
	})
	s.emitStage(run, run.stage, s.Tracker.OverallPercent())
	log.V(1).Info("starting compiler", "command", spec.DisplayCommand, "dir", spec.Dir)

	proc, err := s.Runner.Start(runCtx, spec)
	if err != nil {
		result.ExitCode = StartExitCode(err)
		result.Percent = s.Tracker.EndRun(false)
		result.Duration = s.Now().Sub(run.start)
		log.Error(err, "compiler did not start", "bin", spec.Bin)
		s.Metrics.MarkFailed()
		s.emit(run, output.LevelError, output.EventRunFailed, err.Error(), map[string]any{
			"exit_code": result.ExitCode,
			"percent":   result.Percent,
		})
		s.emitFinished(run, result)
		return result, err
	}

	monitor := NewProcessMonitor(s.MonitorInterval, s.Sampler)
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	var group errgroup.Group
	group.Go(func() error {
		return monitor.Run(monitorCtx, proc.PID())
	})

	exit, cancelled := s.loop(runCtx, proc, run)

	stopMonitor()
	_ = group.Wait()
	s.closeStage(run, s.Now())

	result.Lines = run.lines
	result.Stages = run.timings
	result.PeakRSSBytes = monitor.Stats().PeakRSSBytes
	result.Duration = s.Now().Sub(run.start)
	result.OutputTail = exit.OutputTail
	result.ExitCode = exit.ExitCode
	s.Metrics.RunTimer(result.Duration)

	switch {
	case cancelled:
		result.Cancelled = true
		result.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
		result.Percent = s.Tracker.OverallPercent()
		reason := "interrupted"
		if result.TimedOut {
			reason = "timeout"
		}
		log.Info("run cancelled", "reason", reason, "percent", result.Percent)
		s.Metrics.MarkCancelled()
		s.emit(run, output.LevelWarn, output.EventRunCancelled, fmt.Sprintf("packaging cancelled (%s)", reason), map[string]any{
			"reason":  reason,
			"percent": result.Percent,
		})
	case exit.ExitCode == 0:
		before := s.Tracker.OverallPercent()
		result.Percent = s.Tracker.EndRun(true)
		if result.Percent != before {
			s.emit(run, output.LevelInfo, output.EventProgressChanged, fmt.Sprintf("%d%%", result.Percent), map[string]any{"percent": result.Percent})
		}
		result.Completed = true
		result.ArtifactPath = s.Tracker.Artifact()
		if result.ArtifactPath == "" {
			result.ArtifactPath = expectedArtifact
		}
		s.Metrics.MarkCompleted()
		s.emit(run, output.LevelInfo, output.EventRunCompleted, fmt.Sprintf("artifact: %s", result.ArtifactPath), map[string]any{
			"artifact_path": result.ArtifactPath,
		})
	default:
		result.Percent = s.Tracker.EndRun(false)
		log.Info("compiler failed", "exitCode", exit.ExitCode, "percent", result.Percent)
		s.Metrics.MarkFailed()
		s.emit(run, output.LevelError, output.EventRunFailed, fmt.Sprintf("nuitka exited with code %d", exit.ExitCode), map[string]any{
			"exit_code": exit.ExitCode,
			"percent":   result.Percent,
		})
	}

	s.emitFinished(run, result)
	return result, nil
}

// loop is the only place that touches the tracker during a run. It returns
// once the child has exited and its line stream is closed.
func (s *Supervisor) loop(ctx context.Context, proc Process, run *runState) (ExecResult, bool) {
	ticks, stopTicks := s.Ticks(s.TickInterval)
	defer func() {
		if stopTicks != nil {
			stopTicks()
		}
	}()

	lines := proc.Lines()
	done := proc.Done()
	ctxDone := ctx.Done()

	var exit ExecResult
	exited := false
	cancelled := false

	for lines != nil || !exited {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if cancelled {
				continue
			}
			run.lines++
			s.emit(run, lineLevel(line), output.EventOutputLine, line, nil)
			s.apply(run, s.Tracker.OnOutputLine(line))
		case <-ticks:
			s.apply(run, s.Tracker.OnTick())
		case result, ok := <-done:
			done = nil
			if ok {
				exit = result
			}
			exited = true
			if stopTicks != nil {
				stopTicks()
				stopTicks = nil
			}
			ticks = nil
		case <-ctxDone:
			ctxDone = nil
			if exited {
				continue
			}
			cancelled = true
			proc.Terminate()
			if stopTicks != nil {
				stopTicks()
				stopTicks = nil
			}
			ticks = nil
			s.Tracker.EndRun(false)
		}
	}

	if cancelled && exit.ExitCode == 0 {
		exit.ExitCode = 130
	}
	return exit, cancelled
}

func (s *Supervisor) apply(run *runState, update progress.Update) {
	if update.Entered != nil {
		s.closeStage(run, s.Now())
		run.stage = *update.Entered
		s.emitStage(run, run.stage, update.Percent)
	}
	if update.Changed {
		s.emit(run, output.LevelInfo, output.EventProgressChanged, fmt.Sprintf("%d%%", update.Percent), map[string]any{
			"percent": update.Percent,
		})
	}
	if update.Completed != nil {
		s.Log.V(1).Info("final output marker seen", "runID", run.id, "artifact", update.Completed.ArtifactPath)
	}
}

func (s *Supervisor) closeStage(run *runState, now time.Time) {
	if run.stage.Name == "" {
		return
	}
	d := now.Sub(run.stageStart)
	run.timings = append(run.timings, StageTiming{Name: run.stage.Name, Duration: d})
	s.Metrics.StageTimer(run.stage.Name, d)
	run.stage = progress.Stage{}
	run.stageStart = now
}

func (s *Supervisor) emitStage(run *runState, stage progress.Stage, percent int) {
	run.stageStart = s.Now()
	s.emit(run, output.LevelInfo, output.EventStageEntered, stage.Name, map[string]any{
		"stage":   stage.Name,
		"index":   stage.Index,
		"count":   s.Tracker.Model().Len(),
		"percent": percent,
	})
}

func (s *Supervisor) emitFinished(run *runState, result RunResult) {
	message := fmt.Sprintf("packaging finished in %s", result.Duration.Round(time.Second))
	if result.PeakRSSBytes > 0 {
		message += fmt.Sprintf(" (peak memory %s)", humanize.Bytes(result.PeakRSSBytes))
	}
	s.emit(run, output.LevelInfo, output.EventRunFinished, message, map[string]any{
		"exit_code":      result.ExitCode,
		"percent":        result.Percent,
		"duration_ms":    result.Duration.Milliseconds(),
		"lines":          result.Lines,
		"peak_rss_bytes": result.PeakRSSBytes,
		"artifact_path":  result.ArtifactPath,
		"metrics":        s.Metrics.Snapshot(),
	})
}

func (s *Supervisor) emit(run *runState, level output.Level, name output.EventName, message string, details map[string]any) {
	_ = s.Emitter.Emit(output.Event{
		Timestamp: s.Now(),
		Level:     level,
		Event:     name,
		RunID:     run.id,
		Message:   message,
		Details:   details,
	})
}

func (s *Supervisor) defaults() {
	if s.Emitter == nil {
		s.Emitter = output.NoopEmitter{}
	}
	if s.Tracker == nil {
		s.Tracker = progress.NewTracker(nil, 0)
	}
	if s.Metrics == nil {
		s.Metrics = NewRunMetrics(nil)
	}
	if s.TickInterval <= 0 {
		s.TickInterval = DefaultTickInterval
	}
	if s.Ticks == nil {
		s.Ticks = realTicks
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.NewRunID == nil {
		s.NewRunID = func() string { return uuid.NewString() }
	}
}

func lineLevel(line string) output.Level {
	switch compact.ParseLine(line).Kind {
	case compact.LineKindWarning:
		return output.LevelWarn
	case compact.LineKindError:
		return output.LevelError
	default:
		return output.LevelInfo
	}
}
