package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const (
	outputTailBytes = 64 * 1024
	maxLineBytes    = 1024 * 1024
	lineBuffer      = 256
)

// ErrMissingBinary is returned by Start when ExecSpec.Bin is empty.
var ErrMissingBinary = errors.New("missing binary")

// Process is a started child whose stdout and stderr are merged into one
// ordered stream of lines.
type Process interface {
	Lines() <-chan string
	Done() <-chan ExecResult
	Terminate()
	PID() int
}

type LineRunner interface {
	Start(ctx context.Context, spec ExecSpec) (Process, error)
}

type ExecRunner interface {
	Run(ctx context.Context, spec ExecSpec) ExecResult
}

type SubprocessRunner struct {
	// Echo receives every raw output line when set.
	Echo io.Writer
	// WaitDelay bounds how long output is read after the child exits.
	WaitDelay time.Duration
}

func NewSubprocessRunner(echo io.Writer) *SubprocessRunner {
	return &SubprocessRunner{Echo: echo, WaitDelay: 2 * time.Second}
}

type tailBuffer struct {
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = outputTailBytes
	}
	return &tailBuffer{
		buf: make([]byte, 0, max),
		max: max,
	}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		return len(p), nil
	}
	overflow := len(t.buf) + len(p) - t.max
	if overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, p...)
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

type subprocess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	lines  chan string
	done   chan ExecResult

	terminateOnce sync.Once
}

func (p *subprocess) Lines() <-chan string    { return p.lines }
func (p *subprocess) Done() <-chan ExecResult { return p.done }

func (p *subprocess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Terminate kills the child and everything it spawned. Safe to call more
// than once and after exit.
func (p *subprocess) Terminate() {
	p.terminateOnce.Do(p.cancel)
}

// Start launches spec.Bin. A binary that cannot be started is reported as
// an error; use StartExitCode to map it to an exit code.
func (r *SubprocessRunner) Start(ctx context.Context, spec ExecSpec) (Process, error) {
	if spec.Bin == "" {
		return nil, ErrMissingBinary
	}
	decoder, err := outputDecoder(spec.OutputEncoding)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if spec.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, spec.Timeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}

	cmd := exec.CommandContext(runCtx, spec.Bin, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	configureCommandForTermination(cmd)
	cmd.Cancel = func() error {
		terminateCommand(cmd)
		return nil
	}
	cmd.WaitDelay = r.WaitDelay

	// One writer for both streams: exec then hands the child a single pipe,
	// so interleaving is preserved exactly as the child wrote it.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	start := time.Now()
	if err := cmd.Start(); err != nil {
		cancel()
		_ = pw.Close()
		return nil, fmt.Errorf("start %s: %w", spec.Bin, err)
	}

	p := &subprocess{
		cmd:    cmd,
		cancel: cancel,
		lines:  make(chan string, lineBuffer),
		done:   make(chan ExecResult, 1),
	}

	tail := newTailBuffer(outputTailBytes)
	var reader errgroup.Group
	reader.Go(func() error {
		defer close(p.lines)
		var src io.Reader = pr
		if decoder != nil {
			src = transform.NewReader(pr, decoder.NewDecoder())
		}
		return r.readLines(src, tail, p.lines)
	})

	go func() {
		waitErr := cmd.Wait()
		_ = pw.Close()
		readErr := reader.Wait()
		result := exitResult(runCtx, waitErr)
		result.Duration = time.Since(start)
		result.OutputTail = tail.String()
		if result.Err == nil && readErr != nil {
			result.Err = readErr
		}
		cancel()
		p.done <- result
		close(p.done)
	}()

	return p, nil
}

// Run starts spec and waits for it, discarding lines except for the echo
// writer and the output tail.
func (r *SubprocessRunner) Run(ctx context.Context, spec ExecSpec) ExecResult {
	start := time.Now()
	proc, err := r.Start(ctx, spec)
	if err != nil {
		return ExecResult{ExitCode: StartExitCode(err), Duration: time.Since(start), Err: err}
	}
	for range proc.Lines() {
	}
	return <-proc.Done()
}

func (r *SubprocessRunner) readLines(src io.Reader, tail *tailBuffer, out chan<- string) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes+2)
	scanner.Split(truncatingLines(maxLineBytes))
	for scanner.Scan() {
		raw := scanner.Text()
		_, _ = tail.Write([]byte(raw + "\n"))
		line := strings.TrimRight(raw, " \t")
		if line == "" {
			continue
		}
		if r.Echo != nil {
			_, _ = fmt.Fprintln(r.Echo, line)
		}
		out <- line
	}
	if err := scanner.Err(); err != nil {
		// Keep the pipe flowing so the child never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, src)
		return fmt.Errorf("read output: %w", err)
	}
	return nil
}

// truncatingLines wraps scanLines so a line longer than limit yields its
// first limit bytes and the rest of it is skipped. Scanning then resumes at
// the next line instead of failing with bufio.ErrTooLong. The scanner buffer
// must hold at least limit+2 bytes.
func truncatingLines(limit int) bufio.SplitFunc {
	skipping := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := scanLines(data, atEOF)
		if err != nil {
			return advance, token, err
		}
		if advance > 0 {
			if skipping {
				skipping = false
				return advance, nil, nil
			}
			if len(token) > limit {
				token = token[:limit]
			}
			return advance, token, nil
		}

		n := len(data)
		if n > 0 && data[n-1] == '\r' {
			// Might be the start of \r\n; leave it for the next call.
			n--
		}
		if n <= limit {
			return 0, nil, nil
		}
		if skipping {
			return n, nil, nil
		}
		skipping = true
		return n, data[:limit], nil
	}
}

// scanLines splits on \n, \r and \r\n. Progress bars redraw with a bare \r,
// and every redraw is a line of its own.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// Need one more byte to tell \r from \r\n.
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func exitResult(runCtx context.Context, err error) ExecResult {
	result := ExecResult{Err: err}
	if err == nil {
		return result
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = 124
		return result
	}
	if errors.Is(runCtx.Err(), context.Canceled) {
		result.Interrupted = true
		result.ExitCode = 130
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode < 0 {
			result.ExitCode = 1
		}
		return result
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		// Exited cleanly but a grandchild kept the output pipe open.
		result.Err = nil
		return result
	}

	result.ExitCode = 1
	return result
}

// StartExitCode maps a Start error to the exit code a shell would report.
func StartExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrMissingBinary) {
		return 127
	}
	if errors.Is(err, fs.ErrPermission) {
		return 126
	}
	return 1
}

var encodingAliases = map[string]string{
	"cp936": "gbk",
	"cp932": "shift_jis",
	"cp950": "big5",
	"cp949": "euc-kr",
}

func outputDecoder(name string) (encoding.Encoding, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := encodingAliases[name]; ok {
		name = alias
	}
	switch name {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output encoding %q: %w", name, err)
	}
	return enc, nil
}
