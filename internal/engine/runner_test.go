package engine

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell test is POSIX-specific")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-nuitka")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func collect(t *testing.T, proc Process) ([]string, ExecResult) {
	t.Helper()
	lines := []string{}
	timeout := time.After(10 * time.Second)
	for {
		select {
		case line, ok := <-proc.Lines():
			if !ok {
				select {
				case result := <-proc.Done():
					return lines, result
				case <-timeout:
					t.Fatalf("process did not report exit")
				}
			}
			lines = append(lines, line)
		case <-timeout:
			t.Fatalf("timed out reading lines, got %v", lines)
		}
	}
}

func TestSubprocessRunnerMergesStreamsInOrder(t *testing.T) {
	skipOnWindows(t)

	script := writeScript(t, `echo one
echo two 1>&2
printf 'three\rfour\r\n'
echo
echo '   '
echo five 1>&2
printf 'six'
`)
	proc, err := NewSubprocessRunner(nil).Start(context.Background(), ExecSpec{Bin: script})
	require.NoError(t, err)
	assert.Greater(t, proc.PID(), 0)

	lines, result := collect(t, proc)
	assert.Equal(t, []string{"one", "two", "three", "four", "five", "six"}, lines)
	assert.Equal(t, 0, result.ExitCode)
	assert.NoError(t, result.Err)
	assert.Contains(t, result.OutputTail, "five\nsix")
}

func TestSubprocessRunnerReportsExitCode(t *testing.T) {
	skipOnWindows(t)

	script := writeScript(t, "echo 'Nuitka:ERROR: boom' 1>&2\nexit 3\n")
	proc, err := NewSubprocessRunner(nil).Start(context.Background(), ExecSpec{Bin: script})
	require.NoError(t, err)

	lines, result := collect(t, proc)
	assert.Equal(t, []string{"Nuitka:ERROR: boom"}, lines)
	assert.Equal(t, 3, result.ExitCode)
	assert.False(t, result.Interrupted)
}

func TestSubprocessRunnerMissingBinary(t *testing.T) {
	_, err := NewSubprocessRunner(nil).Start(context.Background(), ExecSpec{Bin: filepath.Join(t.TempDir(), "no-such-nuitka")})
	require.Error(t, err)
	assert.Equal(t, 127, StartExitCode(err))

	_, err = NewSubprocessRunner(nil).Start(context.Background(), ExecSpec{})
	require.ErrorIs(t, err, ErrMissingBinary)
	assert.Equal(t, 127, StartExitCode(err))

	result := NewSubprocessRunner(nil).Run(context.Background(), ExecSpec{Bin: "npk-definitely-not-installed"})
	assert.Equal(t, 127, result.ExitCode)
}

func TestSubprocessRunnerTerminateKillsProcessGroup(t *testing.T) {
	skipOnWindows(t)

	script := writeScript(t, "echo started\nsleep 30 &\nsleep 30\n")
	proc, err := NewSubprocessRunner(nil).Start(context.Background(), ExecSpec{Bin: script})
	require.NoError(t, err)

	select {
	case line := <-proc.Lines():
		assert.Equal(t, "started", line)
	case <-time.After(5 * time.Second):
		t.Fatalf("no output from child")
	}

	start := time.Now()
	proc.Terminate()
	proc.Terminate()
	_, result := collect(t, proc)

	assert.True(t, result.Interrupted)
	assert.Equal(t, 130, result.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDescendantsListsWholeTree(t *testing.T) {
	skipOnWindows(t)

	script := writeScript(t, "echo started\nsleep 30 &\nsleep 30\n")
	proc, err := NewSubprocessRunner(nil).Start(context.Background(), ExecSpec{Bin: script})
	require.NoError(t, err)
	defer func() {
		proc.Terminate()
		collect(t, proc)
	}()

	select {
	case <-proc.Lines():
	case <-time.After(5 * time.Second):
		t.Fatalf("no output from child")
	}

	assert.Eventually(t, func() bool {
		return len(descendants(context.Background(), int32(proc.PID()))) >= 2
	}, 5*time.Second, 50*time.Millisecond)
	assert.Empty(t, descendants(context.Background(), -1))
}

func TestSubprocessRunnerTimeout(t *testing.T) {
	skipOnWindows(t)

	script := writeScript(t, "sleep 5\n")
	proc, err := NewSubprocessRunner(nil).Start(context.Background(), ExecSpec{Bin: script, Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	_, result := collect(t, proc)
	assert.True(t, result.TimedOut)
	assert.Equal(t, 124, result.ExitCode)
}

func TestSubprocessRunnerDecodesOutputEncoding(t *testing.T) {
	skipOnWindows(t)

	// "你好" encoded as GBK.
	script := writeScript(t, "printf '\\304\\343\\272\\303\\n'\n")
	proc, err := NewSubprocessRunner(nil).Start(context.Background(), ExecSpec{Bin: script, OutputEncoding: "cp936"})
	require.NoError(t, err)

	lines, _ := collect(t, proc)
	assert.Equal(t, []string{"你好"}, lines)
}

func TestSubprocessRunnerRejectsUnknownEncoding(t *testing.T) {
	_, err := NewSubprocessRunner(nil).Start(context.Background(), ExecSpec{Bin: "sh", OutputEncoding: "klingon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "klingon")
}

func TestSubprocessRunnerRunEchoesLines(t *testing.T) {
	skipOnWindows(t)

	var echo bytes.Buffer
	result := NewSubprocessRunner(&echo).Run(context.Background(), ExecSpec{
		Bin:  "sh",
		Args: []string{"-c", "echo Nuitka 2.4.8; echo Python: 3.12.1"},
		Env:  []string{"NPK_TEST=1"},
	})

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "Nuitka 2.4.8\nPython: 3.12.1\n", echo.String())
	assert.True(t, strings.HasPrefix(result.OutputTail, "Nuitka 2.4.8"))
}

func TestScanLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "newlines", input: "a\nb\n", want: []string{"a", "b"}},
		{name: "carriage returns", input: "10%\r20%\r30%\n", want: []string{"10%", "20%", "30%"}},
		{name: "crlf", input: "a\r\nb\r\n", want: []string{"a", "b"}},
		{name: "no trailing newline", input: "a\nb", want: []string{"a", "b"}},
		{name: "trailing carriage return", input: "a\r", want: []string{"a"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := []string{}
			data := []byte(tc.input)
			for len(data) > 0 {
				advance, token, err := scanLines(data, true)
				require.NoError(t, err)
				require.Greater(t, advance, 0)
				got = append(got, string(token))
				data = data[advance:]
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTruncatingLinesSkipsRestOfLongLine(t *testing.T) {
	input := "head\n" + strings.Repeat("x", 50) + "\r\nafter\n" + strings.Repeat("y", 10) + "\rtail"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 4), 18)
	scanner.Split(truncatingLines(16))

	got := []string{}
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"head", strings.Repeat("x", 16), "after", strings.Repeat("y", 10), "tail"}, got)
}

func TestReadLinesContinuesAfterOverlongLine(t *testing.T) {
	input := "Nuitka: Compiling module app.\n" +
		strings.Repeat("z", 2*maxLineBytes+17) + "\n" +
		"Nuitka: Successfully created 'dist/app.bin'.\n"
	out := make(chan string, 8)
	err := (&SubprocessRunner{}).readLines(strings.NewReader(input), newTailBuffer(outputTailBytes), out)
	close(out)
	require.NoError(t, err)

	lines := []string{}
	for line := range out {
		lines = append(lines, line)
	}
	require.Len(t, lines, 3)
	assert.Len(t, lines[1], maxLineBytes)
	assert.Equal(t, "Nuitka: Successfully created 'dist/app.bin'.", lines[2])
}

func TestTailBufferKeepsNewestBytes(t *testing.T) {
	tail := newTailBuffer(8)
	_, _ = tail.Write([]byte("abcdef"))
	_, _ = tail.Write([]byte("ghij"))
	assert.Equal(t, "cdefghij", tail.String())

	_, _ = tail.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", tail.String())
}
