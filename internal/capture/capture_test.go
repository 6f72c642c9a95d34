package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/require"

	"github.com/apschool/hellocheck/internal/harnessio"
)

func testLogger() (*slog.Logger, *bytes.Buffer) {
	b := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug})), b
}

func logRecords(require *require.Assertions, b *bytes.Buffer) []map[string]interface{} {
	var records []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(json.Unmarshal([]byte(line), &m))
		records = append(records, m)
	}
	return records
}

func TestRunCapturesStdout(t *testing.T) {
	require := require.New(t)
	logger, _ := testLogger()

	captured, err := Run(context.Background(), []string{"sh", "-c", "echo 'Hello, World!'"}, Options{Logger: logger})
	require.NoError(err)
	require.Equal("Hello, World!\n", captured.Stdout)
	require.Equal(0, captured.ExitCode)
	require.NotZero(captured.Pid)
	require.True(captured.Duration > 0)
	require.Zero(captured.StderrBytes)
}

func TestRunLogsStderrLines(t *testing.T) {
	require := require.New(t)
	logger, b := testLogger()

	captured, err := Run(
		context.Background(),
		[]string{"sh", "-c", "printf 'Hello, World!'; printf 'warn1\\nwarn2' >&2"},
		Options{Logger: logger})
	require.NoError(err)
	require.Equal("Hello, World!", captured.Stdout)
	require.EqualValues(12, captured.StderrBytes)

	var stderrLines, stdoutLines, events []string
	for _, m := range logRecords(require, b) {
		switch m["msg"] {
		case "command output":
			if m["output_stream_name"] == "stderr" {
				require.Equal("INFO", m["level"])
				stderrLines = append(stderrLines, m["line"].(string))
			} else {
				require.Equal("DEBUG", m["level"])
				stdoutLines = append(stdoutLines, m["line"].(string))
			}
		case "command event":
			events = append(events, m["event"].(string))
		}
	}
	require.Equal([]string{"warn1", "warn2"}, stderrLines)
	require.Equal([]string{"Hello, World!"}, stdoutLines)
	require.Equal([]string{"starting", "started", "terminated"}, events)
}

func TestRunExpandsEnvironment(t *testing.T) {
	require := require.New(t)
	logger, _ := testLogger()
	t.Setenv("HELLOCHECK_TEST_GREETING", "Hello, World!")

	captured, err := Run(context.Background(), []string{"echo", "${HELLOCHECK_TEST_GREETING}"}, Options{Logger: logger})
	require.NoError(err)
	require.Equal("Hello, World!\n", captured.Stdout)
}

func TestRunStdinAndDir(t *testing.T) {
	require := require.New(t)
	logger, _ := testLogger()
	dir := t.TempDir()

	captured, err := Run(
		context.Background(),
		[]string{"sh", "-c", "cat; pwd >&2"},
		Options{Logger: logger, Dir: dir, Stdin: strings.NewReader("Hello, World!")})
	require.NoError(err)
	require.Equal("Hello, World!", captured.Stdout)
}

func TestRunEmptyArgs(t *testing.T) {
	require := require.New(t)
	_, err := Run(context.Background(), nil, Options{})
	require.ErrorContains(err, "must not be empty")
}

func TestRunStartFailure(t *testing.T) {
	require := require.New(t)
	logger, _ := testLogger()

	_, err := Run(context.Background(), []string{"/nonexistent/hellocheck-program"}, Options{Logger: logger})
	var startErr *StartError
	require.ErrorAs(err, &startErr)
	require.Equal("/nonexistent/hellocheck-program", startErr.Path)
}

func TestRunNonZeroExit(t *testing.T) {
	require := require.New(t)
	logger, _ := testLogger()

	_, err := Run(context.Background(), []string{"sh", "-c", "echo partial; exit 3"}, Options{Logger: logger})
	var programErr *ProgramError
	require.ErrorAs(err, &programErr)
	require.Equal(3, programErr.ExitCode)
	require.Equal("partial\n", programErr.Stdout)
	var exitErr *exec.ExitError
	require.True(errors.As(err, &exitErr))
	require.Equal(3, exitErr.ExitCode())

	_, err = Run(context.Background(), []string{"false"}, Options{Logger: logger})
	require.ErrorAs(err, &programErr)
	require.Equal(1, programErr.ExitCode)
}

func TestRunTimeout(t *testing.T) {
	require := require.New(t)
	logger, _ := testLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, []string{"sleep", "10"}, Options{Logger: logger, WaitDelay: time.Second})
	require.True(time.Since(start) < 5*time.Second)
	var programErr *ProgramError
	require.ErrorAs(err, &programErr)
	require.ErrorIs(err, context.DeadlineExceeded)
}

func TestRunIgnoringTermIsKilled(t *testing.T) {
	require := require.New(t)
	logger, _ := testLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, []string{"sh", "-c", "trap '' TERM; sleep 10"}, Options{Logger: logger, WaitDelay: 100 * time.Millisecond})
	require.True(time.Since(start) < 5*time.Second)
	var programErr *ProgramError
	require.ErrorAs(err, &programErr)
}

// lines beyond the default scanner buffer, and beyond what the line logger
// accepts at all, reach the captured stdout intact
func TestRunLongLines(t *testing.T) {
	require := require.New(t)
	logger, _ := testLogger()

	captured, err := Run(
		context.Background(),
		[]string{"sh", "-c", "head -c 70000 /dev/zero | tr '\\0' a"},
		Options{Logger: logger})
	require.NoError(err)
	require.Equal(strings.Repeat("a", 70000), captured.Stdout)

	tooLong := harnessio.MaxTokenBytes + 1000
	captured, err = Run(
		context.Background(),
		[]string{"sh", "-c", "head -c $0 /dev/zero | tr '\\0' a | tee /dev/stderr", strconv.Itoa(tooLong)},
		Options{Logger: logger, MaxStdoutBytes: 2 * tooLong})
	require.NoError(err)
	require.Len(captured.Stdout, tooLong)
	// the stderr line was too long to log
	require.Zero(captured.StderrBytes)
}

func TestRunStdoutLimit(t *testing.T) {
	require := require.New(t)
	logger, _ := testLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, []string{"yes", "Hello, World!"}, Options{Logger: logger, MaxStdoutBytes: 4096})
	require.ErrorIs(err, harnessio.ErrOutputLimit)
	require.Contains(err.Error(), "program stdout")
	// the closed pipe ends the program well before the timeout
	require.True(time.Since(start) < 5*time.Second)

	// exactly at the limit is fine
	captured, err := Run(ctx, []string{"printf", "Hello, World!"}, Options{Logger: logger, MaxStdoutBytes: 13})
	require.NoError(err)
	require.Equal("Hello, World!", captured.Stdout)
}
