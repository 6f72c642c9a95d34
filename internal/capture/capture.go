// Package capture runs a learner program and collects its standard output.
//
// stdout is buffered in full and becomes the output under check.  stderr is
// logged one record per line and otherwise discarded.
package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/go-errors/errors"
	"golang.org/x/sys/unix"

	"github.com/apschool/hellocheck/internal/harnessio"
)

// DefaultWaitDelay is how long a program may take to exit after SIGTERM
// before it is killed.
const DefaultWaitDelay = 2 * time.Second

type Options struct {
	// Logger receives command events and output lines.  slog.Default() if nil.
	Logger *slog.Logger
	// WaitDelay after cancellation before SIGKILL.  DefaultWaitDelay if zero.
	WaitDelay time.Duration
	// Dir is the working directory of the program.  The current directory if
	// empty.
	Dir string
	// Stdin is connected to the program.  The program reads EOF if nil.
	Stdin io.Reader
	// MaxStdoutBytes bounds captured stdout.  harnessio.MaxOutputBytes if
	// zero.
	MaxStdoutBytes int
}

// Captured is the result of a program that ran to a successful exit.
type Captured struct {
	Stdout      string
	ExitCode    int
	Pid         int
	Duration    time.Duration
	StderrBytes uint64
}

type StartError struct {
	Path  string
	cause error
}

func (err *StartError) Error() string {
	return fmt.Sprintf("starting program %v: %v", err.Path, err.cause)
}

func (err *StartError) Unwrap() error {
	return err.cause
}

// ProgramError reports a program that did not exit successfully: it exited
// non-zero, was signalled, or was stopped by cancellation.  Stdout holds
// whatever it wrote before ending.
type ProgramError struct {
	ExitCode int
	Stdout   string
	cause    error
}

func (err *ProgramError) Error() string {
	return fmt.Sprintf("program exit code %v: %v", err.ExitCode, err.cause)
}

func (err *ProgramError) Unwrap() error {
	return err.cause
}

// Run starts the program named by args and waits for it.  Every arg undergoes
// shell-like variable expansion (${var} or $var) from the environment.
// Cancelling ctx sends SIGTERM to the program.
//
// stdout beyond MaxStdoutBytes fails the run with harnessio.ErrOutputLimit;
// the program's stdout pipe is closed at that point.  Output logging never
// fails a run: its errors are logged as warnings.
func Run(ctx context.Context, args []string, opts Options) (*Captured, error) {
	if len(args) == 0 {
		return nil, errors.Errorf("program args must not be empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	waitDelay := opts.WaitDelay
	if waitDelay == 0 {
		waitDelay = DefaultWaitDelay
	}

	expandedArgs := make([]string, len(args))
	for i, arg := range args {
		expandedArgs[i] = os.ExpandEnv(arg)
	}

	maxStdout := opts.MaxStdoutBytes
	if maxStdout == 0 {
		maxStdout = harnessio.MaxOutputBytes
	}

	stdout := harnessio.NewLimitedBuffer(maxStdout)
	stderrLog := harnessio.CreateOutputWriter(harnessio.CreateLogWrapper(logger, "stderr", slog.LevelInfo))
	outputLogs := []*harnessio.OutputWriter{stderrLog}
	var stdoutWriter io.Writer = stdout
	if logger.Enabled(ctx, slog.LevelDebug) {
		stdoutLog := harnessio.CreateOutputWriter(harnessio.CreateLogWrapper(logger, "stdout", slog.LevelDebug))
		outputLogs = append(outputLogs, stdoutLog)
		stdoutWriter = io.MultiWriter(stdout, stdoutLog)
	}
	closeLogs := func() {
		for _, w := range outputLogs {
			if err := w.Close(); err != nil {
				logger.Warn("command output logging", "err", err)
			}
		}
	}

	command := exec.CommandContext(ctx, expandedArgs[0], expandedArgs[1:]...)
	command.Cancel = func() error {
		return command.Process.Signal(unix.SIGTERM)
	}
	command.WaitDelay = waitDelay
	command.Dir = opts.Dir
	command.Stdin = opts.Stdin
	command.Stdout = stdoutWriter
	command.Stderr = stderrLog

	logger.Info("command event",
		"event", "starting",
		"path", command.Path,
		"args", command.Args)
	start := time.Now()
	if err := command.Start(); err != nil {
		closeLogs()
		return nil, errors.Wrap(&StartError{Path: command.Path, cause: err}, 0)
	}
	logger.Info("command event",
		"event", "started",
		"path", command.Path,
		"args", command.Args,
		"pid", command.Process.Pid)

	waitErr := command.Wait()
	duration := time.Since(start)
	// Wait has finished copying both streams, so the writers may be flushed.
	closeLogs()

	logger.Info("command event",
		"event", "terminated",
		"process state", command.ProcessState.String(),
		"pid", command.ProcessState.Pid(),
		"duration", duration)

	if stdout.Exceeded() {
		logger.Warn("command failed",
			"pid", command.ProcessState.Pid(),
			"err", harnessio.ErrOutputLimit)
		return nil, errors.WrapPrefix(harnessio.ErrOutputLimit, "program stdout", 0)
	}
	if waitErr != nil {
		programErr := &ProgramError{
			ExitCode: command.ProcessState.ExitCode(),
			Stdout:   stdout.String(),
			cause:    waitErr,
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			programErr.cause = errors.Join(waitErr, ctxErr)
		}
		logger.Warn("command failed",
			"process state", command.ProcessState.String(),
			"pid", command.ProcessState.Pid(),
			"err", waitErr)
		return nil, errors.Wrap(programErr, 0)
	}

	return &Captured{
		Stdout:      stdout.String(),
		ExitCode:    command.ProcessState.ExitCode(),
		Pid:         command.ProcessState.Pid(),
		Duration:    duration,
		StderrBytes: stderrLog.TotalBytesWritten(),
	}, nil
}
