package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-errors/errors"
	"golang.org/x/sys/unix"

	"github.com/apschool/hellocheck/internal/config"
	"github.com/apschool/hellocheck/internal/harnessio"
	"github.com/apschool/hellocheck/internal/validator"
)

// checks a learner's "Hello, World!" program.  Prints ALL_TESTS_PASSED on
// stdout when the output matches; otherwise prints the diagnostic on stderr
// and exits non-zero.  Pass -h/--help or see usage in commands.go.

const (
	exitPassed   = 0
	exitMismatch = 1
	exitError    = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and maps its result to an exit code.  stdout
// only ever receives the sentinel; logs and diagnostics go to stderr.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: harnessio.NewLockingWriter(stderr),
	}
	a.logger = newLogger(a.stderr, slog.LevelWarn, config.LogFormatJSON)

	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitPassed
	case validator.IsValidationError(err):
		a.logger.Info("check event", "event", validator.Failed.String())
		fmt.Fprintln(a.stderr, err.Error())
		return exitMismatch
	default:
		a.logger.Error("error", "err", err)
		var stacked *errors.Error
		if errors.As(err, &stacked) {
			a.logger.Debug("error stack", "stack", stacked.ErrorStack())
		}
		return exitError
	}
}
