package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/apschool/hellocheck/internal/capture"
	"github.com/apschool/hellocheck/internal/config"
	"github.com/apschool/hellocheck/internal/harnessio"
	"github.com/apschool/hellocheck/internal/trial"
	"github.com/apschool/hellocheck/internal/validator"
)

const rootLong = `Checks that a program prints "Hello, World!".

Surrounding white space is ignored; the comparison is otherwise exact and
case sensitive.  On a match the single line ALL_TESTS_PASSED is written to
stdout and the exit code is 0.  On a mismatch stdout stays empty, the
diagnostic

  Se esperaba 'Hello, World!' pero se obtuvo '<output>'

is written to stderr and the exit code is 1.  Any other failure (the
program could not start, exited non-zero, timed out, wrote more than 1 MiB
to stdout, or produced different output across --repeat attempts) is logged
at ERROR and the exit code is 2.

Logs are written to stderr as json (or text) records carrying "app" and a
per-invocation "check_id".  Program stderr appears as INFO records with
msg "command output", one per line; program stdout lines are logged at
DEBUG.

Every flag may also be set in the environment as HELLOCHECK_<FLAG> (dashes
become underscores) or in a --config file.`

const runLong = `Runs the program named by the arguments and checks its stdout.

Arguments undergo ${VAR} / $VAR expansion from the environment.  The program
receives SIGTERM when --timeout expires or this process is terminated, and
is killed if it has not exited shortly after.

Example:
  hellocheck run -- python3 main.py`

const injectLong = `Checks output that was captured elsewhere.

The output is taken from, in order: --output-file (- for stdin), --output,
$USER_OUTPUT, $HELLOCHECK_OUTPUT.  An empty value is checked like any other.

Example:
  USER_OUTPUT="$(python3 main.py)" hellocheck inject`

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	cfg    *config.Config
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "hellocheck",
		Short:         "check a Hello, World! program",
		Long:          rootLong,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
	}
	config.AddFlags(root.PersistentFlags())
	root.SetIn(a.stdin)
	root.SetOut(a.stderr)
	root.SetErr(a.stderr)

	runCmd := &cobra.Command{
		Use:   "run [flags] -- <program> [args...]",
		Short: "run a program and check its output",
		Long:  runLong,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.check(cmd.Context(), a.captureProducer(args))
		},
	}
	runCmd.Flags().SetInterspersed(false)

	injectCmd := &cobra.Command{
		Use:   "inject",
		Short: "check output captured by the calling environment",
		Long:  injectLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := a.injectedOutput()
			if err != nil {
				return err
			}
			return a.check(cmd.Context(), func(ctx context.Context) (string, error) {
				return output, nil
			})
		},
	}
	config.AddInjectFlags(injectCmd.Flags())
	injectCmd.MarkFlagsMutuallyExclusive("output", "output-file")

	root.AddCommand(runCmd, injectCmd)
	return root
}

// configure loads the layered config for cmd and replaces the bootstrap
// logger.
func (a *app) configure(cmd *cobra.Command) error {
	v := config.New()
	if err := config.Bind(v, cmd.Flags()); err != nil {
		return err
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return errors.Wrap(err, 0)
	}
	a.cfg, err = config.Load(v, path)
	if err != nil {
		return err
	}
	a.logger = newLogger(a.stderr, a.cfg.LogLevel, a.cfg.LogFormat)
	slog.SetDefault(a.logger)
	a.logger.Debug("config", "config", a.cfg)
	return nil
}

func (a *app) captureProducer(args []string) trial.Producer {
	opts := capture.Options{Logger: a.logger}
	return func(ctx context.Context) (string, error) {
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}
		captured, err := capture.Run(ctx, args, opts)
		if err != nil {
			return "", err
		}
		return captured.Stdout, nil
	}
}

func (a *app) injectedOutput() (string, error) {
	switch {
	case a.cfg.OutputFile == "-":
		return harnessio.ReadInjected(a.stdin)
	case a.cfg.OutputFile != "":
		f, err := os.Open(a.cfg.OutputFile)
		if err != nil {
			return "", errors.Wrap(err, 0)
		}
		defer f.Close()
		return harnessio.ReadInjected(f)
	case a.cfg.HasOutput:
		return a.cfg.Output, nil
	default:
		return "", errors.Errorf(
			"no injected output: set --output, --output-file or $%v", config.UserOutputEnv)
	}
}

// check validates every attempt and writes the sentinel once, after all have
// passed.  A mismatch is returned as the validation error of the first
// attempt.
func (a *app) check(ctx context.Context, produce trial.Producer) error {
	report, err := trial.Run(ctx, a.cfg.Repeat, a.cfg.Parallel, produce)
	if err != nil {
		return err
	}
	if len(report.Results) > 1 {
		if ds, err := report.Stats(); err == nil {
			a.logger.Info("trial stats", "attempts", len(report.Results), "durations", ds)
		}
	}
	if err := report.Err(); err != nil {
		return err
	}
	if err := validator.WriteSentinel(a.stdout); err != nil {
		return err
	}
	a.logger.Info("check event", "event", validator.Passed.String())
	return nil
}
