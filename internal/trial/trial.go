// Package trial repeats a check and confirms every attempt reaches the same
// verdict.  A program whose output changes between runs fails even if some
// runs would pass.
package trial

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-errors/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/apschool/hellocheck/internal/validator"
)

// Producer yields the output for one attempt: running the program again, or
// returning an injected value.
type Producer func(ctx context.Context) (string, error)

type Result struct {
	Index    int
	Outcome  validator.Outcome
	Err      error
	Duration time.Duration
}

func (r Result) message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// InconsistentError reports two attempts with different verdicts or
// diagnostics.
type InconsistentError struct {
	First Result
	Other Result
}

func (err *InconsistentError) Error() string {
	return fmt.Sprintf(
		"attempt %v %v (%q) but attempt %v %v (%q)",
		err.First.Index, err.First.Outcome, err.First.message(),
		err.Other.Index, err.Other.Outcome, err.Other.message())
}

type Report struct {
	Results []Result
}

// Outcome is the shared verdict of all attempts.
func (r *Report) Outcome() validator.Outcome {
	if len(r.Results) == 0 {
		return validator.Pending
	}
	return r.Results[0].Outcome
}

// Err is the validation error of the first attempt, nil if it passed.
func (r *Report) Err() error {
	if len(r.Results) == 0 {
		return nil
	}
	return r.Results[0].Err
}

// Run calls produce and validates its output attempts times, with at most
// parallel attempts in flight.  The first infrastructure error from produce
// cancels the remaining attempts and is returned.
func Run(ctx context.Context, attempts int, parallel int, produce Producer) (*Report, error) {
	if attempts < 1 {
		return nil, errors.Errorf("attempts must be positive: %v", attempts)
	}
	if parallel < 1 {
		return nil, errors.Errorf("parallel must be positive: %v", parallel)
	}

	results := make([]Result, attempts)
	sem := semaphore.NewWeighted(int64(parallel))
	group, groupCtx := errgroup.WithContext(ctx)

	for i := 0; i < attempts; i++ {
		if err := sem.Acquire(groupCtx, 1); err != nil {
			// a failed attempt or the caller cancelled.  Prefer the
			// attempt's error.
			if groupErr := group.Wait(); groupErr != nil {
				return nil, groupErr
			}
			return nil, errors.Wrap(err, 0)
		}
		i := i
		group.Go(func() error {
			defer sem.Release(1)
			start := time.Now()
			output, err := produce(groupCtx)
			if err != nil {
				return errors.WrapPrefix(err, fmt.Sprintf("attempt %v", i), 0)
			}
			validateErr := validator.Validate(output)
			results[i] = Result{
				Index:    i,
				Outcome:  validator.OutcomeOf(validateErr),
				Err:      validateErr,
				Duration: time.Since(start),
			}
			slog.Debug("check event",
				"event", results[i].Outcome.String(),
				"attempt", i,
				"duration", results[i].Duration)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Results: results}
	if err := report.consistent(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Report) consistent() error {
	first := r.Results[0]
	for _, other := range r.Results[1:] {
		if other.Outcome != first.Outcome || other.message() != first.message() {
			return errors.Wrap(&InconsistentError{First: first, Other: other}, 0)
		}
	}
	return nil
}
