package validator

// Outcome is the state of a single check. A check starts pending and moves
// once to passed or failed.
type Outcome int

const (
	Pending Outcome = iota
	Passed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// OutcomeOf maps the error returned by Validate to an Outcome. Errors that are
// not validation errors did not produce a verdict and leave the check
// pending.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Passed
	}
	if IsValidationError(err) {
		return Failed
	}
	return Pending
}
