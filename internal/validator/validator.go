// Package validator checks a learner's program output against the expected
// "Hello, World!" greeting.
//
// The same check serves every execution environment: output captured from a
// subprocess and output injected by a calling service both end up in
// Validate.
package validator

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/go-errors/errors"
)

const (
	// Expected is the only output that passes, after trimming.
	Expected = "Hello, World!"

	// Sentinel is printed on success for the grading harness to detect.
	Sentinel = "ALL_TESTS_PASSED"
)

// ValidationError reports a mismatch between the trimmed output and Expected.
type ValidationError struct {
	Expected string
	Actual   string
}

func (err *ValidationError) Error() string {
	return fmt.Sprintf("Se esperaba '%s' pero se obtuvo '%s'", err.Expected, err.Actual)
}

// isSpace matches the white space stripped by Python's str.strip(): Unicode
// white space plus the ASCII file, group, record and unit separators.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// Validate trims surrounding white space from output and compares it to
// Expected. The comparison is exact and case sensitive.
func Validate(output string) error {
	actual := strings.TrimFunc(output, isSpace)
	if actual != Expected {
		return errors.Wrap(&ValidationError{Expected: Expected, Actual: actual}, 1)
	}
	return nil
}

// Check validates output and writes the sentinel line to w on success.
// Nothing is written on a mismatch.
func Check(w io.Writer, output string) error {
	if err := Validate(output); err != nil {
		return err
	}
	return WriteSentinel(w)
}

// WriteSentinel writes the single success line.  Callers that validated
// several attempts themselves write it once all have passed.
func WriteSentinel(w io.Writer) error {
	if _, err := fmt.Fprintln(w, Sentinel); err != nil {
		return errors.WrapPrefix(err, "writing sentinel", 0)
	}
	return nil
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
