package harnessio

import (
	"io"

	"github.com/go-errors/errors"
)

// MaxOutputBytes bounds the output under check, captured or injected.
const MaxOutputBytes = 1 << 20

// ReadInjected reads a pre-captured program output in full.
func ReadInjected(r io.Reader) (string, error) {
	bytes, err := io.ReadAll(io.LimitReader(r, MaxOutputBytes+1))
	if err != nil {
		return "", errors.Errorf("reading injected output: %w", err)
	}
	if len(bytes) > MaxOutputBytes {
		return "", errors.WrapPrefix(ErrOutputLimit, "injected", 0)
	}
	return string(bytes), nil
}
