// Package hello is a correct solution to the greeting exercise.
package hello

import (
	"fmt"
	"io"
)

func Message() string {
	return "Hello, World!"
}

// Print writes the greeting the way a learner's program would.
func Print(w io.Writer) error {
	_, err := fmt.Fprintln(w, Message())
	return err
}
