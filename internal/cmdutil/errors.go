package cmdutil

import (
	"errors"
	"fmt"
	"io"
)

// FlagError indicates bad flags or arguments. Main prints the command's
// usage after it.
type FlagError struct {
	err error
}

func (e *FlagError) Error() string { return e.err.Error() }
func (e *FlagError) Unwrap() error { return e.err }

// FlagErrorf creates a FlagError with a formatted message.
func FlagErrorf(format string, args ...any) error {
	return &FlagError{err: fmt.Errorf(format, args...)}
}

// userFormattedError is implemented by errors that carry next steps, such as
// docker.DockerError.
type userFormattedError interface {
	FormatUserError() string
}

// PrintError writes err to w, preferring the user-facing rendering when the
// error chain has one.
func PrintError(w io.Writer, err error) {
	var ufe userFormattedError
	if errors.As(err, &ufe) {
		fmt.Fprintln(w, ufe.FormatUserError())
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
