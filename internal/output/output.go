// Package output carries the process-wide output flags, the per-connection
// standard-I/O triple, and the small text renderers the query engines share.
package output

import (
	"context"
	"io"
	"runtime"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagVerbose bool
	flagNoColor bool
)

// SetFlags is called by the root command's PersistentPreRun to propagate flag values.
func SetFlags(verbose, noColor bool) {
	flagVerbose = verbose
	flagNoColor = noColor
}

// IsVerbose returns true when --verbose mode is active.
func IsVerbose() bool { return flagVerbose }

// NoColor returns true when color output is disabled.
func NoColor() bool { return flagNoColor }

// Stdio is the standard-I/O triple a query writes to. On the server side it
// wraps the descriptors received from the client; it is owned by exactly
// one connection task.
type Stdio struct {
	Colored   bool
	Hyperlink bool
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer

	closers []io.Closer
}

// NewStdio builds a triple over the given streams. Any stream that also
// implements io.Closer is closed by Close.
func NewStdio(colored, hyperlink bool, stdin io.Reader, stdout, stderr io.Writer) *Stdio {
	s := &Stdio{
		Colored:   colored,
		Hyperlink: hyperlink,
		Stdin:     stdin,
		Stdout:    stdout,
		Stderr:    stderr,
	}
	for _, v := range []any{stdin, stdout, stderr} {
		if c, ok := v.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
	}
	return s
}

// Close releases the underlying descriptors.
func (s *Stdio) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// YieldPoint paces tight scanning loops: every 256 ticks it surfaces
// context cancellation and hands the processor to other tasks.
type YieldPoint uint8

// Yield counts one iteration.
func (y *YieldPoint) Yield(ctx context.Context) error {
	*y++
	if *y != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	runtime.Gosched()
	return nil
}
