// Package exec runs probe commands on an execution channel with an
// enforced timeout. The channel itself (SSH session, local shell) is
// supplied by the caller; this package owns no retry or recovery policy.
package exec

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/ns/internal/errors"
)

// DefaultTimeout bounds a single command execution when the caller
// doesn't specify one.
const DefaultTimeout = 20 * time.Second

// Result contains the outcome of one command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner runs one command on some execution channel and reports its
// output and exit code. A non-zero exit code is not an error; errors
// mean the command could not be run at all.
type Runner interface {
	Run(command string) (Result, error)
}

// RunTimed executes command on r, failing with a TIMEOUT error if the
// command does not complete within timeout. The runner goroutine is not
// forcibly killed on timeout; its eventual result is discarded. Callers
// are expected to treat a timeout as fatal to the underlying channel.
func RunTimed(r Runner, command string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type outcome struct {
		res Result
		err error
	}

	// Buffered so the runner goroutine never blocks after a timeout.
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		res, err := r.Run(command)
		if res.Duration == 0 {
			res.Duration = time.Since(start)
		}
		done <- outcome{res, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.res, o.err
	case <-timer.C:
		return Result{Duration: time.Since(start)}, errors.New(errors.ErrTimeout,
			fmt.Sprintf("remote command did not finish within %s", timeout),
			"The channel is likely wedged; it should be closed and reopened.")
	}
}

// IsTimeout reports whether err is the timeout condition from RunTimed.
func IsTimeout(err error) bool {
	return errors.IsCode(err, errors.ErrTimeout)
}
