package exec

import (
	"bytes"
	"os"
	osexec "os/exec"
	"time"

	"github.com/rileyhilliard/ns/internal/errors"
)

// Local runs commands through the local shell. It provides the same
// Runner interface as SSH execution so the whole probe pipeline works
// against this machine without a remote host.
type Local struct {
	// Shell overrides the shell used to interpret commands.
	// Defaults to $SHELL, then /bin/sh.
	Shell string
}

// Run executes command via `shell -c` and captures its output.
// A non-zero exit code is reported in the Result, not as an error.
func (l *Local) Run(command string) (Result, error) {
	shell := l.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := osexec.Command(shell, "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		// Command ran but returned non-zero
		if exitErr, ok := runErr.(*osexec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run the command locally",
			"Make sure the shell exists and is executable.")
	}

	return res, nil
}
