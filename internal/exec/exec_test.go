package exec

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner returns a canned result after an optional delay.
type fakeRunner struct {
	res   Result
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeRunner) Run(command string) (Result, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.res, f.err
}

func TestRunTimed_Success(t *testing.T) {
	r := &fakeRunner{res: Result{Stdout: "ok", ExitCode: 0}}

	res, err := RunTimed(r, "echo ok", time.Second)

	require.NoError(t, err)
	assert.Equal(t, "ok", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
	assert.Greater(t, res.Duration, time.Duration(0))
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestRunTimed_NonZeroExitIsNotAnError(t *testing.T) {
	r := &fakeRunner{res: Result{Stderr: "boom", ExitCode: 2}}

	res, err := RunTimed(r, "false", time.Second)

	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, "boom", res.Stderr)
}

func TestRunTimed_Timeout(t *testing.T) {
	r := &fakeRunner{res: Result{Stdout: "late"}, delay: 200 * time.Millisecond}

	res, err := RunTimed(r, "sleep", 20*time.Millisecond)

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Empty(t, res.Stdout)
	assert.GreaterOrEqual(t, res.Duration, 20*time.Millisecond)
}

func TestRunTimed_RunnerErrorPassesThrough(t *testing.T) {
	r := &fakeRunner{err: assert.AnError}

	_, err := RunTimed(r, "whatever", time.Second)

	require.Error(t, err)
	assert.False(t, IsTimeout(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRunTimed_ZeroTimeoutUsesDefault(t *testing.T) {
	r := &fakeRunner{res: Result{Stdout: "fast"}}

	res, err := RunTimed(r, "echo", 0)

	require.NoError(t, err)
	assert.Equal(t, "fast", res.Stdout)
}

func TestIsTimeout_PlainError(t *testing.T) {
	assert.False(t, IsTimeout(assert.AnError))
	assert.False(t, IsTimeout(nil))
}

func TestLocal_Run(t *testing.T) {
	l := &Local{Shell: "/bin/sh"}

	res, err := l.Run("echo hello; echo oops 1>&2")

	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
}

func TestLocal_Run_NonZeroExit(t *testing.T) {
	l := &Local{Shell: "/bin/sh"}

	res, err := l.Run("exit 3")

	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}
