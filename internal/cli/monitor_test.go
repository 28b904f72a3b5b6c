package cli

import (
	"testing"
	"time"

	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty means unset", flag: "", want: 0},
		{name: "valid seconds", flag: "2s", want: 2 * time.Second},
		{name: "valid millis", flag: "750ms", want: 750 * time.Millisecond},
		{name: "below floor", flag: "100ms", wantErr: true},
		{name: "garbage", flag: "fast", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInterval(tt.flag)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLiveness_NilChecksPass(t *testing.T) {
	l := liveness{}
	assert.True(t, l.SessionAlive())
	assert.True(t, l.ReceiverAlive())
}

func TestLiveness_DelegatesToChecks(t *testing.T) {
	l := liveness{
		session:  func() bool { return false },
		receiver: func() bool { return true },
	}
	assert.False(t, l.SessionAlive())
	assert.True(t, l.ReceiverAlive())
}

func TestSnapshotFanout_SkipsNilHub(t *testing.T) {
	var got []monitor.Snapshot
	emit := snapshotFanout(monitor.EmitterFunc(func(s monitor.Snapshot) {
		got = append(got, s)
	}), nil)

	emit.EmitSnapshot(monitor.Snapshot{Host: "web"})

	require.Len(t, got, 1)
	assert.Equal(t, "web", got[0].Host)
}

func TestProcessFanout_SkipsNilHub(t *testing.T) {
	var got []monitor.ProcessSnapshot
	emit := processFanout(monitor.ProcessEmitterFunc(func(s monitor.ProcessSnapshot) {
		got = append(got, s)
	}), nil)

	emit.EmitProcesses(monitor.ProcessSnapshot{Host: "web"})

	require.Len(t, got, 1)
	assert.Equal(t, "web", got[0].Host)
}

func TestMonitorCommandFlags(t *testing.T) {
	for _, flag := range []string{"interval", "interface", "local", "plain", "serve", "trace"} {
		assert.NotNil(t, monitorCmd.Flags().Lookup(flag), "monitor should have --%s", flag)
	}
}

func TestPsCommandFlags(t *testing.T) {
	for _, flag := range []string{"rows", "interval", "once"} {
		assert.NotNil(t, psCmd.Flags().Lookup(flag), "ps should have --%s", flag)
	}
}

func TestIfaceCommandFlags(t *testing.T) {
	for _, flag := range []string{"set", "list"} {
		assert.NotNil(t, ifaceCmd.Flags().Lookup(flag), "iface should have --%s", flag)
	}
}

func TestRootHasConfigFlag(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
