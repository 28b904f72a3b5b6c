package sshutil

import (
	"sync"
	"time"

	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/exec"
)

// Source lazily dials one of several candidate connection strings and
// hands the resulting client to the monitor as its exec channel. It
// also answers the monitor's session liveness checks against the live
// connection.
type Source struct {
	candidates []string
	timeout    time.Duration

	mu     sync.Mutex
	client *Client
}

// NewSource builds a source over the candidate connection strings,
// tried in order until one dials successfully.
func NewSource(candidates []string, timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Source{candidates: candidates, timeout: timeout}
}

// Connect returns the current client, dialing one if needed.
func (s *Source) Connect() (exec.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	var lastErr error
	for _, host := range s.candidates {
		client, err := Dial(host, s.timeout)
		if err != nil {
			lastErr = err
			continue
		}
		s.client = client
		return client, nil
	}

	if lastErr == nil {
		lastErr = errors.New(errors.ErrConfig,
			"No SSH connection strings configured",
			"Add at least one entry under the host's ssh list in .ns.yaml")
	}
	return nil, lastErr
}

// Disconnect closes the current client, if any. The next Connect
// re-dials from scratch.
func (s *Source) Disconnect() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// Client returns the currently connected client, or nil.
func (s *Source) Client() *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// SessionAlive reports whether the live connection still answers. With
// no connection open there is nothing to declare dead; the next probe
// will dial and surface any problem as a probe failure.
func (s *Source) SessionAlive() bool {
	client := s.Client()
	if client == nil {
		return true
	}
	return client.Alive()
}

// ReceiverAlive is always true for a bare source; composites wrap it
// to also gate on the consuming UI or stream.
func (s *Source) ReceiverAlive() bool { return true }
