package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/rileyhilliard/ns/internal/monitor"
	"gopkg.in/yaml.v3"
)

// StateFileName is the per-host state file under the global config dir.
const StateFileName = "state.yaml"

// DefaultStatePath returns ~/.config/ns/state.yaml.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine home directory",
			"Set $HOME, or pass an explicit state path")
	}
	return filepath.Join(home, GlobalConfigDir, StateFileName), nil
}

// StateFile persists per-host interface selections as a YAML map of
// host name to selection. It implements monitor.SelectionStore for one
// host; several StateFiles may share the same path.
type StateFile struct {
	Path string
	Host string

	mu sync.Mutex
}

// NewStateFile binds a state file path to one host entry.
func NewStateFile(path, host string) *StateFile {
	return &StateFile{Path: path, Host: host}
}

// ReadSelection returns the stored selection for the bound host, or
// the zero value when the file or entry is missing. Read errors are
// treated as "nothing persisted"; state is advisory.
func (s *StateFile) ReadSelection() monitor.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return monitor.Selection{}
	}
	return state[s.Host]
}

// WriteSelection stores the selection for the bound host. The file is
// written whole through a temp file and rename so a crash mid-write
// never leaves a truncated state file.
func (s *StateFile) WriteSelection(sel monitor.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		state = make(map[string]monitor.Selection)
	}
	state[s.Host] = sel

	data, err := yaml.Marshal(state)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot encode state file",
			"This is a bug; please report it")
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create state directory "+dir,
			"Check directory permissions")
	}

	tmp, err := os.CreateTemp(dir, StateFileName+".*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write state file",
			"Check permissions on "+dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write state file",
			"Check free space and permissions on "+dir)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write state file",
			"Check free space and permissions on "+dir)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot replace state file",
			"Check permissions on "+s.Path)
	}
	return nil
}

func (s *StateFile) read() (map[string]monitor.Selection, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	state := make(map[string]monitor.Selection)
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return state, nil
}
