package config

import (
	"os"
	"path/filepath"

	"github.com/rileyhilliard/ns/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".ns.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/ns"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'ns init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .ns.yaml in current directory
// 3. .ns.yaml in parent directories (stops at git root or home)
// 4. ~/.config/ns/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	// 1. Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	// 2. Current directory
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	// 3. Walk up to parent directories
	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		if home != "" && parent == home {
			// Don't go above home directory
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Stop at git root
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break
		}
	}

	// 4. Global config
	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults if
// not found. Commands like 'ns init' must work without existing config.
func LoadOrDefault() (*Config, error) {
	path, err := Find("")
	if err != nil {
		return nil, err
	}

	if path == "" {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// parseConfig converts viper config to our Config struct with defaults
// merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	setDefaults(v)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults seeds viper so partially specified sections keep their
// defaults instead of zeroing out. Viper parses duration strings like
// "1s" into time.Duration fields automatically.
func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.interval", "1s")
	v.SetDefault("monitor.start_delay", "300ms")
	v.SetDefault("monitor.exec_timeout", "20s")
	v.SetDefault("monitor.failure_threshold", 3)
	v.SetDefault("monitor.detail_every", 3)
	v.SetDefault("monitor.disk_every", 10)
	v.SetDefault("monitor.iface_every", 30)

	v.SetDefault("process.interval", "5s")
	v.SetDefault("process.start_delay", "200ms")
	v.SetDefault("process.exec_timeout", "20s")
	v.SetDefault("process.failure_threshold", 3)
	v.SetDefault("process.rows", 20)

	v.SetDefault("output.color", "auto")
	v.SetDefault("output.plain", false)
	v.SetDefault("serve.addr", "127.0.0.1:8722")
}

// Resolve picks the host entry to use: the named one, else the config
// default, else the sole configured host.
func Resolve(cfg *Config, name string) (string, Host, error) {
	if name == "" {
		name = cfg.Default
	}
	if name == "" && len(cfg.Hosts) == 1 {
		for only := range cfg.Hosts {
			name = only
		}
	}
	if name == "" {
		return "", Host{}, errors.New(errors.ErrConfig,
			"No host specified and no default configured",
			"Pass a host name, or set 'default' in .ns.yaml")
	}

	host, ok := cfg.Hosts[name]
	if !ok {
		return "", Host{}, errors.New(errors.ErrConfig,
			"Unknown host: "+name,
			"Check the host names defined in .ns.yaml")
	}
	return name, host, nil
}
