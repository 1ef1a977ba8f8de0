package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/jsinspect/internal/config/loader"
	"github.com/dshills/jsinspect/internal/integration/inspector"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "JSINSPECT_"

// DefaultFileNames are searched, in order, in the working directory when no
// config file is given.
var DefaultFileNames = []string{".jsinspect.toml", ".jsinspect.yaml", ".jsinspect.yml"}

// Config is the resolved configuration.
type Config struct {
	Remote  RemoteConfig  `json:"remote"`
	Project ProjectConfig `json:"project"`
	Logging LoggingConfig `json:"logging"`
	Console ConsoleConfig `json:"console"`
	Watch   WatchConfig   `json:"watch"`
}

// RemoteConfig locates the remote debugging endpoint.
type RemoteConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Target string `json:"target"`
}

// ProjectConfig describes the local project.
type ProjectConfig struct {
	// Root is the directory source-map URL paths are resolved against.
	Root string `json:"root"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Level string `json:"level"`
}

// ConsoleConfig controls console output.
type ConsoleConfig struct {
	// FilterScript is a Lua file defining filter(level, text, url).
	FilterScript string `json:"filter_script"`
}

// WatchConfig controls live editing of saved files.
type WatchConfig struct {
	Enabled    bool     `json:"enabled"`
	DebounceMS int      `json:"debounce_ms"`
	Ignore     []string `json:"ignore"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Remote: RemoteConfig{
			Host: "127.0.0.1",
			Port: 9222,
		},
		Project: ProjectConfig{Root: "."},
		Logging: LoggingConfig{Level: "info"},
		Watch: WatchConfig{
			DebounceMS: 100,
			Ignore:     []string{".git", "node_modules", "*.map", "*~", "*.swp"},
		},
	}
}

// Options controls where Load looks for settings.
type Options struct {
	// Path is an explicit config file. Empty searches DefaultFileNames in Dir.
	Path string

	// Dir is the directory searched for default config files.
	Dir string

	// FS reads config files; nil uses the OS.
	FS loader.FileSystem

	// Environ supplies environment variables; nil uses os.Environ.
	Environ func() []string
}

// Load resolves configuration from defaults, a config file and the environment.
// An explicit Path that does not exist is an error; missing default files are not.
func Load(opts Options) (Config, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = loader.DefaultFS()
	}

	merged, err := toMap(Default())
	if err != nil {
		return Config{}, err
	}

	path, err := findFile(fsys, opts)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		l, err := loader.ForFile(fsys, path)
		if err != nil {
			return Config{}, err
		}
		fileCfg, err := l.Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, fileCfg)
	}

	envCfg, err := loader.NewEnvLoaderWithMapping(EnvPrefix, nil, opts.Environ).Load()
	if err != nil {
		return Config{}, err
	}
	merged = loader.DeepMerge(merged, envCfg)

	cfg, err := fromMap(merged)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func findFile(fsys loader.FileSystem, opts Options) (string, error) {
	if opts.Path != "" {
		if _, err := fsys.Stat(opts.Path); err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrFileNotFound, opts.Path)
			}
			return "", err
		}
		return opts.Path, nil
	}

	for _, name := range DefaultFileNames {
		p := filepath.Join(opts.Dir, name)
		if _, err := fsys.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// toMap and fromMap round-trip through JSON so every loader's map shape
// decodes through the same struct tags.
func toMap(cfg Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromMap(m map[string]any) (Config, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("encode settings: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return cfg, nil
}

// Validate checks setting ranges and enums.
func (c Config) Validate() error {
	if c.Remote.Host == "" {
		return &ValidationError{Path: "remote.host", Message: "must not be empty", Value: c.Remote.Host}
	}
	if c.Remote.Port < 1 || c.Remote.Port > 65535 {
		return &ValidationError{Path: "remote.port", Message: "must be between 1 and 65535", Value: c.Remote.Port}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "logging.level", Message: "must be debug, info, warn, or error", Value: c.Logging.Level}
	}
	if c.Watch.DebounceMS < 0 {
		return &ValidationError{Path: "watch.debounce_ms", Message: "must not be negative", Value: c.Watch.DebounceMS}
	}
	return nil
}

// Session returns the inspector session configuration.
func (c Config) Session() inspector.Config {
	return inspector.Config{
		Host:        c.Remote.Host,
		Port:        c.Remote.Port,
		ProjectRoot: c.Project.Root,
		Target:      c.Remote.Target,
	}
}
