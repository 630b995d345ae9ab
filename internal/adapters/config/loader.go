// Package config provides the configuration loader for forge.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Defaults applied to fields absent from forge.yaml.
const (
	DefaultDebounceWindow  = 50 * time.Millisecond
	DefaultRemoteAttempts  = 3
	DefaultBatchMaxDigests = 1000
	DefaultBatchMaxBytes   = 4 << 20
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultRemoteTimeout   = 5 * time.Minute
)

var validCommandNameRegex = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load discovers forge.yaml starting at cwd and walking toward the
// filesystem root, then applies defaults and validates.
func (l *Loader) Load(cwd string) (*domain.Config, error) {
	configPath, err := l.findConfiguration(cwd)
	if err != nil {
		return nil, err
	}

	var forgefile Forgefile
	if err := readAndUnmarshalYAML(configPath, &forgefile); err != nil {
		return nil, err
	}

	return l.build(configPath, &forgefile)
}

func (l *Loader) findConfiguration(cwd string) (string, error) {
	currentDir := cwd
	for {
		configPath := filepath.Join(currentDir, domain.ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

func (l *Loader) build(configPath string, forgefile *Forgefile) (*domain.Config, error) {
	root := resolveRoot(configPath, forgefile.Root)

	cfg := &domain.Config{
		Root:           root,
		StoreDir:       resolveStoreDir(root, forgefile.Store),
		Parallelism:    forgefile.Parallelism,
		DebounceWindow: DefaultDebounceWindow,
		WatchIgnore:    canonicalizeStrings(forgefile.WatchIgnore),
	}

	if cfg.Parallelism < 0 {
		return nil, zerr.With(domain.ErrConfigInvalid, "parallelism", cfg.Parallelism)
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = runtime.NumCPU()
	}

	if forgefile.Debounce != "" {
		window, err := parseDuration(forgefile.Debounce, "debounce")
		if err != nil {
			return nil, err
		}
		if window == 0 {
			l.Logger.Warn("debounce disabled, every filesystem event triggers invalidation")
		}
		cfg.DebounceWindow = window
	}

	remote, err := buildRemote(forgefile.Remote)
	if err != nil {
		return nil, err
	}
	cfg.Remote = remote

	commands, err := l.buildCommands(forgefile.Commands)
	if err != nil {
		return nil, err
	}
	cfg.Commands = commands

	return cfg, nil
}

func buildRemote(dto *RemoteDTO) (*domain.RemoteConfig, error) {
	if dto == nil {
		return nil, nil
	}

	if dto.Address == "" {
		return nil, zerr.With(domain.ErrConfigInvalid, "missing_field", "remote.address")
	}

	remote := &domain.RemoteConfig{
		Address:         dto.Address,
		Instance:        dto.Instance,
		Attempts:        dto.Attempts,
		BatchMaxDigests: dto.BatchMaxDigests,
		BatchMaxBytes:   dto.BatchMaxBytes,
		PollInterval:    DefaultPollInterval,
		Timeout:         DefaultRemoteTimeout,
	}

	if remote.Attempts < 0 || remote.BatchMaxDigests < 0 || remote.BatchMaxBytes < 0 {
		return nil, zerr.With(domain.ErrConfigInvalid, "section", "remote")
	}
	if remote.Attempts == 0 {
		remote.Attempts = DefaultRemoteAttempts
	}
	if remote.BatchMaxDigests == 0 {
		remote.BatchMaxDigests = DefaultBatchMaxDigests
	}
	if remote.BatchMaxBytes == 0 {
		remote.BatchMaxBytes = DefaultBatchMaxBytes
	}

	if dto.PollInterval != "" {
		interval, err := parseDuration(dto.PollInterval, "remote.pollInterval")
		if err != nil {
			return nil, err
		}
		remote.PollInterval = interval
	}

	if dto.Timeout != "" {
		timeout, err := parseDuration(dto.Timeout, "remote.timeout")
		if err != nil {
			return nil, err
		}
		remote.Timeout = timeout
	}

	return remote, nil
}

func (l *Loader) buildCommands(dtos map[string]*CommandDTO) (map[string]domain.Command, error) {
	commands := make(map[string]domain.Command, len(dtos))
	for name, dto := range dtos {
		if !validCommandNameRegex.MatchString(name) {
			return nil, zerr.With(domain.ErrConfigInvalid, "command_name", name)
		}
		if len(dto.Cmd) == 0 {
			err := zerr.With(domain.ErrConfigInvalid, "command_name", name)
			return nil, zerr.With(err, "missing_field", "cmd")
		}

		command := domain.Command{
			Name:    name,
			Argv:    dto.Cmd,
			Env:     dto.Environment,
			Inputs:  canonicalizeStrings(dto.Input),
			Outputs: canonicalizeStrings(dto.Target),
		}

		if dto.Timeout != "" {
			timeout, err := parseDuration(dto.Timeout, "commands."+name+".timeout")
			if err != nil {
				return nil, err
			}
			command.Timeout = timeout
		}

		commands[name] = command
	}
	return commands, nil
}

// canonicalizeStrings sorts and deduplicates to keep fingerprints stable
// across reorderings of the same list.
func canonicalizeStrings(strs []string) []string {
	if len(strs) == 0 {
		return nil
	}

	sorted := make([]string, len(strs))
	copy(sorted, strs)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}

func resolveStoreDir(root, configuredStore string) string {
	if configuredStore == "" {
		return domain.DefaultStorePath(root)
	}
	if filepath.IsAbs(configuredStore) {
		return filepath.Clean(configuredStore)
	}
	return filepath.Clean(filepath.Join(root, configuredStore))
}

func parseDuration(value, field string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		wrapped := zerr.With(domain.ErrConfigInvalid, "field", field)
		return 0, zerr.With(wrapped, "value", value)
	}
	if d < 0 {
		wrapped := zerr.With(domain.ErrConfigInvalid, "field", field)
		return 0, zerr.With(wrapped, "value", value)
	}
	return d, nil
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is validated by caller
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error())
	}

	return nil
}
