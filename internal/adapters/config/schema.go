package config

// Forgefile represents the structure of the forge.yaml configuration file.
type Forgefile struct {
	Version     string                 `yaml:"version"`
	Root        string                 `yaml:"root"`
	Store       string                 `yaml:"store"`
	Parallelism int                    `yaml:"parallelism"`
	Debounce    string                 `yaml:"debounce"`
	WatchIgnore []string               `yaml:"watchIgnore"`
	Remote      *RemoteDTO             `yaml:"remote"`
	Commands    map[string]*CommandDTO `yaml:"commands"`
}

// RemoteDTO represents the remote execution section of forge.yaml.
type RemoteDTO struct {
	Address         string `yaml:"address"`
	Instance        string `yaml:"instance"`
	Attempts        int    `yaml:"attempts"`
	BatchMaxDigests int    `yaml:"batchMaxDigests"`
	BatchMaxBytes   int64  `yaml:"batchMaxBytes"`
	PollInterval    string `yaml:"pollInterval"`
	Timeout         string `yaml:"timeout"`
}

// CommandDTO represents a command definition in the configuration.
type CommandDTO struct {
	Cmd         []string          `yaml:"cmd"`
	Input       []string          `yaml:"input"`
	Target      []string          `yaml:"target"`
	Environment map[string]string `yaml:"environment"`
	Timeout     string            `yaml:"timeout"`
}
