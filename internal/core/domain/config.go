package domain

import "time"

// Config is the validated engine configuration loaded from forge.yaml.
type Config struct {
	// Root is the workspace root: the directory containing forge.yaml.
	Root string

	// StoreDir is the directory holding the blob store and action cache.
	StoreDir string

	// Parallelism bounds concurrently running leaf executions.
	Parallelism int

	// DebounceWindow coalesces bursts of filesystem events before invalidation.
	DebounceWindow time.Duration

	// WatchIgnore lists directory names excluded from watching.
	WatchIgnore []string

	// Remote configures the remote execution backend; nil disables it.
	Remote *RemoteConfig

	// Commands are the named process invocations runnable from the CLI.
	Commands map[string]Command
}

// RemoteConfig configures the remote execution client.
type RemoteConfig struct {
	// Address is the base URL of the remote execution service.
	Address string

	// Instance optionally namespaces requests on a shared service.
	Instance string

	// Attempts is the number of remote tries before falling back to local
	// execution. Only infrastructure failures consume attempts.
	Attempts int

	// BatchMaxDigests bounds the number of digests per missing-blobs call.
	BatchMaxDigests int

	// BatchMaxBytes bounds the serialized payload of a missing-blobs call.
	BatchMaxBytes int64

	// PollInterval is the base interval between operation polls.
	PollInterval time.Duration

	// Timeout bounds a single remote execution end to end.
	Timeout time.Duration
}

// Command is a named process invocation defined in forge.yaml. Inputs are
// workspace-relative files or directories snapshotted into the execution's
// input root; outputs are collected from the execution scratch directory.
type Command struct {
	Name    string
	Argv    []string
	Env     map[string]string
	Inputs  []string
	Outputs []string
	Timeout time.Duration
}
