package domain

import "go.trai.ch/zerr"

var (
	// ErrNotFound is returned when a referenced digest is absent from the blob store.
	ErrNotFound = zerr.New("digest not found in store")

	// ErrInvalidDigest is returned when a digest string cannot be parsed.
	ErrInvalidDigest = zerr.New("invalid digest")

	// ErrPathConflict is returned when merging directory trees with divergent
	// content at the same path.
	ErrPathConflict = zerr.New("path conflict during tree merge")

	// ErrGraphCycle is returned when a rule transitively requests a result that is
	// still being computed on its own request chain.
	ErrGraphCycle = zerr.New("dependency cycle detected")

	// ErrComputation is returned when a rule body fails; it is cached for the
	// generation and delivered to every waiter.
	ErrComputation = zerr.New("rule computation failed")

	// ErrNoRule is returned when no registered rule produces the requested output type.
	ErrNoRule = zerr.New("no rule produces requested output")

	// ErrRuleExists is returned when registering a second rule for the same output type.
	ErrRuleExists = zerr.New("rule already registered for output")

	// ErrRemoteInfrastructure is returned for retryable remote failures such as
	// refused connections, timeouts, and resource exhaustion. The execution wrapper
	// falls back to local execution once the attempt budget is spent.
	ErrRemoteInfrastructure = zerr.New("remote infrastructure failure")

	// ErrRemoteRequest is returned when the remote side rejects the request itself.
	// Retrying or falling back cannot fix a malformed request, so this fails fast.
	ErrRemoteRequest = zerr.New("remote rejected request")

	// ErrTimeout is returned when a process execution exceeds its deadline.
	ErrTimeout = zerr.New("execution timed out")

	// ErrOperationNotFound is returned when polling an unknown remote operation.
	ErrOperationNotFound = zerr.New("operation not found")

	// ErrStoreWriteFailed is returned when the blob store cannot persist a blob.
	ErrStoreWriteFailed = zerr.New("failed to write blob")

	// ErrStoreReadFailed is returned when the blob store cannot read a blob.
	ErrStoreReadFailed = zerr.New("failed to read blob")

	// ErrCacheReadFailed is returned when the action cache cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read action cache entry")

	// ErrCacheWriteFailed is returned when the action cache cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write action cache entry")

	// ErrConfigNotFound is returned when no forge.yaml can be found.
	ErrConfigNotFound = zerr.New("could not find forge.yaml")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigInvalid is returned when the config file fails validation.
	ErrConfigInvalid = zerr.New("invalid configuration")

	// ErrCommandNotFound is returned when a requested command is not defined
	// in the configuration.
	ErrCommandNotFound = zerr.New("command not found in configuration")

	// ErrInputNotFound is returned when a declared input path does not exist.
	ErrInputNotFound = zerr.New("input not found")

	// ErrParamEncoding is returned when a rule parameter cannot be canonically encoded.
	ErrParamEncoding = zerr.New("parameter is not canonically encodable")

	// ErrExecutionFailed is returned when a requested command exits non-zero.
	ErrExecutionFailed = zerr.New("command exited non-zero")
)
