package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// CachePolicy controls whether an execution result may be served from and
// written to the action cache.
type CachePolicy uint8

const (
	// CacheSuccess caches the result only when the process exits zero.
	CacheSuccess CachePolicy = iota
	// CacheAlways caches the result regardless of exit code.
	CacheAlways
	// CacheNever bypasses the action cache entirely.
	CacheNever
)

// String returns the policy name.
func (p CachePolicy) String() string {
	switch p {
	case CacheAlways:
		return "always"
	case CacheNever:
		return "never"
	default:
		return "success"
	}
}

// ProcessRequest describes a single process execution. Two requests with equal
// fingerprints are interchangeable: the engine may serve either from a cached
// result of the other.
type ProcessRequest struct {
	Argv        []string          `json:"argv"`
	Env         map[string]string `json:"env,omitempty"`
	InputRoot   Digest            `json:"input_root,omitzero"`
	OutputPaths []string          `json:"output_paths,omitempty"`
	Platform    string            `json:"platform,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	CachePolicy CachePolicy       `json:"cache_policy,omitempty"`
	Description string            `json:"description,omitempty"`
}

// Fingerprint computes a deterministic hash over every field that affects the
// result. The description is deliberately excluded: it is documentation, not input.
func (r *ProcessRequest) Fingerprint() string {
	h := xxhash.New()

	for _, arg := range r.Argv {
		_, _ = h.WriteString(arg)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte{0})

	keys := make([]string, 0, len(r.Env))
	for k := range r.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.Write([]byte{'='})
		_, _ = h.WriteString(r.Env[k])
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte{0})

	_, _ = h.WriteString(r.InputRoot.String())
	_, _ = h.Write([]byte{0})

	for _, p := range r.OutputPaths {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte{0})

	_, _ = h.WriteString(r.Platform)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(r.Timeout.String())
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(r.CachePolicy.String())

	return fmt.Sprintf("%016x", h.Sum64())
}

// ProcessResult is the outcome of a process execution, local or remote.
// Stdout, stderr, and the output tree live in the blob store.
type ProcessResult struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     Digest `json:"stdout,omitzero"`
	Stderr     Digest `json:"stderr,omitzero"`
	OutputTree Digest `json:"output_tree,omitzero"`
}

// BlobDigests returns every digest the result references. A cached result is
// usable only while all of them are still present in the blob store.
func (r ProcessResult) BlobDigests() []Digest {
	var digests []Digest
	for _, d := range []Digest{r.Stdout, r.Stderr, r.OutputTree} {
		if !d.IsZero() {
			digests = append(digests, d)
		}
	}
	return digests
}
