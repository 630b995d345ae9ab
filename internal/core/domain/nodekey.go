package domain

import (
	"encoding/json"
	"strings"

	"go.trai.ch/zerr"
)

// NodeKey identifies one memoizable computation. Identity is the canonical ID
// string: two keys with equal IDs always denote the same computation.
type NodeKey interface {
	// ID returns the stable canonical identity of the key.
	ID() string
	// Kind returns the key variant name, used in diagnostics.
	Kind() string
}

// FileContentKey identifies the content digest of a single file under the
// workspace root. Its value is a Digest; the content lives in the blob store.
type FileContentKey struct {
	Path string
}

// ID implements NodeKey.
func (k FileContentKey) ID() string { return "file:" + k.Path }

// Kind implements NodeKey.
func (k FileContentKey) Kind() string { return "FileContent" }

// DirectoryListingKey identifies the sorted name listing of a directory.
type DirectoryListingKey struct {
	Path string
}

// ID implements NodeKey.
func (k DirectoryListingKey) ID() string { return "dir:" + k.Path }

// Kind implements NodeKey.
func (k DirectoryListingKey) Kind() string { return "DirectoryListing" }

// ExecutionKey identifies a process execution by its request fingerprint.
type ExecutionKey struct {
	Fingerprint string
	Request     *ProcessRequest
}

// ID implements NodeKey. Only the fingerprint participates in identity; the
// request pointer is carried so the resolver does not need a side table.
func (k ExecutionKey) ID() string { return "exec:" + k.Fingerprint }

// Kind implements NodeKey.
func (k ExecutionKey) Kind() string { return "Execution" }

// RuleKey identifies an invocation of the rule producing Output with the given
// ordered parameters.
type RuleKey struct {
	Output string
	Params Params
}

// ID implements NodeKey.
func (k RuleKey) ID() string { return "rule:" + k.Output + "(" + k.Params.Canonical() + ")" }

// Kind implements NodeKey.
func (k RuleKey) Kind() string { return "Rule" }

// Params is an ordered list of rule input values together with a canonical
// encoding. The encoding, not the raw values, participates in key identity, so
// values must be immutable and JSON-encodable.
type Params struct {
	values    []any
	canonical string
}

// NewParams canonically encodes the given values. Maps encode with sorted keys
// (encoding/json guarantees this), so equal values always encode equally.
func NewParams(values ...any) (Params, error) {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		data, err := json.Marshal(v)
		if err != nil {
			return Params{}, zerr.With(ErrParamEncoding, "index", i)
		}
		sb.Write(data)
	}
	return Params{values: values, canonical: sb.String()}, nil
}

// Values returns the raw parameter values in order.
func (p Params) Values() []any {
	return p.values
}

// Canonical returns the canonical encoding.
func (p Params) Canonical() string {
	return p.canonical
}

// Len returns the number of parameters.
func (p Params) Len() int {
	return len(p.values)
}
