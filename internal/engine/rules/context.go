package rules

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Requester demands the value of a node on behalf of a running rule body. The
// scheduler implements it; the indirection keeps rule bodies decoupled from
// the scheduler itself.
type Requester interface {
	Subrequest(ctx context.Context, key domain.NodeKey) (any, error)
}

// Context is the capability surface of a rule body. Every accessor routes
// through the requester, which records the dependency edge as a side effect.
type Context struct {
	requester Requester
	store     ports.BlobStore
	params    []any
}

// NewContext creates a rule context carrying the invocation's parameters.
func NewContext(requester Requester, store ports.BlobStore, params ...any) *Context {
	return &Context{requester: requester, store: store, params: params}
}

// Params returns the positional parameters of this invocation.
func (c *Context) Params() []any {
	return c.params
}

// Param returns the i-th positional parameter, or nil when out of range.
func (c *Context) Param(i int) any {
	if i < 0 || i >= len(c.params) {
		return nil
	}
	return c.params[i]
}

// Get demands the value of another rule's output.
func (c *Context) Get(ctx context.Context, output string, params ...any) (any, error) {
	p, err := domain.NewParams(params...)
	if err != nil {
		return nil, err
	}
	return c.requester.Subrequest(ctx, domain.RuleKey{Output: output, Params: p})
}

// ReadFile demands the content of a workspace file. The dependency is on the
// file's content digest, so an unchanged file never reruns the consumer.
func (c *Context) ReadFile(ctx context.Context, path string) ([]byte, error) {
	value, err := c.requester.Subrequest(ctx, domain.FileContentKey{Path: path})
	if err != nil {
		return nil, err
	}
	digest, ok := value.(domain.Digest)
	if !ok {
		return nil, zerr.With(zerr.New("unexpected file node value"), "path", path)
	}
	return c.store.Get(digest)
}

// Digest demands the content digest of a workspace file without fetching it.
func (c *Context) Digest(ctx context.Context, path string) (domain.Digest, error) {
	value, err := c.requester.Subrequest(ctx, domain.FileContentKey{Path: path})
	if err != nil {
		return domain.Digest{}, err
	}
	digest, ok := value.(domain.Digest)
	if !ok {
		return domain.Digest{}, zerr.With(zerr.New("unexpected file node value"), "path", path)
	}
	return digest, nil
}

// ListDir demands the sorted entry names of a workspace directory.
func (c *Context) ListDir(ctx context.Context, path string) ([]string, error) {
	value, err := c.requester.Subrequest(ctx, domain.DirectoryListingKey{Path: path})
	if err != nil {
		return nil, err
	}
	names, ok := value.([]string)
	if !ok {
		return nil, zerr.With(zerr.New("unexpected directory node value"), "path", path)
	}
	return names, nil
}

// Execute demands the result of a process execution. Identical requests
// collapse onto one node regardless of which rules issue them.
func (c *Context) Execute(ctx context.Context, req *domain.ProcessRequest) (domain.ProcessResult, error) {
	key := domain.ExecutionKey{Fingerprint: req.Fingerprint(), Request: req}
	value, err := c.requester.Subrequest(ctx, key)
	if err != nil {
		return domain.ProcessResult{}, err
	}
	result, ok := value.(domain.ProcessResult)
	if !ok {
		return domain.ProcessResult{}, zerr.New("unexpected execution node value")
	}
	return result, nil
}

// Store exposes the blob store for bodies that need to write derived blobs.
func (c *Context) Store() ports.BlobStore {
	return c.store
}
