// Package scheduler drives rule evaluation: it resolves node demands against
// the memoizing graph, bounds process executions, and layers the action
// cache and the remote backend over local execution.
package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/graph"
	"go.trai.ch/forge/internal/engine/rules"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
)

var _ rules.Requester = (*Scheduler)(nil)

// Scheduler owns one graph and evaluates demands against it. Graph waits are
// plain goroutines; only real process executions are bounded by the
// parallelism semaphore, so deep dependency chains cannot deadlock the pool.
type Scheduler struct {
	graph    *graph.Graph
	registry *rules.Registry
	store    ports.BlobStore
	actions  ports.ActionCache
	local    ports.ProcessExecutor
	remote   ports.RemoteClient // nil disables remote execution
	logger   ports.Logger
	tracer   ports.Tracer

	root string
	sem  *semaphore.Weighted

	stats Stats
}

// NewScheduler creates a scheduler rooted at the workspace root. remote may
// be nil.
func NewScheduler(
	registry *rules.Registry,
	store ports.BlobStore,
	actions ports.ActionCache,
	local ports.ProcessExecutor,
	remote ports.RemoteClient,
	tracer ports.Tracer,
	logger ports.Logger,
	root string,
	parallelism int,
) *Scheduler {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Scheduler{
		graph:    graph.New(),
		registry: registry,
		store:    store,
		actions:  actions,
		local:    local,
		remote:   remote,
		logger:   logger,
		tracer:   tracer,
		root:     root,
		sem:      semaphore.NewWeighted(int64(parallelism)),
	}
}

// Run demands the output of the rule producing the given type with the given
// parameters. Concurrent runs share memoized work.
func (s *Scheduler) Run(ctx context.Context, output string, params ...any) (any, error) {
	p, err := domain.NewParams(params...)
	if err != nil {
		return nil, err
	}
	return s.Subrequest(ctx, domain.RuleKey{Output: output, Params: p})
}

// Subrequest implements rules.Requester. Calls issued from inside a rule body
// carry that body's node identity in ctx, which records the dependency edge.
func (s *Scheduler) Subrequest(ctx context.Context, key domain.NodeKey) (any, error) {
	return s.graph.Demand(ctx, key, s.compute)
}

// Invalidate marks the nodes affected by changed paths, and everything
// depending on them, for recomputation. Paths are workspace-relative.
func (s *Scheduler) Invalidate(paths []string) uint64 {
	gen := s.graph.Invalidate(paths)
	s.logger.Debug("invalidated", "paths", len(paths), "generation", gen)
	return gen
}

// Prune evicts superseded graph nodes and returns how many were dropped.
func (s *Scheduler) Prune() int {
	return s.graph.Prune()
}

// Stats returns a snapshot of the engine counters.
func (s *Scheduler) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Graph exposes the underlying graph for diagnostics.
func (s *Scheduler) Graph() *graph.Graph {
	return s.graph
}

// compute resolves one node. It runs on the graph's computation goroutine for
// the node, at most once per generation.
func (s *Scheduler) compute(ctx context.Context, key domain.NodeKey) (any, error) {
	ctx, span := s.tracer.Start(ctx, "node."+key.Kind())
	defer span.End()
	span.SetAttribute("node.id", key.ID())

	s.stats.nodesComputed.Add(1)

	value, err := s.resolve(ctx, key)
	if err != nil {
		span.RecordError(err)
	}
	return value, err
}

func (s *Scheduler) resolve(ctx context.Context, key domain.NodeKey) (any, error) {
	switch k := key.(type) {
	case domain.RuleKey:
		return s.resolveRule(ctx, k)
	case domain.FileContentKey:
		return s.resolveFileContent(k)
	case domain.DirectoryListingKey:
		return s.resolveDirectoryListing(k)
	case domain.ExecutionKey:
		return s.resolveExecution(ctx, k)
	default:
		return nil, zerr.With(zerr.New("unknown node kind"), "kind", key.Kind())
	}
}

func (s *Scheduler) resolveRule(ctx context.Context, key domain.RuleKey) (any, error) {
	rule, err := s.registry.Lookup(key.Output)
	if err != nil {
		return nil, err
	}

	value, err := rule.Body(ctx, rules.NewContext(s, s.store, key.Params.Values()...))
	if err != nil {
		// Cycle errors pass through untouched so they stay transient.
		if errors.Is(err, domain.ErrGraphCycle) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrComputation.Error()), "rule", key.Output)
	}
	return value, nil
}

func (s *Scheduler) resolveFileContent(key domain.FileContentKey) (any, error) {
	content, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key.Path)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, zerr.With(domain.ErrInputNotFound, "path", key.Path)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read input file"), "path", key.Path)
	}
	return s.store.Put(content)
}

func (s *Scheduler) resolveDirectoryListing(key domain.DirectoryListingKey) (any, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(key.Path)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, zerr.With(domain.ErrInputNotFound, "path", key.Path)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to list input directory"), "path", key.Path)
	}

	// ReadDir returns entries sorted by name.
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *Scheduler) resolveExecution(ctx context.Context, key domain.ExecutionKey) (any, error) {
	req := key.Request
	if req == nil {
		return nil, zerr.With(zerr.New("execution key without request"), "fingerprint", key.Fingerprint)
	}

	if req.CachePolicy != domain.CacheNever {
		if result, ok := s.cachedResult(key.Fingerprint); ok {
			s.stats.actionCacheHits.Add(1)
			// A replayed failure reports the same error as the original run.
			if result.ExitCode != 0 {
				return *result, s.executionError(req, *result)
			}
			return *result, nil
		}
	}

	// Only real executions consume parallelism slots.
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	result, err := s.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.cacheable(req.CachePolicy, result.ExitCode) {
		if err := s.actions.Put(key.Fingerprint, result); err != nil {
			s.logger.Warn("failed to cache execution result", "error", err.Error())
		}
	}

	if result.ExitCode != 0 {
		return result, s.executionError(req, result)
	}
	return result, nil
}

// executionError builds the failure for a non-zero exit, including stderr
// when it is small enough to inline.
func (s *Scheduler) executionError(req *domain.ProcessRequest, result domain.ProcessResult) error {
	err := zerr.With(domain.ErrExecutionFailed, "exit_code", result.ExitCode)
	if req.Description != "" {
		err = zerr.With(err, "process", req.Description)
	}
	if !result.Stderr.IsZero() && result.Stderr.SizeBytes > 0 && result.Stderr.SizeBytes <= 4096 {
		if stderr, rerr := s.store.Get(result.Stderr); rerr == nil {
			err = zerr.With(err, "stderr", string(stderr))
		}
	}
	return err
}

func (s *Scheduler) cacheable(policy domain.CachePolicy, exitCode int) bool {
	switch policy {
	case domain.CacheNever:
		return false
	case domain.CacheAlways:
		return true
	default:
		return exitCode == 0
	}
}

// cachedResult returns a verified action-cache hit. A hit whose referenced
// blobs were evicted from the store is a miss: consumers must always be able
// to materialize what the result points at.
func (s *Scheduler) cachedResult(fingerprint string) (*domain.ProcessResult, bool) {
	result, err := s.actions.Get(fingerprint)
	if err != nil || result == nil {
		if err != nil {
			s.logger.Warn("action cache read failed", "error", err.Error())
		}
		return nil, false
	}

	digests := result.BlobDigests()
	if !result.OutputTree.IsZero() {
		tree, err := s.store.GetTree(result.OutputTree)
		if err != nil {
			return nil, false
		}
		digests = append(digests, tree.Digests()...)
	}

	present, err := s.store.Contains(digests)
	if err != nil {
		return nil, false
	}
	for _, d := range digests {
		if !present[d] {
			return nil, false
		}
	}
	return result, true
}

// execute runs the request remotely when a backend is configured, falling
// back to local execution on infrastructure failures only. Request-level
// rejections propagate: they would fail identically on retry.
func (s *Scheduler) execute(ctx context.Context, req *domain.ProcessRequest) (domain.ProcessResult, error) {
	if s.remote != nil {
		result, err := s.executeRemote(ctx, req)
		switch {
		case err == nil:
			s.stats.remoteExecutions.Add(1)
			return result, nil
		case errors.Is(err, domain.ErrRemoteRequest):
			return domain.ProcessResult{}, err
		case ctx.Err() != nil:
			return domain.ProcessResult{}, ctx.Err()
		default:
			s.stats.remoteFallbacks.Add(1)
			s.logger.Warn("remote execution failed, falling back to local", "error", err.Error())
		}
	}

	result, err := s.local.Execute(ctx, req)
	if err != nil {
		return domain.ProcessResult{}, err
	}
	s.stats.localExecutions.Add(1)
	return result, nil
}

func (s *Scheduler) executeRemote(ctx context.Context, req *domain.ProcessRequest) (domain.ProcessResult, error) {
	ctx, span := s.tracer.Start(ctx, "remote.execute")
	defer span.End()

	if err := s.uploadInputs(ctx, req); err != nil {
		span.RecordError(err)
		return domain.ProcessResult{}, err
	}

	op, err := s.remote.Execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		return domain.ProcessResult{}, err
	}

	result, err := s.remote.Wait(ctx, op)
	if err != nil {
		if ctx.Err() != nil {
			// Best effort: tell the service to stop burning cycles.
			cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			_ = s.remote.Cancel(cancelCtx, op)
			cancel()
		}
		span.RecordError(err)
		return domain.ProcessResult{}, err
	}

	if err := s.downloadOutputs(ctx, result); err != nil {
		span.RecordError(err)
		return domain.ProcessResult{}, err
	}
	return result, nil
}

// uploadInputs ships the input root tree and any of its blobs the remote
// side is missing.
func (s *Scheduler) uploadInputs(ctx context.Context, req *domain.ProcessRequest) error {
	if req.InputRoot.IsZero() {
		return nil
	}

	tree, err := s.store.GetTree(req.InputRoot)
	if err != nil {
		return err
	}
	digests := append([]domain.Digest{req.InputRoot}, tree.Digests()...)

	missing, err := s.remote.FindMissingBlobs(ctx, digests)
	if err != nil {
		return err
	}

	for _, d := range missing {
		content, err := s.store.Get(d)
		if err != nil {
			return err
		}
		if err := s.remote.UploadBlob(ctx, d, content); err != nil {
			return err
		}
	}
	return nil
}

// downloadOutputs pulls every blob a remote result references into the local
// store so consumers never observe dangling digests.
func (s *Scheduler) downloadOutputs(ctx context.Context, result domain.ProcessResult) error {
	digests := result.BlobDigests()

	present, err := s.store.Contains(digests)
	if err != nil {
		return err
	}
	for _, d := range digests {
		if present[d] {
			continue
		}
		content, err := s.remote.DownloadBlob(ctx, d)
		if err != nil {
			return err
		}
		if _, err := s.store.Put(content); err != nil {
			return err
		}
	}

	if result.OutputTree.IsZero() {
		return nil
	}
	tree, err := s.store.GetTree(result.OutputTree)
	if err != nil {
		return err
	}

	fileDigests := tree.Digests()
	present, err = s.store.Contains(fileDigests)
	if err != nil {
		return err
	}
	for _, d := range fileDigests {
		if present[d] {
			continue
		}
		content, err := s.remote.DownloadBlob(ctx, d)
		if err != nil {
			return err
		}
		if _, err := s.store.Put(content); err != nil {
			return err
		}
	}
	return nil
}
