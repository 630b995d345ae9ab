// Package graph implements the memoizing node graph at the core of the engine:
// an arena of computations keyed by NodeKey, with single-flight execution,
// recorded dependency edges, and generation-based lazy invalidation.
package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// State represents the lifecycle state of a node.
type State uint8

const (
	// NotStarted indicates the node has never run, or its last run was abandoned.
	NotStarted State = iota
	// Running indicates a computation is in flight; requesters attach as waiters.
	Running
	// Completed indicates the node holds a memoized value for its generation.
	Completed
	// Failed indicates the node holds a memoized error for its generation.
	Failed
)

// ComputeFunc produces the value for a node. It runs at most once per key and
// generation regardless of how many requesters demand the key concurrently.
// Sub-requests issued through the same Graph from within a ComputeFunc are
// recorded as dependency edges.
type ComputeFunc func(ctx context.Context, key domain.NodeKey) (any, error)

// Graph is the arena of nodes. The table lock only guards the arena and the
// wait-edge relation; each node carries its own lock, so unrelated
// computations never serialize on a global lock.
type Graph struct {
	mu    sync.Mutex
	nodes map[string]*node
	gen   atomic.Uint64
}

// run is one in-flight computation. Its outcome is written before done is
// closed, so waiters read value and err without further synchronization.
// waiters is guarded by the owning node's lock and counts attachments to this
// run only, so a late detach can never touch a successor run's count.
type run struct {
	done    chan struct{}
	cancel  context.CancelFunc
	value   any
	err     error
	waiters int
}

type node struct {
	id  string
	key domain.NodeKey

	mu    sync.Mutex
	state State
	value any
	err   error
	gen   uint64
	cur   *run

	// dirty marks the memoized result as superseded by a later generation.
	dirty atomic.Bool

	// deps/dependents are the edges traversed during the most recent run,
	// maintained under Graph.mu.
	deps       map[string]struct{}
	dependents map[string]struct{}

	// waitingOn are the nodes this node's running computation is currently
	// blocked on, maintained under Graph.mu. Used for cycle detection.
	waitingOn map[string]struct{}
}

// New creates an empty graph at generation zero.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// Generation returns the current generation.
func (g *Graph) Generation() uint64 {
	return g.gen.Load()
}

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

type ctxKey struct{}

// ownerID returns the node whose computation is issuing the current request,
// or "" for root requests.
func ownerID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Demand returns the value for key, computing it via compute if no valid
// memoized result exists. Concurrent demands for the same key share one
// in-flight computation and observe the identical outcome.
func (g *Graph) Demand(ctx context.Context, key domain.NodeKey, compute ComputeFunc) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	owner := ownerID(ctx)
	n := g.attach(key, owner)

	for {
		n.mu.Lock()
		switch {
		case (n.state == Completed || n.state == Failed) && !n.dirty.Load():
			value, err := n.value, n.err
			n.mu.Unlock()
			return value, err

		case n.state == Running:
			r := n.cur
			r.waiters++
			n.mu.Unlock()

			if err := g.await(ctx, n, owner, r); err != nil {
				return nil, err
			}
			if errors.Is(r.err, context.Canceled) && ctx.Err() == nil {
				// The run was abandoned in a race with our attach; retry.
				continue
			}
			return r.value, r.err

		default:
			g.startRun(ctx, n, compute)
			// Loop: the starter attaches to its own run like any other requester.
		}
	}
}

// attach creates or fetches the node for key and records the dependency edge
// from the requesting node, if any.
func (g *Graph) attach(key domain.NodeKey, owner string) *node {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[key.ID()]
	if !ok {
		n = &node{
			id:         key.ID(),
			key:        key,
			deps:       make(map[string]struct{}),
			dependents: make(map[string]struct{}),
			waitingOn:  make(map[string]struct{}),
		}
		g.nodes[n.id] = n
	}

	if owner != "" {
		if parent, ok := g.nodes[owner]; ok {
			parent.deps[n.id] = struct{}{}
			n.dependents[owner] = struct{}{}
		}
	}
	return n
}

// startRun transitions the node to Running and launches its computation.
// Called with n.mu held; returns with n.mu released.
func (g *Graph) startRun(ctx context.Context, n *node, compute ComputeFunc) {
	// The run outlives any individual requester; it is cancelled only when the
	// waiter count drops to zero.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = context.WithValue(runCtx, ctxKey{}, n.id)

	r := &run{done: make(chan struct{}), cancel: cancel}
	n.state = Running
	n.dirty.Store(false)
	n.cur = r
	startGen := g.gen.Load()
	n.mu.Unlock()

	g.resetDeps(n)

	go func() {
		value, err := compute(runCtx, n.key)
		cancel()
		g.finishRun(n, r, startGen, value, err)
	}()
}

// resetDeps drops the edges recorded by the previous run so the new trace is
// recorded from scratch and stale reverse edges cannot over-invalidate.
func (g *Graph) resetDeps(n *node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for depID := range n.deps {
		if dep, ok := g.nodes[depID]; ok {
			delete(dep.dependents, n.id)
		}
	}
	clear(n.deps)
}

// finishRun records the outcome of a computation and wakes all waiters.
func (g *Graph) finishRun(n *node, r *run, startGen uint64, value any, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	r.value, r.err = value, err

	switch {
	case errors.Is(err, context.Canceled):
		// Abandoned mid-flight; never memoized. The next requester retries
		// from NotStarted.
		n.state = NotStarted
		n.value, n.err = nil, nil
	case errors.Is(err, domain.ErrGraphCycle):
		// Delivered to this run's waiters but never cached.
		n.state = NotStarted
		n.value, n.err = nil, nil
	case err == nil:
		n.state = Completed
		n.value, n.err = value, nil
		n.gen = startGen
	default:
		n.state = Failed
		n.value, n.err = nil, err
		n.gen = startGen
	}

	n.cur = nil
	close(r.done)
}

// await blocks the requester until the node's current run terminates. For
// requests issued from inside another computation it also records a wait edge
// and checks for cycles through the in-flight wait relation.
func (g *Graph) await(ctx context.Context, n *node, owner string, r *run) error {
	if owner != "" {
		if err := g.addWaitEdge(owner, n); err != nil {
			g.abandonWaiter(n, r)
			return err
		}
		defer g.removeWaitEdge(owner, n.id)
	}

	select {
	case <-r.done:
		g.releaseWaiter(n, r)
		return nil
	case <-ctx.Done():
		g.abandonWaiter(n, r)
		return ctx.Err()
	}
}

// releaseWaiter detaches one waiter from a run that already terminated.
func (g *Graph) releaseWaiter(n *node, r *run) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r.waiters--
}

// abandonWaiter detaches one waiter; the last one out cancels the run. The
// n.cur check keeps a late abandon from touching a successor run.
func (g *Graph) abandonWaiter(n *node, r *run) {
	n.mu.Lock()
	defer n.mu.Unlock()

	r.waiters--
	if r.waiters <= 0 && n.cur == r {
		r.cancel()
	}
}

// addWaitEdge records that owner's computation is blocked on n and fails with
// ErrGraphCycle if that edge closes a cycle through currently blocked
// computations.
func (g *Graph) addWaitEdge(owner string, n *node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if chain := g.findCycle(n.id, owner); chain != nil {
		return zerr.With(domain.ErrGraphCycle, "chain", strings.Join(append(chain, n.id), " -> "))
	}

	if parent, ok := g.nodes[owner]; ok {
		parent.waitingOn[n.id] = struct{}{}
	}
	return nil
}

func (g *Graph) removeWaitEdge(owner, depID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if parent, ok := g.nodes[owner]; ok {
		delete(parent.waitingOn, depID)
	}
}

// findCycle walks the wait relation from "from" and returns the node chain
// leading back to target, or nil. Called with g.mu held.
func (g *Graph) findCycle(from, target string) []string {
	if from == target {
		return []string{target}
	}

	visited := make(map[string]bool)
	var walk func(id string) []string
	walk = func(id string) []string {
		if visited[id] {
			return nil
		}
		visited[id] = true

		n, ok := g.nodes[id]
		if !ok {
			return nil
		}
		for next := range n.waitingOn {
			if next == target {
				return []string{id, target}
			}
			if chain := walk(next); chain != nil {
				return append([]string{id}, chain...)
			}
		}
		return nil
	}
	return walk(from)
}

// Invalidate bumps the generation and marks every node whose key resolves to
// an affected path, plus all transitive dependents, as stale. Nothing is
// recomputed here: staleness is recorded cheaply and recomputation happens
// when a live request next reaches the node.
func (g *Graph) Invalidate(paths []string) uint64 {
	gen := g.gen.Add(1)
	if len(paths) == 0 {
		return gen
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	queue := make([]*node, 0, len(paths))
	for _, n := range g.nodes {
		if keyAffected(n.key, paths) {
			queue = append(queue, n)
		}
	}

	visited := make(map[string]bool, len(queue))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n.id] {
			continue
		}
		visited[n.id] = true
		n.dirty.Store(true)

		for depID := range n.dependents {
			if dep, ok := g.nodes[depID]; ok && !visited[depID] {
				queue = append(queue, dep)
			}
		}
	}
	return gen
}

// keyAffected reports whether a filesystem-backed key is affected by a change
// to any of the given paths.
func keyAffected(key domain.NodeKey, paths []string) bool {
	switch k := key.(type) {
	case domain.FileContentKey:
		for _, p := range paths {
			if k.Path == p || isUnder(k.Path, p) {
				return true
			}
		}
	case domain.DirectoryListingKey:
		for _, p := range paths {
			if k.Path == p || k.Path == parentDir(p) || isUnder(k.Path, p) {
				return true
			}
		}
	}
	return false
}

func isUnder(path, dir string) bool {
	return strings.HasPrefix(path, dir+"/")
}

func parentDir(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "."
	}
	return path[:idx]
}

// Prune evicts superseded terminal nodes, returning how many were dropped.
// Nodes with an in-flight run are never evicted.
func (g *Graph) Prune() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	evicted := 0
	for id, n := range g.nodes {
		n.mu.Lock()
		removable := n.dirty.Load() && n.state != Running && n.cur == nil
		n.mu.Unlock()
		if !removable {
			continue
		}

		for depID := range n.deps {
			if dep, ok := g.nodes[depID]; ok {
				delete(dep.dependents, id)
			}
		}
		for depID := range n.dependents {
			if dep, ok := g.nodes[depID]; ok {
				delete(dep.deps, id)
			}
		}
		delete(g.nodes, id)
		evicted++
	}
	return evicted
}

// NodeState returns the state of the node for key, primarily for diagnostics.
func (g *Graph) NodeState(key domain.NodeKey) (State, bool) {
	g.mu.Lock()
	n, ok := g.nodes[key.ID()]
	g.mu.Unlock()
	if !ok {
		return NotStarted, false
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state, true
}

// Dependencies returns the dependency IDs recorded by the most recent run of
// the node for key.
func (g *Graph) Dependencies(key domain.NodeKey) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[key.ID()]
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(n.deps))
	for id := range n.deps {
		deps = append(deps, id)
	}
	return deps
}
