package scheduler

import "sync/atomic"

// Stats holds the engine counters. All fields are updated atomically.
type Stats struct {
	nodesComputed    atomic.Int64
	actionCacheHits  atomic.Int64
	localExecutions  atomic.Int64
	remoteExecutions atomic.Int64
	remoteFallbacks  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the engine counters.
type StatsSnapshot struct {
	NodesComputed    int64 `json:"nodes_computed"`
	ActionCacheHits  int64 `json:"action_cache_hits"`
	LocalExecutions  int64 `json:"local_executions"`
	RemoteExecutions int64 `json:"remote_executions"`
	RemoteFallbacks  int64 `json:"remote_fallbacks"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		NodesComputed:    s.nodesComputed.Load(),
		ActionCacheHits:  s.actionCacheHits.Load(),
		LocalExecutions:  s.localExecutions.Load(),
		RemoteExecutions: s.remoteExecutions.Load(),
		RemoteFallbacks:  s.remoteFallbacks.Load(),
	}
}
