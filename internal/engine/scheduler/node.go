package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/cache"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/cas"       //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/config"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/local"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/remote"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/rules"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.ResolvedNodeID,
			rules.NodeID,
			cas.NodeID,
			cache.NodeID,
			local.NodeID,
			remote.ClientNodeID,
			telemetry.TracerNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}

			registry, err := graft.Dep[*rules.Registry](ctx)
			if err != nil {
				return nil, err
			}

			store, err := graft.Dep[ports.BlobStore](ctx)
			if err != nil {
				return nil, err
			}

			actions, err := graft.Dep[ports.ActionCache](ctx)
			if err != nil {
				return nil, err
			}

			executor, err := graft.Dep[ports.ProcessExecutor](ctx)
			if err != nil {
				return nil, err
			}

			remoteClient, err := graft.Dep[*remote.Client](ctx)
			if err != nil {
				return nil, err
			}
			// A nil pointer inside a non-nil interface would dodge the
			// scheduler's disabled check.
			var remotePort ports.RemoteClient
			if remoteClient != nil {
				remotePort = remoteClient
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return NewScheduler(
				registry,
				store,
				actions,
				executor,
				remotePort,
				tracer,
				log,
				cfg.Root,
				cfg.Parallelism,
			), nil
		},
	})
}
