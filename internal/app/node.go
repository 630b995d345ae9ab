package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/cache"   //nolint:depguard // Wired in app wiring
	"go.trai.ch/forge/internal/adapters/cas"     //nolint:depguard // Wired in app wiring
	"go.trai.ch/forge/internal/adapters/config"  //nolint:depguard // Wired in app wiring
	"go.trai.ch/forge/internal/adapters/local"   //nolint:depguard // Wired in app wiring
	"go.trai.ch/forge/internal/adapters/logger"  //nolint:depguard // Wired in app wiring
	"go.trai.ch/forge/internal/adapters/watcher" //nolint:depguard // Wired in app wiring
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/rules"
	"go.trai.ch/forge/internal/engine/scheduler"
)

const (
	// NodeID identifies the App Graft node.
	NodeID graft.ID = "app.main"

	// ComponentsNodeID identifies the Components Graft node resolved by main.
	ComponentsNodeID graft.ID = "app.components"
)

// Components bundles everything the entry point needs after wiring.
type Components struct {
	App    *App
	Config *domain.Config
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.ResolvedNodeID,
			scheduler.NodeID,
			rules.NodeID,
			cas.NodeID,
			cache.NodeID,
			local.NodeID,
			watcher.WatcherNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}

			sched, err := graft.Dep[*scheduler.Scheduler](ctx)
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

			watch, err := graft.Dep[ports.Watcher](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(cfg, sched, registry, store, actions, executor, watch, log)
		},
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID, config.ResolvedNodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Components, error) {
			a, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{App: a, Config: cfg, Logger: log}, nil
		},
	})
}
