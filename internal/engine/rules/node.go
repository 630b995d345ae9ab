package rules

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the rule registry Graft node.
const NodeID graft.ID = "engine.rule_registry"

func init() {
	graft.Register(graft.Node[*Registry]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Registry, error) {
			return NewRegistry(), nil
		},
	})
}
