package ports

import "go.trai.ch/forge/internal/core/domain"

// ConfigLoader loads and validates the engine configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load discovers forge.yaml starting from cwd and walking up, applies
	// defaults, validates, and returns the configuration.
	Load(cwd string) (*domain.Config, error)
}
