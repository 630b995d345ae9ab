package ports

import (
	"time"

	"go.trai.ch/forge/internal/core/domain"
)

// ActionCache maps process request fingerprints to execution results. Entries
// are written once and never mutated; Get returns nil, nil on a miss.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type ActionCache interface {
	// Get returns the cached result for the fingerprint, or nil on a miss.
	Get(fingerprint string) (*domain.ProcessResult, error)

	// Put stores the result for the fingerprint. Writing the same fingerprint
	// twice is allowed and idempotent.
	Put(fingerprint string, result domain.ProcessResult) error

	// Reclaim removes entries until the cache fits maxBytes, dropping entries
	// older than maxAge first. Zero values disable the respective bound.
	// It runs out-of-band with respect to engine requests.
	Reclaim(maxBytes int64, maxAge time.Duration) error
}
