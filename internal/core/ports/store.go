// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/forge/internal/core/domain"

// BlobStore is a content-addressable store of immutable blobs and serialized
// directory trees. Put is idempotent; Get fails with domain.ErrNotFound when
// the digest is absent. Implementations must be safe for concurrent use and
// for sharing a directory across engine processes.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type BlobStore interface {
	// Put stores the content and returns its digest.
	Put(content []byte) (domain.Digest, error)

	// Get returns the content for the digest.
	Get(digest domain.Digest) ([]byte, error)

	// Contains reports which of the given digests are present.
	Contains(digests []domain.Digest) (map[domain.Digest]bool, error)

	// PutTree serializes and stores a directory tree, returning its digest.
	PutTree(tree *domain.Tree) (domain.Digest, error)

	// GetTree loads a directory tree previously stored with PutTree.
	GetTree(digest domain.Digest) (*domain.Tree, error)

	// Merge unions two stored trees and returns the digest of the merged
	// tree. Divergent content at the same path fails with
	// domain.ErrPathConflict.
	Merge(a, b domain.Digest) (domain.Digest, error)
}
