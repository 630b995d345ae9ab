// Package cas implements the local content-addressable blob store.
package cas

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.BlobStore = (*Store)(nil)

// Store keeps blobs under dir in a two-level fan-out keyed by digest. Writes
// go to a temp file and are renamed into place, so concurrent engines sharing
// the directory never observe partial blobs.
type Store struct {
	dir string
}

// NewStore creates a blob store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return &Store{dir: dir}, nil
}

// Put stores the content and returns its digest. Putting identical content
// twice yields the identical digest and leaves a single blob on disk.
func (s *Store) Put(content []byte) (domain.Digest, error) {
	digest := domain.NewDigest(content)

	path := s.blobPath(digest)
	if _, err := os.Stat(path); err == nil {
		// Content-addressed: an existing blob is byte-identical by construction.
		return digest, nil
	}

	if err := s.writeAtomic(path, content); err != nil {
		return domain.Digest{}, err
	}
	return digest, nil
}

// Get returns the content for the digest, or domain.ErrNotFound.
func (s *Store) Get(digest domain.Digest) ([]byte, error) {
	content, err := os.ReadFile(s.blobPath(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(domain.ErrNotFound, "digest", digest.String())
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	return content, nil
}

// Contains reports which of the given digests are present.
func (s *Store) Contains(digests []domain.Digest) (map[domain.Digest]bool, error) {
	present := make(map[domain.Digest]bool, len(digests))
	for _, d := range digests {
		_, err := os.Stat(s.blobPath(d))
		switch {
		case err == nil:
			present[d] = true
		case errors.Is(err, fs.ErrNotExist):
			present[d] = false
		default:
			return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
		}
	}
	return present, nil
}

// PutTree serializes and stores a directory tree.
func (s *Store) PutTree(tree *domain.Tree) (domain.Digest, error) {
	data, err := tree.Marshal()
	if err != nil {
		return domain.Digest{}, err
	}
	return s.Put(data)
}

// GetTree loads a directory tree previously stored with PutTree.
func (s *Store) GetTree(digest domain.Digest) (*domain.Tree, error) {
	data, err := s.Get(digest)
	if err != nil {
		return nil, err
	}
	return domain.UnmarshalTree(data)
}

// Merge unions two stored trees and stores the result, returning its digest.
func (s *Store) Merge(a, b domain.Digest) (domain.Digest, error) {
	left, err := s.GetTree(a)
	if err != nil {
		return domain.Digest{}, err
	}
	right, err := s.GetTree(b)
	if err != nil {
		return domain.Digest{}, err
	}

	merged, err := domain.MergeTrees(left, right)
	if err != nil {
		return domain.Digest{}, err
	}
	return s.PutTree(merged)
}

func (s *Store) blobPath(digest domain.Digest) string {
	name := digest.String()
	return filepath.Join(s.dir, name[:2], name)
}

// writeAtomic writes content to path via a temp file in the same directory
// followed by a rename.
func (s *Store) writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return nil
}
