package cas_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/cas"
	"go.trai.ch/forge/internal/core/domain"
)

func newStore(t *testing.T) *cas.Store {
	t.Helper()
	store, err := cas.NewStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := newStore(t)

	digest, err := store.Put([]byte("hello forge"))
	require.NoError(t, err)

	content, err := store.Get(digest)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello forge"), content)
}

func TestStore_PutIdempotent(t *testing.T) {
	store := newStore(t)

	first, err := store.Put([]byte("same bytes"))
	require.NoError(t, err)
	second, err := store.Put([]byte("same bytes"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStore_GetMissing(t *testing.T) {
	store := newStore(t)

	_, err := store.Get(domain.NewDigest([]byte("never stored")))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Contains(t *testing.T) {
	store := newStore(t)

	present, err := store.Put([]byte("present"))
	require.NoError(t, err)
	absent := domain.NewDigest([]byte("absent"))

	got, err := store.Contains([]domain.Digest{present, absent})
	require.NoError(t, err)
	assert.True(t, got[present])
	assert.False(t, got[absent])
}

func TestStore_TreeRoundTrip(t *testing.T) {
	store := newStore(t)

	fileDigest, err := store.Put([]byte("package main"))
	require.NoError(t, err)

	tree := domain.NewTree()
	tree.Put("src/main.go", domain.TreeEntry{Digest: fileDigest})
	tree.Put("bin/run", domain.TreeEntry{Digest: fileDigest, Executable: true})

	treeDigest, err := store.PutTree(tree)
	require.NoError(t, err)

	restored, err := store.GetTree(treeDigest)
	require.NoError(t, err)
	assert.Equal(t, tree.Paths(), restored.Paths())

	entry, ok := restored.Get("bin/run")
	require.True(t, ok)
	assert.True(t, entry.Executable)
	assert.Equal(t, fileDigest, entry.Digest)
}

func TestStore_NoPartialBlobs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")
	store, err := cas.NewStore(dir)
	require.NoError(t, err)

	digest, err := store.Put([]byte("visible"))
	require.NoError(t, err)

	// Only the final renamed blob may exist; no temp files linger.
	var files []string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, filepath.Base(path))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{digest.String()}, files)
}

func TestStore_ConcurrentPutSameContent(t *testing.T) {
	store := newStore(t)

	done := make(chan domain.Digest, 8)
	for range 8 {
		go func() {
			d, err := store.Put([]byte("contended"))
			assert.NoError(t, err)
			done <- d
		}()
	}

	first := <-done
	for range 7 {
		assert.Equal(t, first, <-done)
	}
}

func TestStore_MergeUnionsStoredTrees(t *testing.T) {
	store := newStore(t)

	fileA, err := store.Put([]byte("a"))
	require.NoError(t, err)
	fileB, err := store.Put([]byte("b"))
	require.NoError(t, err)

	left := domain.NewTree()
	left.Put("src/a.go", domain.TreeEntry{Digest: fileA})
	leftDigest, err := store.PutTree(left)
	require.NoError(t, err)

	right := domain.NewTree()
	right.Put("src/b.go", domain.TreeEntry{Digest: fileB})
	rightDigest, err := store.PutTree(right)
	require.NoError(t, err)

	mergedDigest, err := store.Merge(leftDigest, rightDigest)
	require.NoError(t, err)

	merged, err := store.GetTree(mergedDigest)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.go", "src/b.go"}, merged.Paths())
}

func TestStore_MergeConflictingPathsFails(t *testing.T) {
	store := newStore(t)

	fileA, err := store.Put([]byte("a"))
	require.NoError(t, err)
	fileB, err := store.Put([]byte("b"))
	require.NoError(t, err)

	left := domain.NewTree()
	left.Put("out/result", domain.TreeEntry{Digest: fileA})
	leftDigest, err := store.PutTree(left)
	require.NoError(t, err)

	right := domain.NewTree()
	right.Put("out/result", domain.TreeEntry{Digest: fileB})
	rightDigest, err := store.PutTree(right)
	require.NoError(t, err)

	_, err = store.Merge(leftDigest, rightDigest)
	require.ErrorIs(t, err, domain.ErrPathConflict)
}

func TestStore_MergeMissingTreeFails(t *testing.T) {
	store := newStore(t)

	tree := domain.NewTree()
	treeDigest, err := store.PutTree(tree)
	require.NoError(t, err)

	_, err = store.Merge(treeDigest, domain.NewDigest([]byte("absent")))
	require.ErrorIs(t, err, domain.ErrNotFound)
}
