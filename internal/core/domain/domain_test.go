package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/core/domain"
)

func TestDigest_Deterministic(t *testing.T) {
	a := domain.NewDigest([]byte("hello"))
	b := domain.NewDigest([]byte("hello"))
	c := domain.NewDigest([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, int64(5), a.SizeBytes)
}

func TestDigest_RoundTrip(t *testing.T) {
	d := domain.NewDigest([]byte("some content"))

	parsed, err := domain.ParseDigest(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestParseDigest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "no separator", input: "abcdef"},
		{name: "bad size", input: "ab-x"},
		{name: "short hash", input: "abcd-12"},
		{name: "negative size", input: domain.NewDigest(nil).Hash + "--1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.ParseDigest(tt.input)
			require.ErrorIs(t, err, domain.ErrInvalidDigest)
		})
	}
}

func TestTree_MarshalDeterministic(t *testing.T) {
	build := func(order []string) []byte {
		tree := domain.NewTree()
		for _, p := range order {
			tree.Put(p, domain.TreeEntry{Digest: domain.NewDigest([]byte(p))})
		}
		data, err := tree.Marshal()
		require.NoError(t, err)
		return data
	}

	first := build([]string{"a.txt", "b/c.txt", "b/d.txt"})
	second := build([]string{"b/d.txt", "a.txt", "b/c.txt"})

	assert.Equal(t, first, second)
}

func TestTree_RoundTrip(t *testing.T) {
	tree := domain.NewTree()
	tree.Put("bin/tool", domain.TreeEntry{Digest: domain.NewDigest([]byte("elf")), Executable: true})
	tree.Put("link", domain.TreeEntry{Target: "bin/tool"})

	data, err := tree.Marshal()
	require.NoError(t, err)

	restored, err := domain.UnmarshalTree(data)
	require.NoError(t, err)
	require.Equal(t, 2, restored.Len())

	entry, ok := restored.Get("bin/tool")
	require.True(t, ok)
	assert.True(t, entry.Executable)

	link, ok := restored.Get("link")
	require.True(t, ok)
	assert.True(t, link.IsSymlink())
	assert.Equal(t, "bin/tool", link.Target)
}

func TestMergeTrees_Disjoint(t *testing.T) {
	a := domain.NewTree()
	a.Put("a.txt", domain.TreeEntry{Digest: domain.NewDigest([]byte("a"))})
	b := domain.NewTree()
	b.Put("b.txt", domain.TreeEntry{Digest: domain.NewDigest([]byte("b"))})

	merged, err := domain.MergeTrees(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, merged.Paths())
}

func TestMergeTrees_IdenticalOverlap(t *testing.T) {
	entry := domain.TreeEntry{Digest: domain.NewDigest([]byte("same"))}
	a := domain.NewTree()
	a.Put("shared.txt", entry)
	b := domain.NewTree()
	b.Put("shared.txt", entry)

	merged, err := domain.MergeTrees(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1, merged.Len())
}

func TestMergeTrees_Conflict(t *testing.T) {
	a := domain.NewTree()
	a.Put("shared.txt", domain.TreeEntry{Digest: domain.NewDigest([]byte("one"))})
	b := domain.NewTree()
	b.Put("shared.txt", domain.TreeEntry{Digest: domain.NewDigest([]byte("two"))})

	_, err := domain.MergeTrees(a, b)
	require.ErrorIs(t, err, domain.ErrPathConflict)
}

func TestProcessRequest_Fingerprint(t *testing.T) {
	base := func() *domain.ProcessRequest {
		return &domain.ProcessRequest{
			Argv:        []string{"gcc", "-c", "main.c"},
			Env:         map[string]string{"PATH": "/usr/bin", "LANG": "C"},
			OutputPaths: []string{"main.o"},
			Timeout:     time.Minute,
		}
	}

	assert.Equal(t, base().Fingerprint(), base().Fingerprint())

	changed := base()
	changed.Argv = []string{"gcc", "-c", "other.c"}
	assert.NotEqual(t, base().Fingerprint(), changed.Fingerprint())

	// Env is a map; iteration order must not leak into the fingerprint.
	reordered := base()
	reordered.Env = map[string]string{"LANG": "C", "PATH": "/usr/bin"}
	assert.Equal(t, base().Fingerprint(), reordered.Fingerprint())

	// Description is documentation only.
	described := base()
	described.Description = "compile main.c"
	assert.Equal(t, base().Fingerprint(), described.Fingerprint())
}

func TestProcessRequest_FingerprintSeparators(t *testing.T) {
	// Field boundaries must not be ambiguous: ["ab"] != ["a", "b"].
	a := &domain.ProcessRequest{Argv: []string{"ab"}}
	b := &domain.ProcessRequest{Argv: []string{"a", "b"}}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestNodeKey_Identity(t *testing.T) {
	p1, err := domain.NewParams("x", 42)
	require.NoError(t, err)
	p2, err := domain.NewParams("x", 42)
	require.NoError(t, err)
	p3, err := domain.NewParams("x", 43)
	require.NoError(t, err)

	k1 := domain.RuleKey{Output: "binary", Params: p1}
	k2 := domain.RuleKey{Output: "binary", Params: p2}
	k3 := domain.RuleKey{Output: "binary", Params: p3}

	assert.Equal(t, k1.ID(), k2.ID())
	assert.NotEqual(t, k1.ID(), k3.ID())
	assert.NotEqual(t, k1.ID(), domain.FileContentKey{Path: "binary"}.ID())
}

func TestParams_UnencodableValue(t *testing.T) {
	_, err := domain.NewParams(func() {})
	require.ErrorIs(t, err, domain.ErrParamEncoding)
}

func TestProcessResult_BlobDigests(t *testing.T) {
	res := domain.ProcessResult{
		ExitCode: 0,
		Stdout:   domain.NewDigest([]byte("out")),
	}
	assert.Len(t, res.BlobDigests(), 1)

	res.OutputTree = domain.NewDigest([]byte("tree"))
	assert.Len(t, res.BlobDigests(), 2)
}
