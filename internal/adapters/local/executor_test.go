package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/cas"
	"go.trai.ch/forge/internal/adapters/local"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newExecutor(t *testing.T) (*local.Executor, *cas.Store) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()

	store, err := cas.NewStore(t.TempDir())
	require.NoError(t, err)

	return local.NewExecutor(store, mockLogger), store
}

func TestExecute_CapturesStdoutAndStderr(t *testing.T) {
	executor, store := newExecutor(t)

	result, err := executor.Execute(context.Background(), &domain.ProcessRequest{
		Argv: []string{"sh", "-c", "echo out; echo err >&2"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)

	stdout, err := store.Get(result.Stdout)
	require.NoError(t, err)
	require.Equal(t, "out\n", string(stdout))

	stderr, err := store.Get(result.Stderr)
	require.NoError(t, err)
	require.Equal(t, "err\n", string(stderr))
}

func TestExecute_NonZeroExitIsNotAnError(t *testing.T) {
	executor, _ := newExecutor(t)

	result, err := executor.Execute(context.Background(), &domain.ProcessRequest{
		Argv: []string{"sh", "-c", "exit 42"},
	})
	require.NoError(t, err)
	require.Equal(t, 42, result.ExitCode)
}

func TestExecute_TimeoutReported(t *testing.T) {
	executor, _ := newExecutor(t)

	_, err := executor.Execute(context.Background(), &domain.ProcessRequest{
		Argv:    []string{"sleep", "10"},
		Timeout: 50 * time.Millisecond,
	})
	require.ErrorIs(t, err, domain.ErrTimeout)
}

func TestExecute_MaterializesInputRoot(t *testing.T) {
	executor, store := newExecutor(t)

	digest, err := store.Put([]byte("hello input\n"))
	require.NoError(t, err)

	tree := domain.NewTree()
	tree.Put("sub/input.txt", domain.TreeEntry{Digest: digest})
	root, err := store.PutTree(tree)
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), &domain.ProcessRequest{
		Argv:      []string{"cat", "sub/input.txt"},
		InputRoot: root,
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)

	stdout, err := store.Get(result.Stdout)
	require.NoError(t, err)
	require.Equal(t, "hello input\n", string(stdout))
}

func TestExecute_CollectsDeclaredOutputs(t *testing.T) {
	executor, store := newExecutor(t)

	result, err := executor.Execute(context.Background(), &domain.ProcessRequest{
		Argv: []string{"sh", "-c",
			"mkdir -p gen && echo artifact > gen/a.txt && echo tool > tool.sh && chmod +x tool.sh"},
		OutputPaths: []string{"gen", "tool.sh"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.False(t, result.OutputTree.IsZero())

	tree, err := store.GetTree(result.OutputTree)
	require.NoError(t, err)
	require.Equal(t, []string{"gen/a.txt", "tool.sh"}, tree.Paths())

	entry, ok := tree.Get("gen/a.txt")
	require.True(t, ok)
	require.False(t, entry.Executable)

	content, err := store.Get(entry.Digest)
	require.NoError(t, err)
	require.Equal(t, "artifact\n", string(content))

	entry, ok = tree.Get("tool.sh")
	require.True(t, ok)
	require.True(t, entry.Executable)
}

func TestExecute_UnproducedOutputIsSkipped(t *testing.T) {
	executor, _ := newExecutor(t)

	result, err := executor.Execute(context.Background(), &domain.ProcessRequest{
		Argv:        []string{"true"},
		OutputPaths: []string{"never-written.txt"},
	})
	require.NoError(t, err)
	require.True(t, result.OutputTree.IsZero())
}

func TestExecute_OutputsCollectedOnFailure(t *testing.T) {
	executor, store := newExecutor(t)

	result, err := executor.Execute(context.Background(), &domain.ProcessRequest{
		Argv:        []string{"sh", "-c", "echo partial > out.txt; exit 1"},
		OutputPaths: []string{"out.txt"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.ExitCode)

	tree, err := store.GetTree(result.OutputTree)
	require.NoError(t, err)
	require.Equal(t, 1, tree.Len())
}

func TestExecute_DeclaredEnvIsVisible(t *testing.T) {
	executor, store := newExecutor(t)

	result, err := executor.Execute(context.Background(), &domain.ProcessRequest{
		Argv: []string{"sh", "-c", "echo $GREETING"},
		Env:  map[string]string{"GREETING": "bonjour"},
	})
	require.NoError(t, err)

	stdout, err := store.Get(result.Stdout)
	require.NoError(t, err)
	require.Equal(t, "bonjour\n", string(stdout))
}

func TestExecute_MissingCommandFails(t *testing.T) {
	executor, _ := newExecutor(t)

	_, err := executor.Execute(context.Background(), &domain.ProcessRequest{
		Argv: []string{"definitely-not-a-real-binary-1f2e3d"},
	})
	require.Error(t, err)
}

func TestExecute_EmptyArgvRejected(t *testing.T) {
	executor, _ := newExecutor(t)

	_, err := executor.Execute(context.Background(), &domain.ProcessRequest{})
	require.Error(t, err)
}
