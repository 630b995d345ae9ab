package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/cas"
	"go.trai.ch/forge/internal/adapters/remote"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	client   *remote.Client
	store    *cas.Store
	executor *mocks.MockProcessExecutor
	actions  *remote.ActionDB
}

func newFixture(t *testing.T, tweak func(cfg *domain.RemoteConfig)) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Error(gomock.Any()).AnyTimes()

	dir := t.TempDir()
	store, err := cas.NewStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	actions, err := remote.OpenActionDB(context.Background(), filepath.Join(dir, "actions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = actions.Close() })

	executor := mocks.NewMockProcessExecutor(ctrl)
	server := remote.NewServer("", store, executor, actions, 4, mockLogger)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	cfg := &domain.RemoteConfig{
		Address:      ts.URL,
		Attempts:     1,
		PollInterval: 5 * time.Millisecond,
		Timeout:      5 * time.Second,
	}
	if tweak != nil {
		tweak(cfg)
	}

	return &fixture{
		client:   remote.NewClient(cfg, mockLogger),
		store:    store,
		executor: executor,
		actions:  actions,
	}
}

func TestClient_BlobRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	content := []byte("remote blob content")
	digest := domain.NewDigest(content)

	require.NoError(t, f.client.UploadBlob(ctx, digest, content))

	got, err := f.client.DownloadBlob(ctx, digest)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestClient_DownloadMissingBlob(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.client.DownloadBlob(context.Background(), domain.NewDigest([]byte("absent")))
	require.ErrorIs(t, err, domain.ErrRemoteRequest)
}

func TestClient_UploadRejectsMismatchedContent(t *testing.T) {
	f := newFixture(t, nil)

	err := f.client.UploadBlob(context.Background(), domain.NewDigest([]byte("declared")), []byte("actual"))
	require.ErrorIs(t, err, domain.ErrRemoteRequest)
}

func TestClient_FindMissingBlobs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	present := []byte("already uploaded")
	presentDigest, err := f.store.Put(present)
	require.NoError(t, err)

	absentDigest := domain.NewDigest([]byte("never uploaded"))

	missing, err := f.client.FindMissingBlobs(ctx, []domain.Digest{presentDigest, absentDigest})
	require.NoError(t, err)
	require.Equal(t, []domain.Digest{absentDigest}, missing)
}

func TestClient_BatchingDoesNotChangeMissingSet(t *testing.T) {
	// The missing set must be identical regardless of how the query is
	// partitioned into batches.
	var digests []domain.Digest
	for i := byte(0); i < 20; i++ {
		digests = append(digests, domain.NewDigest([]byte{i}))
	}

	var reference []domain.Digest
	for _, bound := range []int{0, 1, 3, 7, 100} {
		f := newFixture(t, func(cfg *domain.RemoteConfig) {
			cfg.BatchMaxDigests = bound
			cfg.BatchMaxBytes = 256
		})

		// Upload every third blob so the missing set is non-trivial.
		for i := 0; i < len(digests); i += 3 {
			_, err := f.store.Put([]byte{byte(i)})
			require.NoError(t, err)
		}

		missing, err := f.client.FindMissingBlobs(context.Background(), digests)
		require.NoError(t, err)

		if reference == nil {
			reference = missing
			continue
		}
		require.Equal(t, reference, missing, "bound %d changed the answer", bound)
	}
}

func TestClient_ExecuteAndWait(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	stdout, err := f.store.Put([]byte("built\n"))
	require.NoError(t, err)

	f.executor.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		Return(domain.ProcessResult{ExitCode: 0, Stdout: stdout}, nil)

	req := &domain.ProcessRequest{Argv: []string{"sh", "-c", "echo built"}}

	op, err := f.client.Execute(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, op.ID)

	result, err := f.client.Wait(ctx, op)
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, stdout, result.Stdout)
}

func TestClient_SecondExecuteServedFromActionIndex(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	stdout, err := f.store.Put([]byte("cached\n"))
	require.NoError(t, err)

	f.executor.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		Return(domain.ProcessResult{ExitCode: 0, Stdout: stdout}, nil).
		Times(1)

	req := &domain.ProcessRequest{Argv: []string{"sh", "-c", "echo cached"}}

	op, err := f.client.Execute(ctx, req)
	require.NoError(t, err)
	first, err := f.client.Wait(ctx, op)
	require.NoError(t, err)

	// The second submission must terminate synchronously without running the
	// executor again.
	op, err = f.client.Execute(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, op.Result)

	second, err := f.client.Wait(ctx, op)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestClient_CacheNeverBypassesActionIndex(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.executor.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		Return(domain.ProcessResult{ExitCode: 0}, nil).
		Times(2)

	req := &domain.ProcessRequest{
		Argv:        []string{"date"},
		CachePolicy: domain.CacheNever,
	}

	for range 2 {
		op, err := f.client.Execute(ctx, req)
		require.NoError(t, err)
		require.Nil(t, op.Result)
		_, err = f.client.Wait(ctx, op)
		require.NoError(t, err)
	}
}

func TestClient_CompletedOperationExpiresAfterFinalPoll(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.executor.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		Return(domain.ProcessResult{ExitCode: 0}, nil)

	req := &domain.ProcessRequest{Argv: []string{"true"}, CachePolicy: domain.CacheNever}

	op, err := f.client.Execute(ctx, req)
	require.NoError(t, err)
	_, err = f.client.Wait(ctx, op)
	require.NoError(t, err)

	// The terminal poll consumed the server-side entry; a long-running server
	// must not keep finished operations around.
	_, err = f.client.Wait(ctx, &ports.RemoteOperation{ID: op.ID})
	require.ErrorIs(t, err, domain.ErrOperationNotFound)
}

func TestClient_SubmitRetriedOnInfrastructureFailure(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"op-1","done":false}`))
	}))
	defer ts.Close()

	client := newStubClient(t, ts.URL, 3)
	op, err := client.Execute(context.Background(), &domain.ProcessRequest{Argv: []string{"go", "build"}})
	require.NoError(t, err)
	require.Equal(t, "op-1", op.ID)
	require.EqualValues(t, 3, calls.Load())
}

func TestClient_CancelUnknownOperationIsNoop(t *testing.T) {
	f := newFixture(t, nil)

	err := f.client.Cancel(context.Background(), &ports.RemoteOperation{ID: "gone"})
	require.NoError(t, err)
}

func TestClient_ClassifiesInfrastructureFailures(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusBadGateway} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		client := newStubClient(t, ts.URL, 1)
		_, err := client.FindMissingBlobs(context.Background(), []domain.Digest{domain.NewDigest([]byte("x"))})
		require.ErrorIs(t, err, domain.ErrRemoteInfrastructure, "status %d", status)
		ts.Close()
	}
}

func TestClient_RequestErrorsFailFast(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	client := newStubClient(t, ts.URL, 5)
	_, err := client.FindMissingBlobs(context.Background(), []domain.Digest{domain.NewDigest([]byte("x"))})
	require.ErrorIs(t, err, domain.ErrRemoteRequest)
	require.EqualValues(t, 1, calls.Load(), "request rejections must not be retried")
}

func TestClient_TransientFailuresRetried(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"missing":[]}`))
	}))
	defer ts.Close()

	client := newStubClient(t, ts.URL, 3)
	missing, err := client.FindMissingBlobs(context.Background(), []domain.Digest{domain.NewDigest([]byte("x"))})
	require.NoError(t, err)
	require.Empty(t, missing)
	require.EqualValues(t, 3, calls.Load())
}

func newStubClient(t *testing.T, url string, attempts int) *remote.Client {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()

	return remote.NewClient(&domain.RemoteConfig{
		Address:      url,
		Attempts:     attempts,
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
	}, mockLogger)
}
