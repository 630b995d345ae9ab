package ports

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
)

// RemoteOperation is a handle to an execution dispatched to the remote
// service. Result is non-nil when the service answered synchronously
// (typically a server-side cache hit); otherwise the caller polls via Wait.
type RemoteOperation struct {
	ID     string
	Result *domain.ProcessResult
}

// RemoteClient is the protocol client for a remote caching/execution service.
//
// Errors returned by every method are classified: domain.ErrRemoteInfrastructure
// marks retryable transport-level failures, domain.ErrRemoteRequest marks
// rejections of the request itself, which retrying cannot fix.
//
//go:generate mockgen -source=remote.go -destination=mocks/mock_remote.go -package=mocks
type RemoteClient interface {
	// FindMissingBlobs returns the subset of digests the remote side does not
	// have. The client transparently partitions the query into bounded batches;
	// batching never changes the resulting missing set.
	FindMissingBlobs(ctx context.Context, digests []domain.Digest) ([]domain.Digest, error)

	// UploadBlob uploads one blob. Re-uploading a present blob is a no-op.
	UploadBlob(ctx context.Context, digest domain.Digest, content []byte) error

	// DownloadBlob fetches one blob.
	DownloadBlob(ctx context.Context, digest domain.Digest) ([]byte, error)

	// Execute submits the request for remote execution.
	Execute(ctx context.Context, req *domain.ProcessRequest) (*RemoteOperation, error)

	// Wait polls the operation until it reaches a terminal state or ctx ends.
	Wait(ctx context.Context, op *RemoteOperation) (domain.ProcessResult, error)

	// Cancel asks the service to abandon an in-flight operation.
	Cancel(ctx context.Context, op *RemoteOperation) error
}
