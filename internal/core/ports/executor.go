package ports

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
)

// ProcessExecutor runs a single process described by a ProcessRequest.
//
// A non-zero exit is not an error: the result carries the exit code and the
// caller decides what it means. Errors are reserved for failures to run the
// process at all, a timeout being reported as domain.ErrTimeout.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type ProcessExecutor interface {
	Execute(ctx context.Context, req *domain.ProcessRequest) (domain.ProcessResult, error)
}
