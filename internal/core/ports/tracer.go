package ports

import "context"

// Span is one traced unit of work.
type Span interface {
	End()
	RecordError(err error)
	SetAttribute(key string, value any)
}

// Tracer creates spans around node computations and remote calls.
//
//go:generate mockgen -source=tracer.go -destination=mocks/mock_tracer.go -package=mocks
type Tracer interface {
	// Start begins a span; the returned context carries it for child spans.
	Start(ctx context.Context, name string) (context.Context, Span)
}
