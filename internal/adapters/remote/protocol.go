// Package remote implements the JSON-over-HTTP remote execution protocol:
// the client used by the scheduler and the server behind `forge serve`.
//
// Routes:
//
//	POST   /v1/blobs/missing        batched existence check
//	PUT    /v1/blobs/{hash}/{size}  upload one blob
//	GET    /v1/blobs/{hash}/{size}  download one blob
//	POST   /v1/executions           submit an execution
//	GET    /v1/operations/{id}      poll an operation
//	DELETE /v1/operations/{id}      cancel an operation
package remote

import "go.trai.ch/forge/internal/core/domain"

type missingBlobsRequest struct {
	Instance string          `json:"instance,omitempty"`
	Digests  []domain.Digest `json:"digests"`
}

type missingBlobsResponse struct {
	Missing []domain.Digest `json:"missing"`
}

type executeRequest struct {
	Instance string                `json:"instance,omitempty"`
	Request  domain.ProcessRequest `json:"request"`
}

// operationResponse is returned by both the submit and poll endpoints. Result
// is set iff Done is true and the execution succeeded; Error carries a
// terminal failure message.
type operationResponse struct {
	ID     string                `json:"id"`
	Done   bool                  `json:"done"`
	Result *domain.ProcessResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
