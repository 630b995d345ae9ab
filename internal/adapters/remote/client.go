package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.RemoteClient = (*Client)(nil)

// errNotDone signals the poll loop that the operation is still running.
var errNotDone = errors.New("operation not done")

// Client talks to a remote execution service. Transport-level failures and
// 429/5xx responses are reported as domain.ErrRemoteInfrastructure; other 4xx
// responses as domain.ErrRemoteRequest.
type Client struct {
	baseURL  string
	instance string
	http     *http.Client

	attempts        uint64
	batchMaxDigests int
	batchMaxBytes   int64
	pollInterval    time.Duration
	timeout         time.Duration

	logger ports.Logger
}

// NewClient creates a client for the service configured in cfg.
func NewClient(cfg *domain.RemoteConfig, logger ports.Logger) *Client {
	return &Client{
		baseURL:         strings.TrimRight(cfg.Address, "/"),
		instance:        cfg.Instance,
		http:            &http.Client{},
		attempts:        uint64(max(cfg.Attempts, 1)), //nolint:gosec // Validated positive by config
		batchMaxDigests: cfg.BatchMaxDigests,
		batchMaxBytes:   cfg.BatchMaxBytes,
		pollInterval:    cfg.PollInterval,
		timeout:         cfg.Timeout,
		logger:          logger,
	}
}

// FindMissingBlobs queries which digests the service lacks. The query is
// partitioned into batches bounded by both digest count and payload bytes;
// the union of per-batch answers equals the unbatched answer.
func (c *Client) FindMissingBlobs(ctx context.Context, digests []domain.Digest) ([]domain.Digest, error) {
	var missing []domain.Digest
	for _, batch := range c.partition(digests) {
		req := missingBlobsRequest{Instance: c.instance, Digests: batch}

		var resp missingBlobsResponse
		err := c.retryTransient(ctx, func() error {
			_, err := c.doJSON(ctx, http.MethodPost, "/v1/blobs/missing", req, &resp)
			return err
		})
		if err != nil {
			return nil, err
		}
		missing = append(missing, resp.Missing...)
	}
	return missing, nil
}

// partition splits digests into batches respecting both bounds. A single
// digest always fits: bounds below one digest would make progress impossible.
func (c *Client) partition(digests []domain.Digest) [][]domain.Digest {
	maxCount := c.batchMaxDigests
	if maxCount <= 0 {
		maxCount = len(digests)
	}

	var (
		batches [][]domain.Digest
		current []domain.Digest
		bytes   int64
	)
	for _, d := range digests {
		cost := digestWireCost(d)
		full := len(current) >= maxCount ||
			(c.batchMaxBytes > 0 && len(current) > 0 && bytes+cost > c.batchMaxBytes)
		if full {
			batches = append(batches, current)
			current, bytes = nil, 0
		}
		current = append(current, d)
		bytes += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// digestWireCost estimates the JSON-encoded size of one digest entry.
func digestWireCost(d domain.Digest) int64 {
	return int64(len(d.Hash)) + 48
}

// UploadBlob uploads one blob. Uploading a blob the service already has is a
// no-op on the server side.
func (c *Client) UploadBlob(ctx context.Context, digest domain.Digest, content []byte) error {
	return c.retryTransient(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+blobPath(digest), bytes.NewReader(content))
		if err != nil {
			return zerr.Wrap(err, "failed to build upload request")
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := c.http.Do(req)
		if err != nil {
			return zerr.With(domain.ErrRemoteInfrastructure, "cause", err.Error())
		}
		defer resp.Body.Close() //nolint:errcheck // Best effort close

		_, cerr := classifyStatus(resp)
		return cerr
	})
}

// DownloadBlob fetches one blob and verifies its content hash.
func (c *Client) DownloadBlob(ctx context.Context, digest domain.Digest) ([]byte, error) {
	var content []byte
	err := c.retryTransient(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+blobPath(digest), nil)
		if err != nil {
			return zerr.Wrap(err, "failed to build download request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return zerr.With(domain.ErrRemoteInfrastructure, "cause", err.Error())
		}
		defer resp.Body.Close() //nolint:errcheck // Best effort close

		if _, cerr := classifyStatus(resp); cerr != nil {
			return cerr
		}

		content, err = io.ReadAll(resp.Body)
		if err != nil {
			return zerr.With(domain.ErrRemoteInfrastructure, "cause", err.Error())
		}

		// A corrupt payload is a service fault, so it stays retryable.
		if got := domain.NewDigest(content); got != digest {
			content = nil
			return zerr.With(zerr.With(domain.ErrRemoteInfrastructure, "want", digest.String()), "got", got.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Execute submits the request. The returned operation carries a result when
// the service answered synchronously from its own cache.
func (c *Client) Execute(ctx context.Context, request *domain.ProcessRequest) (*ports.RemoteOperation, error) {
	req := executeRequest{Instance: c.instance, Request: *request}

	var resp operationResponse
	err := c.retryTransient(ctx, func() error {
		_, derr := c.doJSON(ctx, http.MethodPost, "/v1/executions", req, &resp)
		return derr
	})
	if err != nil {
		return nil, err
	}
	if resp.Done && resp.Error != "" {
		return nil, zerr.With(zerr.With(domain.ErrRemoteRequest, "operation", resp.ID), "cause", resp.Error)
	}

	op := &ports.RemoteOperation{ID: resp.ID}
	if resp.Done {
		op.Result = resp.Result
	}
	return op, nil
}

// Wait polls the operation with exponential backoff until it terminates.
func (c *Client) Wait(ctx context.Context, op *ports.RemoteOperation) (domain.ProcessResult, error) {
	if op.Result != nil {
		return *op.Result, nil
	}

	var result domain.ProcessResult
	poll := func() error {
		var resp operationResponse
		status, err := c.doJSON(ctx, http.MethodGet, "/v1/operations/"+op.ID, nil, &resp)
		if err != nil {
			if status == http.StatusNotFound {
				return backoff.Permanent(zerr.With(domain.ErrOperationNotFound, "operation", op.ID))
			}
			if errors.Is(err, domain.ErrRemoteRequest) {
				return backoff.Permanent(err)
			}
			return err
		}
		if !resp.Done {
			return errNotDone
		}
		if resp.Error != "" {
			return backoff.Permanent(zerr.With(zerr.With(domain.ErrRemoteRequest, "operation", op.ID), "cause", resp.Error))
		}
		if resp.Result == nil {
			return backoff.Permanent(zerr.With(zerr.With(domain.ErrRemoteRequest, "operation", op.ID), "cause", "done without result"))
		}
		result = *resp.Result
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.pollInterval
	bo.MaxElapsedTime = c.timeout
	if err := backoff.Retry(poll, backoff.WithContext(bo, ctx)); err != nil {
		if errors.Is(err, errNotDone) {
			return domain.ProcessResult{}, zerr.With(domain.ErrTimeout, "operation", op.ID)
		}
		return domain.ProcessResult{}, err
	}
	return result, nil
}

// Cancel abandons an in-flight operation. Cancelling an unknown operation is
// not an error: it already reached a terminal state.
func (c *Client) Cancel(ctx context.Context, op *ports.RemoteOperation) error {
	status, err := c.doJSON(ctx, http.MethodDelete, "/v1/operations/"+op.ID, nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// retryTransient retries op on infrastructure-classified failures only.
func (c *Client) retryTransient(ctx context.Context, op func() error) error {
	attempt := func() error {
		err := op()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrRemoteInfrastructure):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, c.attempts-1), ctx))
}

// doJSON performs one JSON request/response round trip. The returned status
// is zero when the request never reached the service.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return 0, zerr.Wrap(err, "failed to encode request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, zerr.Wrap(err, "failed to build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, zerr.With(domain.ErrRemoteInfrastructure, "cause", err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close

	status, cerr := classifyStatus(resp)
	if cerr != nil {
		return status, cerr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return status, zerr.With(domain.ErrRemoteInfrastructure, "cause", err.Error())
		}
	}
	return status, nil
}

// classifyStatus maps a response status to the error taxonomy. The response
// body of a failed call may carry a structured error message.
func classifyStatus(resp *http.Response) (int, error) {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return status, nil
	}

	msg := http.StatusText(status)
	var decoded errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil && decoded.Error != "" {
		msg = decoded.Error
	}

	if status == http.StatusTooManyRequests || status >= 500 {
		return status, zerr.With(zerr.With(domain.ErrRemoteInfrastructure, "status", status), "cause", msg)
	}
	return status, zerr.With(zerr.With(domain.ErrRemoteRequest, "status", status), "cause", msg)
}

func blobPath(d domain.Digest) string {
	return fmt.Sprintf("/v1/blobs/%s/%d", d.Hash, d.SizeBytes)
}
