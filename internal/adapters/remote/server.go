package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"golang.org/x/sync/semaphore"
)

// Server serves the remote execution protocol on top of a blob store, a
// process executor, and the action database.
type Server struct {
	addr     string
	store    ports.BlobStore
	executor ports.ProcessExecutor
	actions  *ActionDB
	logger   ports.Logger

	// sem bounds concurrently running executions; submissions beyond the
	// bound queue inside their operation goroutine.
	sem *semaphore.Weighted

	mu  sync.Mutex
	ops map[string]*operation

	server *http.Server
}

type operation struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	// Written before done is closed.
	result domain.ProcessResult
	err    error
}

// NewServer creates a server listening on addr once started.
func NewServer(addr string, store ports.BlobStore, executor ports.ProcessExecutor, actions *ActionDB, parallelism int, logger ports.Logger) *Server {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Server{
		addr:     addr,
		store:    store,
		executor: executor,
		actions:  actions,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(parallelism)),
		ops:      make(map[string]*operation),
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("remote execution server starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("remote execution server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Router builds the protocol routes. Exposed separately so tests can drive
// the server through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/blobs/missing", s.handleMissingBlobs)
		r.Put("/blobs/{hash}/{size}", s.handleUploadBlob)
		r.Get("/blobs/{hash}/{size}", s.handleDownloadBlob)
		r.Post("/executions", s.handleExecute)
		r.Get("/operations/{id}", s.handleGetOperation)
		r.Delete("/operations/{id}", s.handleCancelOperation)
	})
	return r
}

func (s *Server) handleMissingBlobs(w http.ResponseWriter, r *http.Request) {
	var req missingBlobsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	present, err := s.store.Contains(req.Digests)
	if err != nil {
		s.logger.Error(err)
		writeError(w, http.StatusInternalServerError, "blob store unavailable")
		return
	}

	missing := make([]domain.Digest, 0)
	for _, d := range req.Digests {
		if !present[d] {
			missing = append(missing, d)
		}
	}
	writeJSON(w, http.StatusOK, missingBlobsResponse{Missing: missing})
}

func (s *Server) handleUploadBlob(w http.ResponseWriter, r *http.Request) {
	want, ok := digestFromURL(w, r)
	if !ok {
		return
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read blob content")
		return
	}
	if got := domain.NewDigest(content); got != want {
		writeError(w, http.StatusBadRequest, "content does not match digest")
		return
	}

	if _, err := s.store.Put(content); err != nil {
		s.logger.Error(err)
		writeError(w, http.StatusInternalServerError, "failed to store blob")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadBlob(w http.ResponseWriter, r *http.Request) {
	digest, ok := digestFromURL(w, r)
	if !ok {
		return
	}

	content, err := s.store.Get(digest)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blob not found")
			return
		}
		s.logger.Error(err)
		writeError(w, http.StatusInternalServerError, "failed to read blob")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Request.Argv) == 0 {
		writeError(w, http.StatusBadRequest, "empty argv")
		return
	}

	fingerprint := req.Request.Fingerprint()

	// Serve from the action index when possible. Results referencing evicted
	// blobs are treated as misses so clients never receive dangling digests.
	if req.Request.CachePolicy != domain.CacheNever {
		if cached, err := s.actions.Get(r.Context(), req.Instance, fingerprint); err == nil && cached != nil {
			if ok, _ := s.blobsPresent(cached); ok {
				writeJSON(w, http.StatusOK, operationResponse{
					ID:     uuid.NewString(),
					Done:   true,
					Result: cached,
				})
				return
			}
		}
	}

	op := &operation{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	op.cancel = cancel

	s.mu.Lock()
	s.ops[op.id] = op
	s.mu.Unlock()

	go s.runOperation(ctx, op, req)

	writeJSON(w, http.StatusAccepted, operationResponse{ID: op.id})
}

func (s *Server) runOperation(ctx context.Context, op *operation, req executeRequest) {
	defer op.cancel()

	op.result, op.err = s.execute(ctx, req)
	if op.err != nil {
		s.logger.Warn("remote execution failed", "operation", op.id, "error", op.err.Error())
	}
	close(op.done)
}

func (s *Server) execute(ctx context.Context, req executeRequest) (domain.ProcessResult, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return domain.ProcessResult{}, err
	}
	defer s.sem.Release(1)

	result, err := s.executor.Execute(ctx, &req.Request)
	if err != nil {
		return domain.ProcessResult{}, err
	}

	policy := req.Request.CachePolicy
	if policy == domain.CacheAlways || (policy == domain.CacheSuccess && result.ExitCode == 0) {
		if err := s.actions.Put(ctx, req.Instance, req.Request.Fingerprint(), result); err != nil {
			s.logger.Warn("failed to index action result", "error", err.Error())
		}
	}
	return result, nil
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	op, ok := s.lookupOperation(w, r)
	if !ok {
		return
	}

	select {
	case <-op.done:
	default:
		writeJSON(w, http.StatusOK, operationResponse{ID: op.id})
		return
	}

	// A terminal response is served exactly once; the entry would otherwise
	// accumulate for the lifetime of the server.
	s.mu.Lock()
	delete(s.ops, op.id)
	s.mu.Unlock()

	resp := operationResponse{ID: op.id, Done: true}
	if op.err != nil {
		resp.Error = op.err.Error()
	} else {
		resp.Result = &op.result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelOperation(w http.ResponseWriter, r *http.Request) {
	op, ok := s.lookupOperation(w, r)
	if !ok {
		return
	}

	op.cancel()

	s.mu.Lock()
	delete(s.ops, op.id)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookupOperation(w http.ResponseWriter, r *http.Request) (*operation, bool) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	op, ok := s.ops[id]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown operation")
		return nil, false
	}
	return op, true
}

// blobsPresent reports whether every blob a result references, including the
// files inside its output tree, is still in the store.
func (s *Server) blobsPresent(result *domain.ProcessResult) (bool, error) {
	digests := result.BlobDigests()
	if !result.OutputTree.IsZero() {
		tree, err := s.store.GetTree(result.OutputTree)
		if err != nil {
			return false, err
		}
		digests = append(digests, tree.Digests()...)
	}

	present, err := s.store.Contains(digests)
	if err != nil {
		return false, err
	}
	for _, d := range digests {
		if !present[d] {
			return false, nil
		}
	}
	return true, nil
}

func digestFromURL(w http.ResponseWriter, r *http.Request) (domain.Digest, bool) {
	size, err := strconv.ParseInt(chi.URLParam(r, "size"), 10, 64)
	if err != nil || size < 0 {
		writeError(w, http.StatusBadRequest, "malformed blob size")
		return domain.Digest{}, false
	}

	digest := domain.Digest{Hash: chi.URLParam(r, "hash"), SizeBytes: size}
	if _, err := domain.ParseDigest(digest.String()); err != nil {
		writeError(w, http.StatusBadRequest, "malformed blob hash")
		return domain.Digest{}, false
	}
	return digest, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
