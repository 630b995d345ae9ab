// Package local implements process execution on the local machine.
package local

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ProcessExecutor = (*Executor)(nil)

// Executor runs processes in a scratch directory materialized from the blob
// store and collects declared outputs back into it.
type Executor struct {
	store  ports.BlobStore
	logger ports.Logger
}

// NewExecutor creates an executor backed by the given blob store.
func NewExecutor(store ports.BlobStore, logger ports.Logger) *Executor {
	return &Executor{store: store, logger: logger}
}

// Execute runs the request and returns its result. A non-zero exit code is
// reported in the result, not as an error; a deadline overrun is reported as
// domain.ErrTimeout.
func (e *Executor) Execute(ctx context.Context, req *domain.ProcessRequest) (domain.ProcessResult, error) {
	if len(req.Argv) == 0 {
		return domain.ProcessResult{}, zerr.New("empty argv")
	}

	scratch, err := os.MkdirTemp("", "forge-exec-*")
	if err != nil {
		return domain.ProcessResult{}, zerr.Wrap(err, "failed to create scratch directory")
	}
	defer os.RemoveAll(scratch) //nolint:errcheck // Best effort cleanup

	if err := e.materialize(scratch, req.InputRoot); err != nil {
		return domain.ProcessResult{}, err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	//nolint:gosec // Argv comes from registered rules, not untrusted input
	cmd := exec.CommandContext(ctx, req.Argv[0], req.Argv[1:]...)
	cmd.Dir = scratch
	cmd.Env = buildEnv(req.Env)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("spawning process", "process", describe(req))
	runErr := cmd.Run()

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.ProcessResult{}, zerr.With(domain.ErrTimeout, "timeout", req.Timeout.String())
		}
		return domain.ProcessResult{}, ctx.Err()
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return domain.ProcessResult{}, zerr.Wrap(runErr, "failed to start process")
		}
		exitCode = exitErr.ExitCode()
	}

	result := domain.ProcessResult{ExitCode: exitCode}
	if result.Stdout, err = e.store.Put(stdout.Bytes()); err != nil {
		return domain.ProcessResult{}, err
	}
	if result.Stderr, err = e.store.Put(stderr.Bytes()); err != nil {
		return domain.ProcessResult{}, err
	}

	// Outputs are collected even on failure so stderr-adjacent artifacts such
	// as log files survive for diagnosis.
	if result.OutputTree, err = e.collectOutputs(scratch, req.OutputPaths); err != nil {
		return domain.ProcessResult{}, err
	}

	return result, nil
}

// materialize writes the input tree into the scratch directory.
func (e *Executor) materialize(scratch string, inputRoot domain.Digest) error {
	if inputRoot.IsZero() {
		return nil
	}

	tree, err := e.store.GetTree(inputRoot)
	if err != nil {
		return err
	}

	for _, path := range tree.Paths() {
		entry, _ := tree.Get(path)
		target := filepath.Join(scratch, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
			return zerr.Wrap(err, "failed to create input directory")
		}

		if entry.IsSymlink() {
			if err := os.Symlink(entry.Target, target); err != nil {
				return zerr.Wrap(err, "failed to create input symlink")
			}
			continue
		}

		content, err := e.store.Get(entry.Digest)
		if err != nil {
			return err
		}

		perm := os.FileMode(domain.FilePerm)
		if entry.Executable {
			perm |= 0o111
		}
		if err := os.WriteFile(target, content, perm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to write input file"), "path", path)
		}
	}
	return nil
}

// collectOutputs snapshots the declared output paths from the scratch
// directory into the blob store and returns the output tree digest.
func (e *Executor) collectOutputs(scratch string, outputPaths []string) (domain.Digest, error) {
	tree := domain.NewTree()

	sorted := make([]string, len(outputPaths))
	copy(sorted, outputPaths)
	sort.Strings(sorted)

	for _, out := range sorted {
		abs := filepath.Join(scratch, filepath.FromSlash(out))
		info, err := os.Lstat(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// A declared but unproduced output is not an execution error;
				// the consumer of the tree decides whether it is fatal.
				continue
			}
			return domain.Digest{}, zerr.Wrap(err, "failed to stat output")
		}

		if info.IsDir() {
			if err := e.snapshotDir(tree, scratch, abs); err != nil {
				return domain.Digest{}, err
			}
			continue
		}
		if err := e.snapshotFile(tree, scratch, abs, info); err != nil {
			return domain.Digest{}, err
		}
	}

	if tree.Len() == 0 {
		return domain.Digest{}, nil
	}
	return e.store.PutTree(tree)
}

func (e *Executor) snapshotDir(tree *domain.Tree, scratch, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return zerr.Wrap(err, "failed to walk output directory")
		}
		if info.IsDir() {
			return nil
		}
		return e.snapshotFile(tree, scratch, path, info)
	})
}

func (e *Executor) snapshotFile(tree *domain.Tree, scratch, path string, info os.FileInfo) error {
	rel, err := filepath.Rel(scratch, path)
	if err != nil {
		return zerr.Wrap(err, "failed to resolve output path")
	}
	rel = filepath.ToSlash(rel)

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return zerr.Wrap(err, "failed to read output symlink")
		}
		tree.Put(rel, domain.TreeEntry{Target: target})
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read output file"), "path", rel)
	}
	digest, err := e.store.Put(content)
	if err != nil {
		return err
	}

	tree.Put(rel, domain.TreeEntry{
		Digest:     digest,
		Executable: info.Mode()&0o111 != 0,
	})
	return nil
}

// buildEnv produces a deterministic environment for the process. Only the
// declared variables plus a minimal PATH are passed through, keeping the
// fingerprint honest about what the process can observe.
func buildEnv(env map[string]string) []string {
	merged := map[string]string{
		"PATH": os.Getenv("PATH"),
	}
	for k, v := range env {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

// describe returns a short human-readable form of the request for logs.
func describe(req *domain.ProcessRequest) string {
	if req.Description != "" {
		return req.Description
	}
	return strings.Join(req.Argv, " ")
}
