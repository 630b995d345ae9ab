// Package app implements the application layer for forge.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.trai.ch/forge/internal/adapters/remote"
	"go.trai.ch/forge/internal/adapters/watcher"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/rules"
	"go.trai.ch/forge/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// CommandOutput is the output type produced by the built-in command rule.
// Its single parameter is the command name from forge.yaml.
const CommandOutput = "command_result"

// App represents the main application logic.
type App struct {
	cfg       *domain.Config
	scheduler *scheduler.Scheduler
	registry  *rules.Registry
	store     ports.BlobStore
	actions   ports.ActionCache
	executor  ports.ProcessExecutor
	watcher   ports.Watcher
	logger    ports.Logger

	stdout io.Writer
}

// New creates a new App instance and installs the built-in command rule.
func New(
	cfg *domain.Config,
	sched *scheduler.Scheduler,
	registry *rules.Registry,
	store ports.BlobStore,
	actions ports.ActionCache,
	executor ports.ProcessExecutor,
	watch ports.Watcher,
	log ports.Logger,
) (*App, error) {
	a := &App{
		cfg:       cfg,
		scheduler: sched,
		registry:  registry,
		store:     store,
		actions:   actions,
		executor:  executor,
		watcher:   watch,
		logger:    log,
		stdout:    os.Stdout,
	}

	err := registry.Register(rules.Rule{
		Output: CommandOutput,
		Params: []string{"command_name"},
		Body:   a.commandRule,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// WithStdout redirects command stdout, primarily for testing.
func (a *App) WithStdout(w io.Writer) *App {
	a.stdout = w
	return a
}

// Run executes the named command once and materializes its outputs into the
// workspace.
func (a *App) Run(ctx context.Context, commandName string) error {
	start := time.Now()
	result, err := a.runOnce(ctx, commandName)
	if err != nil {
		return err
	}

	stats := a.scheduler.Stats()
	a.logger.Info("run finished",
		"command", commandName,
		"exit_code", result.ExitCode,
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"nodes", stats.NodesComputed,
		"cache_hits", stats.ActionCacheHits,
		"local", stats.LocalExecutions,
		"remote", stats.RemoteExecutions,
		"fallbacks", stats.RemoteFallbacks,
	)
	return nil
}

// Watch runs the command once, then re-runs it whenever watched files change.
// It returns when the context is canceled.
func (a *App) Watch(ctx context.Context, commandName string) error {
	if _, err := a.runOnce(ctx, commandName); err != nil {
		a.logger.Error(err)
	}

	trigger := make(chan struct{}, 1)
	debouncer := watcher.NewDebouncer(a.cfg.DebounceWindow, func(paths []string) {
		a.scheduler.Invalidate(paths)
		select {
		case trigger <- struct{}{}:
		default:
		}
	})

	if err := a.watcher.Start(ctx, a.cfg.Root); err != nil {
		return zerr.Wrap(err, "failed to start watcher")
	}
	defer func() {
		_ = a.watcher.Stop()
	}()

	go func() {
		for event := range a.watcher.Events() {
			rel, err := filepath.Rel(a.cfg.Root, event.Path)
			if err != nil {
				continue
			}
			debouncer.Add(filepath.ToSlash(rel))
		}
	}()

	a.logger.Info("watching for changes", "root", a.cfg.Root)
	for {
		select {
		case <-ctx.Done():
			// Queued events still invalidate the graph, so the next run after a
			// restart works from an accurate picture.
			debouncer.Flush()
			return ctx.Err()
		case <-trigger:
			if _, err := a.runOnce(ctx, commandName); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.Error(err)
			}
			dropped := a.scheduler.Prune()
			a.logger.Debug("pruned superseded nodes", "count", dropped)
		}
	}
}

// Serve runs the remote execution service on the given address until the
// context is canceled.
func (a *App) Serve(ctx context.Context, addr string) error {
	actionDB, err := remote.OpenActionDB(ctx, filepath.Join(a.cfg.StoreDir, domain.ActionsDBName))
	if err != nil {
		return zerr.Wrap(err, "failed to open action database")
	}
	defer func() {
		_ = actionDB.Close()
	}()

	server := remote.NewServer(addr, a.store, a.executor, actionDB, a.cfg.Parallelism, a.logger)
	a.logger.Info("serving remote execution", "addr", addr)
	return server.Start(ctx)
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	// All removes the entire store directory instead of reclaiming.
	All bool

	// MaxBytes bounds the action cache size after reclamation. Zero disables
	// the bound.
	MaxBytes int64

	// MaxAge drops action cache entries older than this. Zero disables the bound.
	MaxAge time.Duration
}

// Clean removes or reclaims cache and store artifacts.
func (a *App) Clean(ctx context.Context, options CleanOptions) error {
	if options.All {
		a.logger.Info("removing store", "dir", a.cfg.StoreDir)
		if err := os.RemoveAll(a.cfg.StoreDir); err != nil {
			return zerr.Wrap(err, "failed to remove store")
		}
		return nil
	}

	if err := a.actions.Reclaim(options.MaxBytes, options.MaxAge); err != nil {
		return zerr.Wrap(err, "failed to reclaim action cache")
	}

	dbPath := filepath.Join(a.cfg.StoreDir, domain.ActionsDBName)
	if _, err := os.Stat(dbPath); err == nil {
		if err := a.reclaimActionDB(ctx, dbPath, options.MaxAge); err != nil {
			return err
		}
	}

	a.logger.Info("action cache reclaimed")
	return nil
}

func (a *App) reclaimActionDB(ctx context.Context, dbPath string, maxAge time.Duration) error {
	actionDB, err := remote.OpenActionDB(ctx, dbPath)
	if err != nil {
		return zerr.Wrap(err, "failed to open action database")
	}
	defer func() {
		_ = actionDB.Close()
	}()

	rows, err := actionDB.Reclaim(ctx, maxAge)
	if err != nil {
		return zerr.Wrap(err, "failed to reclaim action database")
	}
	a.logger.Debug("reclaimed action database rows", "count", rows)
	return nil
}

// runOnce demands the command's result from the scheduler, streams its stdout,
// and materializes its output tree into the workspace.
func (a *App) runOnce(ctx context.Context, commandName string) (domain.ProcessResult, error) {
	value, err := a.scheduler.Run(ctx, CommandOutput, commandName)
	if err != nil {
		return domain.ProcessResult{}, err
	}

	result, ok := value.(domain.ProcessResult)
	if !ok {
		return domain.ProcessResult{}, zerr.New("unexpected command rule value")
	}

	if !result.Stdout.IsZero() && result.Stdout.SizeBytes > 0 {
		content, err := a.store.Get(result.Stdout)
		if err != nil {
			return domain.ProcessResult{}, zerr.Wrap(err, "failed to read command stdout")
		}
		if _, err := a.stdout.Write(content); err != nil {
			return domain.ProcessResult{}, zerr.Wrap(err, "failed to write command stdout")
		}
	}

	if !result.OutputTree.IsZero() {
		if err := a.materializeOutputs(result.OutputTree); err != nil {
			return domain.ProcessResult{}, err
		}
	}
	return result, nil
}

// commandRule is the built-in rule backing Run and Watch. Its dependency set
// is exactly the command's declared inputs, so unrelated file changes never
// re-run the command.
func (a *App) commandRule(ctx context.Context, rc *rules.Context) (any, error) {
	commandName, ok := rc.Param(0).(string)
	if !ok {
		return nil, zerr.New("command rule expects a command name parameter")
	}

	command, ok := a.cfg.Commands[commandName]
	if !ok {
		return nil, zerr.With(domain.ErrCommandNotFound, "command", commandName)
	}

	tree := domain.NewTree()
	for _, input := range command.Inputs {
		if err := a.collectInput(ctx, rc, tree, input); err != nil {
			return nil, err
		}
	}

	var inputRoot domain.Digest
	if tree.Len() > 0 {
		digest, err := rc.Store().PutTree(tree)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to store input tree")
		}
		inputRoot = digest
	}

	return rc.Execute(ctx, &domain.ProcessRequest{
		Argv:        command.Argv,
		Env:         command.Env,
		InputRoot:   inputRoot,
		OutputPaths: command.Outputs,
		Timeout:     command.Timeout,
		Description: commandName,
	})
}

// collectInput adds the file at relPath, or every file under it when it is a
// directory, to the input tree. All reads route through rc so they become
// recorded dependencies.
func (a *App) collectInput(ctx context.Context, rc *rules.Context, tree *domain.Tree, relPath string) error {
	absPath := filepath.Join(a.cfg.Root, filepath.FromSlash(relPath))
	info, err := os.Lstat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zerr.With(domain.ErrInputNotFound, "path", relPath)
		}
		return zerr.With(zerr.Wrap(err, "failed to stat input"), "path", relPath)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(absPath)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to read symlink"), "path", relPath)
		}
		tree.Put(relPath, domain.TreeEntry{Target: target})
		return nil

	case info.IsDir():
		names, err := rc.ListDir(ctx, relPath)
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := a.collectInput(ctx, rc, tree, path.Join(relPath, name)); err != nil {
				return err
			}
		}
		return nil

	default:
		digest, err := rc.Digest(ctx, relPath)
		if err != nil {
			return err
		}
		tree.Put(relPath, domain.TreeEntry{
			Digest:     digest,
			Executable: info.Mode()&0o111 != 0,
		})
		return nil
	}
}

// materializeOutputs writes the tree's entries into the workspace.
func (a *App) materializeOutputs(treeDigest domain.Digest) error {
	tree, err := a.store.GetTree(treeDigest)
	if err != nil {
		return zerr.Wrap(err, "failed to load output tree")
	}

	for _, relPath := range tree.Paths() {
		entry, _ := tree.Get(relPath)
		absPath := filepath.Join(a.cfg.Root, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(absPath), domain.DirPerm); err != nil {
			return zerr.Wrap(err, "failed to create output directory")
		}

		if entry.IsSymlink() {
			if err := os.Remove(absPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return zerr.Wrap(err, "failed to replace output symlink")
			}
			if err := os.Symlink(entry.Target, absPath); err != nil {
				return zerr.Wrap(err, "failed to write output symlink")
			}
			continue
		}

		content, err := a.store.Get(entry.Digest)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to read output blob"), "path", relPath)
		}

		perm := os.FileMode(domain.FilePerm)
		if entry.Executable {
			perm |= 0o111
		}
		if err := os.WriteFile(absPath, content, perm); err != nil {
			return zerr.Wrap(err, fmt.Sprintf("failed to write output %s", relPath))
		}
	}

	a.logger.Debug("materialized outputs", "count", tree.Len())
	return nil
}
