package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/telemetry"
	"go.trai.ch/forge/internal/app"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports/mocks"
	"go.trai.ch/forge/internal/engine/rules"
	"go.trai.ch/forge/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

// newComponents builds real application components over mocks, enough for
// commands that never touch the engine.
func newComponents(t *testing.T) *app.Components {
	t.Helper()
	ctrl := gomock.NewController(t)

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Error(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().SetDebug(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().SetJSON(gomock.Any()).AnyTimes()

	mockStore := mocks.NewMockBlobStore(ctrl)
	mockCache := mocks.NewMockActionCache(ctrl)
	mockExecutor := mocks.NewMockProcessExecutor(ctrl)

	cfg := &domain.Config{Root: t.TempDir(), Parallelism: 1}
	cfg.StoreDir = domain.DefaultStorePath(cfg.Root)

	registry := rules.NewRegistry()
	sched := scheduler.NewScheduler(
		registry,
		mockStore,
		mockCache,
		mockExecutor,
		nil,
		telemetry.NewNoOpTracer(),
		mockLogger,
		cfg.Root,
		cfg.Parallelism,
	)

	application, err := app.New(cfg, sched, registry, mockStore, mockCache, mockExecutor, nil, mockLogger)
	require.NoError(t, err)

	return &app.Components{App: application, Config: cfg, Logger: mockLogger}
}

func TestRun_Success(t *testing.T) {
	components := newComponents(t)
	provider := func(_ context.Context) (*app.Components, error) {
		return components, nil
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)
	assert.Equal(t, 0, exitCode)
}

func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, error) {
		return nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "init failed")
}

func TestRun_CommandError(t *testing.T) {
	components := newComponents(t)
	provider := func(_ context.Context) (*app.Components, error) {
		return components, nil
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"run", "nonexistent"}, stderr, provider)
	assert.Equal(t, 1, exitCode)
}
