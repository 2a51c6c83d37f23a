package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"recipe-importer/internal/core/pipeline"
	"recipe-importer/internal/core/store"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(_ context.Context, _ string, _ [][]byte) (string, error) {
	return s.response, s.err
}

func testRunner(t *testing.T) (*Runner, *Queue) {
	t.Helper()
	srv := miniredis.RunT(t)
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Redis.Addr = srv.Addr()
	cfg.Queue.Workers = 1
	cfg.Queue.JobTTL = time.Hour
	cfg.Storage.DatabasePath = filepath.Join(dir, "recipes.db")
	cfg.Storage.MediaDir = filepath.Join(dir, "media")
	cfg.Image.MaxSide = 320
	cfg.Scraper.Timeout = 5 * time.Second

	queue, err := NewQueue(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	st, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := pipeline.New(cfg, &stubCompleter{}, st)
	return NewRunner(cfg, queue, p), queue
}

func TestProcessRecordsFailureCode(t *testing.T) {
	runner, queue := testRunner(t)
	ctx := context.Background()

	// Single-line text under the minimum-content threshold fails the flow
	// before any model call.
	id, err := queue.Enqueue(ctx, &Payload{
		Flow:    FlowText,
		UserRef: "user-1",
		Text:    "short single line",
	})
	require.NoError(t, err)

	gotID, payload, err := queue.dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, payload)
	require.Equal(t, id, gotID)

	runner.process(ctx, gotID, payload)

	job, err := queue.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, common.ImportCodeTooAmbiguous, job.ErrorCode)
	assert.NotEmpty(t, job.ErrorMessage)
	assert.Empty(t, job.RecipeID)
}

func TestProcessRecordsSuccess(t *testing.T) {
	runner, queue := testRunner(t)
	ctx := context.Background()

	id, err := queue.Enqueue(ctx, &Payload{
		Flow:    FlowText,
		UserRef: "user-1",
		Text:    "Tacos\nHeat pan\nAdd filling\nServe",
	})
	require.NoError(t, err)

	gotID, payload, err := queue.dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, payload)

	runner.process(ctx, gotID, payload)

	job, err := queue.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, job.Status)
	assert.Equal(t, "Tacos", job.Title)
	assert.NotEmpty(t, job.RecipeID)
	assert.Empty(t, job.ErrorCode)
}

func TestProcessUnknownFlowFailsGeneric(t *testing.T) {
	runner, queue := testRunner(t)
	ctx := context.Background()

	id, err := queue.Enqueue(ctx, &Payload{Flow: "carrier-pigeon", UserRef: "user-1"})
	require.NoError(t, err)

	gotID, payload, err := queue.dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, payload)

	runner.process(ctx, gotID, payload)

	job, err := queue.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, common.ImportCodeGeneric, job.ErrorCode)
}
