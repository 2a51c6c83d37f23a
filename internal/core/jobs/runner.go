package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"recipe-importer/internal/core/pipeline"
	"recipe-importer/internal/core/store"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// Runner is the worker pool draining the import queue. Each worker handles
// one job at a time; import flows run here and never inline in a request.
type Runner struct {
	queue    *Queue
	pipeline *pipeline.Pipeline
	workers  int

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	processed int64
	failed    int64
}

// NewRunner creates a runner over the given queue and pipeline.
func NewRunner(cfg *config.Config, queue *Queue, p *pipeline.Pipeline) *Runner {
	return &Runner{
		queue:    queue,
		pipeline: p,
		workers:  cfg.Queue.Workers,
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	common.LogInfo("Import workers started",
		zap.Int("workers", r.workers),
	)
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	common.LogInfo("Import workers stopped",
		zap.Int64("processed", atomic.LoadInt64(&r.processed)),
		zap.Int64("failed", atomic.LoadInt64(&r.failed)),
	)
}

// Status reports runner counters for the health endpoint.
func (r *Runner) Status() map[string]interface{} {
	return map[string]interface{}{
		"workers":   r.workers,
		"processed": atomic.LoadInt64(&r.processed),
		"failed":    atomic.LoadInt64(&r.failed),
	}
}

func (r *Runner) worker(ctx context.Context, index int) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		id, payload, err := r.queue.dequeue(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			common.LogError("Dequeue failed",
				zap.Int("worker", index),
				zap.Error(err),
			)
			time.Sleep(time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		r.process(ctx, id, payload)
	}
}

func (r *Runner) process(ctx context.Context, id string, payload *Payload) {
	start := time.Now()
	r.queue.markStarted(ctx, id)

	saved, err := r.execute(ctx, payload)
	if err != nil {
		code, message := common.ImportCodeOf(err)
		r.queue.markFailed(ctx, id, code, message)
		atomic.AddInt64(&r.failed, 1)
		common.LogError("Import job failed",
			zap.String("job_id", id),
			zap.String("flow", payload.Flow),
			zap.String("error_code", code),
			zap.Error(err),
		)
		return
	}

	r.queue.markFinished(ctx, id, saved.ID, saved.Title)
	atomic.AddInt64(&r.processed, 1)
	common.LogInfo("Import job finished",
		zap.String("job_id", id),
		zap.String("flow", payload.Flow),
		zap.String("recipe_id", saved.ID),
		zap.Duration("duration", time.Since(start)),
	)
}

func (r *Runner) execute(ctx context.Context, payload *Payload) (*store.Recipe, error) {
	opts := pipeline.Options{
		TransformVegan:     payload.TransformVegan,
		CustomInstructions: payload.CustomInstructions,
		CustomTitle:        payload.CustomTitle,
		UseLLM:             payload.UseLLM,
	}

	switch payload.Flow {
	case FlowURL:
		return r.pipeline.FromURL(ctx, payload.URL, payload.UserRef, opts)
	case FlowImage:
		images := make([][]byte, 0, len(payload.Uploads))
		for _, upload := range payload.Uploads {
			images = append(images, upload.Data)
		}
		return r.pipeline.FromImages(ctx, images, payload.UserRef, opts)
	case FlowDocument:
		return r.pipeline.FromDocuments(ctx, payload.Uploads, payload.UserRef, opts)
	case FlowMixed:
		return r.pipeline.FromMixed(ctx, payload.Uploads, payload.UserRef, opts)
	case FlowText:
		return r.pipeline.FromText(ctx, payload.Text, payload.UserRef, opts)
	default:
		return nil, fmt.Errorf("unknown flow %q", payload.Flow)
	}
}
