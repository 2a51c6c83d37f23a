// Package jobs is the durable import queue: one Redis hash per job plus a
// pending list the workers pull from. Jobs expire with their TTL, which
// doubles as garbage collection for finished and abandoned entries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-importer/internal/core/extract"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	queueKey     = "import:queue"
	jobKeyPrefix = "import:job:"
)

// Flow names.
const (
	FlowURL      = "url"
	FlowImage    = "image"
	FlowDocument = "document"
	FlowMixed    = "mixed"
	FlowText     = "text"
)

// Job statuses.
const (
	StatusQueued   = "queued"
	StatusStarted  = "started"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// ErrJobNotFound is returned when a job id is unknown or already expired.
var ErrJobNotFound = errors.New("job not found")

// Payload is the opaque unit of work crossing the queue boundary. Upload
// bytes travel inside it since queued work runs outside the original
// request's lifetime.
type Payload struct {
	Flow               string           `json:"flow"`
	UserRef            string           `json:"user_ref"`
	URL                string           `json:"url,omitempty"`
	Text               string           `json:"text,omitempty"`
	UseLLM             bool             `json:"use_llm,omitempty"`
	TransformVegan     bool             `json:"transform_vegan,omitempty"`
	CustomInstructions string           `json:"custom_instructions,omitempty"`
	CustomTitle        string           `json:"custom_title,omitempty"`
	Uploads            []extract.Upload `json:"uploads,omitempty"`
}

// Job is the poll-facing view of one import.
type Job struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Flow         string `json:"flow"`
	CreatedAt    string `json:"created_at"`
	RecipeID     string `json:"recipe_id,omitempty"`
	Title        string `json:"title,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Queue enqueues and tracks import jobs in Redis.
type Queue struct {
	client *redis.Client
	jobTTL time.Duration
}

// NewQueue connects to Redis and verifies the connection.
func NewQueue(cfg *config.Config) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	common.LogInfo("Job queue connected",
		zap.String("addr", cfg.Redis.Addr),
	)
	return &Queue{client: client, jobTTL: cfg.Queue.JobTTL}, nil
}

// Close releases the Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// Enqueue stores the job hash and pushes its id onto the pending list.
func (q *Queue) Enqueue(ctx context.Context, payload *Payload) (string, error) {
	encoded, err := common.ToJSON(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	id := common.GenerateUUID()
	key := jobKey(id)

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"status":     StatusQueued,
		"flow":       payload.Flow,
		"payload":    encoded,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, key, q.jobTTL)
	pipe.LPush(ctx, queueKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	common.LogInfo("Import job queued",
		zap.String("job_id", id),
		zap.String("flow", payload.Flow),
	)
	return id, nil
}

// GetJob returns the poll view of a job.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	return &Job{
		ID:           id,
		Status:       fields["status"],
		Flow:         fields["flow"],
		CreatedAt:    fields["created_at"],
		RecipeID:     fields["recipe_id"],
		Title:        fields["title"],
		ErrorCode:    fields["error_code"],
		ErrorMessage: fields["error_message"],
	}, nil
}

// dequeue blocks until a job id is available or the timeout passes. A nil
// payload with no error means the wait timed out.
func (q *Queue) dequeue(ctx context.Context, timeout time.Duration) (string, *Payload, error) {
	result, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	id := result[1]
	encoded, err := q.client.HGet(ctx, jobKey(id), "payload").Result()
	if err != nil {
		return "", nil, fmt.Errorf("load payload for job %s: %w", id, err)
	}

	payload := &Payload{}
	if err := common.ParseJSON(encoded, payload); err != nil {
		return "", nil, fmt.Errorf("decode payload for job %s: %w", id, err)
	}
	return id, payload, nil
}

func (q *Queue) markStarted(ctx context.Context, id string) {
	if err := q.client.HSet(ctx, jobKey(id), "status", StatusStarted).Err(); err != nil {
		common.LogWarn("Failed to mark job started",
			zap.String("job_id", id),
			zap.Error(err),
		)
	}
}

func (q *Queue) markFinished(ctx context.Context, id, recipeID, title string) {
	if err := q.client.HSet(ctx, jobKey(id), map[string]interface{}{
		"status":    StatusFinished,
		"recipe_id": recipeID,
		"title":     title,
	}).Err(); err != nil {
		common.LogWarn("Failed to mark job finished",
			zap.String("job_id", id),
			zap.Error(err),
		)
	}
}

func (q *Queue) markFailed(ctx context.Context, id, code, message string) {
	if err := q.client.HSet(ctx, jobKey(id), map[string]interface{}{
		"status":        StatusFailed,
		"error_code":    code,
		"error_message": message,
	}).Err(); err != nil {
		common.LogWarn("Failed to mark job failed",
			zap.String("job_id", id),
			zap.Error(err),
		)
	}
}
