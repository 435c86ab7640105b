package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/thwithaphisek/student-behavior-api/internal/models"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
)

const reportJobKeyPrefix = "report:job:"

// ReportJobRepository persists report job state in Redis. Jobs expire with
// their TTL so stale entries clean themselves up without a sweeper.
type ReportJobRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportJobRepository constructs a job repository with the given entry TTL.
func NewReportJobRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReportJobRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReportJobRepository{client: client, ttl: ttl, logger: logger}
}

// Create stores a new job entry.
func (r *ReportJobRepository) Create(ctx context.Context, job *models.ReportJob) error {
	return r.save(ctx, job)
}

// Save overwrites the job entry, refreshing its TTL.
func (r *ReportJobRepository) Save(ctx context.Context, job *models.ReportJob) error {
	return r.save(ctx, job)
}

func (r *ReportJobRepository) save(ctx context.Context, job *models.ReportJob) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal report job %s: %w", job.ID, err)
	}
	if err := r.client.Set(ctx, reportJobKeyPrefix+job.ID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set report job %s: %w", job.ID, err)
	}
	return nil
}

// GetByID loads a job entry; missing or expired entries map to ErrNotFound.
func (r *ReportJobRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client not configured")
	}
	raw, err := r.client.Get(ctx, reportJobKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, fmt.Errorf("redis get report job %s: %w", id, err)
	}
	var job models.ReportJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("unmarshal report job %s: %w", id, err)
	}
	return &job, nil
}
