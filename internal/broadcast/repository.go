package broadcast

import (
	"context"
	"database/sql"
	"errors"
)

var ErrJobNotFound = errors.New("broadcast job not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO broadcast_jobs (id, channel, body, status, total_count)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, job.ID, job.Channel, job.Text, job.Status, job.TotalCount)
	return err
}

func (r *Repository) SetStatus(ctx context.Context, jobID string, status Status) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE broadcast_jobs SET status = $2 WHERE id = $1", jobID, status)
	return err
}

func (r *Repository) Complete(ctx context.Context, jobID string, successCount int) error {
	query := `
		UPDATE broadcast_jobs
		SET status = $2, success_count = $3, completed_at = now()
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, jobID, StatusCompleted, successCount)
	return err
}

func (r *Repository) Get(ctx context.Context, jobID string) (*Job, error) {
	job := &Job{}
	query := `
		SELECT id, channel, body, status, success_count, total_count, created_at, completed_at
		FROM broadcast_jobs WHERE id = $1`
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.Channel, &job.Text, &job.Status,
		&job.SuccessCount, &job.TotalCount, &job.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}
