package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

// JobRunRepository handles job run and task tracking persistence
type JobRunRepository struct {
	db *PostgresDB
}

// NewJobRunRepository creates a new job run repository
func NewJobRunRepository(db *PostgresDB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

// CreateRun creates a new run and its pending tasks in one
// transaction; either the whole run is tracked or none of it is.
func (r *JobRunRepository) CreateRun(ctx context.Context, jobConfigID string, dedupKeys []string) (*models.JobRun, []models.JobRunTask, error) {
	run := &models.JobRun{
		ID:          uuid.NewString(),
		JobConfigID: jobConfigID,
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO job_runs (id, job_config_id, created_at) VALUES ($1, $2, $3)`,
		run.ID, run.JobConfigID, run.CreatedAt,
	)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("create job run", err)
	}

	tasks := make([]models.JobRunTask, 0, len(dedupKeys))
	for _, key := range dedupKeys {
		task := models.JobRunTask{
			JobRunID:    run.ID,
			JobConfigID: jobConfigID,
			DedupKey:    key,
			State:       models.TaskStatePending,
			UpdatedAt:   run.CreatedAt,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO job_run_tasks (job_run_id, job_config_id, dedup_key, state, updated_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			task.JobRunID, task.JobConfigID, task.DedupKey, task.State, task.UpdatedAt,
		).Scan(&task.ID)
		if err != nil {
			return nil, nil, apperrors.NewStorageError("create job run task", err)
		}
		tasks = append(tasks, task)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, apperrors.NewStorageError("commit job run", err)
	}
	return run, tasks, nil
}

// UpdateTaskState records one task's outcome
func (r *JobRunRepository) UpdateTaskState(ctx context.Context, taskID int64, state models.TaskState, detail string) error {
	query := `
		UPDATE job_run_tasks
		SET state = $2, detail = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Pool().Exec(ctx, query, taskID, state, detail); err != nil {
		return apperrors.NewStorageError("update task state", err)
	}
	return nil
}

// GetTask retrieves one tracked task
func (r *JobRunRepository) GetTask(ctx context.Context, taskID int64) (*models.JobRunTask, error) {
	query := `
		SELECT id, job_run_id, job_config_id, dedup_key, state, detail, updated_at
		FROM job_run_tasks
		WHERE id = $1
	`

	var task models.JobRunTask
	err := r.db.Pool().QueryRow(ctx, query, taskID).Scan(
		&task.ID,
		&task.JobRunID,
		&task.JobConfigID,
		&task.DedupKey,
		&task.State,
		&task.Detail,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("job run task", "")
		}
		return nil, apperrors.NewStorageError("get task", err)
	}
	return &task, nil
}

// ListRunTasks returns all tasks tracked under one run
func (r *JobRunRepository) ListRunTasks(ctx context.Context, runID string) ([]models.JobRunTask, error) {
	query := `
		SELECT id, job_run_id, job_config_id, dedup_key, state, detail, updated_at
		FROM job_run_tasks
		WHERE job_run_id = $1
		ORDER BY id
	`

	rows, err := r.db.Pool().Query(ctx, query, runID)
	if err != nil {
		return nil, apperrors.NewStorageError("list run tasks", err)
	}
	defer rows.Close()

	var tasks []models.JobRunTask
	for rows.Next() {
		var task models.JobRunTask
		err := rows.Scan(
			&task.ID,
			&task.JobRunID,
			&task.JobConfigID,
			&task.DedupKey,
			&task.State,
			&task.Detail,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewStorageError("scan run task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate run tasks", err)
	}
	return tasks, nil
}

// ListRuns returns recent runs for a config, newest first
func (r *JobRunRepository) ListRuns(ctx context.Context, jobConfigID string, limit int) ([]models.JobRun, error) {
	query := `
		SELECT id, job_config_id, created_at
		FROM job_runs
		WHERE job_config_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, jobConfigID, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("list runs", err)
	}
	defer rows.Close()

	var runs []models.JobRun
	for rows.Next() {
		var run models.JobRun
		if err := rows.Scan(&run.ID, &run.JobConfigID, &run.CreatedAt); err != nil {
			return nil, apperrors.NewStorageError("scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate runs", err)
	}
	return runs, nil
}
