package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

// JobConfigRepository handles job config persistence
type JobConfigRepository struct {
	db *PostgresDB
}

// NewJobConfigRepository creates a new job config repository
func NewJobConfigRepository(db *PostgresDB) *JobConfigRepository {
	return &JobConfigRepository{db: db}
}

// Upsert creates or replaces a job config
func (r *JobConfigRepository) Upsert(ctx context.Context, cfg *models.JobConfig) error {
	authJSON, err := json.Marshal(cfg.AuthContext)
	if err != nil {
		return apperrors.NewStorageError("marshal auth context", err)
	}

	query := `
		INSERT INTO job_configs (
			id, auth_context, enabled, enabled_queries, forced_user_lang,
			stat_ink_api_key, consecutive_failures, failure_notified, last_update_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			auth_context = EXCLUDED.auth_context,
			enabled = EXCLUDED.enabled,
			enabled_queries = EXCLUDED.enabled_queries,
			forced_user_lang = EXCLUDED.forced_user_lang,
			stat_ink_api_key = EXCLUDED.stat_ink_api_key,
			consecutive_failures = EXCLUDED.consecutive_failures,
			failure_notified = EXCLUDED.failure_notified,
			last_update_time = EXCLUDED.last_update_time
	`

	cfg.LastUpdateTime = time.Now().UTC()
	_, err = r.db.Pool().Exec(ctx, query,
		cfg.ID,
		authJSON,
		cfg.Enabled,
		cfg.EnabledQueries,
		cfg.ForcedUserLang,
		cfg.StatInkAPIKey,
		cfg.ConsecutiveFailures,
		cfg.FailureNotified,
		cfg.LastUpdateTime,
	)
	if err != nil {
		return apperrors.NewStorageError("upsert job config", err)
	}

	return nil
}

// Get retrieves one job config by id
func (r *JobConfigRepository) Get(ctx context.Context, id string) (*models.JobConfig, error) {
	query := `
		SELECT id, auth_context, enabled, enabled_queries, forced_user_lang,
			   stat_ink_api_key, consecutive_failures, failure_notified, last_update_time
		FROM job_configs
		WHERE id = $1
	`

	cfg, err := scanJobConfig(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("job config", id)
		}
		return nil, apperrors.NewStorageError("get job config", err)
	}
	return cfg, nil
}

// ListEnabled returns all enabled job configs
func (r *JobConfigRepository) ListEnabled(ctx context.Context) ([]*models.JobConfig, error) {
	return r.list(ctx, `
		SELECT id, auth_context, enabled, enabled_queries, forced_user_lang,
			   stat_ink_api_key, consecutive_failures, failure_notified, last_update_time
		FROM job_configs
		WHERE enabled = TRUE
		ORDER BY id
	`)
}

// ListAll returns every job config, enabled or not
func (r *JobConfigRepository) ListAll(ctx context.Context) ([]*models.JobConfig, error) {
	return r.list(ctx, `
		SELECT id, auth_context, enabled, enabled_queries, forced_user_lang,
			   stat_ink_api_key, consecutive_failures, failure_notified, last_update_time
		FROM job_configs
		ORDER BY id
	`)
}

func (r *JobConfigRepository) list(ctx context.Context, query string) ([]*models.JobConfig, error) {
	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError("list job configs", err)
	}
	defer rows.Close()

	var configs []*models.JobConfig
	for rows.Next() {
		cfg, err := scanJobConfig(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan job config", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate job configs", err)
	}

	return configs, nil
}

// RecordFailure increments the consecutive failure counter and returns
// the updated count.
func (r *JobConfigRepository) RecordFailure(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE job_configs
		SET consecutive_failures = consecutive_failures + 1,
			last_update_time = NOW()
		WHERE id = $1
		RETURNING consecutive_failures
	`

	var failures int
	if err := r.db.Pool().QueryRow(ctx, query, id).Scan(&failures); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NewNotFoundError("job config", id)
		}
		return 0, apperrors.NewStorageError("record failure", err)
	}
	return failures, nil
}

// ResetFailures clears the failure counter and notified flag after a
// successful cycle.
func (r *JobConfigRepository) ResetFailures(ctx context.Context, id string) error {
	query := `
		UPDATE job_configs
		SET consecutive_failures = 0,
			failure_notified = FALSE,
			last_update_time = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Pool().Exec(ctx, query, id); err != nil {
		return apperrors.NewStorageError("reset failures", err)
	}
	return nil
}

// Disable soft-disables a config and marks the failure notification as
// sent, so the threshold fires exactly one notification.
func (r *JobConfigRepository) Disable(ctx context.Context, id string) error {
	query := `
		UPDATE job_configs
		SET enabled = FALSE,
			failure_notified = TRUE,
			last_update_time = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Pool().Exec(ctx, query, id); err != nil {
		return apperrors.NewStorageError("disable job config", err)
	}
	return nil
}

// UpdateAuthContext persists a refreshed token chain without touching
// the rest of the config.
func (r *JobConfigRepository) UpdateAuthContext(ctx context.Context, id string, auth *models.AuthContext) error {
	authJSON, err := json.Marshal(auth)
	if err != nil {
		return apperrors.NewStorageError("marshal auth context", err)
	}

	query := `
		UPDATE job_configs
		SET auth_context = $2,
			last_update_time = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Pool().Exec(ctx, query, id, authJSON); err != nil {
		return apperrors.NewStorageError("update auth context", err)
	}
	return nil
}

func scanJobConfig(row pgx.Row) (*models.JobConfig, error) {
	var cfg models.JobConfig
	var authJSON []byte

	err := row.Scan(
		&cfg.ID,
		&authJSON,
		&cfg.Enabled,
		&cfg.EnabledQueries,
		&cfg.ForcedUserLang,
		&cfg.StatInkAPIKey,
		&cfg.ConsecutiveFailures,
		&cfg.FailureNotified,
		&cfg.LastUpdateTime,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(authJSON, &cfg.AuthContext); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth context: %w", err)
	}
	return &cfg, nil
}
