// Package dispatcher runs the periodic harvest cycle: for every
// enabled job config it refreshes credentials, lists recent matches,
// filters out already-processed ones and enqueues the remainder as
// tasks. Each config is processed in isolation; one account's broken
// credentials never stall the others.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/Itoktsnhc/stat.itok/internal/adapter"
	"github.com/Itoktsnhc/stat.itok/internal/auth"
	"github.com/Itoktsnhc/stat.itok/internal/battleid"
	"github.com/Itoktsnhc/stat.itok/internal/codec"
	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
	"github.com/Itoktsnhc/stat.itok/internal/models"
	"github.com/Itoktsnhc/stat.itok/internal/notify"
	"github.com/Itoktsnhc/stat.itok/internal/storage"
	"github.com/Itoktsnhc/stat.itok/internal/transform"
)

// candidate is one freshly listed match before dedup filtering.
type candidate struct {
	rawMatchID string
	rawGroup   string
	dedupKey   string
}

// ConfigStore is the slice of the job-config repository the dispatcher
// uses.
type ConfigStore interface {
	ListEnabled(ctx context.Context) ([]*models.JobConfig, error)
	UpdateAuthContext(ctx context.Context, id string, auth *models.AuthContext) error
	RecordFailure(ctx context.Context, id string) (int, error)
	ResetFailures(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
}

// RunStore is the slice of the job-run repository the dispatcher uses.
type RunStore interface {
	CreateRun(ctx context.Context, jobConfigID string, dedupKeys []string) (*models.JobRun, []models.JobRunTask, error)
	UpdateTaskState(ctx context.Context, taskID int64, state models.TaskState, detail string) error
}

// TaskQueue is the enqueue side of the task queue.
type TaskQueue interface {
	Enqueue(ctx context.Context, body string) error
}

// Dispatcher owns the harvest schedule.
type Dispatcher struct {
	cfg      *config.DispatchConfig
	configs  ConfigStore
	runs     RunStore
	dedup    *storage.DedupIndex
	payloads *storage.PayloadStore
	taskQ    TaskQueue
	sessions *auth.SessionManager
	nintendo *adapter.NintendoClient
	statink  *adapter.StatInkClient
	notifier notify.Notifier
	logger   *logging.Logger

	cron *cron.Cron
	mu   sync.Mutex
}

// Config bundles the dispatcher's collaborators.
type Config struct {
	Dispatch *config.DispatchConfig
	Configs  ConfigStore
	Runs     RunStore
	Dedup    *storage.DedupIndex
	Payloads *storage.PayloadStore
	TaskQ    TaskQueue
	Sessions *auth.SessionManager
	Nintendo *adapter.NintendoClient
	StatInk  *adapter.StatInkClient
	Notifier notify.Notifier
	Logger   *logging.Logger
}

// New creates a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Dispatch == nil || cfg.Configs == nil || cfg.Runs == nil || cfg.Dedup == nil ||
		cfg.Payloads == nil || cfg.TaskQ == nil || cfg.Sessions == nil ||
		cfg.Nintendo == nil || cfg.StatInk == nil || cfg.Notifier == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("dispatcher: missing dependency")
	}
	return &Dispatcher{
		cfg:      cfg.Dispatch,
		configs:  cfg.Configs,
		runs:     cfg.Runs,
		dedup:    cfg.Dedup,
		payloads: cfg.Payloads,
		taskQ:    cfg.TaskQ,
		sessions: cfg.Sessions,
		nintendo: cfg.Nintendo,
		statink:  cfg.StatInk,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}, nil
}

// Start schedules the dispatch cycle.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return fmt.Errorf("dispatcher already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(d.cfg.CronSpec, func() {
		d.DispatchAll(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", d.cfg.CronSpec, err)
	}
	c.Start()
	d.cron = c

	d.logger.WithField("cron", d.cfg.CronSpec).Info("dispatcher started")
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		d.logger.Info("dispatcher stopped")
	}
}

// DispatchAll runs one cycle over every enabled config.
func (d *Dispatcher) DispatchAll(ctx context.Context) {
	configs, err := d.configs.ListEnabled(ctx)
	if err != nil {
		d.logger.WithError(err).Error("failed to list enabled job configs")
		return
	}

	for _, jobConfig := range configs {
		logger := d.logger.WithField("jobConfigId", jobConfig.ID)
		if err := d.dispatchOne(logging.WithLogger(ctx, logger), jobConfig); err != nil {
			logger.WithError(err).Error("dispatch cycle failed")
			d.recordFailure(ctx, jobConfig)
			continue
		}
		if err := d.configs.ResetFailures(ctx, jobConfig.ID); err != nil {
			logger.WithError(err).Warn("failed to reset failure counter")
		}
	}
}

// dispatchOne runs the cycle for a single config.
func (d *Dispatcher) dispatchOne(ctx context.Context, jobConfig *models.JobConfig) error {
	logger := logging.FromContext(ctx)
	jobConfig.CorrectUserLang()

	check, err := d.sessions.PreCheck(ctx, &jobConfig.AuthContext)
	if err != nil {
		return fmt.Errorf("pre-check failed (%s): %w", check, err)
	}
	if check == models.PreCheckAutoRefreshed {
		if err := d.configs.UpdateAuthContext(ctx, jobConfig.ID, &jobConfig.AuthContext); err != nil {
			return err
		}
		logger.Info("auth context auto-refreshed")
	}

	if err := d.statink.VerifyAPIKey(ctx, jobConfig.StatInkAPIKey); err != nil {
		return fmt.Errorf("api key verification failed: %w", err)
	}

	candidates, err := d.listCandidates(ctx, jobConfig)
	if err != nil {
		return err
	}

	fresh, err := d.filterProcessed(ctx, jobConfig.ID, candidates)
	if err != nil {
		return err
	}
	if len(fresh) == 0 {
		logger.Debug("no new matches")
		return nil
	}

	dedupKeys := make([]string, len(fresh))
	for i, c := range fresh {
		dedupKeys[i] = c.dedupKey
	}
	run, tasks, err := d.runs.CreateRun(ctx, jobConfig.ID, dedupKeys)
	if err != nil {
		return err
	}

	enqueued := d.enqueueTasks(ctx, jobConfig.ID, run.ID, tasks, fresh)

	logger.WithFields(map[string]interface{}{
		"jobRunId": run.ID,
		"tasks":    enqueued,
		"failed":   len(fresh) - enqueued,
	}).Info("dispatched new tasks")
	return nil
}

// enqueueTasks persists and enqueues every candidate of a run. A
// failure is recorded on that candidate's tracked task and never stops
// the siblings; it returns the number actually enqueued.
func (d *Dispatcher) enqueueTasks(ctx context.Context, jobConfigID string, runID string,
	tasks []models.JobRunTask, fresh []candidate) int {
	logger := logging.FromContext(ctx)

	enqueued := 0
	for i, c := range fresh {
		task := tasks[i]
		if err := d.enqueueOne(ctx, jobConfigID, runID, task.ID, c); err != nil {
			logger.WithError(err).WithField("dedupKey", c.dedupKey).Error("failed to enqueue task")
			if stateErr := d.runs.UpdateTaskState(ctx, task.ID, models.TaskStateFailed, err.Error()); stateErr != nil {
				logger.WithError(stateErr).Warn("failed to record enqueue failure")
			}
			continue
		}
		enqueued++
	}
	return enqueued
}

func (d *Dispatcher) enqueueOne(ctx context.Context, jobConfigID string, runID string,
	taskID int64, c candidate) error {
	payload := &models.BattleTaskPayload{
		JobConfigID:  jobConfigID,
		JobRunID:     runID,
		TaskID:       taskID,
		RawMatchID:   c.rawMatchID,
		RawGroupJSON: c.rawGroup,
	}
	if err := d.payloads.Save(ctx, jobConfigID, c.dedupKey, payload); err != nil {
		return err
	}

	ref, err := json.Marshal(models.TaskReference{
		JobConfigID: jobConfigID,
		DedupKey:    c.dedupKey,
		TaskID:      taskID,
	})
	if err != nil {
		return err
	}
	body, err := codec.CompressString(string(ref))
	if err != nil {
		return err
	}
	return d.taskQ.Enqueue(ctx, body)
}

// listCandidates runs every enabled listing query and flattens the
// results.
func (d *Dispatcher) listCandidates(ctx context.Context, jobConfig *models.JobConfig) ([]candidate, error) {
	logger := logging.FromContext(ctx)

	var out []candidate
	seen := map[string]bool{}
	for _, queryName := range jobConfig.EnabledQueries {
		if !models.IsListingQuery(queryName) {
			logger.WithField("query", queryName).Warn("skipping unknown listing query")
			continue
		}

		resp, err := d.nintendo.SendGraphQL(ctx, &jobConfig.AuthContext, queryName, "", "")
		if err != nil {
			return nil, fmt.Errorf("listing query %s failed: %w", queryName, err)
		}

		for _, listing := range transform.ExtractListings(resp) {
			for _, rawID := range listing.MatchIDs {
				key, _, err := battleid.Compute(rawID)
				if err != nil {
					logger.WithError(err).WithField("rawId", rawID).Warn("undecodable match id")
					continue
				}
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, candidate{
					rawMatchID: rawID,
					rawGroup:   listing.RawGroup,
					dedupKey:   key,
				})
			}
		}
	}
	return out, nil
}

// filterProcessed drops candidates whose dedup marker already exists,
// checking with bounded concurrency.
func (d *Dispatcher) filterProcessed(ctx context.Context, jobConfigID string, candidates []candidate) ([]candidate, error) {
	logger := logging.FromContext(ctx)
	if len(candidates) == 0 {
		return nil, nil
	}

	concurrency := d.cfg.DedupConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	type result struct {
		idx    int
		exists bool
		err    error
	}

	sem := make(chan struct{}, concurrency)
	results := make(chan result, len(candidates))
	var wg sync.WaitGroup

	for i := range candidates {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			exists, err := d.dedup.Exists(ctx, jobConfigID, candidates[idx].dedupKey)
			results <- result{idx: idx, exists: exists, err: err}
		}(i)
	}
	wg.Wait()
	close(results)

	keep := make([]bool, len(candidates))
	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		keep[res.idx] = !res.exists
	}

	var fresh []candidate
	for i, c := range candidates {
		if !keep[i] {
			logger.WithField("dedupKey", c.dedupKey).Debug("match already processed, skipping")
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh, nil
}

// recordFailure bumps the failure counter and, at the threshold,
// disables the config with a single notification.
func (d *Dispatcher) recordFailure(ctx context.Context, jobConfig *models.JobConfig) {
	logger := d.logger.WithField("jobConfigId", jobConfig.ID)

	failures, err := d.configs.RecordFailure(ctx, jobConfig.ID)
	if err != nil {
		logger.WithError(err).Error("failed to record dispatch failure")
		return
	}

	if failures < d.cfg.FailureThreshold || jobConfig.FailureNotified {
		return
	}

	if err := d.configs.Disable(ctx, jobConfig.ID); err != nil {
		logger.WithError(err).Error("failed to disable job config")
		return
	}

	message := fmt.Sprintf("job config %s disabled after %d consecutive failures; re-enable it after fixing credentials",
		jobConfig.ID, failures)
	if err := d.notifier.Notify(ctx, "harvest job disabled", message); err != nil {
		logger.WithError(err).Warn("failed to send disable notification")
	}
	logger.WithField("failures", failures).Warn("job config disabled")
}
