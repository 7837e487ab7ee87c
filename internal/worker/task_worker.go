// Package worker consumes the task queue: each message references one
// harvested match, which is fetched in full, transformed and uploaded.
// Messages are deleted only after a fully successful attempt, so every
// failure path ends in redelivery or the poison list.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/adapter"
	"github.com/Itoktsnhc/stat.itok/internal/battleid"
	"github.com/Itoktsnhc/stat.itok/internal/codec"
	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
	"github.com/Itoktsnhc/stat.itok/internal/models"
	"github.com/Itoktsnhc/stat.itok/internal/queue"
	"github.com/Itoktsnhc/stat.itok/internal/storage"
	"github.com/Itoktsnhc/stat.itok/internal/transform"
)

// ConfigStore is the slice of the job-config repository the worker
// uses.
type ConfigStore interface {
	Get(ctx context.Context, id string) (*models.JobConfig, error)
}

// RunStore is the slice of the job-run repository the worker uses.
type RunStore interface {
	UpdateTaskState(ctx context.Context, taskID int64, state models.TaskState, detail string) error
}

// TaskWorker polls the task queue in batches and processes each
// message to completion.
type TaskWorker struct {
	cfg      *config.WorkerConfig
	agent    *config.StatInkConfig
	configs  ConfigStore
	runs     RunStore
	payloads *storage.PayloadStore
	dedup    *storage.DedupIndex
	blobs    *storage.BlobStore
	taskQ    *queue.Queue
	nintendo *adapter.NintendoClient
	statink  *adapter.StatInkClient
	logger   *logging.Logger

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// TaskWorkerConfig bundles the worker's collaborators.
type TaskWorkerConfig struct {
	Worker   *config.WorkerConfig
	Agent    *config.StatInkConfig
	Configs  ConfigStore
	Runs     RunStore
	Payloads *storage.PayloadStore
	Dedup    *storage.DedupIndex
	Blobs    *storage.BlobStore
	TaskQ    *queue.Queue
	Nintendo *adapter.NintendoClient
	StatInk  *adapter.StatInkClient
	Logger   *logging.Logger
}

// NewTaskWorker creates a task worker.
func NewTaskWorker(cfg TaskWorkerConfig) (*TaskWorker, error) {
	if cfg.Worker == nil || cfg.Agent == nil || cfg.Configs == nil || cfg.Runs == nil ||
		cfg.Payloads == nil || cfg.Dedup == nil || cfg.TaskQ == nil ||
		cfg.Nintendo == nil || cfg.StatInk == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("task worker: missing dependency")
	}
	return &TaskWorker{
		cfg:      cfg.Worker,
		agent:    cfg.Agent,
		configs:  cfg.Configs,
		runs:     cfg.Runs,
		payloads: cfg.Payloads,
		dedup:    cfg.Dedup,
		blobs:    cfg.Blobs,
		taskQ:    cfg.TaskQ,
		nintendo: cfg.Nintendo,
		statink:  cfg.StatInk,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins polling. It returns immediately; processing runs in a
// background goroutine until Stop.
func (w *TaskWorker) Start() {
	go w.run()
	w.logger.WithField("queue", w.cfg.QueueName).Info("task worker started")
}

// Stop halts polling and waits for the in-flight batch to finish.
func (w *TaskWorker) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	<-w.doneCh
	w.logger.Info("task worker stopped")
}

func (w *TaskWorker) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		processed := w.pollOnce(context.Background())

		wait := w.cfg.PollInterval
		if processed > 0 {
			wait = w.cooldown()
		}
		select {
		case <-w.stopCh:
			return
		case <-time.After(wait):
		}
	}
}

// cooldown returns a randomized pause between busy batches, spreading
// load across workers.
func (w *TaskWorker) cooldown() time.Duration {
	min, max := w.cfg.CooldownMin, w.cfg.CooldownMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// pollOnce receives one batch and processes every message, returning
// the number received.
func (w *TaskWorker) pollOnce(ctx context.Context) int {
	messages, err := w.taskQ.Receive(ctx, w.cfg.BatchSize, w.cfg.VisibilityTimeout)
	if err != nil {
		w.logger.WithError(err).Error("failed to receive task batch")
		return 0
	}

	for _, msg := range messages {
		w.processMessage(ctx, msg)
	}
	return len(messages)
}

func (w *TaskWorker) processMessage(ctx context.Context, msg queue.Message) {
	logger := w.logger.WithField("messageId", msg.ID)

	ref, err := decodeReference(msg.Body)
	if err != nil {
		logger.WithError(err).Error("unparseable task reference, poisoning")
		if err := w.taskQ.Poison(ctx, msg); err != nil {
			logger.WithError(err).Error("failed to poison message")
		}
		return
	}

	logger = logger.WithFields(map[string]interface{}{
		"jobConfigId": ref.JobConfigID,
		"dedupKey":    ref.DedupKey,
	})

	if msg.Deliveries > w.cfg.MaxDeliveries {
		logger.WithField("deliveries", msg.Deliveries).Error("delivery limit exceeded, poisoning")
		if err := w.runs.UpdateTaskState(ctx, ref.TaskID, models.TaskStatePoisoned,
			fmt.Sprintf("poisoned after %d deliveries", msg.Deliveries)); err != nil {
			logger.WithError(err).Warn("failed to record poisoned state")
		}
		if err := w.taskQ.Poison(ctx, msg); err != nil {
			logger.WithError(err).Error("failed to poison message")
		}
		return
	}

	outcome, err := w.processTask(logging.WithLogger(ctx, logger), ref)
	if err != nil {
		logger.WithError(err).Error("task attempt failed, leaving for redelivery")
		if stateErr := w.runs.UpdateTaskState(ctx, ref.TaskID, models.TaskStateFailed, err.Error()); stateErr != nil {
			logger.WithError(stateErr).Warn("failed to record failed state")
		}
		return
	}

	state := models.TaskStateDone
	if outcome == models.TaskOutcomeSkipped {
		state = models.TaskStateSkipped
	}
	if err := w.runs.UpdateTaskState(ctx, ref.TaskID, state, string(outcome)); err != nil {
		logger.WithError(err).Warn("failed to record task state")
	}
	if err := w.payloads.Delete(ctx, ref.JobConfigID, ref.DedupKey); err != nil {
		logger.WithError(err).Warn("failed to delete payload")
	}
	if err := w.taskQ.Delete(ctx, msg); err != nil {
		logger.WithError(err).Error("failed to delete message")
		return
	}
	logger.WithField("outcome", outcome).Info("task completed")
}

// processTask runs one full attempt. Any returned error leaves the
// message in flight for redelivery after the visibility timeout.
func (w *TaskWorker) processTask(ctx context.Context, ref models.TaskReference) (models.TaskOutcome, error) {
	logger := logging.FromContext(ctx)

	jobConfig, err := w.configs.Get(ctx, ref.JobConfigID)
	if err != nil {
		return "", err
	}
	jobConfig.CorrectUserLang()

	payload, err := w.payloads.Load(ctx, ref.JobConfigID, ref.DedupKey)
	if err != nil {
		return "", err
	}

	// a marker set by a racing worker means this is a duplicate
	// delivery, not new work
	exists, err := w.dedup.Exists(ctx, ref.JobConfigID, ref.DedupKey)
	if err != nil {
		return "", err
	}
	if exists {
		return models.TaskOutcomeSkipped, nil
	}

	matchType, err := w.classify(payload.RawMatchID)
	if err != nil {
		return "", err
	}

	debug := &models.DebugContext{
		JobConfigID:  ref.JobConfigID,
		DedupKey:     ref.DedupKey,
		PayloadType:  matchType,
		RawMatchID:   payload.RawMatchID,
		RawGroupJSON: payload.RawGroupJSON,
	}
	defer w.archive(ctx, debug)

	outcome, err := w.fetchAndUpload(ctx, jobConfig, payload, matchType, debug)
	if err != nil {
		debug.Error = err.Error()
		return "", err
	}
	debug.Outcome = outcome

	if err := w.dedup.Mark(ctx, ref.JobConfigID, ref.DedupKey); err != nil {
		logger.WithError(err).Warn("failed to mark dedup key")
	}
	return outcome, nil
}

func (w *TaskWorker) classify(rawMatchID string) (models.MatchType, error) {
	return battleid.Classify(rawMatchID)
}

// decodeReference unpacks the compressed queue body into a task
// reference.
func decodeReference(body string) (models.TaskReference, error) {
	var ref models.TaskReference
	decoded, err := codec.DecompressString(body)
	if err != nil {
		return ref, err
	}
	if err := json.Unmarshal([]byte(decoded), &ref); err != nil {
		return ref, err
	}
	return ref, nil
}

func (w *TaskWorker) fetchAndUpload(ctx context.Context, jobConfig *models.JobConfig,
	payload *models.BattleTaskPayload, matchType models.MatchType, debug *models.DebugContext) (models.TaskOutcome, error) {
	logger := logging.FromContext(ctx)

	queryName := models.QueryVsHistoryDetail
	varName := "vsResultId"
	if matchType == models.MatchTypeSalmon {
		queryName = models.QueryCoopHistoryDetail
		varName = "coopHistoryDetailId"
	}

	detail, err := w.nintendo.SendGraphQL(ctx, &jobConfig.AuthContext, queryName, varName, payload.RawMatchID)
	if err != nil {
		return "", err
	}
	debug.RawDetailJSON = detail

	userLang := jobConfig.AuthContext.User.Lang

	switch matchType {
	case models.MatchTypeSalmon:
		weaponDict, err := w.statink.SalmonWeaponKeys(ctx)
		if err != nil {
			logger.WithError(err).Warn("weapon key dictionary unavailable, uploading without loadouts")
		}
		body, err := transform.BuildSalmonBody(detail, payload.RawGroupJSON, userLang, weaponDict,
			w.agent.AgentName, w.agent.AgentVersion)
		if err != nil {
			return "", err
		}
		debug.SalmonBody = body
		result, err := w.statink.PostSalmon(ctx, jobConfig.StatInkAPIKey, body)
		if err != nil {
			return "", err
		}
		debug.UploadResult = result
		return models.TaskOutcomeUploaded, nil

	default:
		gearDict, err := w.statink.GearKeys(ctx)
		if err != nil {
			logger.WithError(err).Warn("gear key dictionary unavailable, uploading without abilities")
		}
		body, err := transform.BuildBattleBody(detail, payload.RawGroupJSON, userLang, gearDict,
			w.agent.AgentName, w.agent.AgentVersion)
		if err != nil {
			return "", err
		}
		if body == nil {
			// unsupported rule, nothing to upload
			return models.TaskOutcomeSkipped, nil
		}
		debug.BattleBody = body
		result, err := w.statink.PostBattle(ctx, jobConfig.StatInkAPIKey, body)
		if err != nil {
			return "", err
		}
		debug.UploadResult = result
		return models.TaskOutcomeUploaded, nil
	}
}

// archive snapshots the attempt to object storage; best-effort.
func (w *TaskWorker) archive(ctx context.Context, debug *models.DebugContext) {
	if w.blobs == nil {
		return
	}
	data, err := json.Marshal(debug)
	if err != nil {
		return
	}
	if err := w.blobs.Put(ctx, debug.BlobPath(), data, "application/json"); err != nil {
		w.logger.WithError(err).Debug("failed to archive debug snapshot")
	}
}
