package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/logging"
	"github.com/Itoktsnhc/stat.itok/internal/queue"
	"github.com/Itoktsnhc/stat.itok/internal/storage"
)

// poisonDrainInterval is how often the poison list is checked.
const poisonDrainInterval = 5 * time.Minute

// PoisonWorker drains the poison list into object storage so failed
// messages survive for diagnosis without clogging the queue.
type PoisonWorker struct {
	taskQ  *queue.Queue
	blobs  *storage.BlobStore
	logger *logging.Logger

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewPoisonWorker creates a poison worker.
func NewPoisonWorker(taskQ *queue.Queue, blobs *storage.BlobStore, logger *logging.Logger) *PoisonWorker {
	return &PoisonWorker{
		taskQ:  taskQ,
		blobs:  blobs,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins draining in the background.
func (w *PoisonWorker) Start() {
	go w.run()
	w.logger.Info("poison worker started")
}

// Stop halts draining and waits for the current pass to finish.
func (w *PoisonWorker) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	<-w.doneCh
	w.logger.Info("poison worker stopped")
}

func (w *PoisonWorker) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(poisonDrainInterval)
	defer ticker.Stop()

	for {
		w.Drain(context.Background())
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// Drain archives every currently poisoned message.
func (w *PoisonWorker) Drain(ctx context.Context) {
	for {
		msg, ok, err := w.taskQ.PopPoison(ctx)
		if err != nil {
			w.logger.WithError(err).Error("failed to pop poison message")
			return
		}
		if !ok {
			return
		}
		w.archive(ctx, msg)
	}
}

func (w *PoisonWorker) archive(ctx context.Context, msg queue.Message) {
	path := fmt.Sprintf("poison/%s.json", msg.ID)
	if ref, err := decodeReference(msg.Body); err == nil && ref.DedupKey != "" {
		path = fmt.Sprintf("poison/%s/%s.json", ref.JobConfigID, ref.DedupKey)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		w.logger.WithError(err).Error("failed to marshal poison message")
		return
	}

	if w.blobs == nil {
		w.logger.WithField("messageId", msg.ID).Warn("no blob store configured, dropping poison message")
		return
	}
	if err := w.blobs.Put(ctx, path, data, "application/json"); err != nil {
		w.logger.WithError(err).Error("failed to archive poison message")
		return
	}
	w.logger.WithField("path", path).Warn("poison message archived")
}
