package models

import "time"

// MatchGroupListing is one page of raw match-group JSON flattened into
// candidate identifiers. Transient: produced per dispatch cycle, only
// persisted embedded in task payloads.
type MatchGroupListing struct {
	RawGroup string   `json:"rawGroup"`
	MatchIDs []string `json:"matchIds"`
}

// BattleTaskPayload carries everything the worker needs to process one
// match. Persisted compressed, keyed by dedup key; read once.
type BattleTaskPayload struct {
	JobConfigID  string `json:"jobConfigId"`
	JobRunID     string `json:"jobRunId"`
	TaskID       int64  `json:"taskId"`
	RawMatchID   string `json:"rawMatchId"`
	RawGroupJSON string `json:"rawGroupJson"`
}

// TaskReference is the lightweight queue message: enough to re-fetch
// the payload idempotently, nothing more. The full payload is kept out
// of the queue deliberately.
type TaskReference struct {
	JobConfigID string `json:"jobConfigId"`
	DedupKey    string `json:"dedupKey"`
	TaskID      int64  `json:"taskId"`
}

// TaskState tracks one task's lifecycle.
type TaskState string

const (
	TaskStatePending  TaskState = "pending"
	TaskStateDone     TaskState = "done"
	TaskStateSkipped  TaskState = "skipped"
	TaskStateFailed   TaskState = "failed"
	TaskStatePoisoned TaskState = "poisoned"
)

// JobRun is one dispatch cycle's tracking root. Created only for cycles
// that find at least one new match.
type JobRun struct {
	ID          string    `json:"id"`
	JobConfigID string    `json:"jobConfigId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// JobRunTask is one tracked task under a run.
type JobRunTask struct {
	ID          int64     `json:"id"`
	JobRunID    string    `json:"jobRunId"`
	JobConfigID string    `json:"jobConfigId"`
	DedupKey    string    `json:"dedupKey"`
	State       TaskState `json:"state"`
	Detail      string    `json:"detail"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskOutcome is the worker-level result of a single task attempt.
type TaskOutcome string

const (
	// TaskOutcomeUploaded means the document was submitted and accepted.
	TaskOutcomeUploaded TaskOutcome = "uploaded"
	// TaskOutcomeSkipped means the transformer recognized the record as
	// not yet supported and produced no document. Not an error.
	TaskOutcomeSkipped TaskOutcome = "skipped"
)

// DebugContext is the full snapshot of one task attempt, archived for
// post-hoc diagnosis. Overwritten on retry.
type DebugContext struct {
	JobConfigID   string        `json:"jobConfigId"`
	DedupKey      string        `json:"dedupKey"`
	PayloadType   MatchType     `json:"payloadType"`
	RawMatchID    string        `json:"rawMatchId"`
	RawGroupJSON  string        `json:"rawGroupJson"`
	RawDetailJSON string        `json:"rawDetailJson"`
	BattleBody    *BattleBody   `json:"battleBody,omitempty"`
	SalmonBody    *SalmonBody   `json:"salmonBody,omitempty"`
	UploadResult  *UploadResult `json:"uploadResult,omitempty"`
	Outcome       TaskOutcome   `json:"outcome,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// BlobPath is the archive path convention for debug snapshots.
func (d *DebugContext) BlobPath() string {
	return d.JobConfigID + "/" + d.DedupKey + ".json"
}

// UploadResult is the target service's success response.
type UploadResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
