package models

import (
	"encoding/json"
	"strings"
	"time"
)

// TaskImportProducts is the queue task name for spreadsheet imports.
const TaskImportProducts = "import-products"

// ImportRow is one spreadsheet line: column name to formatted cell text.
// Blank cells are present with an empty value.
type ImportRow map[string]string

// UnmarshalJSON accepts cells as JSON strings, numbers, booleans or null so
// rows enqueued by other producers decode too. Numbers and booleans keep
// their literal text, null becomes "" and objects or arrays keep their JSON.
func (r *ImportRow) UnmarshalJSON(b []byte) error {
	var cells map[string]json.RawMessage
	if err := json.Unmarshal(b, &cells); err != nil {
		return err
	}
	row := make(ImportRow, len(cells))
	for col, raw := range cells {
		row[col] = cellText(raw)
	}
	*r = row
	return nil
}

func cellText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// ImportTask is the payload the producer enqueues and the worker consumes.
type ImportTask struct {
	Rows []ImportRow `json:"rows"`
}

type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// ImportJob is the queue-owned record of one import.
type ImportJob struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Data         ImportTask    `json:"data"`
	State        JobState      `json:"state"`
	Progress     float64       `json:"progress"`
	Result       *ImportResult `json:"result,omitempty"`
	FailedReason string        `json:"failedReason,omitempty"`
	AttemptsMade int           `json:"attemptsMade"`
	CreatedAt    time.Time     `json:"createdAt"`
	ProcessedAt  *time.Time    `json:"processedAt,omitempty"`
	FinishedAt   *time.Time    `json:"finishedAt,omitempty"`
}

// ImportTicket is returned to the uploader right after enqueueing.
type ImportTicket struct {
	JobID     string `json:"jobId"`
	TotalRows int    `json:"totalRows"`
}

// JobStatus is what a polling client sees.
type JobStatus struct {
	JobID    string   `json:"jobId"`
	State    JobState `json:"state"`
	Progress float64  `json:"progress"`
}

// FailedProduct records a product whose create was rejected.
type FailedProduct struct {
	ProductKey string `json:"productKey"`
	Error      string `json:"error"`
}

// RejectedRow records a spreadsheet row that could not be grouped.
// Row is the 1-based data row index (header excluded).
type RejectedRow struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult is the terminal payload of a completed job.
// SuccessCount + FailedCount always equals TotalProducts.
type ImportResult struct {
	TotalProducts int             `json:"totalProducts"`
	SuccessCount  int             `json:"successCount"`
	FailedCount   int             `json:"failedCount"`
	Failed        []FailedProduct `json:"failed"`
	RejectedRows  []RejectedRow   `json:"rejectedRows,omitempty"`
}

// ImportFinishedEvent is published once a job reaches a terminal state.
type ImportFinishedEvent struct {
	EventType     string    `json:"event_type"`
	JobID         string    `json:"job_id"`
	State         JobState  `json:"state"`
	TotalRows     int       `json:"total_rows"`
	TotalProducts int       `json:"total_products"`
	SuccessCount  int       `json:"success_count"`
	FailedCount   int       `json:"failed_count"`
	RejectedRows  int       `json:"rejected_rows"`
	Error         string    `json:"error,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}

const (
	EventImportCompleted = "product_import_completed"
	EventImportFailed    = "product_import_failed"
)
