package models

import "time"

// ImportRun is the durable summary of a finished import job. Queue records
// expire after the retention window; these rows do not.
type ImportRun struct {
	ID            int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	JobID         string     `json:"job_id" gorm:"size:64;uniqueIndex"`
	State         string     `json:"state" gorm:"size:16;index"`
	TotalRows     int        `json:"total_rows"`
	TotalProducts int        `json:"total_products"`
	SuccessCount  int        `json:"success_count"`
	FailedCount   int        `json:"failed_count"`
	RejectedRows  int        `json:"rejected_rows"`
	Error         string     `json:"error,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    time.Time  `json:"finished_at"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (ImportRun) TableName() string { return "import_runs" }

type ImportRunFilter struct {
	State    string
	Page     int
	PageSize int
}
