// Package runlog records one row per pipeline run. The ledger is
// bookkeeping only; nothing in the data path reads it.
package runlog

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// TableCount is the persisted summary of one table write.
type TableCount struct {
	Table      string `json:"table"`
	Rows       int    `json:"rows"`
	Partitions int    `json:"partitions"`
	Files      int    `json:"files"`
}

type PipelineRun struct {
	ID               string `gorm:"primaryKey;size:26"`
	Status           Status `gorm:"size:16;index"`
	Input            string
	Output           string
	StartedAt        time.Time
	FinishedAt       *time.Time
	Error            string
	UnmatchedPlays   int
	MalformedRecords int
	Tables           datatypes.JSONType[[]TableCount]
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (PipelineRun) TableName() string { return "pipeline_runs" }
