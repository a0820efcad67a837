package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ReportJob is one queued request to produce a report artifact for a project
// and period. Jobs are created as pending, claimed into processing by exactly
// one worker, and end in completed or failed. Terminal statuses never change;
// the retention sweeper only nulls ArtifactPath afterwards.
type ReportJob struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	ProjectID    uuid.UUID  `db:"project_id"    json:"project_id"`
	OrgID        uuid.UUID  `db:"org_id"        json:"org_id"`
	PeriodStart  time.Time  `db:"period_start"  json:"period_start"`
	PeriodEnd    time.Time  `db:"period_end"    json:"period_end"`
	Status       string     `db:"status"        json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	ArtifactPath *string    `db:"artifact_path" json:"artifact_path,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}
