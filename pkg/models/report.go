// Package models contains shared data models used across the SiteBrief codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a local record of a construction project. TrackyardID links it to
// the Trackyard project that holds the daily logs and photos; projects without
// a link cannot have reports generated.
type Project struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	OrgID       uuid.UUID `db:"org_id"       json:"org_id"`
	Name        string    `db:"name"         json:"name"`
	TrackyardID *string   `db:"trackyard_id" json:"trackyard_id,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// Note is a single daily log entry fetched from Trackyard.
type Note struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Author string    `json:"author,omitempty"`
	Body   string    `json:"body"`
}

// CandidateImage is a site photo considered for inclusion in a report.
// TakenOn is the normalized date: the explicit log date when present,
// otherwise the date of the upload timestamp. A zero TakenOn means the date
// could not be determined and the image is excluded from selection.
type CandidateImage struct {
	ID          string    `json:"id"`
	TakenOn     time.Time `json:"taken_on"`
	Description string    `json:"description,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	URL         string    `json:"url,omitempty"`
}

// PhotoDaySuggestion flags a date as visually significant. Priority 1 is the
// highest; a nil priority sorts after every explicit one.
type PhotoDaySuggestion struct {
	Date     time.Time `json:"date"`
	Reason   string    `json:"reason,omitempty"`
	Priority *int      `json:"priority,omitempty"`
}

// SelectedImage is a candidate that made the final cut, with its caption and
// the local path it was downloaded to.
type SelectedImage struct {
	ID          string    `json:"id"`
	TakenOn     time.Time `json:"taken_on"`
	Description string    `json:"description,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	Caption     string    `json:"caption"`
	LocalPath   string    `json:"-"`
}

// ReportSpec is the intermediate artifact handed from the selection stages to
// the rendering stage. It is rebuilt per pipeline run and owned by that run.
type ReportSpec struct {
	ProjectID      uuid.UUID            `json:"project_id"`
	ProjectName    string               `json:"project_name"`
	PeriodStart    time.Time            `json:"period_start"`
	PeriodEnd      time.Time            `json:"period_end"`
	SummaryBullets []string             `json:"summary_bullets"`
	PhotoDays      []PhotoDaySuggestion `json:"photo_days"`
	Images         []SelectedImage      `json:"images"`
}
