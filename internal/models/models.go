package models

import (
	"time"

	"github.com/google/uuid"
)

// Enums

// JobState is the lifecycle state of a paragraph-generation job.
// Transitions are one-directional: PENDING -> RUNNING -> {SUCCESS, FAILURE}.
type JobState string

const (
	JobStatePending JobState = "PENDING"
	JobStateRunning JobState = "RUNNING"
	JobStateSuccess JobState = "SUCCESS"
	JobStateFailure JobState = "FAILURE"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobStateSuccess || s == JobStateFailure
}

// CanTransition reports whether moving from s to next is a legal transition.
// Repeating the current state is allowed (idempotent writes).
func (s JobState) CanTransition(next JobState) bool {
	if s == next {
		return true
	}
	switch s {
	case JobStatePending:
		return next == JobStateRunning || next.Terminal()
	case JobStateRunning:
		return next.Terminal()
	default:
		return false
	}
}

// JobMode selects the row source for a job.
type JobMode string

const (
	JobModeLocalFile   JobMode = "local_file"
	JobModeRemoteSheet JobMode = "remote_sheet"
)

// RequestStatus tracks a single video render request through the pipeline.
type RequestStatus string

const (
	RequestStatusNew        RequestStatus = "New"
	RequestStatusDrafted    RequestStatus = "Drafted"
	RequestStatusNeedsFix   RequestStatus = "NeedsFix"
	RequestStatusAssembling RequestStatus = "Assembling"
	RequestStatusRendered   RequestStatus = "Rendered"
	RequestStatusScheduled  RequestStatus = "Scheduled"
	RequestStatusFailed     RequestStatus = "Failed"
)

// Models

// Row is one normalized input record from a spreadsheet source.
// Number is the 1-based position in the original source including the
// header row, so write-back can target the exact origin cell.
type Row struct {
	Number   int    `json:"row"`
	Icon     string `json:"icon"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

// RowResult is the generation output for one row. Paragraph and SSML may be
// empty strings when the vendor response could not be parsed — degraded, not
// fatal.
type RowResult struct {
	Number    int    `json:"row"`
	Icon      string `json:"icon"`
	Category  string `json:"category"`
	Notes     string `json:"notes"`
	Paragraph string `json:"paragraph"`
	SSML      string `json:"ssml"`
}

// JobRun is the persisted record for one batch paragraph-generation job.
// It is the single source of truth for polling clients; queue status is
// never consulted.
type JobRun struct {
	JobID       uuid.UUID `json:"job_id"`
	State       JobState  `json:"state"`
	Mode        JobMode   `json:"mode"`
	SourcePath  string    `json:"source_path,omitempty"`
	SheetURL    string    `json:"sheet_url,omitempty"`
	SheetID     string    `json:"sheet_id,omitempty"`
	SheetName   string    `json:"sheet_name,omitempty"`
	BatchSize   int       `json:"batch_size"`
	OutputPath  string    `json:"results,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	BatchCount  int       `json:"batches"`
	RowsWritten int       `json:"rows_written"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScriptRequest is one icon/topic queued for the full video render pipeline
// (script -> TTS -> avatar render -> Drive -> Airtable -> schedule).
type ScriptRequest struct {
	ID            uuid.UUID     `json:"id"`
	IconOrTopic   string        `json:"icon_or_topic"`
	Notes         string        `json:"notes,omitempty"`
	Duration      string        `json:"duration"` // "15s", "30s", "60s"
	AvatarID      string        `json:"avatar_id,omitempty"`
	VoiceID       string        `json:"voice_id,omitempty"`
	Status        RequestStatus `json:"status"`
	FinalScript   string        `json:"final_script,omitempty"`
	AssetURL      string        `json:"asset_url,omitempty"`
	EditURL       string        `json:"edit_url,omitempty"`
	FileName      string        `json:"file_name,omitempty"`
	ScheduledSlot string        `json:"scheduled_slot,omitempty"`
	PublishAt     *time.Time    `json:"publish_at,omitempty"`
	ErrorMessage  string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// DTOs for API responses

type CreateJobRequest struct {
	SheetURL  string `json:"sheet_url,omitempty"`
	SheetID   string `json:"sheet_id,omitempty"`
	SheetName string `json:"sheet_name,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

type CreateJobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
	Mode   JobMode   `json:"mode"`
}

type JobStatusResponse struct {
	JobID       uuid.UUID `json:"job_id"`
	State       JobState  `json:"state"`
	Mode        JobMode   `json:"mode"`
	Results     string    `json:"results,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	Batches     int       `json:"batches"`
	RowsWritten int       `json:"rows_written"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListJobsResponse struct {
	Jobs []JobStatusResponse `json:"jobs"`
}

type JobPreviewResponse struct {
	JobID       uuid.UUID   `json:"job_id"`
	Rows        []RowResult `json:"rows"`
	Total       int         `json:"total"`
	Truncated   bool        `json:"truncated"`
	DownloadURL string      `json:"download_url"`
}

type ParagraphRequest struct {
	Icon     string `json:"icon"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type ParagraphResponse struct {
	Paragraph string `json:"paragraph"`
	SSML      string `json:"ssml"`
}

type CreateScriptRequestBody struct {
	IconOrTopic string `json:"icon_or_topic"`
	Notes       string `json:"notes,omitempty"`
	Duration    string `json:"duration,omitempty"`  // default "30s"
	AvatarID    string `json:"avatar_id,omitempty"` // HeyGen look id
	VoiceID     string `json:"voice_id,omitempty"`  // ElevenLabs voice id
}

type CreateScriptRequestResponse struct {
	RequestID uuid.UUID     `json:"request_id"`
	Status    RequestStatus `json:"status"`
}
