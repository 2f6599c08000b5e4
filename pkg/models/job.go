package models

import (
	"time"

	"github.com/google/uuid"
)

// Tier is the processing pathway a job runs on.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Job states. pending is the only initial state; completed and failed are
// terminal and never left.
const (
	JobStatePending    = "pending"
	JobStateProcessing = "processing"
	JobStateCompleted  = "completed"
	JobStateFailed     = "failed"
)

// Job tracks an uploaded video through silence removal. The API returns the
// job on POST /api/v1/jobs; the client polls GET /api/v1/jobs/{jobID} until
// the state is completed or failed.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	OwnerID      *uuid.UUID `db:"owner_id"      json:"owner_id,omitempty"`
	Filename     string     `db:"filename"      json:"filename"`
	SizeBytes    int64      `db:"size_bytes"    json:"size_bytes"`
	DurationSecs float64    `db:"duration_secs" json:"duration_secs"`
	Tier         Tier       `db:"tier"          json:"tier"`
	State        string     `db:"state"         json:"state"`
	UploadKey    string     `db:"upload_key"    json:"-"`
	ArtifactKey  *string    `db:"artifact_key"  json:"-"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"-"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.State == JobStateCompleted || j.State == JobStateFailed
}

// JobView is the externally visible shape of a Job. Storage keys and claim
// timestamps never leave the service; completed jobs carry a download URL
// resolved from the artifact key.
type JobView struct {
	ID           uuid.UUID `json:"id"`
	Filename     string    `json:"filename"`
	SizeBytes    int64     `json:"size_bytes"`
	DurationSecs float64   `json:"duration_secs"`
	Tier         Tier      `json:"tier"`
	State        string    `json:"state"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// View projects a Job onto its external representation.
func (j *Job) View() JobView {
	v := JobView{
		ID:           j.ID,
		Filename:     j.Filename,
		SizeBytes:    j.SizeBytes,
		DurationSecs: j.DurationSecs,
		Tier:         j.Tier,
		State:        j.State,
		CreatedAt:    j.CreatedAt,
	}
	if j.ErrorMessage != nil {
		v.ErrorMessage = *j.ErrorMessage
	}
	return v
}
