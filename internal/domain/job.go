package domain

import "time"

// JobType enumerates supported batch generation categories.
type JobType string

const (
	JobTypeReferenceImages JobType = "reference_images"
	JobTypeFirstFrames     JobType = "first_frames"
	JobTypeVideoClips      JobType = "video_clips"
)

// JobStatus enumerates job lifecycle states. A job ends in error only when
// pre-run validation rejects the whole batch; once items start executing it
// always ends done, with per-item failures reflected in the summary.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Terminal reports whether no further status transition can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// ItemStatus is the caller-visible outcome of one batch item.
type ItemStatus string

const (
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusFailed  ItemStatus = "failed"
)

// ItemResult is the outcome for a single ordinal. Skipped marks a success
// that reused an already-persisted asset instead of calling the provider.
// ErrorKind carries the failure classification for telemetry; callers only
// branch on Status.
type ItemResult struct {
	Ordinal   int        `json:"ordinal"`
	Status    ItemStatus `json:"status"`
	URL       string     `json:"url,omitempty"`
	ThumbURL  string     `json:"thumb_url,omitempty"`
	Skipped   bool       `json:"skipped,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
}

// Summary aggregates item outcomes. OK counts skipped successes too.
type Summary struct {
	Total   int `json:"total"`
	OK      int `json:"ok"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Snapshot is the evolving result list of one batch run. Snapshots are
// always full values, never deltas, so any observed snapshot is
// self-sufficient.
type Snapshot struct {
	Items   []ItemResult `json:"items"`
	Summary Summary      `json:"summary"`
}

// Fold replaces the entry for the result's ordinal and recomputes the
// summary counters.
func (s *Snapshot) Fold(res ItemResult) {
	replaced := false
	for i := range s.Items {
		if s.Items[i].Ordinal == res.Ordinal {
			s.Items[i] = res
			replaced = true
			break
		}
	}
	if !replaced {
		s.Items = append(s.Items, res)
	}
	summary := Summary{Total: s.Summary.Total}
	if summary.Total < len(s.Items) {
		summary.Total = len(s.Items)
	}
	for _, item := range s.Items {
		switch {
		case item.Status == ItemStatusSuccess && item.Skipped:
			summary.OK++
			summary.Skipped++
		case item.Status == ItemStatusSuccess:
			summary.OK++
		case item.Status == ItemStatusFailed:
			summary.Failed++
		}
	}
	s.Summary = summary
}

// Job tracks one batch invocation. ProgressVersion increases on every
// mutation; a snapshot with a higher version strictly supersedes lower ones.
type Job struct {
	ID              string     `json:"id"`
	StoryID         string     `json:"story_id"`
	Type            JobType    `json:"type"`
	Status          JobStatus  `json:"status"`
	Snapshot        Snapshot   `json:"snapshot"`
	ProgressVersion int64      `json:"progress_version"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}
