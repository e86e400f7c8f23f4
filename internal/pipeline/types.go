package pipeline

import "time"

// Stage names one of the three batch jobs.
type Stage string

// Pipeline stages in execution order.
const (
	StageExtract Stage = "extract"
	StageLoad    Stage = "load"
	StageExport  Stage = "export"
)

// ContentTypeCSV is attached to every flat file written by the stages.
const ContentTypeCSV = "text/csv; charset=utf-8"

// APIResponse is the raw result of one catalog API call.
type APIResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Artifact describes one file a stage produced.
type Artifact struct {
	Name   string `json:"name"`
	URI    string `json:"uri"`
	SHA256 string `json:"sha256"`
	Rows   int    `json:"rows"`
}

// StageReport is published when a stage finishes, successfully or not.
type StageReport struct {
	RunID      string         `json:"run_id"`
	Stage      Stage          `json:"stage"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Succeeded  bool           `json:"succeeded"`
	Error      string         `json:"error,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Skipped    []string       `json:"skipped,omitempty"`
	Artifacts  []Artifact     `json:"artifacts,omitempty"`
}

// Duration reports the wall time covered by the report.
func (r StageReport) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
