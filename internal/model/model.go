// Package model holds the data types shared across the run engine: the
// request a caller submits, the state a run accumulates as it executes, and
// the artifacts produced along the way.
package model

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// Mode selects which cascade the engine runs.
type Mode string

const (
	ModeGenerate Mode = "GENERATE"
	ModeModify   Mode = "MODIFY"
	ModeQA       Mode = "QA"
	ModeQFile    Mode = "QFILE"
	ModeBatch    Mode = "C"
)

// Status is the terminal or in-flight state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// RunRequest is what a caller (the Run API or the CLI) submits to start a run.
type RunRequest struct {
	Mode        Mode   `json:"mode" validate:"required,oneof=GENERATE MODIFY QA QFILE C"`
	Project     string `json:"project"`
	Model       string `json:"model" validate:"required"`
	Prompt      string `json:"prompt"`
	PreviousID  string `json:"previous_response_id"`
	InputRoot   string `json:"input_root"`
	OutputRoot  string `json:"output_root"`
	AttachedIDs []string `json:"attached_file_ids"`

	Versioning     bool `json:"versioning"`
	DryRun         bool `json:"dry_run"`
	DiagnosticsIn  []string `json:"diagnostics_in"`
	DiagnosticsOut bool     `json:"diagnostics_out"`

	Temperature float64 `json:"temperature"`
}

// Validate enforces the mode-specific cross-field rules that a struct tag
// alone cannot express (GENERATE forbids an input root, MODIFY requires
// one, QA forbids an output root).
func (r RunRequest) Validate() error {
	if err := structValidator.Struct(r); err != nil {
		return &ConfigurationError{Reason: err.Error()}
	}
	switch r.Mode {
	case ModeGenerate, ModeQFile, ModeBatch:
		if r.InputRoot != "" {
			return &ConfigurationError{Reason: string(r.Mode) + " must not set input_root"}
		}
	case ModeModify:
		if r.InputRoot == "" {
			return &ConfigurationError{Reason: "MODIFY requires input_root"}
		}
	case ModeQA:
		if r.OutputRoot != "" {
			return &ConfigurationError{Reason: "QA must not set output_root"}
		}
	}
	if r.Mode != ModeQA && r.Mode != ModeGenerate && r.Mode != ModeQFile && r.Mode != ModeBatch && r.OutputRoot == "" {
		return &ConfigurationError{Reason: string(r.Mode) + " requires output_root"}
	}
	return nil
}

// ConfigurationError rejects a RunRequest before a run is ever created.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Reason }

// UploadedFile records one local->provider upload inside a run.
type UploadedFile struct {
	LocalPath string `json:"local_path"`
	FileID    string `json:"file_id"`
	SHA256    string `json:"sha256"`
	Size      int64  `json:"size"`
}

// RunState is the durable, resumable snapshot of a run in progress.
type RunState struct {
	RunID            string         `json:"run_id"`
	Request          RunRequest     `json:"request"`
	Status           Status         `json:"status"`
	StepCursor       int            `json:"step_cursor"`
	CurrentStep      string         `json:"current_step"`
	ResponseChain     []string       `json:"response_chain"`
	UploadedFiles     []UploadedFile `json:"uploaded_files"`
	VectorStoreID     string         `json:"vector_store_id,omitempty"`
	BatchID           string         `json:"batch_id,omitempty"`
	SnapshotCreated   bool           `json:"snapshot_created"`
	CompletedPaths    []string       `json:"completed_paths,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	FailureReason     string         `json:"failure_reason,omitempty"`
}

// Advance bumps the step cursor forward and never lets it regress (data
// model invariant 6).
func (s *RunState) Advance(step string, cursor int) {
	if cursor < s.StepCursor {
		return
	}
	s.StepCursor = cursor
	s.CurrentStep = step
	s.UpdatedAt = time.Now()
}

// ManifestEntry describes one file considered for upload from the input tree.
type ManifestEntry struct {
	RelativePath string `json:"relative_path"`
	AbsolutePath string `json:"absolute_path"`
	Size         int64  `json:"size"`
	SHA256       string `json:"sha256,omitempty"`
	Uploaded     bool   `json:"uploaded"`
	FileID       string `json:"file_id,omitempty"`
	SkipReason   string `json:"skip_reason,omitempty"`
}

// Manifest is the machine-readable inventory of a mirrored input tree.
type Manifest struct {
	Root        string          `json:"root"`
	GeneratedAt time.Time       `json:"generated_at"`
	Files       []ManifestEntry `json:"files"`
}

// UploadedCount returns how many entries were actually uploaded, used to
// check data model invariant 2 in tests.
func (m Manifest) UploadedCount() int {
	n := 0
	for _, f := range m.Files {
		if f.Uploaded {
			n++
		}
	}
	return n
}

// CapabilityRecord is the per-model feature matrix persisted by the
// capability cache.
type CapabilityRecord struct {
	Model                    string    `json:"model"`
	SupportsPreviousResponse bool      `json:"supports_previous_response"`
	SupportsTemperature      bool      `json:"supports_temperature"`
	SupportsFileSearch       bool      `json:"supports_file_search"`
	ProbedAt                 time.Time `json:"probed_at"`
}

// Stale reports whether the record is older than ttl.
func (c CapabilityRecord) Stale(ttl time.Duration) bool {
	return time.Since(c.ProbedAt) > ttl
}

// Receipt is the per-response cost-accounting record.
type Receipt struct {
	ID              int64     `json:"id,omitempty"`
	RunID           string    `json:"run_id"`
	StepKey         string    `json:"step_key"`
	Project         string    `json:"project"`
	Model           string    `json:"model"`
	Mode            string    `json:"mode"`
	FlowType        string    `json:"flow_type"`
	ResponseID      string    `json:"response_id,omitempty"`
	BatchID         string    `json:"batch_id,omitempty"`
	InputTokens     int64     `json:"input_tokens"`
	OutputTokens    int64     `json:"output_tokens"`
	ToolCost        float64   `json:"tool_cost"`
	StorageCost     float64   `json:"storage_cost"`
	TotalCost       float64   `json:"total_cost"`
	CostEstimated   bool      `json:"cost_estimated"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// OutputFile is one file the cascade is about to write to the output tree.
type OutputFile struct {
	RelativePath string `json:"path"`
	Content      string `json:"content"`
}

// RunEvent is one entry in the causally-ordered event stream for a run.
type RunEvent struct {
	Seq     int64     `json:"seq"`
	TS      time.Time `json:"ts"`
	RunID   string    `json:"run_id"`
	Step    string    `json:"step"`
	Percent int       `json:"percent"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// RunSummary is the listing shape returned by list_runs().
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Project   string    `json:"project"`
	Mode      Mode      `json:"mode"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
