package analysis

import (
	"time"
)

// ID tipe untuk ScanRecord
type RecordID string

// Tool enum: the closed set of analyzer backends a submission can be routed to.
type Tool string

const (
	ToolStyleChecker  Tool = "style"
	ToolMemorySafety  Tool = "memsafety"
	ToolVulnerability Tool = "vulnscan"
)

// Status enum for the primary analysis lifecycle.
// Transitions are monotonic: Submitted → Running → {Completed, Failed}.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further primary-status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AIStatus enum for the secondary commentary pipeline.
// NotRequested → Pending → Completed; Pending is reachable only from a
// completed primary analysis.
type AIStatus string

const (
	AINotRequested AIStatus = "not_requested"
	AIPending      AIStatus = "pending"
	AICompleted    AIStatus = "completed"
)

// Aggregate Root: ScanRecord, one per submission.
// Tool and AnalysisID are immutable once set.
type ScanRecord struct {
	ID           RecordID        `json:"id"`
	SubjectName  string          `json:"subject_name"`
	Tool         Tool            `json:"tool"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	Status       Status          `json:"status"`
	Result       ResultPayload   `json:"result,omitempty"`
	Counts       *SeverityCounts `json:"counts,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	AnalysisID   string          `json:"analysis_id,omitempty"`
	AIStatus     AIStatus        `json:"ai_status"`
	AIComment    string          `json:"ai_comment,omitempty"`

	// Source keeps the submitted file content for chat grounding.
	// Never serialized in API responses.
	Source string `json:"-"`
}

// Clone returns a deep copy safe to hand to callers outside the registry.
func (r *ScanRecord) Clone() *ScanRecord {
	cp := *r
	if r.Result != nil {
		cp.Result = append(ResultPayload(nil), r.Result...)
	}
	if r.Counts != nil {
		c := *r.Counts
		cp.Counts = &c
	}
	return &cp
}

// ChatRole enum
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry in a record's append-only transcript.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
