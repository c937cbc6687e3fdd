package analysis

import "context"

// Patch merges fields onto an existing record by id. Nil fields are left
// untouched. Status fields may only move forward.
type Patch struct {
	Status       *Status
	Result       ResultPayload
	Counts       *SeverityCounts
	ErrorMessage *string
	AnalysisID   *string
	AIStatus     *AIStatus
	AIComment    *string
}

// Registry port: the authoritative keyed store of all submission records.
type Registry interface {
	Create(rec *ScanRecord) error
	Update(id RecordID, p Patch) error
	Get(id RecordID) (*ScanRecord, error)
	List() []*ScanRecord
}

// SubmitOutcome is a successful primary response from an analyzer backend.
type SubmitOutcome struct {
	Result     ResultPayload
	AnalysisID string
}

// AIProbeResult is one ai-status probe response.
type AIProbeResult struct {
	Done    bool
	Comment string
}

// Backend port: the fixed request/response contract every analyzer is
// consumed through.
type Backend interface {
	SubmitFile(ctx context.Context, tool Tool, filename string, content []byte) (SubmitOutcome, error)
	SubmitImage(ctx context.Context, image string) (SubmitOutcome, error)
	AIStatus(ctx context.Context, tool Tool, analysisID string) (AIProbeResult, error)
	Chat(ctx context.Context, tool Tool, analysisResult ResultPayload, sourceCode, question string) (string, error)
}

// Watcher port: registers a record for AI-completion polling.
type Watcher interface {
	Watch(id RecordID)
}
