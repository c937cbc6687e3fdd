package memstore

import (
	"sort"
	"sync"

	"github.com/burakdemirel/analysishub/internal/domain/analysis"
)

// Event is a status-transition notification published to subscribers.
type Event struct {
	ID       analysis.RecordID `json:"id"`
	Status   analysis.Status   `json:"status"`
	AIStatus analysis.AIStatus `json:"ai_status"`
}

// subscriber buffer size; slow readers drop events instead of blocking
// registry updates.
const eventBuffer = 16

// Registry is the in-memory implementation of the registry port. All state
// lives for the process lifetime only; records are never deleted.
type Registry struct {
	mu      sync.RWMutex
	records map[analysis.RecordID]*analysis.ScanRecord
	subs    map[analysis.RecordID]map[int]chan Event
	nextSub int
}

func New() *Registry {
	return &Registry{
		records: make(map[analysis.RecordID]*analysis.ScanRecord),
		subs:    make(map[analysis.RecordID]map[int]chan Event),
	}
}

// Create stores a new record. The input is cloned so the caller cannot
// mutate registry state behind the lock.
func (r *Registry) Create(rec *analysis.ScanRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return analysis.ErrDuplicateRecord
	}
	cp := rec.Clone()
	if cp.AIStatus == "" {
		cp.AIStatus = analysis.AINotRequested
	}
	r.records[cp.ID] = cp
	r.publishLocked(cp)
	return nil
}

// Update merges a patch onto the record. Terminal statuses are final; the
// analysis id binds once. A violating patch is rejected whole.
func (r *Registry) Update(id analysis.RecordID, p analysis.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return analysis.ErrRecordNotFound
	}

	next := rec.Status
	if p.Status != nil {
		if !canTransition(rec.Status, *p.Status) {
			return analysis.ErrStatusRegression
		}
		next = *p.Status
	}
	if p.AIStatus != nil {
		if !canTransitionAI(rec.AIStatus, *p.AIStatus) {
			return analysis.ErrStatusRegression
		}
		// AI commentary only attaches to a completed analysis.
		if *p.AIStatus == analysis.AIPending && next != analysis.StatusCompleted {
			return analysis.ErrStatusRegression
		}
	}
	if p.AnalysisID != nil && rec.AnalysisID != "" && *p.AnalysisID != rec.AnalysisID {
		return analysis.ErrAnalysisIDRebind
	}

	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.Result != nil {
		rec.Result = append(analysis.ResultPayload(nil), p.Result...)
	}
	if p.Counts != nil {
		c := *p.Counts
		rec.Counts = &c
	}
	if p.ErrorMessage != nil {
		rec.ErrorMessage = *p.ErrorMessage
	}
	if p.AnalysisID != nil {
		rec.AnalysisID = *p.AnalysisID
	}
	if p.AIStatus != nil {
		rec.AIStatus = *p.AIStatus
	}
	if p.AIComment != nil {
		rec.AIComment = *p.AIComment
	}

	r.publishLocked(rec)
	return nil
}

// Get returns a copy of one record.
func (r *Registry) Get(id analysis.RecordID) (*analysis.ScanRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, analysis.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// List returns a point-in-time snapshot, newest submissions first. The
// snapshot is safe to iterate while concurrent updates continue.
func (r *Registry) List() []*analysis.ScanRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*analysis.ScanRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Subscribe delivers this record's status transitions until cancel is
// called. Slow subscribers miss events rather than blocking writers.
func (r *Registry) Subscribe(id analysis.RecordID) (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Event, eventBuffer)
	if r.subs[id] == nil {
		r.subs[id] = make(map[int]chan Event)
	}
	key := r.nextSub
	r.nextSub++
	r.subs[id][key] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if set, ok := r.subs[id]; ok {
			if c, ok := set[key]; ok {
				delete(set, key)
				close(c)
			}
			if len(set) == 0 {
				delete(r.subs, id)
			}
		}
	}
	return ch, cancel
}

func (r *Registry) publishLocked(rec *analysis.ScanRecord) {
	ev := Event{ID: rec.ID, Status: rec.Status, AIStatus: rec.AIStatus}
	for _, ch := range r.subs[rec.ID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func canTransition(from, to analysis.Status) bool {
	if from == to {
		return true
	}
	switch from {
	case analysis.StatusSubmitted:
		return to != analysis.StatusSubmitted
	case analysis.StatusRunning:
		return to == analysis.StatusCompleted || to == analysis.StatusFailed
	default:
		return false
	}
}

func canTransitionAI(from, to analysis.AIStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case analysis.AINotRequested:
		return to == analysis.AIPending
	case analysis.AIPending:
		return to == analysis.AICompleted
	default:
		return false
	}
}
