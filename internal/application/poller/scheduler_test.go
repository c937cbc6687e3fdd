package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/burakdemirel/analysishub/internal/domain/analysis"
	"github.com/burakdemirel/analysishub/internal/infra/memstore"
	"github.com/burakdemirel/analysishub/internal/logging"
)

// probeBackend scripts AIStatus; the submit and chat paths are unused here.
type probeBackend struct {
	mu       sync.Mutex
	calls    int
	aiStatus func(call int) (analysis.AIProbeResult, error)
}

func (b *probeBackend) AIStatus(context.Context, analysis.Tool, string) (analysis.AIProbeResult, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()
	return b.aiStatus(n)
}

func (b *probeBackend) SubmitFile(context.Context, analysis.Tool, string, []byte) (analysis.SubmitOutcome, error) {
	return analysis.SubmitOutcome{}, nil
}

func (b *probeBackend) SubmitImage(context.Context, string) (analysis.SubmitOutcome, error) {
	return analysis.SubmitOutcome{}, nil
}

func (b *probeBackend) Chat(context.Context, analysis.Tool, analysis.ResultPayload, string, string) (string, error) {
	return "", nil
}

func (b *probeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func newPendingRecord(t *testing.T, r *memstore.Registry, id string) analysis.RecordID {
	t.Helper()

	rid := analysis.RecordID(id)
	rec := &analysis.ScanRecord{
		ID:          rid,
		SubjectName: "nginx:latest",
		Tool:        analysis.ToolVulnerability,
		SubmittedAt: time.Now(),
		Status:      analysis.StatusSubmitted,
		AIStatus:    analysis.AINotRequested,
	}
	if err := r.Create(rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	completed := analysis.StatusCompleted
	pending := analysis.AIPending
	aid := "vuln_" + id
	err := r.Update(rid, analysis.Patch{
		Status:     &completed,
		AIStatus:   &pending,
		AnalysisID: &aid,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	return rid
}

func newScheduler(r *memstore.Registry, b analysis.Backend) *Scheduler {
	return &Scheduler{
		Registry: r,
		Backend:  b,
		Logger:   logging.Discard(),
		Interval: 5 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestScheduler_WatchIdempotent(t *testing.T) {
	t.Parallel()

	registry := memstore.New()
	id := newPendingRecord(t, registry, "a")

	backend := &probeBackend{aiStatus: func(int) (analysis.AIProbeResult, error) {
		return analysis.AIProbeResult{}, nil
	}}
	s := newScheduler(registry, backend)
	defer s.CancelAll()

	s.Watch(id)
	s.Watch(id)
	s.Watch(id)

	if got := s.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}
}

func TestScheduler_CompletesAndRetires(t *testing.T) {
	t.Parallel()

	registry := memstore.New()
	id := newPendingRecord(t, registry, "a")

	backend := &probeBackend{aiStatus: func(call int) (analysis.AIProbeResult, error) {
		if call < 3 {
			return analysis.AIProbeResult{}, nil
		}
		return analysis.AIProbeResult{Done: true, Comment: "patch openssl"}, nil
	}}
	s := newScheduler(registry, backend)

	s.Watch(id)
	waitFor(t, func() bool { return s.Active() == 0 }, "probe never retired")

	rec, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.AIStatus != analysis.AICompleted {
		t.Errorf("AIStatus = %v, want completed", rec.AIStatus)
	}
	if rec.AIComment != "patch openssl" {
		t.Errorf("AIComment = %q, want %q", rec.AIComment, "patch openssl")
	}
	if got := backend.callCount(); got != 3 {
		t.Errorf("AIStatus called %d times, want 3", got)
	}
}

func TestScheduler_RetriesAfterProbeError(t *testing.T) {
	t.Parallel()

	registry := memstore.New()
	id := newPendingRecord(t, registry, "a")

	backend := &probeBackend{aiStatus: func(call int) (analysis.AIProbeResult, error) {
		if call <= 2 {
			return analysis.AIProbeResult{}, errors.New("backend hiccup")
		}
		return analysis.AIProbeResult{Done: true, Comment: "done"}, nil
	}}
	s := newScheduler(registry, backend)

	s.Watch(id)
	waitFor(t, func() bool { return s.Active() == 0 }, "probe never retired")

	rec, _ := registry.Get(id)
	if rec.AIStatus != analysis.AICompleted {
		t.Errorf("AIStatus = %v, want completed despite earlier probe errors", rec.AIStatus)
	}
}

func TestScheduler_MaxProbesRetiresPending(t *testing.T) {
	t.Parallel()

	registry := memstore.New()
	id := newPendingRecord(t, registry, "a")

	backend := &probeBackend{aiStatus: func(int) (analysis.AIProbeResult, error) {
		return analysis.AIProbeResult{}, nil
	}}
	s := newScheduler(registry, backend)
	s.MaxProbes = 3

	s.Watch(id)
	waitFor(t, func() bool { return s.Active() == 0 }, "probe never retired")

	// The budget retires the probe; the record stays pending.
	rec, _ := registry.Get(id)
	if rec.AIStatus != analysis.AIPending {
		t.Errorf("AIStatus = %v, want still pending", rec.AIStatus)
	}
	if got := backend.callCount(); got != 3 {
		t.Errorf("AIStatus called %d times, want 3", got)
	}
}

func TestScheduler_RetiresWhenRecordNoLongerPending(t *testing.T) {
	t.Parallel()

	registry := memstore.New()
	id := newPendingRecord(t, registry, "a")

	backend := &probeBackend{aiStatus: func(int) (analysis.AIProbeResult, error) {
		return analysis.AIProbeResult{}, nil
	}}
	s := newScheduler(registry, backend)

	// Commentary lands through another path before the first tick fires.
	done := analysis.AICompleted
	comment := "already here"
	if err := registry.Update(id, analysis.Patch{AIStatus: &done, AIComment: &comment}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	s.Watch(id)
	waitFor(t, func() bool { return s.Active() == 0 }, "probe never retired")

	rec, _ := registry.Get(id)
	if rec.AIComment != "already here" {
		t.Errorf("AIComment = %q, probe must not overwrite it", rec.AIComment)
	}
}

func TestScheduler_CancelAllStopsProbes(t *testing.T) {
	t.Parallel()

	registry := memstore.New()
	backend := &probeBackend{aiStatus: func(int) (analysis.AIProbeResult, error) {
		return analysis.AIProbeResult{}, nil
	}}
	s := newScheduler(registry, backend)

	for _, id := range []string{"a", "b", "c"} {
		s.Watch(newPendingRecord(t, registry, id))
	}
	if got := s.Active(); got != 3 {
		t.Fatalf("Active() = %d, want 3", got)
	}

	s.CancelAll()
	if got := s.Active(); got != 0 {
		t.Errorf("Active() = %d after CancelAll, want 0", got)
	}

	// No record was touched on the way out.
	for _, id := range []string{"a", "b", "c"} {
		rec, _ := registry.Get(analysis.RecordID(id))
		if rec.AIStatus != analysis.AIPending {
			t.Errorf("%s AIStatus = %v, want still pending", id, rec.AIStatus)
		}
	}
}

func TestScheduler_LateResponseDropped(t *testing.T) {
	t.Parallel()

	registry := memstore.New()
	id := newPendingRecord(t, registry, "a")

	inProbe := make(chan struct{})
	release := make(chan struct{})
	backend := &probeBackend{aiStatus: func(int) (analysis.AIProbeResult, error) {
		close(inProbe)
		<-release
		return analysis.AIProbeResult{Done: true, Comment: "too late"}, nil
	}}
	s := newScheduler(registry, backend)

	s.Watch(id)
	<-inProbe

	// Shutdown wins the race; the in-flight response must be dropped.
	s.CancelAll()
	close(release)

	waitFor(t, func() bool {
		rec, _ := registry.Get(id)
		return rec.AIStatus == analysis.AIPending
	}, "record state unreadable")

	time.Sleep(20 * time.Millisecond)
	rec, _ := registry.Get(id)
	if rec.AIStatus != analysis.AIPending {
		t.Errorf("AIStatus = %v, a cancelled probe applied its result", rec.AIStatus)
	}
	if rec.AIComment != "" {
		t.Errorf("AIComment = %q, want empty", rec.AIComment)
	}
}
