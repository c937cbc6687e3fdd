package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/burakdemirel/analysishub/internal/domain/analysis"
)

// DefaultInterval between AI-status probes.
const DefaultInterval = 2 * time.Second

// probe is one active polling loop. The struct identity doubles as the
// ownership token: a late probe response is applied only if this exact
// probe is still registered for the id.
type probe struct {
	cancel context.CancelFunc
}

// Scheduler maintains at most one recurring probe per record awaiting AI
// commentary. A probe retires itself on completion; CancelAll tears down
// the rest on shutdown without touching records.
type Scheduler struct {
	Registry analysis.Registry
	Backend  analysis.Backend
	Logger   *slog.Logger

	// Interval between probes; DefaultInterval when zero.
	Interval time.Duration

	// MaxProbes caps attempts per record; 0 retries forever. When the cap
	// is hit the probe retires and the record stays pending.
	MaxProbes int

	mu     sync.Mutex
	probes map[analysis.RecordID]*probe
}

// Watch registers a record for polling. Calling it again while a probe is
// already active for the id is a no-op.
func (s *Scheduler) Watch(id analysis.RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.probes == nil {
		s.probes = make(map[analysis.RecordID]*probe)
	}
	if _, ok := s.probes[id]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &probe{cancel: cancel}
	s.probes[id] = p
	go s.loop(ctx, id, p)
}

// CancelAll stops every active probe without mutating any record.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.probes {
		p.cancel()
		delete(s.probes, id)
	}
}

// Active reports the number of live probes.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.probes)
}

func (s *Scheduler) loop(ctx context.Context, id analysis.RecordID, p *probe) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Re-read the authoritative record each tick; the probe exists iff
		// the record is still pending.
		rec, err := s.Registry.Get(id)
		if err != nil || rec.AIStatus != analysis.AIPending || rec.AnalysisID == "" {
			s.retire(id, p)
			return
		}

		res, err := s.Backend.AIStatus(ctx, rec.Tool, rec.AnalysisID)
		if err != nil {
			// Best effort: swallow the failure and retry next tick.
			s.Logger.Debug("ai probe failed", "id", id, "error", err)
		} else if res.Done {
			s.complete(id, p, res.Comment)
			return
		}

		attempts++
		if s.MaxProbes > 0 && attempts >= s.MaxProbes {
			s.Logger.Warn("ai probe budget exhausted", "id", id, "attempts", attempts)
			s.retire(id, p)
			return
		}
	}
}

// complete applies the single terminal AI update, but only while this probe
// still owns the id. A response landing after CancelAll is dropped.
func (s *Scheduler) complete(id analysis.RecordID, p *probe, comment string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.probes[id]
	if !ok || current != p {
		return
	}
	delete(s.probes, id)
	p.cancel()

	done := analysis.AICompleted
	if err := s.Registry.Update(id, analysis.Patch{AIStatus: &done, AIComment: &comment}); err != nil {
		s.Logger.Error("recording ai comment", "id", id, "error", err)
		return
	}
	s.Logger.Info("ai commentary completed", "id", id)
}

func (s *Scheduler) retire(id analysis.RecordID, p *probe) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.probes[id]; ok && current == p {
		delete(s.probes, id)
		p.cancel()
	}
}
