package scans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/burakdemirel/analysishub/internal/application"
	"github.com/burakdemirel/analysishub/internal/domain/analysis"
	"github.com/burakdemirel/analysishub/internal/middleware"
)

// extensionTools is the fixed allow-list routing file submissions.
// Anything else is rejected before a record exists.
var extensionTools = map[string]analysis.Tool{
	".java": analysis.ToolStyleChecker,
	".js":   analysis.ToolStyleChecker,
	".jsx":  analysis.ToolStyleChecker,
	".c":    analysis.ToolMemorySafety,
	".cpp":  analysis.ToolMemorySafety,
}

// Service implements the submission use-cases. It is safe for concurrent
// use; every submission runs independently against its own record.
type Service struct {
	Registry analysis.Registry
	Backend  analysis.Backend
	Watcher  analysis.Watcher
	Clock    application.Clock
	Logger   *slog.Logger

	wg sync.WaitGroup
}

// SubmitFile validates and routes a source file. The record is created with
// status submitted before any network round trip; the backend call runs in
// the background until done.
func (s *Service) SubmitFile(name string, content []byte) (analysis.RecordID, error) {
	ext := strings.ToLower(filepath.Ext(name))
	tool, ok := extensionTools[ext]
	if !ok {
		return "", analysis.NewValidationError(
			"unsupported file type: %q (allowed: .java, .js, .jsx, .c, .cpp)", ext)
	}

	rec := s.newRecord(name, tool)
	rec.Source = string(content)
	if err := s.Registry.Create(rec); err != nil {
		return "", err
	}

	s.wg.Add(1)
	go s.run(rec.ID, tool, func(ctx context.Context) (analysis.SubmitOutcome, error) {
		return s.Backend.SubmitFile(ctx, tool, name, content)
	})
	return rec.ID, nil
}

// SubmitImage validates and routes a container image reference to the
// vulnerability scanner.
func (s *Service) SubmitImage(image string) (analysis.RecordID, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", analysis.NewValidationError("image reference is empty")
	}
	if err := middleware.ValidateImageName(image); err != nil {
		return "", analysis.NewValidationError("%v", err)
	}

	rec := s.newRecord(image, analysis.ToolVulnerability)
	if err := s.Registry.Create(rec); err != nil {
		return "", err
	}

	s.wg.Add(1)
	go s.run(rec.ID, analysis.ToolVulnerability, func(ctx context.Context) (analysis.SubmitOutcome, error) {
		return s.Backend.SubmitImage(ctx, image)
	})
	return rec.ID, nil
}

// Wait blocks until every in-flight submission has reached a terminal
// status. Used on shutdown and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) newRecord(subject string, tool analysis.Tool) *analysis.ScanRecord {
	id := fmt.Sprintf("%s-%s", uuid.New().String(), tool)
	return &analysis.ScanRecord{
		ID:          analysis.RecordID(id),
		SubjectName: subject,
		Tool:        tool,
		SubmittedAt: s.Clock.Now(),
		Status:      analysis.StatusSubmitted,
		AIStatus:    analysis.AINotRequested,
	}
}

// run drives one submission to its terminal status with a background
// context, so a disconnecting caller cannot cancel a scan midway.
func (s *Service) run(id analysis.RecordID, tool analysis.Tool, call func(context.Context) (analysis.SubmitOutcome, error)) {
	defer s.wg.Done()
	ctx := context.Background()

	running := analysis.StatusRunning
	if err := s.Registry.Update(id, analysis.Patch{Status: &running}); err != nil {
		s.Logger.Error("marking scan running", "id", id, "error", err)
		return
	}

	out, err := call(ctx)
	if err != nil {
		s.fail(id, err)
		return
	}

	patch, err := completionPatch(tool, out)
	if err != nil {
		s.fail(id, err)
		return
	}
	if err := s.Registry.Update(id, patch); err != nil {
		s.Logger.Error("recording scan result", "id", id, "error", err)
		return
	}
	s.Logger.Info("scan completed", "id", id, "tool", tool)

	// Hand the pending record to the poller exactly once.
	if patch.AIStatus != nil && *patch.AIStatus == analysis.AIPending {
		s.Watcher.Watch(id)
	}
}

// completionPatch builds the terminal update for a successful primary
// response, verifying the payload decodes for the record's tool.
func completionPatch(tool analysis.Tool, out analysis.SubmitOutcome) (analysis.Patch, error) {
	patch := analysis.Patch{Result: out.Result}

	switch tool {
	case analysis.ToolStyleChecker:
		if _, err := analysis.DecodeStyleReport(out.Result); err != nil {
			return analysis.Patch{}, fmt.Errorf("decoding style report: %w", err)
		}
	case analysis.ToolMemorySafety:
		if _, err := analysis.DecodeMemorySafetyIssues(out.Result); err != nil {
			return analysis.Patch{}, fmt.Errorf("decoding memory-safety report: %w", err)
		}
	case analysis.ToolVulnerability:
		counts, err := analysis.CountVulnerabilities(out.Result)
		if err != nil {
			return analysis.Patch{}, fmt.Errorf("decoding vulnerability report: %w", err)
		}
		patch.Counts = &counts
	}

	completed := analysis.StatusCompleted
	patch.Status = &completed
	if out.AnalysisID != "" {
		id := out.AnalysisID
		pending := analysis.AIPending
		patch.AnalysisID = &id
		patch.AIStatus = &pending
	}
	return patch, nil
}

// fail marks the record failed with the backend's message when it supplied
// one, otherwise a generic fallback. AI status stays not-requested.
func (s *Service) fail(id analysis.RecordID, cause error) {
	msg := "analysis failed"
	var be *analysis.BackendError
	if errors.As(cause, &be) && be.Message != "" {
		msg = be.Message
	}

	failed := analysis.StatusFailed
	if err := s.Registry.Update(id, analysis.Patch{Status: &failed, ErrorMessage: &msg}); err != nil {
		s.Logger.Error("marking scan failed", "id", id, "error", err)
		return
	}
	s.Logger.Warn("scan failed", "id", id, "error", cause)
}
