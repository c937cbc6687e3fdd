package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/burakdemirel/analysishub/internal/domain/analysis"
)

// errorReply is the fixed user-visible placeholder appended when an
// exchange fails. The user's question stays in the transcript.
const errorReply = "Something went wrong while answering. Please try again."

// emptyReply stands in for a blank backend response.
const emptyReply = "---"

// Session owns the ordered transcript for one record. Messages are
// append-only and never reordered; busy serializes exchanges so at most one
// is in flight.
type Session struct {
	mu       sync.Mutex
	busy     bool
	messages []analysis.ChatMessage
}

// Manager mediates chat sessions, one per completed record.
type Manager struct {
	Registry analysis.Registry
	Backend  analysis.Backend
	Logger   *slog.Logger

	mu       sync.Mutex
	sessions map[analysis.RecordID]*Session
}

// Ask appends one question/answer exchange to the record's session.
// Whitespace-only questions and records that have not completed are
// rejected before anything is appended or sent.
func (m *Manager) Ask(ctx context.Context, id analysis.RecordID, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return analysis.ErrEmptyQuestion
	}

	rec, err := m.Registry.Get(id)
	if err != nil {
		return err
	}
	if rec.Status != analysis.StatusCompleted {
		return analysis.ErrNotCompleted
	}

	sess := m.session(id)

	sess.mu.Lock()
	if sess.busy {
		sess.mu.Unlock()
		return analysis.ErrSessionBusy
	}
	// Optimistic append: the question is visible before the round trip
	// resolves.
	sess.busy = true
	sess.messages = append(sess.messages, analysis.ChatMessage{
		Role:    analysis.RoleUser,
		Content: question,
	})
	sess.mu.Unlock()

	reply, err := m.Backend.Chat(ctx, rec.Tool, rec.Result, rec.Source, question)
	if err != nil {
		m.Logger.Warn("chat exchange failed", "id", id, "error", err)
		reply = errorReply
	} else if reply == "" {
		reply = emptyReply
	}

	sess.mu.Lock()
	sess.messages = append(sess.messages, analysis.ChatMessage{
		Role:    analysis.RoleAssistant,
		Content: reply,
	})
	sess.busy = false
	sess.mu.Unlock()
	return nil
}

// Transcript returns a snapshot of the record's messages in submission
// order. A record without a session has an empty transcript.
func (m *Manager) Transcript(id analysis.RecordID) []analysis.ChatMessage {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return []analysis.ChatMessage{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]analysis.ChatMessage, len(sess.messages))
	copy(out, sess.messages)
	return out
}

func (m *Manager) session(id analysis.RecordID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions == nil {
		m.sessions = make(map[analysis.RecordID]*Session)
	}
	sess, ok := m.sessions[id]
	if !ok {
		sess = &Session{}
		m.sessions[id] = sess
	}
	return sess
}
