package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/burakdemirel/analysishub/internal/domain/analysis"
	"github.com/burakdemirel/analysishub/internal/infra/memstore"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// eventWriter is the slice of the websocket connection the stream writes to.
type eventWriter interface {
	WriteJSON(v any) error
}

// eventSource is the slice of the registry the stream consumes.
type eventSource interface {
	Get(id analysis.RecordID) (*analysis.ScanRecord, error)
	Subscribe(id analysis.RecordID) (<-chan memstore.Event, func())
}

// GET /v1/scans/{id}/events
// Streams the record's status transitions until it is fully settled
// (terminal primary status and no pending AI commentary) or the client
// disconnects.
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	id := analysis.RecordID(chi.URLParam(req, "id"))

	if _, err := r.registry.Get(id); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	streamEvents(req.Context(), conn, r.registry, id)
}

// streamEvents subscribes first and only then reads the snapshot, so a
// transition landing during the websocket upgrade is never lost: it is
// either already part of the snapshot or queued on the channel.
func streamEvents(ctx context.Context, conn eventWriter, src eventSource, id analysis.RecordID) {
	events, cancel := src.Subscribe(id)
	defer cancel()

	rec, err := src.Get(id)
	if err != nil {
		return
	}

	first := memstore.Event{ID: rec.ID, Status: rec.Status, AIStatus: rec.AIStatus}
	if err := conn.WriteJSON(first); err != nil {
		return
	}
	if settled(first) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if settled(ev) {
				return
			}
		}
	}
}

// settled means no further transition can arrive for this record.
func settled(ev memstore.Event) bool {
	if ev.Status == analysis.StatusFailed {
		return true
	}
	return ev.Status == analysis.StatusCompleted && ev.AIStatus != analysis.AIPending
}
