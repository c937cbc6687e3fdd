package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appchat "github.com/burakdemirel/analysishub/internal/application/chat"
	appscans "github.com/burakdemirel/analysishub/internal/application/scans"
	"github.com/burakdemirel/analysishub/internal/domain/analysis"
	"github.com/burakdemirel/analysishub/internal/infra/memstore"
	"github.com/burakdemirel/analysishub/internal/middleware"
)

// uploads larger than this are rejected at parse time
const maxUploadBytes = 10 << 20

type Router struct {
	scansSvc *appscans.Service
	chatSvc  *appchat.Manager
	registry *memstore.Registry
	health   http.HandlerFunc
}

type Options struct {
	CORSOrigins []string
	Health      map[string]middleware.HealthChecker
}

func NewRouter(scansSvc *appscans.Service, chatSvc *appchat.Manager, registry *memstore.Registry, opts Options) http.Handler {
	r := &Router{
		scansSvc: scansSvc,
		chatSvc:  chatSvc,
		registry: registry,
		health:   middleware.HealthHandler(opts.Health),
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	mux.Get("/health", r.health)
	mux.Get("/ready", middleware.ReadinessHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/scans/file", r.wrap(r.handleSubmitFile))
		rt.Post("/scans/image", r.wrap(r.handleSubmitImage))
		rt.Get("/scans", r.wrap(r.handleList))
		rt.Get("/scans/{id}", r.wrap(r.handleGet))
		rt.Get("/scans/{id}/events", r.handleEvents)
		rt.Post("/scans/{id}/chat", r.wrap(r.handleChatAsk))
		rt.Get("/scans/{id}/chat", r.wrap(r.handleChatTranscript))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var ve *analysis.ValidationError
			switch {
			case errors.As(err, &ve):
				http.Error(w, ve.Reason, http.StatusBadRequest)
			case errors.Is(err, analysis.ErrEmptyQuestion):
				http.Error(w, "question is empty", http.StatusBadRequest)
			case errors.Is(err, analysis.ErrRecordNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, analysis.ErrNotCompleted):
				http.Error(w, "analysis is not completed", http.StatusConflict)
			case errors.Is(err, analysis.ErrSessionBusy):
				http.Error(w, "chat session is busy", http.StatusConflict)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// POST /v1/scans/file
// Multipart upload under the "file" field. Replies as soon as the record
// exists; the analysis itself runs in the background.
func (r *Router) handleSubmitFile(w http.ResponseWriter, req *http.Request) error {
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		return analysis.NewValidationError("invalid upload: %v", err)
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return analysis.NewValidationError("missing file field")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	name := middleware.SanitizeFilename(header.Filename)
	id, err := r.scansSvc.SubmitFile(name, content)
	if err != nil {
		return err
	}
	return r.queued(w, id, name)
}

// POST /v1/scans/image
// Body: {"image": "<reference>"}
func (r *Router) handleSubmitImage(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return analysis.NewValidationError("invalid request body")
	}

	id, err := r.scansSvc.SubmitImage(body.Image)
	if err != nil {
		return err
	}
	return r.queued(w, id, body.Image)
}

func (r *Router) queued(w http.ResponseWriter, id analysis.RecordID, subject string) error {
	resp := map[string]any{
		"id":       id,
		"subject":  subject,
		"status":   analysis.StatusSubmitted,
		"message":  "analysis started in background",
		"queuedAt": time.Now(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(resp)
}

// GET /v1/scans
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(r.registry.List())
}

// GET /v1/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := analysis.RecordID(chi.URLParam(req, "id"))

	rec, err := r.registry.Get(id)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rec)
}

// POST /v1/scans/{id}/chat
// Body: {"question": "..."}; replies with the updated transcript.
func (r *Router) handleChatAsk(w http.ResponseWriter, req *http.Request) error {
	id := analysis.RecordID(chi.URLParam(req, "id"))

	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return analysis.NewValidationError("invalid request body")
	}

	if err := r.chatSvc.Ask(req.Context(), id, body.Question); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(r.chatSvc.Transcript(id))
}

// GET /v1/scans/{id}/chat
func (r *Router) handleChatTranscript(w http.ResponseWriter, req *http.Request) error {
	id := analysis.RecordID(chi.URLParam(req, "id"))

	if _, err := r.registry.Get(id); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(r.chatSvc.Transcript(id))
}
