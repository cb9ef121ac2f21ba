package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/usecase"
	"github.com/secmon-lab/pilot/pkg/utils/errutil"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
)

// Server is the local HTTP surface of a running capture session: status,
// the live committed transcript, memory queries, the stop control, and a
// websocket event feed. It binds to localhost only; there is no auth.
type Server struct {
	router   *chi.Mux
	uc       *usecase.UseCases
	recorder *usecase.Recorder
}

type Options func(*Server)

// WithRecorder attaches the running session. Session endpoints return 404
// when no recorder is attached (query-only mode).
func WithRecorder(rec *usecase.Recorder) Options {
	return func(s *Server) {
		s.recorder = rec
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/transcript", s.handleTranscript)
		r.Post("/query", s.handleQuery)
		r.Post("/stop", s.handleStop)
	})
	r.Get("/ws/events", s.handleEvents)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) snapshot(w http.ResponseWriter) *model.Session {
	if s.recorder == nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return nil
	}
	return s.recorder.Snapshot()
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session := s.snapshot(w)
	if session == nil {
		return
	}

	type itemCount struct {
		ActionItems    int `json:"action_items"`
		Decisions      int `json:"decisions"`
		Clarifications int `json:"clarifications"`
	}
	resp := struct {
		ID        string    `json:"id"`
		Status    string    `json:"status"`
		StartedAt time.Time `json:"started_at"`
		Chunks    int       `json:"chunks_committed"`
		Gaps      int       `json:"gap_chunks"`
		Items     itemCount `json:"items"`
	}{
		ID:        session.ID.String(),
		Status:    session.Status.String(),
		StartedAt: session.StartedAt,
		Chunks:    len(session.Chunks),
		Gaps:      len(session.GapChunks()),
		Items: itemCount{
			ActionItems:    len(session.ActionItems),
			Decisions:      len(session.Decisions),
			Clarifications: len(session.Clarifications),
		},
	}
	writeJSON(w, r, resp)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	session := s.snapshot(w)
	if session == nil {
		return
	}

	type chunkEntry struct {
		Index  int    `json:"index"`
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	chunks := make([]chunkEntry, len(session.Chunks))
	for i, c := range session.Chunks {
		chunks[i] = chunkEntry{
			Index:  c.Index,
			Status: c.Status.String(),
			Text:   c.Text(),
		}
	}
	writeJSON(w, r, struct {
		Transcript string       `json:"transcript"`
		Chunks     []chunkEntry `json:"chunks"`
	}{
		Transcript: session.Transcript(),
		Chunks:     chunks,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Scope string `json:"scope"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid query request"), http.StatusBadRequest)
		return
	}

	scope := model.QueryScope(req.Scope)
	if scope == "" {
		scope = model.ScopeAll
	}

	records, err := s.uc.Query(r.Context(), req.Query, scope, req.Limit)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	type recordEntry struct {
		Kind      string    `json:"kind"`
		Title     string    `json:"title"`
		Summary   string    `json:"summary"`
		CreatedAt time.Time `json:"created_at"`
	}
	resp := make([]recordEntry, len(records))
	for i, rec := range records {
		resp[i] = recordEntry{
			Kind:      string(rec.Kind),
			Title:     rec.Title,
			Summary:   rec.Summary,
			CreatedAt: rec.CreatedAt,
		}
	}
	writeJSON(w, r, struct {
		Results []recordEntry `json:"results"`
	}{Results: resp})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}
	s.recorder.Stop()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck // header already committed
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
