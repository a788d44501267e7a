// Package api exposes the control plane over HTTP: queue CRUD, transport
// controls, recording, station status, and the live-ingest websocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	zlog "github.com/rs/zerolog/log"

	"aircast/internal/app/status"
	"aircast/internal/domain/queue"
	"aircast/internal/infra/ledger"
	"aircast/internal/infra/liquidsoap"
)

// Playlist is the queue and transport surface the API serves.
type Playlist interface {
	Stage(ctx context.Context, name, folder string) (*queue.Entry, error)
	PlayNext(ctx context.Context, name, folder string) (*queue.Entry, error)
	PlayNow(ctx context.Context, name, folder string) (*queue.Entry, error)
	List(ctx context.Context) ([]*queue.Entry, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Reorder(ctx context.Context, changes []ledger.PositionChange) error
	Clear(ctx context.Context) error
	Skip(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Playing(ctx context.Context) (bool, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	RecordingStatus(ctx context.Context) (bool, string, error)
	NowPlaying(ctx context.Context) (string, error)
	NextStagedName(ctx context.Context) (string, error)
}

// StatusProvider serves station statistics.
type StatusProvider interface {
	Get(ctx context.Context) (status.Result, error)
}

// Server bundles the HTTP handlers.
type Server struct {
	playlist Playlist
	status   StatusProvider
	ingest   http.HandlerFunc
}

// New creates the API server. ingest handles the live-ingest websocket
// route; nil disables it.
func New(playlist Playlist, statusProvider StatusProvider, ingest http.HandlerFunc) *Server {
	return &Server{playlist: playlist, status: statusProvider, ingest: ingest}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", s.handleQueueList)
			r.Post("/", s.handleQueueStage)
			r.Post("/reorder", s.handleQueueReorder)
			r.Delete("/{id}", s.handleQueueRemove)
		})

		r.Route("/control", func(r chi.Router) {
			r.Post("/push", s.handlePush)
			r.Post("/play-now", s.handlePlayNow)
			r.Post("/skip", s.handleSkip)
			r.Post("/queue/clear", s.handleQueueClear)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Get("/playback-status", s.handlePlaybackStatus)
		})

		r.Route("/recording", func(r chi.Router) {
			r.Post("/start", s.handleRecordingStart)
			r.Post("/stop", s.handleRecordingStop)
			r.Get("/status", s.handleRecordingStatus)
		})
	})

	if s.ingest != nil {
		r.Get("/ws/broadcast", s.ingest)
	}

	return r
}

// trackRequest is the body for stage, push, and play-now.
type trackRequest struct {
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

type reorderRequest struct {
	Items []ledger.PositionChange `json:"items"`
}

// statusResponse augments the cached snapshot with the queue's next
// staged name, so the dashboard renders both in one round trip.
type statusResponse struct {
	status.Result
	NowPlaying string `json:"nowPlaying,omitempty"`
	NextStaged string `json:"nextStaged,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.status.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	next, err := s.playlist.NextStagedName(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	// An unreachable engine degrades the status instead of failing it.
	nowPlaying, err := s.playlist.NowPlaying(r.Context())
	if err != nil {
		zlog.Debug().Msgf("api: now-playing unavailable: %v", err)
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Result:     result,
		NowPlaying: nowPlaying,
		NextStaged: next,
	})
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.playlist.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": entries})
}

func (s *Server) handleQueueStage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTrack(w, r)
	if !ok {
		return
	}
	entry, err := s.playlist.Stage(r.Context(), req.Name, req.Folder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	removed, err := s.playlist.Remove(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeJSONError(w, http.StatusNotFound, "no such entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		writeJSONError(w, http.StatusBadRequest, "items is required")
		return
	}
	if err := s.playlist.Reorder(r.Context(), req.Items); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTrack(w, r)
	if !ok {
		return
	}
	entry, err := s.playlist.PlayNext(r.Context(), req.Name, req.Folder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handlePlayNow(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTrack(w, r)
	if !ok {
		return
	}
	entry, err := s.playlist.PlayNow(r.Context(), req.Name, req.Folder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	if err := s.playlist.Skip(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	if err := s.playlist.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.playlist.Pause(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.playlist.Resume(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	playing, err := s.playlist.Playing(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playing": playing})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if err := s.playlist.StartRecording(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if err := s.playlist.StopRecording(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	active, remaining, err := s.playlist.RecordingStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recording": active,
		"remaining": remaining,
	})
}

func decodeTrack(w http.ResponseWriter, r *http.Request) (trackRequest, bool) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Msgf("api: encode response: %v", err)
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": msg,
		"code":  code,
	})
}

// writeError maps engine failures onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, liquidsoap.ErrRejected):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, liquidsoap.ErrTimeout),
		errors.Is(err, liquidsoap.ErrConnection),
		errors.Is(err, liquidsoap.ErrParse):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
