package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ANANT0908/lessonwatch/internal/auth"
	"github.com/ANANT0908/lessonwatch/internal/catalog"
	"github.com/ANANT0908/lessonwatch/internal/i18n"
	"github.com/ANANT0908/lessonwatch/internal/player"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sess, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("signup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "signup failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.logger.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(userID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// lessonView is one dashboard row: static catalog data plus the user's state.
type lessonView struct {
	ID        string `json:"id"`
	SourceURL string `json:"source_url"`
	EmbedURL  string `json:"embed_url"`
	ElementID string `json:"element_id"`
	Percent   int    `json:"percent"`
	Completed bool   `json:"completed"`
}

type dashboardResponse struct {
	Expanded string       `json:"expanded,omitempty"`
	Lessons  []lessonView `json:"lessons"`
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	t := s.trackers.Get(userID(r.Context()))
	if t == nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	t.EnsureLoaded(r.Context())
	progressMap, completedMap := t.Snapshot()

	lessons := s.catalog.Lessons()
	views := make([]lessonView, 0, len(lessons))
	for _, l := range lessons {
		views = append(views, lessonView{
			ID:        l.ID,
			SourceURL: l.SourceURL,
			EmbedURL:  catalog.EmbedURL(l),
			ElementID: catalog.ElementID(l.ID),
			Percent:   progressMap[l.ID],
			Completed: completedMap[l.ID],
		})
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Expanded: t.Expanded(),
		Lessons:  views,
	})
}

func (s *Server) expandLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lesson_id")
	if _, ok := s.catalog.Lookup(lessonID); !ok {
		writeError(w, http.StatusNotFound, "lesson not found")
		return
	}
	t := s.trackers.Get(userID(r.Context()))
	if t == nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	t.EnsureLoaded(r.Context())
	expanded := t.Expand(lessonID)
	writeJSON(w, http.StatusOK, map[string]any{
		"lesson_id": lessonID,
		"expanded":  expanded,
	})
}

type telemetryRequest struct {
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	State       string  `json:"state"`
}

// telemetry takes one widget heartbeat and hands back any pending seek
// directive, so the browser can apply the resume position.
func (s *Server) telemetry(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lesson_id")
	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	state, err := player.ParseState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	handle, ok := s.players.Feed(userID(r.Context()), lessonID, player.Telemetry{
		CurrentTime: req.CurrentTime,
		Duration:    req.Duration,
		State:       state,
	})
	if !ok {
		// No live handle means the lesson is not expanded; the widget
		// should stop reporting.
		writeError(w, http.StatusConflict, "lesson is not active")
		return
	}

	resp := map[string]any{"status": "ok"}
	if seek, pending := handle.TakePendingSeek(); pending {
		resp["seek_to"] = seek
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) toggleComplete(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lesson_id")
	if _, ok := s.catalog.Lookup(lessonID); !ok {
		writeError(w, http.StatusNotFound, "lesson not found")
		return
	}
	t := s.trackers.Get(userID(r.Context()))
	if t == nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	t.EnsureLoaded(r.Context())
	completed, err := t.ToggleComplete(r.Context(), lessonID)
	if err != nil {
		s.logger.Error("completion toggle failed",
			zap.String("lesson_id", lessonID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not save completion state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lesson_id": lessonID,
		"completed": completed,
	})
}

func (s *Server) translations(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "lang")
	lang, ok := i18n.Parse(code)
	if !ok {
		writeError(w, http.StatusNotFound, "unsupported language")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lang":     lang,
		"messages": i18n.T(lang),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
