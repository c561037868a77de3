package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"briefly/internal/app"
	"briefly/internal/util"
	"briefly/pkg/domain"
	"briefly/pkg/queue"
)

const maxBodyBytes = 1 << 20
const maxUploadBytes = 16 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MetricsHandler http.Handler
	ServiceName    string
	TrustForwarded bool
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	metricsHandler http.Handler
	serviceName    string
	trustForwarded bool
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	name := cfg.ServiceName
	if name == "" {
		name = "briefly"
	}
	s := &Server{
		app:            cfg.App,
		metricsHandler: cfg.MetricsHandler,
		serviceName:    name,
		trustForwarded: cfg.TrustForwarded,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	h := util.WithSecurityHeaders(util.WithCORS(s.mux))
	h = util.WithRequestLog(s.serviceName, s.trustForwarded, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/v1/summaries", s.handleSummaries)
	s.mux.HandleFunc("/v1/summaries/batch", s.handleSummariesBatch)
	s.mux.HandleFunc("/v1/summaries/file", s.handleSummariesFile)
	s.mux.HandleFunc("/v1/chats", s.handleChats)
	s.mux.HandleFunc("/v1/conversations", s.handleConversations)
	s.mux.HandleFunc("/v1/conversations/", s.handleConversationByID)
	s.mux.HandleFunc("/v1/exports", s.handleExports)
	s.mux.HandleFunc("/v1/exports/", s.handleExportByID)
	s.mux.HandleFunc("/v1/settings", s.handleSettings)
	if s.metricsHandler != nil {
		s.mux.Handle("/metrics", s.metricsHandler)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type summaryRequest struct {
	Text      string `json:"text"`
	MaxTokens int    `json:"maxTokens"`
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req summaryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.Summarize(r.Context(), req.Text, req.MaxTokens)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Texts     []string `json:"texts"`
	MaxTokens int      `json:"maxTokens"`
}

func (s *Server) handleSummariesBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req batchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts is required")
		return
	}
	if len(req.Texts) > 20 {
		writeError(w, http.StatusBadRequest, "too many texts, max 20")
		return
	}
	results, err := s.app.SummarizeBatch(r.Context(), req.Texts, req.MaxTokens)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.GenerationResult{"results": results})
}

func (s *Server) handleSummariesFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	maxTokens, _ := strconv.Atoi(r.FormValue("maxTokens"))
	result, err := s.app.SummarizeDocument(r.Context(), header.Filename, file, maxTokens)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type chatRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
	MaxTokens      int    `json:"maxTokens"`
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reply, err := s.app.Chat(r.Context(), sessionID(r), req.ConversationID, req.Message, req.MaxTokens)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.app.ListConversations(sessionID(r), limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Conversation{"conversations": items})
}

func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	switch {
	case sub == "messages" && r.Method == http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := s.app.ListMessages(sessionID(r), id, limit)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]domain.Message{"messages": items})
	case sub == "" && r.Method == http.MethodDelete:
		if err := s.app.DeleteConversation(r.Context(), sessionID(r), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

type exportRequest struct {
	ConversationID string `json:"conversationId"`
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req exportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	job, err := s.app.EnqueueExport(r.Context(), sessionID(r), req.ConversationID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

type exportStatusResponse struct {
	Job      queue.JobStatus  `json:"job"`
	Artifact *domain.Artifact `json:"artifact,omitempty"`
}

func (s *Server) handleExportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/exports/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "export job not found")
		return
	}
	job, artifact, err := s.app.ExportStatus(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exportStatusResponse{Job: job, Artifact: artifact})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.app.GetSettings(sessionID(r))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var settings domain.Settings
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&settings); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		saved, err := s.app.SaveSettings(sessionID(r), settings)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

// sessionID reads the caller's session from the X-Session-Id header,
// falling back to the sessionId query parameter.
func sessionID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Session-Id")); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("sessionId"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrEmptyInput), errors.Is(err, app.ErrSessionRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrConversationNotFound), errors.Is(err, app.ErrExportJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrExportsDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, app.ErrBackendUnavailable), errors.Is(err, app.ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
