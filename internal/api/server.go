// Package api exposes the service over HTTP. Handlers are thin: they
// parse the request, call into the core, and encode the result.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/replygram/replygram/internal/auth"
	"github.com/replygram/replygram/internal/models"
	"github.com/replygram/replygram/internal/pipeline"
	"github.com/replygram/replygram/internal/platform"
	"github.com/replygram/replygram/internal/storage"
)

type Server struct {
	sessions *auth.Manager
	pipeline *pipeline.Pipeline
	client   platform.Client
	store    storage.Storage
	logger   *zap.Logger
}

func NewServer(sessions *auth.Manager, pipe *pipeline.Pipeline, client platform.Client, store storage.Storage, logger *zap.Logger) *Server {
	return &Server{
		sessions: sessions,
		pipeline: pipe,
		client:   client,
		store:    store,
		logger:   logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/status", s.handleStatus)
	mux.HandleFunc("/admin/rules", s.handleRules)
	mux.HandleFunc("/admin/export", s.handleExport)
	mux.HandleFunc("/admin/import", s.handleImport)
	mux.HandleFunc("/media/list", s.handleMediaList)
	mux.HandleFunc("/comments/poll", s.handlePoll)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	UseProxy bool   `json:"use_proxy"`
	Proxy    string `json:"proxy"`
}

// handleLogin upserts the account and acquires a session for it, so a
// successful response means the stored credentials actually work.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username and password are required"})
		return
	}

	account := &models.Account{
		Username: req.Username,
		Password: req.Password,
		UseProxy: req.UseProxy,
		Proxy:    req.Proxy,
	}
	if err := s.store.UpsertAccount(r.Context(), account); err != nil {
		s.logger.Error("Failed to save account", zap.Error(err), zap.String("account", req.Username))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save account"})
		return
	}

	outcome, err := s.sessions.AcquireSession(r.Context(), req.Username)
	if err != nil {
		s.logger.Error("Failed to acquire session", zap.Error(err), zap.String("account", req.Username))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to acquire session"})
		return
	}
	if !outcome.OK() {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":     false,
			"status": outcome.Status.String(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "Login successful, session ready.",
	})
}

// handleStatus probes the persisted session without ever spending a
// credential login.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username is required"})
		return
	}

	if _, err := s.store.GetAccount(r.Context(), username); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "account not found"})
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load account"})
		return
	}

	session, err := s.store.GetSession(r.Context(), username)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load session"})
		return
	}
	if session == nil {
		s.writeJSON(w, http.StatusOK, map[string]bool{"is_authenticated": false})
		return
	}

	valid, err := s.client.ProbeSession(r.Context(), session.Token)
	if err != nil {
		valid = false
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"is_authenticated": valid})
}

type ruleRequest struct {
	AccountID       string   `json:"account_id"`
	MediaID         string   `json:"media_id"`
	Patterns        []string `json:"patterns"`
	ReplyText       string   `json:"reply_text"`
	DirectText      string   `json:"direct_text"`
	CooldownSeconds int      `json:"cooldown_seconds"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createRule(w, r)
	case http.MethodGet:
		s.listRules(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AccountID == "" || req.MediaID == "" || len(req.Patterns) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account_id, media_id and patterns are required"})
		return
	}

	cooldown := req.CooldownSeconds
	if cooldown == 0 {
		cooldown = 3600
	}
	rule := &models.Rule{
		AccountID:       req.AccountID,
		MediaID:         req.MediaID,
		Patterns:        req.Patterns,
		ReplyText:       req.ReplyText,
		DirectText:      req.DirectText,
		CooldownSeconds: cooldown,
	}
	if err := s.store.AddRule(r.Context(), rule); err != nil {
		s.logger.Error("Failed to create rule", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create rule"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int64{"id": rule.ID})
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context(), r.URL.Query().Get("account_id"), r.URL.Query().Get("media_id"))
	if err != nil {
		s.logger.Error("Failed to list rules", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list rules"})
		return
	}
	if rules == nil {
		rules = []models.Rule{}
	}
	s.writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context(), "", "")
	if err != nil {
		s.logger.Error("Failed to export rules", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to export rules"})
		return
	}
	if rules == nil {
		rules = []models.Rule{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]models.Rule{"rules": rules})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Rules []ruleRequest `json:"rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	imported := 0
	for _, req := range payload.Rules {
		if req.AccountID == "" || req.MediaID == "" || len(req.Patterns) == 0 {
			// malformed entries are skipped, not fatal
			continue
		}
		cooldown := req.CooldownSeconds
		if cooldown == 0 {
			cooldown = 3600
		}
		rule := &models.Rule{
			AccountID:       req.AccountID,
			MediaID:         req.MediaID,
			Patterns:        req.Patterns,
			ReplyText:       req.ReplyText,
			DirectText:      req.DirectText,
			CooldownSeconds: cooldown,
		}
		if err := s.store.AddRule(r.Context(), rule); err != nil {
			s.logger.Error("Failed to import rule", zap.Error(err))
			continue
		}
		imported++
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
}

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username is required"})
		return
	}

	outcome, err := s.sessions.AcquireSession(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "account not found"})
			return
		}
		s.logger.Error("Failed to acquire session", zap.Error(err), zap.String("account", username))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to acquire session"})
		return
	}
	if !outcome.OK() {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "not authenticated: " + outcome.Status.String()})
		return
	}

	media, err := s.client.FetchRecentMedia(r.Context(), outcome.Token, 50)
	if err != nil {
		s.logger.Error("Failed to list media", zap.Error(err), zap.String("account", username))
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to list media"})
		return
	}
	if media == nil {
		media = []models.Media{}
	}
	s.writeJSON(w, http.StatusOK, media)
}

type pollRequest struct {
	AccountID string `json:"account_id"`
	MediaID   string `json:"media_id"`
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AccountID == "" || req.MediaID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account_id and media_id are required"})
		return
	}

	result, err := s.pipeline.Run(r.Context(), req.AccountID, req.MediaID)
	if err != nil {
		var authErr *pipeline.AuthFailureError
		if errors.As(err, &authErr) {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":  "authentication failed",
				"status": authErr.Outcome.Status.String(),
			})
			return
		}
		if errors.Is(err, storage.ErrAccountNotFound) {
			s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "account not found"})
			return
		}
		s.logger.Error("Cycle failed",
			zap.Error(err),
			zap.String("account", req.AccountID),
			zap.String("media", req.MediaID))
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
