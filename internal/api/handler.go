// Package api exposes the socwatch HTTP surface: telemetry polling for the
// console, external event ingestion, engine state reads, analyst actions,
// settings and containment policy.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"socwatch/internal/config"
	"socwatch/internal/engine"
	"socwatch/internal/generator"
	"socwatch/internal/queue"
	"socwatch/internal/schema"
)

const (
	maxPayload = 1 << 20 // 1MB
	maxBatch   = 1000
)

// Handler serves the v1 API.
type Handler struct {
	engine    *engine.Engine
	settings  *config.SettingsStore
	generator *generator.Generator
	policy    *generator.Policy
	queue     *queue.RingBuffer
	validator *schema.Validator
	logger    *slog.Logger
	startTime time.Time

	// now is swapped out in tests for deterministic action timestamps.
	now func() int64
}

// NewHandler creates the API handler.
func NewHandler(
	eng *engine.Engine,
	settings *config.SettingsStore,
	gen *generator.Generator,
	policy *generator.Policy,
	q *queue.RingBuffer,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		engine:    eng,
		settings:  settings,
		generator: gen,
		policy:    policy,
		queue:     q,
		validator: schema.NewValidator(),
		logger:    logger,
		startTime: time.Now(),
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Routes builds the API route table.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.handleHealth)

	mux.HandleFunc("GET /v1/events", h.handleEvents)
	mux.HandleFunc("POST /v1/events", h.handleIngest)
	mux.HandleFunc("GET /v1/alerts", h.handleAlerts)
	mux.HandleFunc("GET /v1/investigations", h.handleInvestigations)
	mux.HandleFunc("GET /v1/trends", h.handleTrends)
	mux.HandleFunc("GET /v1/stats", h.handleStats)

	mux.HandleFunc("POST /v1/alerts/{id}/actions", h.handleAlertAction)
	mux.HandleFunc("POST /v1/investigations/{id}/actions", h.handleInvestigationAction)

	mux.HandleFunc("GET /v1/settings", h.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", h.handlePutSettings)

	mux.HandleFunc("GET /v1/policy", h.handleGetPolicy)
	mux.HandleFunc("POST /v1/policy/block-ip", h.handleBlockIP)
	mux.HandleFunc("POST /v1/policy/disable-user", h.handleDisableUser)
	mux.HandleFunc("POST /v1/policy/force-password-reset", h.handleForcePasswordReset)

	mux.HandleFunc("POST /v1/reset", h.handleReset)

	return mux
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"ok":    false,
		"error": message,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

// handleEvents serves the console poll: all events after ?since, the
// latest assigned ID and the current containment policy.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		since = parsed
	}

	events, latestID := h.generator.Since(since)
	if events == nil {
		events = []schema.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"events":   events,
		"latestId": latestID,
		"policy":   h.policy.Snapshot(),
	})
}

type ingestRequest struct {
	Events []*schema.Event `json:"events"`
}

// handleIngest accepts an external event batch, validates it against the
// canonical schema and queues it for the engine.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayload)

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if len(req.Events) == 0 {
		respondError(w, http.StatusBadRequest, "no events provided")
		return
	}
	if len(req.Events) > maxBatch {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("batch size exceeds maximum of %d", maxBatch))
		return
	}

	if err := h.validator.ValidateBatch(req.Events); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted, err := h.queue.PushBatch(req.Events)
	if err != nil {
		h.logger.Warn("ingest batch truncated", "accepted", accepted, "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":       false,
			"accepted": accepted,
			"error":    err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"ok":       true,
		"accepted": accepted,
	})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{"alerts": snap.Alerts})
}

func (h *Handler) handleInvestigations(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{"investigations": snap.Investigations})
}

func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	minutes := 12
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 120 {
			respondError(w, http.StatusBadRequest, "invalid minutes parameter")
			return
		}
		minutes = parsed
	}
	respondJSON(w, http.StatusOK, h.engine.Trends(h.now(), minutes))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	stats["queue"] = h.queue.Metrics()
	respondJSON(w, http.StatusOK, stats)
}

type actionRequest struct {
	Type string `json:"type"`
	By   string `json:"by"`
	Note string `json:"note"`
	User string `json:"user"` // target for user-scoped containment
}

func (h *Handler) handleAlertAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	err := h.engine.ApplyAlertAction(id, engine.ActionType(req.Type), req.By, req.Note, h.now())
	switch {
	case errors.Is(err, engine.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleInvestigationAction applies an analyst action to an investigation.
// Containment actions additionally update the enforcement policy so the
// telemetry source reacts.
func (h *Handler) handleInvestigationAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	action := engine.ActionType(req.Type)

	if (action == engine.ActionDisableUser || action == engine.ActionForcePasswordReset) && req.User == "" {
		respondError(w, http.StatusBadRequest, "missing user for user-scoped containment")
		return
	}

	err := h.engine.ApplyInvestigationAction(id, action, req.By, req.Note, h.now())
	switch {
	case errors.Is(err, engine.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch action {
	case engine.ActionBlockIP:
		ip := entityIP(id)
		h.policy.BlockIP(ip)
		h.generator.PolicyChange("", ip, string(action))
		h.logger.Info("ip blocked", "ip", ip, "by", req.By)
	case engine.ActionDisableUser:
		h.policy.DisableUser(req.User)
		h.generator.PolicyChange(req.User, h.generator.HomeIP(req.User), string(action))
		h.logger.Info("user disabled", "user", req.User, "by", req.By)
	case engine.ActionForcePasswordReset:
		h.policy.ForcePasswordReset(req.User)
		h.generator.PolicyChange(req.User, h.generator.HomeIP(req.User), string(action))
		h.logger.Info("password reset forced", "user", req.User, "by", req.By)
	}

	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "policy": h.policy.Snapshot()})
}

// entityIP strips the investigation ID prefix, accepting either a bare IP
// or an "I-<ip>" identifier.
func entityIP(idOrIP string) string {
	if len(idOrIP) > 2 && idOrIP[:2] == "I-" {
		return idOrIP[2:]
	}
	return idOrIP
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.settings.Current())
}

// handlePutSettings replaces the detection settings. Values are clamped to
// their valid ranges and the canonical result echoed back.
func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	applied := h.settings.Update(s)
	h.logger.Info("detection settings updated",
		"window_seconds", applied.WindowSeconds,
		"dedup_seconds", applied.DedupSeconds,
	)
	respondJSON(w, http.StatusOK, applied)
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "policy": h.policy.Snapshot()})
}

type policyRequest struct {
	IP   string `json:"ip"`
	User string `json:"user"`
}

func (h *Handler) handleBlockIP(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" {
		respondError(w, http.StatusBadRequest, "missing ip")
		return
	}

	h.policy.BlockIP(req.IP)
	h.generator.PolicyChange("", req.IP, string(engine.ActionBlockIP))
	h.logger.Info("ip blocked", "ip", req.IP)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "policy": h.policy.Snapshot()})
}

func (h *Handler) handleDisableUser(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User == "" {
		respondError(w, http.StatusBadRequest, "missing user")
		return
	}

	h.policy.DisableUser(req.User)
	h.generator.PolicyChange(req.User, h.generator.HomeIP(req.User), string(engine.ActionDisableUser))
	h.logger.Info("user disabled", "user", req.User)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "policy": h.policy.Snapshot()})
}

func (h *Handler) handleForcePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User == "" {
		respondError(w, http.StatusBadRequest, "missing user")
		return
	}

	h.policy.ForcePasswordReset(req.User)
	h.generator.PolicyChange(req.User, h.generator.HomeIP(req.User), string(engine.ActionForcePasswordReset))
	h.logger.Info("password reset forced", "user", req.User)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "policy": h.policy.Snapshot()})
}

// handleReset clears the whole demo state: engine, telemetry log and
// containment policy. Detection settings are left as configured.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	h.generator.Reset()
	h.policy.Reset()

	h.logger.Info("full state reset")
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "policy": h.policy.Snapshot()})
}
