// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/models"
	"github.com/loyaltyworks/recommender/internal/recommend"
	"github.com/loyaltyworks/recommender/internal/store"
)

// Handler serves the recommendation endpoints.
type Handler struct {
	manager *recommend.Manager
	query   store.Query
	logger  zerolog.Logger

	// readiness checks run by the ready endpoint, keyed by component.
	readyChecks map[string]func(context.Context) error
}

// NewHandler creates the API handler.
func NewHandler(m *recommend.Manager, q store.Query, logger zerolog.Logger) *Handler {
	return &Handler{
		manager:     m,
		query:       q,
		logger:      logger.With().Str("component", "api").Logger(),
		readyChecks: make(map[string]func(context.Context) error),
	}
}

// AddReadyCheck registers a named readiness probe.
func (h *Handler) AddReadyCheck(name string, check func(context.Context) error) {
	h.readyChecks[name] = check
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, map[string]string{"status": "ok"})
}

// HealthReady reports dependency readiness.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(h.readyChecks))
	healthy := true
	for name, check := range h.readyChecks {
		if err := check(r.Context()); err != nil {
			components[name] = err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}
	if !healthy {
		respondJSON(w, r, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    components,
			Error:   &APIError{Code: ErrCodeServiceUnavailable, Message: "dependencies unavailable"},
		})
		return
	}
	respondData(w, r, components)
}

// itemSummary is the admin-facing view of one registered item.
type itemSummary struct {
	Key                string                   `json:"key"`
	Name               string                   `json:"name"`
	Description        string                   `json:"description,omitempty"`
	Active             bool                     `json:"active"`
	MaxRecommendations int                      `json:"max_recommendations"`
	SettingsFields     []recommend.SettingField `json:"settings_fields,omitempty"`
}

// Items lists registered items. ?all=true includes hidden items.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	includeHidden := r.URL.Query().Get("all") == "true"
	descriptors := h.manager.RegisteredItems(!includeHidden)

	out := make([]itemSummary, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, itemSummary{
			Key:                d.Key,
			Name:               d.Name,
			Description:        d.Description,
			Active:             d.Active(),
			MaxRecommendations: d.MaxRecommendations(),
			SettingsFields:     d.PluginSettings(),
		})
	}
	respondData(w, r, out)
}

// Suggestions serves GET /users/{userID}/suggestions.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	res, err := h.manager.Suggest(r.Context(), user, itemsParam(r), limitParam(r))
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", user.EntityID()).Msg("suggest failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "suggestion query failed")
		return
	}
	respondData(w, r, res)
}

// TopItems serves GET /top. A user_id query parameter personalizes the
// exclusion set.
func (h *Handler) TopItems(w http.ResponseWriter, r *http.Request) {
	user, ok := h.optionalUser(w, r)
	if !ok {
		return
	}
	res, err := h.manager.TopItems(r.Context(), itemsParam(r), user, limitParam(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("top items failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "top items query failed")
		return
	}
	respondData(w, r, res)
}

// ItemsByWeight serves GET /by-weight.
func (h *Handler) ItemsByWeight(w http.ResponseWriter, r *http.Request) {
	user, ok := h.optionalUser(w, r)
	if !ok {
		return
	}
	res, err := h.manager.ItemsByWeight(r.Context(), itemsParam(r), user, limitParam(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("items by weight failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "by-weight query failed")
		return
	}
	respondData(w, r, res)
}

// populateRequest is the admin populate/clean body.
type populateRequest struct {
	Items []string `json:"items"`

	// Confirm is required to clean the whole index.
	Confirm bool `json:"confirm"`
}

// Populate serves POST /admin/populate.
func (h *Handler) Populate(w http.ResponseWriter, r *http.Request) {
	var req populateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.manager.PopulateEngine(r.Context(), req.Items); err != nil {
		if recommend.IsItemNotFound(err) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Strs("items", req.Items).Msg("populate failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "populate failed")
		return
	}
	respondData(w, r, map[string]any{"populated": true, "items": req.Items})
}

// Clean serves POST /admin/clean. Cleaning everything is destructive and
// requires an explicit confirm flag.
func (h *Handler) Clean(w http.ResponseWriter, r *http.Request) {
	var req populateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 && !req.Confirm {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
			"cleaning the whole index requires confirm=true")
		return
	}
	if err := h.manager.CleanEngine(r.Context(), req.Items); err != nil {
		if recommend.IsItemNotFound(err) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Strs("items", req.Items).Msg("clean failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "clean failed")
		return
	}
	respondData(w, r, map[string]any{"cleaned": true, "items": req.Items})
}

// Reindex serves POST /admin/items/{itemKey}/entities/{id}/reindex.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	itemKey := chi.URLParam(r, "itemKey")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid entity id")
		return
	}

	if err := h.manager.UpdateItem(r.Context(), itemKey, id); err != nil {
		switch {
		case recommend.IsItemNotFound(err), errors.Is(err, store.ErrNotFound):
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Str("item", itemKey).Int64("id", id).Msg("reindex failed")
			respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "reindex failed")
		}
		return
	}
	respondData(w, r, map[string]any{"reindexed": true, "item": itemKey, "id": id})
}

// loadUser resolves the {userID} path parameter to a user entity.
func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request) (store.Entity, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id")
		return nil, false
	}
	user, err := h.query.FindByID(r.Context(), models.KindUser, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return nil, false
		}
		h.logger.Error().Err(err).Int64("user_id", id).Msg("load user failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "user lookup failed")
		return nil, false
	}
	return user, true
}

// optionalUser resolves the user_id query parameter when present.
func (h *Handler) optionalUser(w http.ResponseWriter, r *http.Request) (store.Entity, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid user_id")
		return nil, false
	}
	user, err := h.query.FindByID(r.Context(), models.KindUser, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return nil, false
		}
		h.logger.Error().Err(err).Int64("user_id", id).Msg("load user failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "user lookup failed")
		return nil, false
	}
	return user, true
}

// itemsParam parses the comma-separated items query parameter; empty
// means every registered item.
func itemsParam(r *http.Request) []string {
	raw := r.URL.Query().Get("items")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// limitParam parses the limit query parameter; 0 defers to item and
// engine defaults.
func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return false
	}
	return true
}
