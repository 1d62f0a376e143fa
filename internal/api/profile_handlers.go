package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fargoat/internal/service"
)

// HandleCreateProfile handles POST /api/v1/profiles
func (h *Handler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	profile, err := h.profiles.Create(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, "Failed to create profile", err)
		return
	}

	respondJSON(w, http.StatusCreated, profile)
}

// HandleGetProfile handles GET /api/v1/profiles/{id}
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, "Profile not found", err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// HandleListProfiles handles GET /api/v1/profiles
func (h *Handler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	// Parse pagination parameters (optional)
	limit := 50 // default
	offset := 0 // default

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	h.logger.Debug("Listing profiles",
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	profiles, err := h.profiles.List(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, "Failed to retrieve profiles", err)
		return
	}

	respondJSON(w, http.StatusOK, ListProfilesResponse{Profiles: profiles})
}

// HandleUpdateProfile handles PUT /api/v1/profiles/{id}
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	profile, err := h.profiles.Update(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		h.respondServiceError(w, "Failed to update profile", err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// HandleDeleteProfile handles DELETE /api/v1/profiles/{id}
func (h *Handler) HandleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondServiceError(w, "Failed to delete profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
