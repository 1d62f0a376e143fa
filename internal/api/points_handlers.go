package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleCreateFounder handles POST /api/v1/founders
func (h *Handler) HandleCreateFounder(w http.ResponseWriter, r *http.Request) {
	var req CreateFounderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	founder, err := h.points.CreateFounder(req.Name, req.AllocatedPoints, active)
	if err != nil {
		h.respondServiceError(w, "Failed to create founder", err)
		return
	}

	respondJSON(w, http.StatusCreated, PointsResponse{Founder: &founder})
}

// HandleGetFounder handles GET /api/v1/founders/{name}
func (h *Handler) HandleGetFounder(w http.ResponseWriter, r *http.Request) {
	founder, err := h.points.Founder(mux.Vars(r)["name"])
	if err != nil {
		h.respondServiceError(w, "Founder not found", err)
		return
	}
	respondJSON(w, http.StatusOK, PointsResponse{Founder: &founder})
}

// HandleAllocatePoints handles POST /api/v1/founders/{name}/allocate
func (h *Handler) HandleAllocatePoints(w http.ResponseWriter, r *http.Request) {
	var req PointsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	founder, err := h.points.AllocatePoints(mux.Vars(r)["name"], req.Points)
	if err != nil {
		h.respondServiceError(w, "Failed to allocate points", err)
		return
	}
	respondJSON(w, http.StatusOK, PointsResponse{Founder: &founder})
}

// HandleDistributePoints handles POST /api/v1/founders/{name}/distribute
func (h *Handler) HandleDistributePoints(w http.ResponseWriter, r *http.Request) {
	var req PointsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	founder, contract, err := h.points.DistributePoints(mux.Vars(r)["name"], req.Contract, req.Points)
	if err != nil {
		h.respondServiceError(w, "Failed to distribute points", err)
		return
	}
	respondJSON(w, http.StatusOK, PointsResponse{Founder: &founder, Contract: &contract})
}

// HandleConvertPoints handles POST /api/v1/founders/{name}/convert
func (h *Handler) HandleConvertPoints(w http.ResponseWriter, r *http.Request) {
	var req PointsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	contract, err := h.points.ConvertPoints(mux.Vars(r)["name"], req.Contract, req.Points)
	if err != nil {
		h.respondServiceError(w, "Failed to convert points", err)
		return
	}
	respondJSON(w, http.StatusOK, PointsResponse{Contract: &contract})
}

// HandleClaimRewards handles POST /api/v1/founders/{name}/claim
func (h *Handler) HandleClaimRewards(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	name := mux.Vars(r)["name"]
	founder, contract, err := h.points.ClaimRewards(name, req.Contract)
	if err != nil {
		h.respondServiceError(w, "Failed to claim rewards", err)
		return
	}

	h.logger.Debug("Rewards claimed over API",
		zap.String("founder", name),
		zap.String("contract", contract.ID))

	respondJSON(w, http.StatusOK, PointsResponse{Founder: &founder, Contract: &contract})
}

// HandleContractPoints handles GET /api/v1/points/contracts
func (h *Handler) HandleContractPoints(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ContractPointsResponse{Contracts: h.points.Contracts()})
}
