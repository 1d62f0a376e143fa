package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fargoat/internal/quest"
)

// maxUploadBody bounds the multipart body of an image upload. It sits
// above quest.MaxImageSize so oversized images reach the engine and
// surface as a field error.
const maxUploadBody = 2*quest.MaxImageSize + 1<<20

func sessionResponse(id string, e *quest.Engine) SessionResponse {
	state, errs := e.Snapshot()
	return SessionResponse{
		SessionID: id,
		State:     state,
		Errors:    errs,
		StepValid: quest.Validate(state, state.CurrentStep, e.Role()).Empty(),
	}
}

// session resolves the {id} route variable, writing the error response on failure
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *quest.Engine, bool) {
	id := mux.Vars(r)["id"]
	engine, err := h.sessions.Get(id)
	if err != nil {
		h.respondServiceError(w, "Session not found", err)
		return "", nil, false
	}
	return id, engine, true
}

// HandleCreateSession handles POST /api/v1/quests/sessions
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	role, err := quest.ParseRole(req.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid role", err)
		return
	}

	id, engine, err := h.sessions.Create(role)
	if err != nil {
		h.respondServiceError(w, "Failed to create session", err)
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse(id, engine))
}

// HandleGetSession handles GET /api/v1/quests/sessions/{id}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(id, engine))
}

// HandleDeleteSession handles DELETE /api/v1/quests/sessions/{id}
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(mux.Vars(r)["id"]); err != nil {
		h.respondServiceError(w, "Session not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateField handles PATCH /api/v1/quests/sessions/{id}/fields
func (h *Handler) HandleUpdateField(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}

	var req UpdateFieldRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Field == "" {
		respondError(w, http.StatusBadRequest, "field is required", nil)
		return
	}

	if err := engine.UpdateField(quest.Field(req.Field), req.Value); err != nil {
		h.respondServiceError(w, "Failed to update field", err)
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse(id, engine))
}

// HandleSetStep handles POST /api/v1/quests/sessions/{id}/step
// A blocked move answers 422 with the current step's errors.
func (h *Handler) HandleSetStep(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SetStepRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	target, err := quest.ParseStep(req.Step)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid step", err)
		return
	}

	errs, err := engine.SetStep(target)
	if err != nil {
		h.respondServiceError(w, "Failed to change step", err)
		return
	}

	status := http.StatusOK
	if !errs.Empty() {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, sessionResponse(id, engine))
}

// HandleValidate handles GET /api/v1/quests/sessions/{id}/validate?step=
// The current step is used when step is omitted.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := h.session(w, r)
	if !ok {
		return
	}

	step := engine.State().CurrentStep
	if s := r.URL.Query().Get("step"); s != "" {
		parsed, err := quest.ParseStep(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid step", err)
			return
		}
		step = parsed
	}

	errs := engine.Validate(step)
	respondJSON(w, http.StatusOK, ValidateResponse{
		Step:   step,
		Valid:  errs.Empty(),
		Errors: errs,
	})
}

// HandleUploadImage handles POST /api/v1/quests/sessions/{id}/image
func (h *Handler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(quest.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			engine.RejectImage()
			h.logger.Debug("Image upload body too large",
				zap.String("session_id", id),
				zap.Int64("content_length", r.ContentLength))
			respondJSON(w, http.StatusRequestEntityTooLarge, sessionResponse(id, engine))
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid multipart body", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required", err)
		return
	}
	defer file.Close()

	accepted, err := engine.HandleImageUpload(quest.ImageFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	})
	if err != nil {
		h.respondServiceError(w, "Failed to upload image", err)
		return
	}

	status := http.StatusOK
	if !accepted {
		status = http.StatusUnprocessableEntity
	}
	h.logger.Debug("Image upload",
		zap.String("session_id", id),
		zap.Int64("size", header.Size),
		zap.Bool("accepted", accepted))

	respondJSON(w, status, sessionResponse(id, engine))
}

// HandleRemoveImage handles DELETE /api/v1/quests/sessions/{id}/image
func (h *Handler) HandleRemoveImage(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	engine.RemoveImage()
	respondJSON(w, http.StatusOK, sessionResponse(id, engine))
}

// HandleResetForm handles POST /api/v1/quests/sessions/{id}/reset
func (h *Handler) HandleResetForm(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	engine.ResetForm()
	respondJSON(w, http.StatusOK, sessionResponse(id, engine))
}

// HandleSubmit handles POST /api/v1/quests/sessions/{id}/submit
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := h.sessions.Submit(r.Context(), id)
	if err != nil {
		var incomplete *quest.IncompleteError
		if errors.As(err, &incomplete) || errors.Is(err, quest.ErrSubmitInProgress) {
			h.respondServiceError(w, "Quest is incomplete", err)
			return
		}
		h.logger.Warn("Quest submission failed",
			zap.String("session_id", id),
			zap.Error(err))
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "Failed to submit quest",
			Message: engine.Errors()[quest.FieldSubmit],
		})
		return
	}

	respondJSON(w, http.StatusOK, SubmitResponse{
		Result:  result,
		Session: sessionResponse(id, engine),
	})
}

// HandleReview handles GET /api/v1/quests/sessions/{id}/review
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, engine.Review())
}

// HandleCategories handles GET /api/v1/quests/categories
func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, quest.BuildCatalog())
}

// HandleContracts handles GET /api/v1/quests/contracts
func (h *Handler) HandleContracts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ContractsResponse{
		Contracts: quest.FounderContracts,
		Functions: quest.FounderFunctions,
	})
}
