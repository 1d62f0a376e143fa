package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fargoat/internal/feed"
)

const (
	maxPublishBody = 64 << 10
	// maxRandomInterval bounds interval_ms for generated channels
	maxRandomInterval = 24 * time.Hour
)

// channelVar returns the {channel} route variable, rejecting the reserved
// chart-data channel for writes
func channelVar(w http.ResponseWriter, r *http.Request, write bool) (string, bool) {
	channel := mux.Vars(r)["channel"]
	if channel == "" {
		respondError(w, http.StatusBadRequest, "channel is required", nil)
		return "", false
	}
	if write && channel == feed.ChannelChartData {
		respondError(w, http.StatusForbidden, "chart-data is fed by the chart poller", nil)
		return "", false
	}
	return channel, true
}

// HandlePublish handles POST /api/v1/feed/{channel}/publish
// The JSON body is delivered as-is to every subscriber of the channel.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	channel, ok := channelVar(w, r, true)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishBody+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	if len(body) > maxPublishBody {
		respondError(w, http.StatusRequestEntityTooLarge, "Payload too large", nil)
		return
	}
	if !json.Valid(body) {
		respondError(w, http.StatusBadRequest, "Body must be JSON", nil)
		return
	}

	h.hub.Publish(channel, json.RawMessage(body))
	w.WriteHeader(http.StatusAccepted)
}

// HandleStartRandomData handles POST /api/v1/feed/{channel}/random
// The generator defaults to the channel name.
func (h *Handler) HandleStartRandomData(w http.ResponseWriter, r *http.Request) {
	channel, ok := channelVar(w, r, true)
	if !ok {
		return
	}

	var req StartRandomDataRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Generator == "" {
		req.Generator = channel
	}
	if req.IntervalMS <= 0 {
		respondError(w, http.StatusBadRequest, "interval_ms must be positive", nil)
		return
	}
	if req.IntervalMS > maxRandomInterval.Milliseconds() {
		respondError(w, http.StatusBadRequest, "interval_ms must be at most one day", nil)
		return
	}

	gen, err := h.hub.SyntheticGenerator(req.Generator)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unknown generator", err)
		return
	}

	if err := h.hub.StartRandomData(channel, feed.RandomDataOptions{
		Interval:  time.Duration(req.IntervalMS) * time.Millisecond,
		Generator: gen,
	}); err != nil {
		h.logger.Error("Failed to start generator", zap.String("channel", channel), zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "Failed to start generator", err)
		return
	}

	respondJSON(w, http.StatusOK, h.generators())
}

// HandleStopRandomData handles DELETE /api/v1/feed/{channel}/random
func (h *Handler) HandleStopRandomData(w http.ResponseWriter, r *http.Request) {
	channel, ok := channelVar(w, r, true)
	if !ok {
		return
	}
	h.hub.StopRandomData(channel)
	respondJSON(w, http.StatusOK, h.generators())
}

// HandleGenerators handles GET /api/v1/feed/generators
func (h *Handler) HandleGenerators(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.generators())
}

func (h *Handler) generators() GeneratorsResponse {
	return GeneratorsResponse{
		Active:    h.hub.Generators(),
		Available: feed.SyntheticGenerators(),
	}
}
