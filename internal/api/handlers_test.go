package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fargoat/internal/client"
	"fargoat/internal/feed"
	"fargoat/internal/metrics"
	"fargoat/internal/models"
	"fargoat/internal/quest"
	"fargoat/internal/service"
)

type stubSubmitter struct {
	err   error
	calls int
}

func (s *stubSubmitter) SubmitQuest(ctx context.Context, sub *quest.Submission) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"id":"quest-1"}`), nil
}

type testServer struct {
	router    http.Handler
	hub       *feed.Hub
	submitter *stubSubmitter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	sub := &stubSubmitter{}
	sessions, err := service.NewSessionService(16, sub, time.Second, m, logger)
	if err != nil {
		t.Fatalf("failed to create sessions: %v", err)
	}
	profiles := service.NewProfileService(service.NewMemoryProfileStore(), logger)
	points := service.NewPointsLedger(logger)
	if _, err := points.CreateFounder("founder1", 1000, true); err != nil {
		t.Fatalf("failed to seed founder: %v", err)
	}

	hub := feed.NewHub(logger, feed.WithMetrics(m))
	t.Cleanup(func() { _ = hub.Close() })
	series := feed.NewSeries(hub, feed.ChannelChartData, feed.DefaultSeriesSize)

	handler := NewHandler(sessions, profiles, points, hub, series, nil, m, logger)
	return &testServer{
		router:    SetupRouter(handler, reg, logger),
		hub:       hub,
		submitter: sub,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func (s *testServer) createSession(t *testing.T, role string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/quests/sessions", CreateSessionRequest{Role: role})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	return decode[SessionResponse](t, w).SessionID
}

func (s *testServer) setField(t *testing.T, id string, field quest.Field, value any) {
	t.Helper()
	w := s.do(t, http.MethodPatch, "/api/v1/quests/sessions/"+id+"/fields", UpdateFieldRequest{Field: string(field), Value: value})
	if w.Code != http.StatusOK {
		t.Fatalf("set %s: expected 200, got %d: %s", field, w.Code, w.Body.String())
	}
}

func (s *testServer) fillCommunity(t *testing.T, id string) {
	t.Helper()
	s.setField(t, id, quest.FieldType, "TRX")
	s.setField(t, id, quest.FieldCategory, "BTC")
	s.setField(t, id, quest.FieldName, "Bitcoin Rush")
	s.setField(t, id, quest.FieldDescription, "Push transactions through the bridge")
	s.setField(t, id, quest.FieldPoints, "500")
	s.setField(t, id, quest.FieldWebsite, "https://example.org")
	s.setField(t, id, quest.FieldDuration, "14d")
	s.setField(t, id, quest.FieldRequiredMetric, "75000")
	s.setField(t, id, quest.FieldContractAddress, "0xABC")
	s.setField(t, id, quest.FieldFunctionABI, "transfer(address,uint256)")
}

func TestHandleHealth(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil, nil, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decode[HealthResponse](t, w)
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
	if response.Version != Version {
		t.Errorf("expected version '%s', got '%s'", Version, response.Version)
	}
	if response.Database != "disabled" {
		t.Errorf("expected database 'disabled', got '%s'", response.Database)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHandleHealth_DatabaseDown(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil, nil, failingPinger{}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name           string
		role           string
		expectedStatus int
	}{
		{"founder", "founder", http.StatusCreated},
		{"community", "community", http.StatusCreated},
		{"unknown role", "admin", http.StatusBadRequest},
		{"missing role", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/quests/sessions", CreateSessionRequest{Role: tt.role})
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus != http.StatusCreated {
				return
			}
			resp := decode[SessionResponse](t, w)
			if resp.SessionID == "" || string(resp.State.UserType) != tt.role {
				t.Errorf("unexpected session %+v", resp)
			}
			if resp.State.CurrentStep != quest.StepTypeSelection {
				t.Errorf("expected first step, got %s", resp.State.CurrentStep)
			}
		})
	}
}

func TestUpdateField_Errors(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "founder")

	tests := []struct {
		name           string
		req            UpdateFieldRequest
		expectedStatus int
	}{
		{"inactive field for founder", UpdateFieldRequest{Field: "contractAddress", Value: "0xABC"}, http.StatusBadRequest},
		{"read only field", UpdateFieldRequest{Field: "currentStep", Value: "REVIEW"}, http.StatusBadRequest},
		{"unknown type", UpdateFieldRequest{Field: "type", Value: "NFT"}, http.StatusBadRequest},
		{"contracts list", UpdateFieldRequest{Field: "contracts", Value: []string{"contract1"}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPatch, "/api/v1/quests/sessions/"+id+"/fields", tt.req)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}

	w := s.do(t, http.MethodPatch, "/api/v1/quests/sessions/missing/fields", UpdateFieldRequest{Field: "name", Value: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestSetStep(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "community")

	w := s.do(t, http.MethodPost, "/api/v1/quests/sessions/"+id+"/step", SetStepRequest{Step: "DETAILS"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected blocked move, got %d", w.Code)
	}
	blocked := decode[SessionResponse](t, w)
	if blocked.State.CurrentStep != quest.StepTypeSelection || blocked.Errors[quest.FieldType] == "" {
		t.Errorf("expected type error and unchanged step, got %+v", blocked)
	}

	s.setField(t, id, quest.FieldType, "TVL")
	s.setField(t, id, quest.FieldCategory, "Pump")

	w = s.do(t, http.MethodPost, "/api/v1/quests/sessions/"+id+"/step", SetStepRequest{Step: "DETAILS"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected move, got %d: %s", w.Code, w.Body.String())
	}
	moved := decode[SessionResponse](t, w)
	if moved.State.CurrentStep != quest.StepDetails || len(moved.Errors) != 0 {
		t.Errorf("unexpected state after move %+v", moved)
	}

	w = s.do(t, http.MethodPost, "/api/v1/quests/sessions/"+id+"/step", SetStepRequest{Step: "FINISHED"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown step, got %d", w.Code)
	}
}

func TestValidate(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "founder")
	s.setField(t, id, quest.FieldPoints, "0")

	w := s.do(t, http.MethodGet, "/api/v1/quests/sessions/"+id+"/validate?step=DETAILS", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[ValidateResponse](t, w)
	if resp.Valid || resp.Errors[quest.FieldPoints] != "Points must be greater than 0" {
		t.Errorf("unexpected validation %+v", resp)
	}

	// validation does not publish errors
	w = s.do(t, http.MethodGet, "/api/v1/quests/sessions/"+id, nil)
	if got := decode[SessionResponse](t, w); len(got.Errors) != 0 {
		t.Errorf("expected no stored errors, got %v", got.Errors)
	}
}

func uploadRequest(t *testing.T, path string, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "founder")
	path := "/api/v1/quests/sessions/" + id + "/image"

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, path, "logo.png", png))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[SessionResponse](t, w)
	if !strings.HasPrefix(resp.State.ImagePreview, "data:image/png;base64,") {
		t.Errorf("unexpected preview prefix %q", resp.State.ImagePreview[:min(30, len(resp.State.ImagePreview))])
	}
	if resp.State.Image == nil || resp.State.Image.Filename != "logo.png" {
		t.Errorf("unexpected image %+v", resp.State.Image)
	}

	big := make([]byte, quest.MaxImageSize+1)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, path, "huge.png", big))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	rejected := decode[SessionResponse](t, w)
	if rejected.Errors[quest.FieldImage] != "Image size must be less than 5MB" {
		t.Errorf("expected image error, got %v", rejected.Errors)
	}
	if rejected.State.ImagePreview != resp.State.ImagePreview {
		t.Error("expected previous image kept after rejected upload")
	}

	w = s.do(t, http.MethodDelete, path, nil)
	if got := decode[SessionResponse](t, w); got.State.Image != nil || got.State.ImagePreview != "" {
		t.Errorf("expected image removed, got %+v", got.State)
	}
}

func TestUploadImage_BodyOverLimit(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "community")
	path := "/api/v1/quests/sessions/" + id + "/image"

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, path, "poster.png", make([]byte, maxUploadBody+1<<20)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[SessionResponse](t, w); got.Errors[quest.FieldImage] != "Image size must be less than 5MB" {
		t.Errorf("expected image error in response, got %v", got.Errors)
	}

	w = s.do(t, http.MethodGet, "/api/v1/quests/sessions/"+id, nil)
	got := decode[SessionResponse](t, w)
	if got.Errors[quest.FieldImage] != "Image size must be less than 5MB" {
		t.Errorf("expected image error kept on the session, got %v", got.Errors)
	}
	if got.State.Image != nil {
		t.Errorf("expected no image stored, got %+v", got.State.Image)
	}
}

func TestSubmit(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "community")

	w := s.do(t, http.MethodPost, "/api/v1/quests/sessions/"+id+"/submit", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for incomplete quest, got %d", w.Code)
	}
	incomplete := decode[ErrorResponse](t, w)
	if incomplete.Fields[quest.FieldName] != "Name is required" {
		t.Errorf("expected field errors, got %v", incomplete.Fields)
	}
	if s.submitter.calls != 0 {
		t.Fatalf("expected backend not called, got %d calls", s.submitter.calls)
	}

	s.fillCommunity(t, id)
	s.submitter.err = &client.SubmitError{StatusCode: http.StatusBadRequest, Message: "Quest name taken"}

	w = s.do(t, http.MethodPost, "/api/v1/quests/sessions/"+id+"/submit", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if got := decode[ErrorResponse](t, w); got.Message != "Quest name taken" {
		t.Errorf("expected backend message, got %q", got.Message)
	}

	w = s.do(t, http.MethodGet, "/api/v1/quests/sessions/"+id, nil)
	kept := decode[SessionResponse](t, w)
	if kept.State.Name != "Bitcoin Rush" || kept.Errors[quest.FieldSubmit] != "Quest name taken" {
		t.Errorf("expected state kept with submit error, got %+v", kept)
	}

	s.submitter.err = nil
	w = s.do(t, http.MethodPost, "/api/v1/quests/sessions/"+id+"/submit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	done := decode[SubmitResponse](t, w)
	if string(done.Result) != `{"id":"quest-1"}` {
		t.Errorf("unexpected result %s", done.Result)
	}
	if done.Session.State.Name != "" || done.Session.State.UserType != quest.RoleCommunity {
		t.Errorf("expected reset form for the same role, got %+v", done.Session.State)
	}
}

func TestReviewAndCatalog(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "community")
	s.fillCommunity(t, id)

	w := s.do(t, http.MethodGet, "/api/v1/quests/sessions/"+id+"/review", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	review := decode[quest.Review](t, w)
	if !review.Ready || review.RequiredMetric != "75,000" {
		t.Errorf("unexpected review %+v", review)
	}

	w = s.do(t, http.MethodGet, "/api/v1/quests/categories", nil)
	catalog := decode[quest.Catalog](t, w)
	if len(catalog.Categories[quest.QuestTypeDAU]) != 1 {
		t.Errorf("unexpected catalog %+v", catalog.Categories)
	}

	w = s.do(t, http.MethodGet, "/api/v1/quests/contracts", nil)
	contracts := decode[ContractsResponse](t, w)
	if len(contracts.Contracts) != 3 || len(contracts.Functions) != 3 {
		t.Errorf("unexpected contracts %+v", contracts)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "founder")

	if w := s.do(t, http.MethodDelete, "/api/v1/quests/sessions/"+id, nil); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/quests/sessions/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPublish(t *testing.T) {
	s := newTestServer(t)

	var got []any
	s.hub.Subscribe("alerts", func(v any) { got = append(got, v) })

	w := s.do(t, http.MethodPost, "/api/v1/feed/alerts/publish", map[string]string{"level": "info"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	require.Len(t, got, 1)
	require.JSONEq(t, `{"level":"info"}`, string(got[0].(json.RawMessage)))

	w = s.do(t, http.MethodPost, "/api/v1/feed/chart-data/publish", map[string]string{})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for reserved channel, got %d", w.Code)
	}
}

func TestRandomData(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/feed/tvl/random", StartRandomDataRequest{IntervalMS: 60000})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[GeneratorsResponse](t, w)
	require.Equal(t, []string{"tvl"}, resp.Active)

	w = s.do(t, http.MethodPost, "/api/v1/feed/custom/random", StartRandomDataRequest{Generator: "volume", IntervalMS: 1000})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/feed/tvl/random", StartRandomDataRequest{IntervalMS: 0})
	require.Equal(t, http.StatusBadRequest, w.Code)

	for _, interval := range []int64{maxRandomInterval.Milliseconds() + 1, 1 << 62} {
		w = s.do(t, http.MethodPost, "/api/v1/feed/dau/random", StartRandomDataRequest{IntervalMS: interval})
		require.Equal(t, http.StatusBadRequest, w.Code, "interval_ms=%d", interval)
	}

	w = s.do(t, http.MethodDelete, "/api/v1/feed/tvl/random", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode[GeneratorsResponse](t, w).Active)

	w = s.do(t, http.MethodGet, "/api/v1/feed/generators", nil)
	require.Equal(t, feed.SyntheticGenerators(), decode[GeneratorsResponse](t, w).Available)
}

func TestFeedStream(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	s.hub.Publish(feed.ChannelChartData, models.ChartData{Timestamp: 1, TVL: 1_500_000})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/feed/chart-data/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var history ChartHistoryMessage
	require.NoError(t, conn.ReadJSON(&history))
	require.Len(t, history.History, 1)
	require.Equal(t, int64(1), history.History[0].Timestamp)

	require.Eventually(t, func() bool {
		return s.hub.Subscribers(feed.ChannelChartData) == 2
	}, time.Second, time.Millisecond)

	s.hub.Publish(feed.ChannelChartData, models.ChartData{Timestamp: 2, DAU: 6000})

	var msg struct {
		Channel string           `json:"channel"`
		Data    models.ChartData `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, feed.ChannelChartData, msg.Channel)
	require.Equal(t, int64(2), msg.Data.Timestamp)

	conn.Close()
	require.Eventually(t, func() bool {
		return s.hub.Subscribers(feed.ChannelChartData) == 1
	}, time.Second, time.Millisecond)
}

func TestProfiles(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/profiles", service.ProfileInput{
		Email:         "goat@example.org",
		WalletAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		UniqueName:    "goat",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[models.Profile](t, w)

	w = s.do(t, http.MethodGet, "/api/v1/profiles/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/profiles?limit=10", nil)
	require.Len(t, decode[ListProfilesResponse](t, w).Profiles, 1)

	w = s.do(t, http.MethodPost, "/api/v1/profiles", service.ProfileInput{
		Email:         "kid@example.org",
		WalletAddress: "0xABC",
		UniqueName:    "kid",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/profiles", service.ProfileInput{
		Email:         "goat@example.org",
		WalletAddress: "0x4e59b44847b379578588920cA78FbF26c0B4956C",
		UniqueName:    "goat-two",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/profiles/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/profiles/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.hub.Publish("tvl", 1)

	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `fargoat_feed_publishes_total{channel="tvl"} 1`)
}
