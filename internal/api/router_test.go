package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careAlert/internal/api"
	"careAlert/internal/api/handlers/http/alerts"
	"careAlert/internal/api/handlers/http/system"
	"careAlert/internal/api/handlers/http/telephony"
	"careAlert/internal/config"
	"careAlert/internal/domain"
	"careAlert/internal/metrics"
	"careAlert/internal/service"
	"careAlert/internal/storage/memory"
	"careAlert/internal/subscription"
	twilio "careAlert/internal/telephony"
)

const apiKey = "test-key"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

type stack struct {
	srv   *httptest.Server
	queue *memory.NotificationQueue
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := newTestLogger()
	m := metrics.New()
	dir := memory.NewDirectory(
		domain.User{ID: "p1", Name: "Pat", UserType: domain.UserPatient},
		domain.User{ID: "cA", Name: "Ann", UserType: domain.UserCaregiver, Location: &domain.Coord{Lat: 1.305, Lng: 103.805}},
		domain.User{ID: "cB", Name: "Ben", UserType: domain.UserCaregiver, AssignedPatients: []string{"p1"}},
	)
	repo := memory.NewAlertRepository()
	queue := memory.NewNotificationQueue(16)

	hub := subscription.NewHub(repo, subscription.Options{RadiusMiles: 1}, m, logger)
	go hub.Run(ctx)

	store := service.NewAlertStore(repo, dir, hub, nil, m, logger)
	router := service.NewNotificationRouter(dir, queue, 1, m, logger)
	lifecycle := service.NewAlertLifecycle(store, dir, router, logger)
	relay := twilio.NewTwilio(config.TwilioConfig{}, logger)

	cfg := &config.Config{APIKey: apiKey}
	h := api.Handlers{
		Alerts:    alerts.NewHandler(logger, lifecycle, service.NewStatsService(store), hub, dir),
		Telephony: telephony.NewHandler(logger, relay),
		System:    system.NewHandler(logger, relay, hub),
	}
	srv := httptest.NewServer(api.InitRouter(ctx, cfg, h, dir, m, logger))
	t.Cleanup(srv.Close)

	return &stack{srv: srv, queue: queue}
}

func (s *stack) do(t *testing.T, method, path, user, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", apiKey)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestAlertFlow(t *testing.T) {
	t.Parallel()
	s := newStack(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/alerts", "p1", `{"lat":1.30,"lng":103.80}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created domain.Alert
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, domain.AlertActive, created.Status)
	assert.Equal(t, "Pat", created.PatientName)

	// both caregivers are notified: cB by assignment, cA by proximity
	notified := map[string]bool{}
	for i := 0; i < 2; i++ {
		n, err := s.queue.Pop(context.Background(), 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, created.ID, n.AlertID)
		notified[n.CaregiverID] = true
	}
	assert.Equal(t, map[string]bool{"cA": true, "cB": true}, notified)

	path := "/api/v1/alerts/" + created.ID.String()

	resp, body = s.do(t, http.MethodPost, path+"/respond", "cA", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var rr domain.RespondResponse
	require.NoError(t, json.Unmarshal(body, &rr))
	assert.False(t, rr.AlreadyResponding)
	assert.Equal(t, domain.AlertResponded, rr.Alert.Status)

	resp, body = s.do(t, http.MethodPost, path+"/respond", "cA", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &rr))
	assert.True(t, rr.AlreadyResponding)

	resp, _ = s.do(t, http.MethodPost, path+"/respond", "p1", ``)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = s.do(t, http.MethodPut, path+"/responders/me", "cA", `{"status":"en_route"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = s.do(t, http.MethodPost, path+"/resolve", "p1", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var resolved domain.Alert
	require.NoError(t, json.Unmarshal(body, &resolved))
	assert.Equal(t, domain.AlertResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	resp, _ = s.do(t, http.MethodPost, path+"/cancel", "cB", ``)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/v1/patients/p1/alerts", "cB", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history domain.ListAlertsResponse
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Equal(t, 1, history.Total)
}

func TestAuth(t *testing.T) {
	t.Parallel()
	s := newStack(t)

	resp, _ := s.do(t, http.MethodGet, "/api/v1/alerts/stats", "", ``)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/alerts/stats", "nobody", ``)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/v1/alerts/stats", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "cA")
	noKey, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	noKey.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, noKey.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/alerts/stats", "cA", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPublicEndpoints(t *testing.T) {
	t.Parallel()
	s := newStack(t)

	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// telephony is unconfigured in tests
	r, body := s.do(t, http.MethodPost, "/api/v1/telephony/sms", "cA", `{"to":"+6591234567","body":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, r.StatusCode, string(body))
}
