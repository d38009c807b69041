package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/harvest"
	"github.com/pevans/newsharvest/storage"
	"github.com/pevans/newsharvest/target"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner returns a fixed report, or blocks until released when gate is
// set.
type stubRunner struct {
	gate chan struct{}
	err  error
}

func (r *stubRunner) Run(ctx context.Context) (*harvest.RunReport, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
		}
	}
	now := time.Now()
	return &harvest.RunReport{
		ID:         "run-1",
		StartedAt:  now,
		FinishedAt: now,
		Targets:    []harvest.TargetReport{{Target: "a", Attempted: 1, Fetched: 1, Extracted: 1, Accepted: 1}},
	}, nil
}

type testEnv struct {
	server   *Server
	store    storage.Backend
	targets  *target.TargetStore
	settings *config.SettingsStore
	service  *harvest.Service
}

// Test helper: create a server backed by temporary SQLite stores
func setupTestServer(t *testing.T, runner harvest.Runner) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	targets, err := target.NewTargetStore(filepath.Join(dir, "targets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { targets.Close() })

	settings, err := config.NewSettingsStore(filepath.Join(dir, "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { settings.Close() })

	svc := harvest.NewService(harvest.ServiceConfig{Runner: runner, Sink: store, Logger: zerolog.Nop()})

	server := NewServer(Deps{
		Service:  svc,
		Store:    store,
		Targets:  targets,
		Settings: settings,
		FileTargets: []target.Target{
			{Name: "from-file", BaseURL: "https://example.com/markets", Enabled: true},
		},
		Logger: zerolog.Nop(),
	})

	return &testEnv{server: server, store: store, targets: targets, settings: settings, service: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// TestStartRun_Wait verifies a synchronous run returns its report
func TestStartRun_Wait(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})

	w := env.do(t, http.MethodPost, "/api/v1/runs?wait=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	report := decode[harvest.RunReport](t, w)
	assert.Equal(t, "run-1", report.ID)
	require.Len(t, report.Targets, 1)
	assert.Equal(t, 1, report.Targets[0].Accepted)

	stored, err := env.store.LatestReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", stored.ID)
}

// TestStartRun_Conflict verifies a second run is refused while one is in
// flight
func TestStartRun_Conflict(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{})}
	env := setupTestServer(t, runner)

	w := env.do(t, http.MethodPost, "/api/v1/runs", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	errResp := decode[ErrorResponse](t, w)
	assert.Equal(t, "conflict", errResp.Error.Code)

	w = env.do(t, http.MethodGet, "/api/v1/runs/status", nil)
	assert.True(t, decode[RunStatusResponse](t, w).Running)

	close(runner.gate)
	require.Eventually(t, func() bool { return !env.service.Running() }, time.Second, 5*time.Millisecond)
}

// TestStartRun_ConfigurationError verifies an empty registry is reported as
// a configuration problem
func TestStartRun_ConfigurationError(t *testing.T) {
	env := setupTestServer(t, &stubRunner{err: harvest.ErrEmptyRegistry})

	w := env.do(t, http.MethodPost, "/api/v1/runs?wait=true", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "configuration_error", decode[ErrorResponse](t, w).Error.Code)
}

// TestStartRun_AfterShutdown verifies background runs are refused once the
// scheduler has stopped
func TestStartRun_AfterShutdown(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, env.service.Start(ctx))

	w := env.do(t, http.MethodPost, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", decode[ErrorResponse](t, w).Error.Code)
}

// TestLatestRun_NotFound verifies 404 before any run
func TestLatestRun_NotFound(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})

	w := env.do(t, http.MethodGet, "/api/v1/runs/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestLatestRun_FromStore verifies reports of earlier processes are served
func TestLatestRun_FromStore(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})
	require.NoError(t, env.store.SaveReport(context.Background(), &harvest.RunReport{
		ID:        "earlier",
		StartedAt: time.Now().Add(-time.Hour),
	}))

	w := env.do(t, http.MethodGet, "/api/v1/runs/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "earlier", decode[harvest.RunReport](t, w).ID)
}

// TestTargets_CRUD verifies stored targets can be managed and are listed
// after file targets
func TestTargets_CRUD(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})

	w := env.do(t, http.MethodPost, "/api/v1/targets", map[string]any{
		"name":     "added",
		"base_url": "https://news.example.org/economy",
		"enabled":  true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/targets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[ListTargetsResponse](t, w)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "from-file", list.Targets[0].Name)
	assert.Equal(t, OriginFile, list.Targets[0].Origin)
	assert.Equal(t, "added", list.Targets[1].Name)
	assert.Equal(t, OriginStore, list.Targets[1].Origin)
	assert.Equal(t, target.StrategyHTTP, list.Targets[1].FetchStrategy)

	w = env.do(t, http.MethodPut, "/api/v1/targets/added", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[target.StoredTarget](t, w).Enabled)

	w = env.do(t, http.MethodGet, "/api/v1/targets?enabled=false", nil)
	list = decode[ListTargetsResponse](t, w)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "added", list.Targets[0].Name)

	w = env.do(t, http.MethodDelete, "/api/v1/targets/added", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/targets/added", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestCreateTarget_Validation verifies invalid and clashing targets are
// refused
func TestCreateTarget_Validation(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})

	w := env.do(t, http.MethodPost, "/api/v1/targets", map[string]any{"name": "no-url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode[ErrorResponse](t, w).Error.Code)

	w = env.do(t, http.MethodPost, "/api/v1/targets", map[string]any{
		"name":     "from-file",
		"base_url": "https://example.com/other",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/targets", map[string]any{
		"name":      "typo",
		"base_url":  "https://example.com/",
		"selectors": []string{"p"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestListContents verifies stored content is paginated
func TestListContents(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})
	ctx := context.Background()
	for i, hash := range []string{"h1", "h2", "h3"} {
		_, err := env.store.Save(ctx, &filter.ScoredContent{
			TargetName:  "a",
			URL:         "https://example.com/" + hash,
			Title:       hash,
			BodyText:    "body " + hash,
			ContentHash: hash,
			ScrapedAt:   time.Now().Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/contents?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ListContentsResponse](t, w)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Limit)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "h3", resp.Items[0].Title)

	w = env.do(t, http.MethodGet, "/api/v1/contents/"+resp.Items[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "h3", decode[filter.ScoredContent](t, w).ContentHash)

	w = env.do(t, http.MethodGet, "/api/v1/contents/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestListContents_InvalidParameters verifies bad pagination is rejected
func TestListContents_InvalidParameters(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})

	for _, path := range []string{"/api/v1/contents?limit=0", "/api/v1/contents?limit=x", "/api/v1/contents?offset=-1"} {
		w := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

// TestSettings verifies the scheduler toggle and interval round trip
func TestSettings(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})

	w := env.do(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1h", decode[config.Settings](t, w).ScrapeInterval)

	w = env.do(t, http.MethodPut, "/api/v1/settings", map[string]any{
		"scheduler_enabled": true,
		"scrape_interval":   "3h",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	settings := decode[config.Settings](t, w)
	assert.True(t, settings.SchedulerEnabled)
	assert.Equal(t, "3h", settings.ScrapeInterval)
	assert.True(t, env.settings.SchedulerEnabled(context.Background()))

	w = env.do(t, http.MethodPut, "/api/v1/settings", map[string]any{"scrape_interval": "5s"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestCORS verifies preflight requests are answered
func TestCORS(t *testing.T) {
	env := setupTestServer(t, &stubRunner{})

	w := env.do(t, http.MethodOptions, "/api/v1/targets", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
