package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/copyleftdev/uiprobe/internal/auth"
	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/copyleftdev/uiprobe/internal/runs"
	"github.com/copyleftdev/uiprobe/internal/runs/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type dirLocator string

func (d dirLocator) EvidenceDir(id uuid.UUID) string {
	return filepath.Join(string(d), id.String())
}

type testAPI struct {
	handler  http.Handler
	manager  *runs.Manager
	runner   *mocks.MockRunner
	evidence dirLocator
}

func newTestAPI(t *testing.T, security config.SecurityConfig, verifier *auth.TOTPVerifier) *testAPI {
	t.Helper()
	cfg := &config.Config{
		Browser:  config.BrowserConfig{MaxSessions: 1},
		Security: security,
	}
	if cfg.Security.AllowedOrigins == nil {
		cfg.Security.AllowedOrigins = []string{"*"}
	}
	runner := mocks.NewMockRunner()
	manager := runs.NewManager(cfg, runner, zap.NewNop())
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	evidence := dirLocator(t.TempDir())
	handler := NewAPIHandler(manager, evidence, "http://localhost:5173", zap.NewNop())
	return &testAPI{
		handler:  NewRouter(cfg, handler, verifier, zap.NewNop()),
		manager:  manager,
		runner:   runner,
		evidence: evidence,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) submit(t *testing.T, body string) uuid.UUID {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/runs", body, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp SubmitRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id, err := uuid.Parse(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/runs/"+resp.RunID, rec.Header().Get("Location"))
	return id
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, config.SecurityConfig{ApiKey: "secret"}, nil)
	rec := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestSubmitAndGetRun(t *testing.T) {
	api := newTestAPI(t, config.SecurityConfig{}, nil)

	id := api.submit(t, `{"target_url": "http://game.local:5173"}`)

	require.Eventually(t, func() bool {
		run, err := api.manager.Get(id)
		return err == nil && run.Status == runs.StatusPassed
	}, 2*time.Second, 5*time.Millisecond)

	rec := api.do(t, http.MethodGet, "/api/v1/runs/"+id.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var run runs.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "http://game.local:5173", run.TargetURL)
	assert.Equal(t, runs.StatusPassed, run.Status)
	require.NotNil(t, run.Report)
	assert.True(t, run.Report.Passed)
}

func TestSubmitRun_DefaultsTargetURL(t *testing.T) {
	api := newTestAPI(t, config.SecurityConfig{}, nil)
	id := api.submit(t, `{}`)

	run, err := api.manager.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173", run.TargetURL)
}

func TestSubmitRun_BadRequests(t *testing.T) {
	api := newTestAPI(t, config.SecurityConfig{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"target_url":`},
		{"unsupported scheme", `{"target_url": "file:///etc/passwd"}`},
		{"missing host", `{"target_url": "http://"}`},
		{"bad callback", `{"callback_url": "ftp://hooks.local/x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/runs", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
	assert.Empty(t, api.runner.Executed())
}

func TestGetRun_Errors(t *testing.T) {
	api := newTestAPI(t, config.SecurityConfig{}, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/runs/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/runs/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitRun_AfterShutdown(t *testing.T) {
	api := newTestAPI(t, config.SecurityConfig{}, nil)
	require.NoError(t, api.manager.Shutdown(context.Background()))

	rec := api.do(t, http.MethodPost, "/api/v1/runs", `{}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetEvidence(t *testing.T) {
	api := newTestAPI(t, config.SecurityConfig{}, nil)
	id := api.submit(t, `{}`)

	dir := api.evidence.EvidenceDir(id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "initial_load.png"), []byte("\x89PNG fake"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "initial_load.html"), []byte("<html></html>"), 0o644))

	base := "/api/v1/runs/" + id.String() + "/evidence/"

	rec := api.do(t, http.MethodGet, base+"initial_load", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG fake", rec.Body.String())

	rec = api.do(t, http.MethodGet, base+"initial_load?format=html", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = api.do(t, http.MethodGet, base+"initial_load?format=gif", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, base+"settings_modal_verified", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, base+"report", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/runs/"+uuid.NewString()+"/evidence/initial_load", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	api := newTestAPI(t, config.SecurityConfig{ApiKey: "s3cret"}, nil)
	path := "/api/v1/runs/" + uuid.NewString()

	rec := api.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, key := range []string{"wrong", "s3cre", "s3cret!", "S3CRET"} {
		rec = api.do(t, http.MethodGet, path, "", map[string]string{"X-API-Key": key})
		assert.Equal(t, http.StatusForbidden, rec.Code, key)
	}

	rec = api.do(t, http.MethodGet, path, "", map[string]string{"X-API-Key": "s3cret"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, path, "", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTOTPAuth(t *testing.T) {
	verifier, err := auth.NewTOTPVerifier("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	api := newTestAPI(t, config.SecurityConfig{}, verifier)
	path := "/api/v1/runs/" + uuid.NewString()

	rec := api.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, path, "", map[string]string{totpHeader: "12345"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	code, err := verifier.Code(time.Now())
	require.NoError(t, err)
	rec = api.do(t, http.MethodGet, path, "", map[string]string{totpHeader: code})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
