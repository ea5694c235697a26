package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
)

type pingRoute struct{}

func (pingRoute) Register(e *echo.Echo) {
	e.POST("/process-audio", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "yes"})
	})
}

type panicRoute struct{}

func (panicRoute) Register(e *echo.Echo) {
	e.GET("/boom", func(echo.Context) error { panic("boom") })
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		StaticDir:      t.TempDir(),
		CORSOrigin:     "http://localhost:3000",
		MetricsEnabled: true,
	}
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestNew_CreatesAudioDirAndServesStatic(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	info, err := os.Stat(AudioDir(cfg))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, os.WriteFile(filepath.Join(AudioDir(cfg), "response-1.wav"), []byte("RIFF"), 0o644))
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/static/audio/response-1.wav", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RIFF", rec.Body.String())
}

func TestNew_HealthAndMetrics(t *testing.T) {
	e, err := New(testConfig(t), zerolog.Nop(), nil)
	require.NoError(t, err)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "static_dir")

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_ReadyFailsWithUnhealthyDependency(t *testing.T) {
	checks := map[string]observability.HealthCheckFunc{
		"deepgram": func(context.Context) (bool, error) { return false, errors.New("api key missing") },
	}
	e, err := New(testConfig(t), zerolog.Nop(), checks)
	require.NoError(t, err)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "api key missing")
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsEnabled = false
	e, err := New(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNew_CORSPreflight(t *testing.T) {
	e, err := New(testConfig(t), zerolog.Nop(), nil, pingRoute{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/process-audio", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := serve(e, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
}

func TestNew_RecoversFromPanics(t *testing.T) {
	e, err := New(testConfig(t), zerolog.Nop(), nil, panicRoute{})
	require.NoError(t, err)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNewHTTPServer(t *testing.T) {
	srv := NewHTTPServer(&config.Config{Port: "8000"}, http.NotFoundHandler())
	assert.Equal(t, ":8000", srv.Addr)
	assert.NotZero(t, srv.WriteTimeout)
}
