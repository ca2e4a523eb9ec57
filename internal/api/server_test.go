package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcrafty/mcscan/internal/auth"
	"github.com/pingcrafty/mcscan/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.API.ListenAddr = "127.0.0.1"
	cfg.API.Port = 0
	return cfg
}

func writeTargetsFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRejectsMalformedAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.APIKey = "not-a-valid-key"

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestAPIKeyGatesScanRoutesButNotHealthz(t *testing.T) {
	cfg := testConfig(t)
	generated, err := auth.GenerateAPIKey("test")
	require.NoError(t, err)
	cfg.API.APIKey = generated.Key

	srv, err := New(cfg, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "healthz should bypass authentication")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/blacklist", nil)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing key should be rejected")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/blacklist", nil)
	req.Header.Set("X-API-Key", generated.Key)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "the configured key should be accepted")
}

func TestHealthzReturnsOK(t *testing.T) {
	srv, err := New(testConfig(t), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBlacklistHandlerDisabledReportsEmpty(t *testing.T) {
	srv, err := New(testConfig(t), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/blacklist", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["enabled"])
}

func TestCreateScanRejectsUnknownDiscoveryMethod(t *testing.T) {
	srv, err := New(testConfig(t), nil)
	require.NoError(t, err)

	payload := createScanRequest{Discovery: config.DiscoveryConfig{Method: "bogus"}}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateScanFromFileSourceReturnsID(t *testing.T) {
	srv, err := New(testConfig(t), nil)
	require.NoError(t, err)

	target := writeTargetsFile(t, "127.0.0.1:25565")
	payload := createScanRequest{Discovery: config.DiscoveryConfig{Method: "file", Path: target, Ports: []int{25565}}}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])
}

func TestScanStatsReturnsNotFoundForUnknownID(t *testing.T) {
	srv, err := New(testConfig(t), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/00000000-0000-0000-0000-000000000000/stats", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildTargetSourceRejectsMissingExternalCommand(t *testing.T) {
	_, err := (config.DiscoveryConfig{Method: "external"}).BuildSource(context.Background(), config.AdvancedConfig{})
	assert.Error(t, err)
}

func TestBuildTargetSourceFile(t *testing.T) {
	target := writeTargetsFile(t, "10.0.0.1:25565", "10.0.0.2")
	src, err := (config.DiscoveryConfig{Method: "file", Path: target, Ports: []int{25565}}).BuildSource(context.Background(), config.AdvancedConfig{})
	require.NoError(t, err)
	require.NotNil(t, src)
	defer src.Close()
}

func TestBuildTargetSourceUnknownMethod(t *testing.T) {
	_, err := (config.DiscoveryConfig{Method: "carrier-pigeon"}).BuildSource(context.Background(), config.AdvancedConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown discovery method")
}

func TestWriteErrorSetsStatusAndBody(t *testing.T) {
	srv, err := New(testConfig(t), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.writeError(rec, http.StatusTeapot, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "boom", body["error"])
}
