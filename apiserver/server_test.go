package apiserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtsw2exec/killswitch"
	"qtsw2exec/summary"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthz(t *testing.T) {
	srv := New(summary.New(), killswitch.New(filepath.Join(t.TempDir(), "ks.json")))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSummaryEndpointReflectsCounters(t *testing.T) {
	sum := summary.New()
	sum.IncSubmitted()
	srv := New(sum, killswitch.New(filepath.Join(t.TempDir(), "ks.json")))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap summary.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Submitted)
}

func TestSetKillSwitchWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ks.json")
	ks := killswitch.New(path)
	srv := New(summary.New(), ks)

	body, err := json.Marshal(map[string]any{"enabled": true, "reason": "operator paused"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/kill-switch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.True(t, ks.IsEnabled())
}

func TestSetKillSwitchRejectsInvalidBody(t *testing.T) {
	srv := New(summary.New(), killswitch.New(filepath.Join(t.TempDir(), "ks.json")))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/kill-switch", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
