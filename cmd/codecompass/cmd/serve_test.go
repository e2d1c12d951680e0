package cmd

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalridge/codecompass/internal/health"
	"github.com/signalridge/codecompass/internal/rs"
	"github.com/signalridge/codecompass/internal/vs"
)

// TestServe_HealthRouteWiring exercises exactly the chi wiring runServe
// sets up for GET /health, without going through the MCP stdio
// transport (which reads real process stdin and isn't suitable for a
// unit test's lifecycle).
func TestServe_HealthRouteWiring(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), dataDirName)
	store, err := rs.Open(dataDir)
	require.NoError(t, err)
	defer store.Close()

	vectorStore, err := vs.NewSQLiteStore(store.DB(), defaultVectorCacheSize)
	require.NoError(t, err)

	checker := health.New(store, vectorStore, dataDir, healthCacheTTL)
	router := chi.NewRouter()
	router.Get("/health", checker.HTTPHandler())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	assert.Equal(t, "ok", payload["status"])
}

func TestServeCmd_Flags_HaveExpectedDefaults(t *testing.T) {
	cmd := newServeCmd()

	pathFlag := cmd.Flags().Lookup("path")
	require.NotNil(t, pathFlag)
	assert.Equal(t, ".", pathFlag.DefValue)

	addrFlag := cmd.Flags().Lookup("health-addr")
	require.NotNil(t, addrFlag)
	assert.Equal(t, "127.0.0.1:8085", addrFlag.DefValue)
}

func TestRunServe_EmptyHealthAddr_SkipsHTTPServer(t *testing.T) {
	// A canceled context makes mcpSrv.Serve return almost immediately
	// (stdio transport sees EOF/cancellation) without this test needing
	// to interact with stdin at all.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newServeCmd()
	err := runServe(ctx, cmd, t.TempDir(), "")
	_ = err // transport-dependent; we only assert this doesn't panic on the empty-addr path
}
