package worker

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	gormdb "github.com/thebtf/laboveda/internal/db/gorm"
	"github.com/thebtf/laboveda/internal/scoring"
	"github.com/thebtf/laboveda/internal/tactical"
)

// testService creates a Service over a temporary SQLite catalog.
func testService(t *testing.T, opts Options) (*Service, *tactical.Engine) {
	t.Helper()

	store, err := gormdb.NewStore(gormdb.Config{
		Driver:   gormdb.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "worker.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine := tactical.NewEngine(gormdb.NewCatalogStore(store), scoring.NewCalculator(nil), zerolog.Nop())
	opts.Health = store
	opts.Log = zerolog.Nop()
	if opts.Concurrency == 0 {
		opts.Concurrency = 2
	}
	return NewService(engine, opts), engine
}

// doJSON sends body as JSON to the service and returns the recorded response.
func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
