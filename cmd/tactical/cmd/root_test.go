package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// runCLI executes one command against a catalog in dir.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root, a := newRootCmd("test", &out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--env-file", filepath.Join(dir, "missing.env"),
	}, args...))

	err := root.Execute()
	require.NoError(t, a.close())
	return out.String(), err
}

func testDir(t *testing.T) string {
	dir := t.TempDir()
	t.Setenv("LABOVEDA_DATA_DIR", dir)
	t.Setenv("LABOVEDA_DB_DRIVER", "sqlite")
	t.Setenv("LABOVEDA_DB_DSN", "")
	t.Setenv("LABOVEDA_LOG_LEVEL", "error")
	return dir
}

func TestCLI_PromoteLinkRecalibrate(t *testing.T) {
	dir := testDir(t)

	out, err := runCLI(t, dir, "matrix", "create", "alfa", "--name", "Alfa")
	require.NoError(t, err)
	assert.Contains(t, out, "code: ALFA")

	_, err = runCLI(t, dir, "ingest", "p1", "--impressions", "1000", "--clicks", "10", "--saves", "5")
	require.NoError(t, err)
	_, err = runCLI(t, dir, "ingest", "p2", "--clicks", "50")
	require.NoError(t, err)

	out, err = runCLI(t, dir, "promote", "p1", "--matrix", "ALFA")
	require.NoError(t, err)
	var asset map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &asset))
	assert.Equal(t, "SKU-ALFA-001", asset["sku"])
	assert.Equal(t, "Alfa 01", asset["display_name"])
	assert.Equal(t, 53.5, asset["score"])

	out, err = runCLI(t, dir, "link", "SKU-ALFA-001", "p2")
	require.NoError(t, err)
	var linked map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &linked))
	assert.Equal(t, 1, linked["linked"])

	out, err = runCLI(t, dir, "recalibrate", "--quiet")
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report["assets_updated"])
	assert.Equal(t, 1, report["matrices_recomputed"])
	assert.Equal(t, false, report["canceled"])

	out, err = runCLI(t, dir, "matrix", "show", "ALFA")
	require.NoError(t, err)
	var shown struct {
		Matrix map[string]any   `yaml:"matrix"`
		Assets []map[string]any `yaml:"assets"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, 303.5, shown.Matrix["total_score"])
	require.Len(t, shown.Assets, 1)
	assert.Equal(t, "COMMON", shown.Assets[0]["tier"])
}

func TestCLI_NextIDAndIncinerate(t *testing.T) {
	dir := testDir(t)

	_, err := runCLI(t, dir, "matrix", "create", "BETA")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "next-id", "BETA")
	require.NoError(t, err)
	assert.Contains(t, out, "sku: SKU-BETA-001")

	out, err = runCLI(t, dir, "next-id", "BETA")
	require.NoError(t, err)
	assert.Contains(t, out, "sku: SKU-BETA-002")

	_, err = runCLI(t, dir, "ingest", "loose")
	require.NoError(t, err)
	out, err = runCLI(t, dir, "incinerate", "loose", "unknown")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted: 1")
}

func TestCLI_Errors(t *testing.T) {
	dir := testDir(t)

	_, err := runCLI(t, dir, "matrix", "show", "NOPE")
	assert.Error(t, err)

	_, err = runCLI(t, dir, "promote", "p1")
	assert.Error(t, err, "--matrix is required")

	_, err = runCLI(t, dir, "radar", "nope")
	assert.Error(t, err)
}

func TestCLI_ScoreDoesNotOpenCatalog(t *testing.T) {
	dir := testDir(t)

	out, err := runCLI(t, dir, "score", "--clicks", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "score: 100")
	assert.Contains(t, out, "tier: COMMON")

	_, statErr := os.Stat(filepath.Join(dir, "laboveda.db"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCLI_EnvFile(t *testing.T) {
	dir := testDir(t)
	envFile := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(envFile, []byte("LABOVEDA_WEIGHT_CLICK=1\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("LABOVEDA_WEIGHT_CLICK") })

	var out bytes.Buffer
	root, a := newRootCmd("test", &out)
	root.SetArgs([]string{"--config", filepath.Join(dir, "missing.yaml"), "--env-file", envFile, "score", "--clicks", "20"})
	require.NoError(t, root.Execute())
	require.NoError(t, a.close())
	assert.Contains(t, out.String(), "score: 20")
}

func TestCLI_StatusAndRemoteRecalibrate(t *testing.T) {
	dir := testDir(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok","version":"9.9.9","uptime":"1s"}`))
		case "/api/recalibrate":
			_, _ = w.Write([]byte(`{"run_id":"remote","total_assets":2,"assets_updated":2,"matrices_recomputed":1}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	t.Setenv("LABOVEDA_WORKER_PORT", u.Port())

	out, err := runCLI(t, dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 9.9.9")

	out, err = runCLI(t, dir, "recalibrate", "--remote")
	require.NoError(t, err)
	assert.Contains(t, out, "run_id: remote")

	// The remote run never opens the local catalog.
	_, statErr := os.Stat(filepath.Join(dir, "laboveda.db"))
	assert.True(t, os.IsNotExist(statErr))
}
