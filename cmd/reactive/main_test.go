package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/reactive/internal/config"
	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/reactive"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestVersionLong(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    "+version)
	assert.Contains(t, out, "Go version:")
}

func TestInitWritesDefaults(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, config.ConfigFileName)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), cfg.Name)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "init", dir)
	require.NoError(t, err)

	_, err = execute(t, "init", dir)
	require.Error(t, err)
	assert.Equal(t, "X001", errors.CodeOf(err))

	_, err = execute(t, "init", "--force", dir)
	require.NoError(t, err)
}

func TestInitYAML(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "init", "--yaml", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, config.YAMLConfigFileName))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), cfg.Name)
}

func TestInitMissingDir(t *testing.T) {
	_, err := execute(t, "init", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, "X001", errors.CodeOf(err))
}

func TestBench(t *testing.T) {
	out, err := execute(t, "bench", "-n", "200", "-w", "2", "--fanout", "10")
	require.NoError(t, err)
	for _, name := range []string{"set", "fanout", "churn", "parallel"} {
		assert.Contains(t, out, name)
	}
}

func TestBenchRejectsZero(t *testing.T) {
	_, err := execute(t, "bench", "-n", "0")
	require.Error(t, err)
	assert.Equal(t, "X001", errors.CodeOf(err))
}

func TestRunBenchCounts(t *testing.T) {
	results, err := runBench(benchOptions{iterations: 100, workers: 4, fanout: 10})
	require.NoError(t, err)
	require.Len(t, results, 4)

	byName := make(map[string]benchResult)
	for _, r := range results {
		byName[r.Name] = r
	}

	// Each write reruns the effect once, plus the initial run.
	assert.Equal(t, uint64(101), byName["set"].Runs)
	assert.Equal(t, 10, byName["fanout"].Ops)
	assert.Equal(t, uint64(10*11), byName["fanout"].Runs)
	assert.Equal(t, uint64(100), byName["churn"].Runs)
	assert.Equal(t, 100, byName["parallel"].Ops)
	assert.Equal(t, uint64(4*26), byName["parallel"].Runs)
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	testChdir(t, t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.New().Server, cfg.Server)
}

func TestLoadConfigExplicitPathMissing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), config.ConfigFileName))
	require.Error(t, err)
	assert.Equal(t, "C003", errors.CodeOf(err))
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Equal(t, "C001", errors.CodeOf(err))
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"log":{"format":"xml"}}`), 0644))

	_, err := execute(t, "serve", "--config", path)
	require.Error(t, err)
	assert.Equal(t, "C002", errors.CodeOf(err))
}

func TestAppRoutes(t *testing.T) {
	cfg := config.New()
	a, err := newApp(cfg, discardLogger())
	require.NoError(t, err)
	defer a.close()

	scope := a.rt.NewScope()
	defer scope.Dispose()
	s := reactive.CreateSignal(scope, 1)
	reactive.CreateEffect(scope, func() { _ = s.Get() })

	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + cfg.Metrics.Path)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `reactive_resources_created_total{kind="effect",runtime="reactive"} 1`)
	assert.Contains(t, string(body), `reactive_resources_live{kind="value",runtime="reactive"} 1`)
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = http.Get(srv.URL + devtoolsPrefix + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats struct {
		Runtime reactive.Stats `json:"runtime"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Runtime.Effects)
}

func TestAppRoutesDisabled(t *testing.T) {
	cfg := config.New()
	cfg.Metrics.Enabled = false
	cfg.Devtools.Enabled = false
	cfg.Tracing.Enabled = true

	a, err := newApp(cfg, discardLogger())
	require.NoError(t, err)
	defer a.close()

	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	for _, path := range []string{cfg.Metrics.Path, devtoolsPrefix + "/stats"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestRunDemoReleasesResources(t *testing.T) {
	rt := reactive.NewRuntime(reactive.WithLogger(discardLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, runDemo(ctx, rt, discardLogger(), time.Millisecond))

	st := rt.Stats()
	assert.Zero(t, st.Resources)
	assert.Zero(t, st.Scopes)
}

func TestAppRunShutsDown(t *testing.T) {
	cfg := config.New()
	cfg.Server.Port = 0
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.ShutdownTimeout = "1s"

	a, err := newApp(cfg, discardLogger())
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.run(ctx, serveOptions{demo: true, interval: time.Millisecond})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

// testChdir stands in for testing.T.Chdir (Go 1.24+) on older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
