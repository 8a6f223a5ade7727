package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"jobintel-engine/internal/secrets"
)

const scrapeBody = `{"platform":"seek","count":2,"jobs":[
  {"source_id":"100","title":"Plumber","company":"Acme","location_state":"NSW","trade":"plumber","description":"<p>Fix pipes</p>"},
  {"source_id":"101","title":"Gasfitter","company":"Acme","location_state":"Victoria","trade":"gasfitter","description":"Gas"}
]}`

func scrapeServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "scraper broke", status)
			return
		}
		if r.URL.Path != "/scrape/seek" {
			_, _ = w.Write([]byte(`{"platform":"indeed","jobs":[],"count":0}`))
			return
		}
		_, _ = w.Write([]byte(scrapeBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, scrapeURL string) string {
	t.Helper()
	keyring.MockInit()
	t.Setenv(secrets.TokenEnv, "")
	t.Setenv("JOBINTEL_SCRAPE_API_URL", scrapeURL)
	t.Setenv("JOBINTEL_DB_DRIVER", "")
	t.Setenv("REDIS_URL", "")
	return t.TempDir()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "ingest", "runs", "stats", "sweep"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"config", "data-dir", "format", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)

	ingest, _, err := cmd.Find([]string{"ingest"})
	require.NoError(t, err)
	assert.Equal(t, "all", ingest.Flags().Lookup("source").DefValue)
	assert.Equal(t, "50", ingest.Flags().Lookup("max-results").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	dir := setupEnv(t, "http://127.0.0.1:1")
	_, err := execute(t, "runs", "--data-dir", dir, "--format", "yaml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestIngestRunsStatsSweep(t *testing.T) {
	srv := scrapeServer(t, http.StatusOK)
	dir := setupEnv(t, srv.URL)

	out, err := execute(t, "ingest", "--data-dir", dir, "--source", "all", "--keywords", "plumber", "--format", "json")
	require.NoError(t, err, out)

	var resp struct {
		Status string        `json:"status"`
		Data   ingestSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.JobsFound)
	assert.Equal(t, 2, resp.Data.New)
	assert.Empty(t, resp.Data.Errors)

	// second pass is all duplicates
	out, err = execute(t, "ingest", "--data-dir", dir, "--source", "seek", "--keywords", "plumber")
	require.NoError(t, err, out)
	assert.Contains(t, out, "found=2 new=0 updated=0 duplicates=2 errors=0")

	out, err = execute(t, "runs", "--data-dir", dir, "--format", "json")
	require.NoError(t, err)
	var runsResp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runsResp))
	require.Len(t, runsResp.Data, 2)
	assert.Equal(t, "seek", runsResp.Data[0]["source"])
	assert.Equal(t, "success", runsResp.Data[0]["status"])

	out, err = execute(t, "runs", "--data-dir", dir, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "success")

	out, err = execute(t, "stats", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "total=2 active=2")
	assert.Contains(t, out, "VIC")

	time.Sleep(10 * time.Millisecond)
	out, err = execute(t, "sweep", "--data-dir", dir, "--max-age", "1ns")
	require.NoError(t, err)
	assert.Contains(t, out, "deactivated 2 postings")

	out, err = execute(t, "stats", "--data-dir", dir, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"activeJobs":0`)

	_, err = execute(t, "stats", "--data-dir", dir, "--since", "last week")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestIngestFetchFailure(t *testing.T) {
	srv := scrapeServer(t, http.StatusInternalServerError)
	dir := setupEnv(t, srv.URL)

	_, err := execute(t, "ingest", "--data-dir", dir, "--source", "seek", "--keywords", "roofer")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "scraper broke")

	_, err = execute(t, "ingest", "--data-dir", dir, "--source", "gumtree", "--keywords", "roofer")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidConfigIsCommandError(t *testing.T) {
	dir := setupEnv(t, "not a url")
	_, err := execute(t, "runs", "--data-dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scrape_api.base_url")
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestServeRefusesSecondInstance(t *testing.T) {
	dir := setupEnv(t, "http://127.0.0.1:1")
	lock := flock.New(filepath.Join(dir, "engine.lock"))
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = lock.Unlock() }()

	err = runServe(context.Background(), &ServeOptions{RootOptions: &RootOptions{DataDir: dir}, Host: "127.0.0.1"}, nil)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "already running")
}

func TestServeStartsAndStops(t *testing.T) {
	dir := setupEnv(t, "http://127.0.0.1:1")
	t.Setenv("JOBINTEL_PORT", fmt.Sprint(freePort(t)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, &ServeOptions{RootOptions: &RootOptions{DataDir: dir}, Host: "127.0.0.1"}, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not start")
	}

	res, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	_ = res.Body.Close()
	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, 66, body["scheduledEntries"], "65 ingest entries plus the sweep")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}

	// the lock is released on exit
	lock := flock.New(filepath.Join(dir, "engine.lock"))
	locked, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	_ = lock.Unlock()
}
