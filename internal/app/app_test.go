package app

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitalign/internal/config"
	"pitalign/internal/feeds"
	"pitalign/internal/shared/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Observability.MetricExporter = "none"
	cfg.Observability.TraceExporter = "none"
	cfg.Data.Dir = t.TempDir()
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewApplication_LoadsData(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Data.Dir, "alpaca_etb.csv"),
		"Sid,Date,EasyToBorrow\nFI12345,2018-04-28,true\nFI12345,2018-05-02,false\n")
	writeFile(t, filepath.Join(cfg.Data.Dir, "unrelated.csv"), "a,b\n1,2\n")
	cfg.Data.ReferenceFile = filepath.Join(t.TempDir(), "securities.csv")
	writeFile(t, cfg.Data.ReferenceFile, "Sid,Timezone\nFI12345,America/New_York\n")

	logger, logs := testutil.NewTestLogger(t)
	application, err := NewApplication(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close(context.Background()) })

	assert.Equal(t, []string{feeds.AlpacaETBFeed}, application.Source.Feeds())
	require.NotNil(t, application.Reference)
	testutil.AssertLogContains(t, logs, slog.LevelInfo, "reference data loaded")

	cal := testutil.Calendar("2018-05-01", 3, "FI12345").InLocation(testutil.Location("America/New_York"))
	result, err := feeds.AlpacaETB(context.Background(), application.Deps(), cal, feeds.Params{})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, testutil.Bools(result.Series("", "EasyToBorrow", "FI12345")))
}

func TestNewApplication_MissingDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Dir = filepath.Join(cfg.Data.Dir, "nope")

	logger, logs := testutil.NewTestLogger(t)
	application, err := NewApplication(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close(context.Background()) })

	assert.Empty(t, application.Source.Feeds())
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "fact directory not found, starting without data")
}

func TestNewApplication_BadReferenceFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.ReferenceFile = filepath.Join(t.TempDir(), "missing.csv")

	logger, _ := testutil.NewTestLogger(t)
	_, err := NewApplication(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load reference data")
}

func TestNewApplication_BadAPIKeyHash(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.APIKeys = map[string]string{"research": "s3cret"}

	logger, _ := testutil.NewTestLogger(t)
	_, err := NewApplication(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load API keys")
}

func TestNewApplication_CatalogueOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alignment.Lookbacks = map[string]int{feeds.AlpacaETBFeed: 3}

	logger, _ := testutil.NewTestLogger(t)
	application, err := NewApplication(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close(context.Background()) })

	feed, err := application.Catalogue.Get(feeds.AlpacaETBFeed)
	require.NoError(t, err)
	assert.Equal(t, 3, feed.Schema.LookbackDays)
}

func TestApplication_StartStop(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Data.Dir, "alpaca_etb.csv"),
		"Sid,Date,EasyToBorrow\nFI12345,2018-04-28,true\n")

	logger, logs := testutil.NewTestLogger(t)
	application, err := NewApplication(context.Background(), cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, application.Start(ctx, cancel))

	_, port, err := net.SplitHostPort(application.Addr())
	require.NoError(t, err)
	base := "http://127.0.0.1:" + port

	resp, err := http.Get(base + config.ReadyEndpoint)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), feeds.AlpacaETBFeed)

	req := `{"calendar":{"dates":["2018-05-01"],"timezone":"America/New_York","entities":["FI12345"]},"params":{}}`
	resp, err = http.Post(base+config.AlignEndpoint+"/alpaca_etb", "application/json", strings.NewReader(req))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"feed":"alpaca_etb"`)

	require.NoError(t, application.Stop(ctx))
	testutil.AssertLogContains(t, logs, slog.LevelInfo, "Application shutdown complete")

	_, err = http.Get(base + config.HealthEndpoint)
	assert.Error(t, err, "server should be closed")
}
