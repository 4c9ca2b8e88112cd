package bootstrap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdgusya/crawl-selector/internal/bootstrap"
	"github.com/tmdgusya/crawl-selector/internal/config"
	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/messaging"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\nstore:\n  driver: memory\n"), 0o600))

	cfg, err := bootstrap.LoadConfig(path, true)

	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSetupStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Store.Driver = config.DriverRedis
	cfg.Redis.Address = mr.Addr()

	store, closeFn, err := bootstrap.SetupStore(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	require.IsType(t, &recipe.RedisStore{}, store)
	require.NoError(t, store.Put(context.Background(), recipe.CrawlRecipe{ID: "r1", Name: "Shop"}))
	snap, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Recipes, 1)
}

func TestSetupStore_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Store.Driver = config.DriverRedis
	cfg.Redis.Address = addr

	_, _, err := bootstrap.SetupStore(cfg, logger.NewNop())

	assert.ErrorContains(t, err, "redis connection")
}

func TestNewApp_InProcessContent(t *testing.T) {
	app, err := bootstrap.NewApp(config.Default(), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	require.NotNil(t, app.Host)
	assert.Nil(t, app.ContentSocket)
	for _, o := range []messaging.Origin{messaging.OriginBackground, messaging.OriginPanel, messaging.OriginContent} {
		assert.True(t, app.Bus.Attached(o), o)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	app.Routes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestNewApp_RemoteContent(t *testing.T) {
	cfg := config.Default()
	cfg.Messaging.RemoteContent = true

	app, err := bootstrap.NewApp(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.Nil(t, app.Host)
	assert.NotNil(t, app.ContentSocket)
	assert.False(t, app.Bus.Attached(messaging.OriginContent))
}

func TestApp_CloseDetaches(t *testing.T) {
	app, err := bootstrap.NewApp(config.Default(), logger.NewNop())
	require.NoError(t, err)

	app.Close()

	assert.False(t, app.Bus.Attached(messaging.OriginPanel))
	assert.False(t, app.Bus.Attached(messaging.OriginContent))
}

func TestNewApp_FetchOutlivesRequestTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Messaging.RequestTimeout = 100 * time.Millisecond
	cfg.Fetch.Timeout = 400 * time.Millisecond
	cfg.Fetch.RatePerHost = 0

	app, err := bootstrap.NewApp(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.Greater(t, app.Bus.TimeoutFor(messaging.KindFetchAndExtract), cfg.Fetch.Timeout)
	assert.Equal(t, cfg.Messaging.RequestTimeout, app.Bus.TimeoutFor(messaging.KindExtractField))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delay := 200 * time.Millisecond
		if r.URL.Path == "/hang" {
			delay = 5 * time.Second
		}
		select {
		case <-time.After(delay):
			_, _ = w.Write([]byte(`<html><body><h1>Slow</h1></body></html>`))
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	client := messaging.NewClient(app.Bus, messaging.OriginPanel)
	fields := []recipe.SelectorField{{ID: "f1", FieldName: "title", Selector: "h1", Extract: recipe.Text()}}

	resp := client.FetchAndExtract(context.Background(), srv.URL+"/slow", fields)
	require.Empty(t, resp.Error)
	assert.Equal(t, "Slow", resp.Results["f1"].Transformed.String())

	resp = client.FetchAndExtract(context.Background(), srv.URL+"/hang", fields)
	assert.Empty(t, resp.Results)
	assert.Contains(t, resp.Error, "timed out after 400ms")
	assert.NotContains(t, resp.Error, "fetch service unavailable")
}
