package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencegofer/internal/chat"
	"presencegofer/internal/config"
	"presencegofer/internal/effect"
	"presencegofer/internal/wsclient"
)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func dialWatcher(t *testing.T, httpURL string) *wsclient.Client {
	t.Helper()
	c := wsclient.New(wsclient.Options{URL: "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"}, zerolog.Nop())
	t.Cleanup(c.Close)
	require.NoError(t, c.Connect(context.Background()))
	return c
}

func TestServer_EndToEnd(t *testing.T) {
	s, ts := newTestServer(t, config.Default())

	statuses := make(chan chat.Status, 4)
	watcher := dialWatcher(t, ts.URL)
	watcher.SetStatusHandler(func(st chat.Status) { statuses <- st })
	publisher := dialWatcher(t, ts.URL)

	ctx := context.Background()
	rendered, err := watcher.Bind(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Loading...", rendered)

	require.NoError(t, publisher.SetPresence(ctx, 100, true))
	select {
	case st := <-statuses:
		assert.Equal(t, chat.FriendID(100), st.FriendID)
		assert.True(t, st.IsOnline)
	case <-time.After(5 * time.Second):
		t.Fatal("no status pushed")
	}

	assert.Equal(t, 2, s.Sessions().Count())
	assert.Equal(t, 1, s.Sessions().SubscribedCount())

	code, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "presencegofer_subscribes_total 1")
	assert.Contains(t, body, "presencegofer_sessions_active 2")
	assert.Contains(t, body, `presencegofer_statuses_published_total{online="true"} 1`)
}

func TestServer_Health(t *testing.T) {
	s, ts := newTestServer(t, config.Default())

	code, _ := get(t, ts.URL+"/live")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, ts.URL+"/ready")
	assert.Equal(t, http.StatusOK, code)

	require.NoError(t, s.Stop(context.Background()))

	code, body := get(t, ts.URL+"/ready?full=1")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "shutting down")
	code, _ = get(t, ts.URL+"/live")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_ReadyReportsSessionLimit(t *testing.T) {
	cfg := config.Default()
	cfg.MaxSessions = 1
	_, ts := newTestServer(t, cfg)

	dialWatcher(t, ts.URL)
	require.Eventually(t, func() bool {
		code, _ := get(t, ts.URL+"/ready")
		return code == http.StatusServiceUnavailable
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.MetricsEnabled = false
	_, ts := newTestServer(t, cfg)

	code, _ := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_MaxWatchersFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxWatchersPerFriend = 1
	_, ts := newTestServer(t, cfg)

	first := dialWatcher(t, ts.URL)
	second := dialWatcher(t, ts.URL)
	_, err := first.Bind(context.Background(), 5)
	require.NoError(t, err)
	_, err = second.Bind(context.Background(), 5)
	assert.ErrorContains(t, err, chat.ErrTooManyWatchers.Error())
}

func TestServer_StopReleasesEverything(t *testing.T) {
	s, ts := newTestServer(t, config.Default())
	c := dialWatcher(t, ts.URL)
	_, err := c.Bind(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, s.Sessions().Count())
	assert.Zero(t, s.Hub().TotalWatchers())

	cb := effect.NewCallback(func(chat.Status) {})
	assert.ErrorIs(t, s.Hub().SubscribeToFriendStatus(1, cb), chat.ErrHubClosed)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestServer_StartStop(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)

	s, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Start())
	assert.Equal(t, cfg.Addr(), s.Addr())

	code, _ := get(t, "http://"+s.Addr()+"/live")
	assert.Equal(t, http.StatusOK, code)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeoutDuration())
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	_, err = http.Get("http://" + s.Addr() + "/live")
	assert.Error(t, err)
}
