package target

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalsim/internal/analytics"
	"portalsim/internal/config"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

var fetchTarget = regexp.MustCompile(`fetch\(("[^"]*")`)

// beaconTarget returns the URL the page script posts to. html/template
// escapes it as a JS string literal, so it is decoded before comparing.
func beaconTarget(t *testing.T, body string) string {
	t.Helper()
	m := fetchTarget.FindStringSubmatch(body)
	require.Len(t, m, 2, "no fetch call in page")
	var target string
	require.NoError(t, json.Unmarshal([]byte(m[1]), &target))
	return target
}

func TestHandler_ServesDefaultPages(t *testing.T) {
	s := New(ServerConfig{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	matcher := analytics.NewMatcher(nil)
	for _, path := range config.DefaultPages {
		code, body := get(t, srv.URL+path)
		assert.Equal(t, http.StatusOK, code, path)
		assert.Contains(t, body, "<a href=", path)
		assert.Contains(t, body, "<button", path)

		target := beaconTarget(t, body)
		assert.Equal(t, BeaconPath, target, path)
		assert.True(t, matcher.Match(srv.URL+target), path)
	}
	assert.Equal(t, int64(len(config.DefaultPages)), s.Stats().PageViews)

	code, _ := get(t, srv.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_CountsBeacons(t *testing.T) {
	s := New(ServerConfig{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+BeaconPath, "application/json", strings.NewReader(`{"path":"/"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	_, body := get(t, srv.URL+"/_stats")
	var st Stats
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, int64(3), st.Beacons)
}

func TestBeaconPath_MatchesDefaultPatterns(t *testing.T) {
	m := analytics.NewMatcher(nil)
	assert.True(t, m.Match("http://localhost:8080"+BeaconPath))
}

func TestHandler_FailureInjection(t *testing.T) {
	s := New(ServerConfig{FailureRate: 1})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	code, _ := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Zero(t, s.Stats().PageViews)
}

func TestServer_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ServerConfig{Port: 0, Jitter: time.Millisecond})
	require.NoError(t, s.Start(ctx))
	require.NotEmpty(t, s.URL())

	code, _ := get(t, s.URL()+"/about")
	assert.Equal(t, http.StatusOK, code)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	assert.NoError(t, s.Stop(stopCtx))
}
