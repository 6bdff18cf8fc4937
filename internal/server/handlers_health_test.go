package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestLivenessEndpoint(t *testing.T) {
	f := newServerFixture(t)

	f.dial(t, "clientType=wa-status")
	f.waitForConnections(t, 1)

	code, body := getJSON(t, f.ts.URL+"/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["connections"])
	assert.GreaterOrEqual(t, body["uptime"], float64(0))
}

func TestVersionEndpoint(t *testing.T) {
	f := newServerFixture(t)

	code, body := getJSON(t, f.ts.URL+"/version")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dev", body["version"])
	assert.Contains(t, body["go_version"], "go")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRouteReturns404(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
