package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accessFormat = `{"uri": "${uri}", "status": ${status}, "bytes_out": ${bytes_out}, "category": "${category}", "id": "${id}", "debug": "${custom:debug}"}` + "\n"

func TestLoggerWithConfig(t *testing.T) {
	var out bytes.Buffer
	e := echo.New()
	e.Use(LoggerWithConfig(LoggerConfig{Format: accessFormat, Output: &out}))
	e.GET("/v1/query", func(c echo.Context) error {
		c.Set("debug", "SELECT ?s\nWHERE { ?s ?p \"o\" }")
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/query?sex=snomed:248152002", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	e.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry), out.String())
	assert.Equal(t, "/v1/query?sex=snomed:248152002", entry["uri"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(2), entry["bytes_out"])
	assert.Equal(t, "query", entry["category"])
	assert.Equal(t, "abc-123", entry["id"])
	assert.Equal(t, "SELECT ?s\nWHERE { ?s ?p \"o\" }", entry["debug"])
}

func TestLoggerRecordsErrors(t *testing.T) {
	var out bytes.Buffer
	e := echo.New()
	e.Use(LoggerWithConfig(LoggerConfig{Format: accessFormat, Output: &out}))

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry), out.String())
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
	assert.Equal(t, "", entry["debug"])
}

func TestCategory(t *testing.T) {
	for path, want := range map[string]string{
		"/query":                  "query",
		"/v1/query":               "query",
		"/v1.1/attributes/nb:Sex": "attributes",
		"/version":                "version",
		"/vocab/terms":            "vocab",
		"/":                       "",
	} {
		assert.Equal(t, want, category(path), path)
	}
}
