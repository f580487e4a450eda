// Package testutil holds request builders and response assertions shared by
// handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest marshals body (when non-nil) and sets the JSON content type.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func UnmarshalResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "failed to unmarshal response: %s", rec.Body.String())
	return &out
}

// UnmarshalErrorResponse decodes the {"error", "error_description", "reason"}
// body written by httputil.WriteError.
func UnmarshalErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "failed to unmarshal error response: %s", rec.Body.String())
	return out
}

func AssertStatusAndError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, "unexpected status code")
	assert.Equal(t, code, UnmarshalErrorResponse(t, rec)["error"], "unexpected error code")
}

// AssertRejected checks a 422 names the limit or precondition that blocked
// the operation.
func AssertRejected(t *testing.T, rec *httptest.ResponseRecorder, code, reason string) {
	t.Helper()
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "unexpected status code")
	body := UnmarshalErrorResponse(t, rec)
	assert.Equal(t, code, body["error"], "unexpected error code")
	assert.Equal(t, reason, body["reason"], "unexpected reason")
}

func AssertJSONContains(t *testing.T, rec *httptest.ResponseRecorder, key string, want any) {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "failed to unmarshal response")
	assert.Equal(t, want, out[key], "unexpected value for key %q", key)
}
