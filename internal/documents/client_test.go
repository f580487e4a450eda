package documents

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/testutil"
)

func TestHTTPClient(t *testing.T) {
	present := id.ImportGroupID(uuid.New())
	failing := id.ImportGroupID(uuid.New())
	slow := id.ImportGroupID(uuid.New())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/import-groups/" + present.String() + "/required-documents":
			_, _ = w.Write([]byte(`{"present":true}`))
		case "/api/import-groups/" + failing.String() + "/required-documents":
			w.WriteHeader(http.StatusBadGateway)
		case "/api/import-groups/" + slow.String() + "/required-documents":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"present":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL+"/api", 50*time.Millisecond)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := client.RequiredDocumentsPresent(ctx, present)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.RequiredDocumentsPresent(ctx, id.ImportGroupID(uuid.New()))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.RequiredDocumentsPresent(ctx, failing)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = client.RequiredDocumentsPresent(ctx, slow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))

	_, err = NewHTTPClient("not a url", 0)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	router := chi.NewRouter()
	NewHandler(NewInMemory(), slog.New(slog.NewTextHandler(io.Discard, nil))).Register(router)
	path := "/import-groups/" + uuid.NewString() + "/documents"

	rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
	require.Equal(t, http.StatusOK, rec.Code)
	testutil.AssertJSONContains(t, rec, "present", false)

	yes := true
	rec = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, path, SetRequest{Present: &yes}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
	testutil.AssertJSONContains(t, rec, "present", true)

	rec = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, path, map[string]any{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
