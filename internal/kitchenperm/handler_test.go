package kitchenperm

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

func serve(t *testing.T, h http.Handler, method, path, body string, actor shared.Actor) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(shared.ContextWithActor(context.Background(), actor))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerGrantAndRevoke(t *testing.T) {
	reg, _, _ := newTestRegistry()
	r := chi.NewRouter()
	r.Route("/kitchen-permissions", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), reg).MountRoutes)

	rec := serve(t, r, http.MethodPost, "/kitchen-permissions", `{"user_id":2,"can_auto_approve":true,"max_order_value":"250.00"}`, admin)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, r, http.MethodPost, "/kitchen-permissions", `{"user_id":2}`, kitchen)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, r, http.MethodPost, "/kitchen-permissions", `{"can_auto_approve":true}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, r, http.MethodDelete, "/kitchen-permissions/1", ``, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_active":false`)

	rec = serve(t, r, http.MethodGet, "/kitchen-permissions/42", ``, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, r, http.MethodGet, "/kitchen-permissions?user_id=2", ``, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}
