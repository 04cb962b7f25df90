package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.ActorFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(actor.String()))
	})
}

func request(headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestAuthenticate(t *testing.T) {
	h := Middleware{}.Authenticate(echoActor())

	cases := []struct {
		name    string
		headers map[string]string
		code    int
		body    string
	}{
		{name: "anonymous", code: http.StatusOK, body: "anonymous"},
		{name: "admin", headers: map[string]string{HeaderActorID: "7", HeaderActorRole: "Admin"}, code: http.StatusOK, body: "admin#7"},
		{name: "unknown role", headers: map[string]string{HeaderActorID: "8", HeaderActorRole: "sous-chef"}, code: http.StatusOK, body: "other#8"},
		{name: "malformed id", headers: map[string]string{HeaderActorID: "abc"}, code: http.StatusUnauthorized},
		{name: "negative id", headers: map[string]string{HeaderActorID: "-3"}, code: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, request(tc.headers))
			require.Equal(t, tc.code, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	m := Middleware{}
	h := m.Authenticate(m.RequireRole(shared.RoleAdmin, shared.RoleKitchen)(echoActor()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(map[string]string{HeaderActorID: "3", HeaderActorRole: "other"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(map[string]string{HeaderActorID: "4", HeaderActorRole: "kitchen"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kitchen#4", rec.Body.String())
}
