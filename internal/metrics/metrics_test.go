package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware("users"))
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("users", "GET", "/users/{id}", "404"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/abc", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues("users", "GET", "/users/{id}", "404"))
	assert.Equal(t, before+1, after)
}

func TestAuditWriteFailed(t *testing.T) {
	before := testutil.ToFloat64(auditWriteFailures.WithLabelValues("diary"))
	AuditWriteFailed("diary")
	assert.Equal(t, before+1, testutil.ToFloat64(auditWriteFailures.WithLabelValues("diary")))
}
