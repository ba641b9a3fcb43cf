package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservePost(t *testing.T) {
	before := testutil.ToFloat64(postsTotal.WithLabelValues("metrics-test", OutcomeSuccess))
	ObservePost("metrics-test", OutcomeSuccess, time.Second)
	ObservePost("metrics-test", OutcomeSuccess, time.Second)
	assert.Equal(t, before+2, testutil.ToFloat64(postsTotal.WithLabelValues("metrics-test", OutcomeSuccess)))

	ObserveRetry("metrics-test")
	assert.Equal(t, 1.0, testutil.ToFloat64(retriesTotal.WithLabelValues("metrics-test")))

	ObserveStatusCheck("metrics-test", "logged_in")
	assert.Equal(t, 1.0, testutil.ToFloat64(statusChecks.WithLabelValues("metrics-test", "logged_in")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/websites/{website}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, site := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/websites/"+site, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/v1/websites/{website}", "418")))
}
