package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/crm-backend/pkg/metrics"
)

func TestMetricsLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/v1/contacts/{contactId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/contacts/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/contacts/def", nil))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range mfs {
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["route"] != "/api/v1/contacts/{contactId}" {
				continue
			}
			found = true
			if labels["status"] != "404" {
				t.Fatalf("expected status 404 got %s", labels["status"])
			}
			if got := metric.GetHistogram().GetSampleCount(); got != 2 {
				t.Fatalf("expected 2 samples got %d", got)
			}
		}
	}
	if !found {
		t.Fatal("expected a series labelled with the route pattern")
	}
}
