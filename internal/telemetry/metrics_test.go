package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(BroadcastsTotal.WithLabelValues("ok"))
	BroadcastsTotal.WithLabelValues("ok").Inc()
	if got := testutil.ToFloat64(BroadcastsTotal.WithLabelValues("ok")); got != before+1 {
		t.Fatalf("broadcasts_total{ok} = %v, want %v", got, before+1)
	}
}

func TestMetricsHandlerExposesNamespace(t *testing.T) {
	SetBuildInfo("test", "deadbeef")
	DecodeErrorsTotal.Inc()

	srv := httptest.NewServer(MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"simtest_decode_errors_total",
		"simtest_uptime_seconds",
		`simtest_build_info{git_sha="deadbeef",version="test"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
