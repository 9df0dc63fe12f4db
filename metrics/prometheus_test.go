package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollector_Values(t *testing.T) {
	c := NewCollector("portal", "qa", "nightly")
	c.IncTestFinished(true)
	c.IncTestFinished(false)
	c.IncTestFinished(false)
	c.IncLogEntry()

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewPrometheusCollector(c))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("%s has %d series, want 1", mf.GetName(), len(mf.GetMetric()))
		}
		values[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue()
	}

	if got := values["rpbridge_tests_failed_total"]; got != 2 {
		t.Errorf("tests_failed_total = %v, want 2", got)
	}
	if got := values["rpbridge_tests_passed_total"]; got != 1 {
		t.Errorf("tests_passed_total = %v, want 1", got)
	}
	if got := values["rpbridge_log_entries_total"]; got != 1 {
		t.Errorf("log_entries_total = %v, want 1", got)
	}
}

func TestPrometheusCollector_ReadsAtScrapeTime(t *testing.T) {
	c := NewCollector("stub", "", "l")
	pc := NewPrometheusCollector(c)

	if n := testutil.CollectAndCount(pc, "rpbridge_log_entries_total"); n != 1 {
		t.Fatalf("CollectAndCount = %d, want 1", n)
	}

	c.IncLogEntry()
	c.IncLogEntry()

	reg := prometheus.NewRegistry()
	reg.MustRegister(pc)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "rpbridge_log_entries_total" {
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 2 {
				t.Errorf("log_entries_total = %v, want 2", v)
			}
			return
		}
	}
	t.Error("rpbridge_log_entries_total not gathered")
}

func TestHandler_ServesTextFormat(t *testing.T) {
	c := NewCollector("redis", "", "smoke")
	c.IncLaunchStarted("abc")

	srv := httptest.NewServer(Handler(c))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	if !strings.Contains(text, `rpbridge_launches_started_total{launch="smoke",transport="redis"} 1`) {
		t.Errorf("missing launches_started series in:\n%s", text)
	}
}
