package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every exported metric name.
const Namespace = "rpbridge"

type counterDesc struct {
	desc  *prometheus.Desc
	value func(Snapshot) int64
}

// PrometheusCollector exposes a Collector's snapshot as Prometheus
// counters. Values are read at scrape time.
type PrometheusCollector struct {
	source   *Collector
	counters []counterDesc
}

// NewPrometheusCollector wraps source for registration with a Prometheus
// registry. Dimension values become constant labels.
func NewPrometheusCollector(source *Collector) *PrometheusCollector {
	snap := source.Snapshot()
	labels := prometheus.Labels{
		"transport": snap.Transport,
		"launch":    snap.Launch,
	}
	if snap.Project != "" {
		labels["project"] = snap.Project
	}

	def := func(name, help string, value func(Snapshot) int64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", name), help, nil, labels),
			value: value,
		}
	}

	return &PrometheusCollector{
		source: source,
		counters: []counterDesc{
			def("launches_started_total", "Launches started.", func(s Snapshot) int64 { return s.LaunchesStarted }),
			def("launches_finished_total", "Launches finished.", func(s Snapshot) int64 { return s.LaunchesFinished }),
			def("suites_started_total", "Suite items started.", func(s Snapshot) int64 { return s.SuitesStarted }),
			def("suites_finished_total", "Suite items finished.", func(s Snapshot) int64 { return s.SuitesFinished }),
			def("tests_started_total", "Test items started.", func(s Snapshot) int64 { return s.TestsStarted }),
			def("tests_passed_total", "Test items finished as passed.", func(s Snapshot) int64 { return s.TestsPassed }),
			def("tests_failed_total", "Test items finished as failed.", func(s Snapshot) int64 { return s.TestsFailed }),
			def("duplicate_finishes_total", "Finishes rejected as already finished.", func(s Snapshot) int64 { return s.DuplicateFinishes }),
			def("log_entries_total", "Log entries sent.", func(s Snapshot) int64 { return s.LogEntries }),
			def("attachments_total", "Attachments sent.", func(s Snapshot) int64 { return s.Attachments }),
			def("metadata_entries_total", "Metadata pairs rendered into log entries.", func(s Snapshot) int64 { return s.MetadataEntries }),
			def("remote_call_success_total", "Successful transport calls.", func(s Snapshot) int64 { return s.RemoteCallSuccess }),
			def("remote_call_failure_total", "Failed transport calls.", func(s Snapshot) int64 { return s.RemoteCallFailure }),
			def("host_events_total", "Events read from the host stream.", func(s Snapshot) int64 { return s.HostEvents }),
			def("host_decode_errors_total", "Host stream decode errors.", func(s Snapshot) int64 { return s.HostDecodeErrors }),
			def("host_events_dropped_total", "Host events that could not be routed.", func(s Snapshot) int64 { return s.HostEventsDropped }),
		},
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
}

// Collect implements prometheus.Collector.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snap := p.source.Snapshot()
	for _, c := range p.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value(snap)))
	}
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)

// Handler returns an HTTP handler serving source in the Prometheus text
// format, on a dedicated registry.
func Handler(source *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewPrometheusCollector(source))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
