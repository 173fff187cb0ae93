package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"url2/internal/display"
	"url2/internal/logger"
)

var (
	instancesDesc = prometheus.NewDesc(
		"url2_instances",
		"Number of url2 resources by stored display mode",
		[]string{"display"},
		nil,
	)

	views = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "url2_views_total",
		Help: "Total resource views by resolved display mode",
	}, []string{"display"})

	events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "url2_events_total",
		Help: "Total module events recorded by event name",
	}, []string{"event"})

	healthChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "url2_health_checks_total",
		Help: "Total link health checks by outcome",
	}, []string{"status"})
)

// DisplayCounter reports how many resources use each display mode.
type DisplayCounter interface {
	CountURL2sByDisplay(ctx context.Context) (map[display.Mode]int, error)
}

// DisplayCollector is a custom Prometheus collector that reads instance
// counts from the database on each scrape.
type DisplayCollector struct {
	source DisplayCounter
	log    logger.Logger
}

// NewDisplayCollector creates a collector over source.
func NewDisplayCollector(source DisplayCounter, log logger.Logger) *DisplayCollector {
	return &DisplayCollector{source: source, log: log}
}

// Describe sends the metric descriptor to the channel.
func (c *DisplayCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- instancesDesc
}

// Collect queries the instance counts and emits them as gauges.
func (c *DisplayCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.source.CountURL2sByDisplay(ctx)
	if err != nil {
		c.log.Error("failed to collect display metrics", logger.Error(err))
		return
	}
	for mode, n := range counts {
		ch <- prometheus.MustNewConstMetric(
			instancesDesc,
			prometheus.GaugeValue,
			float64(n),
			mode.String(),
		)
	}
}

var initOnce sync.Once

// Init registers the collectors with the default registry.
// Must be called once at startup.
func Init(source DisplayCounter, log logger.Logger) {
	initOnce.Do(func() {
		prometheus.MustRegister(views, events, healthChecks, NewDisplayCollector(source, log))
	})
}

// RecordView counts a view rendered in the given mode.
func RecordView(mode display.Mode) {
	views.WithLabelValues(mode.String()).Inc()
}

// RecordEvent counts a recorded module event.
func RecordEvent(name string) {
	events.WithLabelValues(name).Inc()
}

// RecordHealthCheck counts a finished link check.
func RecordHealthCheck(status string) {
	healthChecks.WithLabelValues(status).Inc()
}
