package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as the "result" label.
const (
	CheckoutAccepted   = "accepted"
	CheckoutRejected   = "rejected"
	CheckoutClosed     = "closed"
	CheckoutSubmission = "submission_failed"
)

// DeskMetrics counts order-desk side effects: checkouts, operator alerts and receipt prints.
// A nil *DeskMetrics is a valid no-op recorder.
type DeskMetrics struct {
	checkouts       *prometheus.CounterVec
	checkoutLatency prometheus.Histogram
	alerts          *prometheus.CounterVec
	playbackBlocked prometheus.Counter
	prints          *prometheus.CounterVec
}

// NewDeskMetrics registers the order desk collectors on reg.
func NewDeskMetrics(reg prometheus.Registerer) *DeskMetrics {
	if reg == nil {
		return nil
	}
	m := &DeskMetrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_submissions_total",
			Help: "Checkout submissions by result.",
		}, []string{"result"}),
		checkoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Time spent validating and writing an order.",
			Buckets: prometheus.DefBuckets,
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_alerts_total",
			Help: "New-order alerts raised to operator sessions by kind.",
		}, []string{"kind"}),
		playbackBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_alert_playback_blocked_total",
			Help: "Chimes the operator surface refused to play.",
		}),
		prints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_prints_total",
			Help: "Receipt print dispatches by mode and result.",
		}, []string{"mode", "result"}),
	}
	reg.MustRegister(m.checkouts, m.checkoutLatency, m.alerts, m.playbackBlocked, m.prints)
	return m
}

func (m *DeskMetrics) ObserveCheckout(result string, started time.Time) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
	m.checkoutLatency.Observe(time.Since(started).Seconds())
}

// IncAlert counts one alert of the given kind ("chime", "visual").
func (m *DeskMetrics) IncAlert(kind string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *DeskMetrics) IncPlaybackBlocked() {
	if m == nil {
		return
	}
	m.playbackBlocked.Inc()
}

func (m *DeskMetrics) IncPrint(mode string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.prints.WithLabelValues(normalizeLabel(mode), result).Inc()
}
