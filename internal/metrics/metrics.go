// Package metrics wraps prometheus/client_golang for the dispatcher and
// its connections, following marmos91-dittofs/pkg/metrics/prometheus: a
// nil-safe handle so call sites don't need to guard every call when
// metrics are disabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatcher holds the counters the xCall dispatcher and its connections
// update. A nil *Dispatcher is valid and every method becomes a no-op,
// so production code can pass metrics.New() and tests can pass nil.
type Dispatcher struct {
	callsSent          *prometheus.CounterVec
	requestsCommitted  prometheus.Counter
	rollbacksEnabled   prometheus.Counter
	rollbacksExecuted  *prometheus.CounterVec
	duplicateReceipts  *prometheus.CounterVec
	sequenceHighWater  prometheus.Gauge
}

// New registers the xCall metrics on a fresh registry and returns both the
// Dispatcher handle and an http.Handler serving /metrics.
func New() (*Dispatcher, http.Handler) {
	reg := prometheus.NewRegistry()
	d := &Dispatcher{
		callsSent: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "xcall_calls_sent_total",
			Help: "Outbound send_call invocations by destination network.",
		}, []string{"network"}),
		requestsCommitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "xcall_requests_committed_total",
			Help: "Inbound requests committed (CallMessage emitted).",
		}),
		rollbacksEnabled: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "xcall_rollbacks_enabled_total",
			Help: "Failure results that enabled a rollback.",
		}),
		rollbacksExecuted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "xcall_rollbacks_executed_total",
			Help: "execute_rollback invocations by outcome code.",
		}, []string{"code"}),
		duplicateReceipts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "xcall_duplicate_receipts_total",
			Help: "recv_message calls rejected as duplicate (src_network, conn_sn).",
		}, []string{"connection"}),
		sequenceHighWater: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "xcall_sequence_high_water",
			Help: "Highest sn issued by get_next_sn so far.",
		}),
	}
	return d, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (d *Dispatcher) CallSent(network string) {
	if d == nil {
		return
	}
	d.callsSent.WithLabelValues(network).Inc()
}

func (d *Dispatcher) RequestCommitted() {
	if d == nil {
		return
	}
	d.requestsCommitted.Inc()
}

func (d *Dispatcher) RollbackEnabled() {
	if d == nil {
		return
	}
	d.rollbacksEnabled.Inc()
}

func (d *Dispatcher) RollbackExecuted(success bool) {
	if d == nil {
		return
	}
	code := "0"
	if success {
		code = "1"
	}
	d.rollbacksExecuted.WithLabelValues(code).Inc()
}

// DuplicateReceipt counts one duplicate (src_network, conn_sn) rejection
// for the named connection. The centralized and cluster connections hold
// no metrics handle and do not call it, so in xcalld this counter stays
// at zero.
func (d *Dispatcher) DuplicateReceipt(connection string) {
	if d == nil {
		return
	}
	d.duplicateReceipts.WithLabelValues(connection).Inc()
}

func (d *Dispatcher) SequenceHighWater(sn float64) {
	if d == nil {
		return
	}
	d.sequenceHighWater.Set(sn)
}
