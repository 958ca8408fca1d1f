package metrics

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "keypart"

// Metrics holds the scheduler's Prometheus instruments. It implements
// scheduler.Recorder without importing the scheduler package, keeping the
// dependency direction metrics -> prometheus only.
type Metrics struct {
	Dispatched   prometheus.Counter
	RouteErrors  prometheus.Counter
	Repartitions prometheus.Counter
	QueueDepth   *prometheus.GaugeVec
}

// New registers the scheduler's instruments against reg and returns the
// handle used to update them.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatched_total",
			Help:      "Requests admitted by schedule_and_answer.",
		}),
		RouteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_errors_total",
			Help:      "Requests rewritten to ERROR for referencing an unmapped key.",
		}),
		Repartitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repartitions_total",
			Help:      "Completed repartition cycles.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_queue_depth",
			Help:      "Pending messages in a partition worker's queue.",
		}, []string{"partition"}),
	}
	reg.MustRegister(m.Dispatched, m.RouteErrors, m.Repartitions, m.QueueDepth)
	return m
}

// ObserveDispatch implements scheduler.Recorder.
func (m *Metrics) ObserveDispatch() { m.Dispatched.Inc() }

// ObserveRouteError implements scheduler.Recorder.
func (m *Metrics) ObserveRouteError() { m.RouteErrors.Inc() }

// ObserveRepartition implements scheduler.Recorder.
func (m *Metrics) ObserveRepartition() { m.Repartitions.Inc() }

// SetQueueDepth records partition p's current queue length.
func (m *Metrics) SetQueueDepth(partition int, depth int) {
	m.QueueDepth.WithLabelValues(strconv.Itoa(partition)).Set(float64(depth))
}

// QueueDepthSource is the subset of worker.Worker that QueueDepthReporter
// needs; kept as an interface here so metrics does not import worker.
type QueueDepthSource interface {
	ID() int
	QueueDepth() int
}

// QueueDepthReporter periodically samples every worker's queue depth into
// the QueueDepth gauge, in the same background-ticker shape as the
// teacher's HealthMonitor.
type QueueDepthReporter struct {
	metrics  *Metrics
	workers  []QueueDepthSource
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueueDepthReporter returns a reporter that samples workers every
// interval once Start is called.
func NewQueueDepthReporter(m *Metrics, workers []QueueDepthSource, interval time.Duration) *QueueDepthReporter {
	ctx, cancel := context.WithCancel(context.Background())
	return &QueueDepthReporter{metrics: m, workers: workers, interval: interval, ctx: ctx, cancel: cancel}
}

// Start begins the sampling loop in a background goroutine.
func (r *QueueDepthReporter) Start() {
	r.wg.Add(1)
	go r.loop()
}

func (r *QueueDepthReporter) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			for _, w := range r.workers {
				r.metrics.SetQueueDepth(w.ID(), w.QueueDepth())
			}
		}
	}
}

// Stop cancels the sampling loop and waits for it to exit.
func (r *QueueDepthReporter) Stop() {
	r.cancel()
	r.wg.Wait()
}
