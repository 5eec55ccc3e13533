package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsDispatchedTotal, jobsResolvedTotal, dispatchRejectedTotal, awaitTimeoutsTotal) }

var jobsDispatchedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gpu_jobs_dispatched_total",
		Help: "GPU jobs accepted by the worker, labeled by kind and purpose.",
	},
	[]string{"kind", "purpose"},
)

var jobsResolvedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gpu_jobs_resolved_total",
		Help: "GPU jobs reaching a terminal state via callback, labeled by status.",
	},
	[]string{"kind", "status"},
)

var dispatchRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gpu_dispatch_rejected_total",
		Help: "Dispatch attempts rejected by the worker API; rows stay pending.",
	},
	[]string{"kind"},
)

var awaitTimeoutsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gpu_await_timeouts_total",
		Help: "Caller-local poll timeouts; the underlying row is left untouched.",
	},
)

func IncJobDispatched(kind, purpose string) {
	jobsDispatchedTotal.WithLabelValues(norm(kind), norm(purpose)).Inc()
}

func IncJobResolved(kind, status string) {
	jobsResolvedTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func IncDispatchRejected(kind string) {
	dispatchRejectedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncAwaitTimeout() { awaitTimeoutsTotal.Inc() }
