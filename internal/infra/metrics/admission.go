package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(admissionsTotal, admissionCyclesTotal, budgetStopsTotal) }

var admissionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "admission_candidates_admitted_total",
		Help: "Candidates converted into dispatched jobs by the admission controller.",
	},
)

var admissionCyclesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admission_cycles_total",
		Help: "Admission cycles run, labeled by outcome (ok/budget/error).",
	},
	[]string{"outcome"},
)

var budgetStopsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "admission_budget_stops_total",
		Help: "Cycles short-circuited because the daily spend cap was reached.",
	},
)

func AddAdmitted(n int) { admissionsTotal.Add(float64(n)) }

func IncAdmissionCycle(outcome string) {
	admissionCyclesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncBudgetStop() { budgetStopsTotal.Inc() }
