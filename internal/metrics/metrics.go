package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PaymentsInitiated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "STK push requests accepted by the gateway",
		},
	)
	CallbacksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_callbacks_total",
			Help: "Inbound gateway callbacks by kind",
		},
		[]string{"kind"}, // stk|status|balance|reversal|c2b
	)
	SettlementsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_recorded_total",
			Help: "Settlement observations committed to the ledger",
		},
		[]string{"source", "outcome"}, // source: poll|callback|sweep|c2b
	)
	RewardsDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_dispatched_total",
			Help: "Airtime disbursements accepted by the provider",
		},
	)
	RewardsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_failed_total",
			Help: "Airtime disbursements rejected or errored",
		},
	)
	RewardsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_skipped_total",
			Help: "Disbursements skipped below the amount threshold",
		},
	)
	SweepPulled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_pulled_total",
			Help: "Transactions returned by bulk pull",
		},
	)
	SweepSynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_synced_total",
			Help: "Transactions newly synced by the reconciliation sweep",
		},
	)
	PollExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "status_poll_exhausted_total",
			Help: "Status polls that hit the attempt cap without a terminal result",
		},
	)
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

func Init() {
	prometheus.MustRegister(PaymentsInitiated)
	prometheus.MustRegister(CallbacksReceived)
	prometheus.MustRegister(SettlementsRecorded)
	prometheus.MustRegister(RewardsDispatched)
	prometheus.MustRegister(RewardsFailed)
	prometheus.MustRegister(RewardsSkipped)
	prometheus.MustRegister(SweepPulled)
	prometheus.MustRegister(SweepSynced)
	prometheus.MustRegister(PollExhausted)
	prometheus.MustRegister(WorkerQueueDepth)
}
