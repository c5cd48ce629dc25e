package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var alertsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kite_alerts_total",
		Help: "Total number of report alerts raised by watch rules",
	},
	[]string{"risk_level"},
)
