package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "elements_gateway_retries_total",
	Help: "Transient upstream failures that triggered a retry.",
})
