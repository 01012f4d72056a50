package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cloudx-io/assetauction/core"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_operations_total",
		Help: "Number of auction operations by operation and result code",
	}, []string{"op", "result"})

	settledVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_settled_volume",
		Help: "Payment volume moved to sellers by settlements, in base units",
	}, []string{"token"})

	activeAuctions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auction_active",
		Help: "Number of auctions created by this process that are neither settled nor cancelled",
	})
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = core.CodeOf(err)
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}
