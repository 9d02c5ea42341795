package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/clawledger/internal/domain"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations processed, labeled by operation and outcome code",
	}, []string{"operation", "outcome"})

	unitsMovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_units_moved_total",
		Help: "Units moved between vaults by committed operations",
	}, []string{"operation"})
)

func observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			outcome = de.Code
		} else {
			outcome = "error"
		}
	}
	operationsTotal.WithLabelValues(op, outcome).Inc()
}

func moved(op string, units uint64) {
	unitsMovedTotal.WithLabelValues(op).Add(float64(units))
}
