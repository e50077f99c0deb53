package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "cart_operations_total",
		Help:      "Cart engine operations by operation and result.",
	}, []string{"op", "result"})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "active_sessions",
		Help:      "Cart engines held in memory.",
	})

	CatalogProducts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "catalog_products",
		Help:      "Products in the current catalog snapshot.",
	})

	CatalogLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "catalog_load_failures_total",
		Help:      "Failed catalog loads.",
	})
)

// Result maps an operation error to a label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
