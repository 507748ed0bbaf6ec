package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_orders_failed_total",
		Help: "Total number of rejected order placements",
	}, []string{"reason"})

	OrderPlacementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_order_placement_latency_seconds",
		Help:    "Latency of the order placement transaction",
		Buckets: prometheus.DefBuckets,
	})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_order_status_changes_total",
		Help: "Total number of order status transitions",
	}, []string{"to"})

	CouponValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_coupon_validations_total",
		Help: "Total number of coupon validations by result",
	}, []string{"result"})

	StockUnitsSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_stock_units_sold_total",
		Help: "Units removed from stock by placed orders",
	})

	StockUnitsRestockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_stock_units_restocked_total",
		Help: "Units returned to stock by cancelled orders",
	})

	CatalogCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_catalog_cache_requests_total",
		Help: "Catalog cache lookups by result",
	}, []string{"result"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_events_consumed_total",
		Help: "Order events handled by the catalog worker",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
