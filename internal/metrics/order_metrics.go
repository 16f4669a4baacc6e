package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказа.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated   prometheus.Counter
	ordersCancelled prometheus.Counter
	ordersDelivered prometheus.Counter

	// Счётчики верификации платежей
	paymentsVerified *prometheus.CounterVec

	// Счётчики проверки рецептов
	prescriptionsReviewed *prometheus.CounterVec

	// Гистограммы времени выполнения
	operationDuration *prometheus.HistogramVec

	// Счётчики конфликтов optimistic locking
	versionConflicts prometheus.Counter

	// События stock.low
	lowStockEvents prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pharmacy_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pharmacy_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		ordersDelivered: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pharmacy_orders_delivered_total",
			Help: "Total number of orders delivered",
		}),
		paymentsVerified: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pharmacy_payments_verified_total",
			Help: "Total number of payment verification attempts by result",
		}, []string{"result"}),
		prescriptionsReviewed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pharmacy_prescriptions_reviewed_total",
			Help: "Total number of prescription reviews by verdict",
		}, []string{"verdict"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "pharmacy_order_operation_duration_seconds",
			Help:    "Duration of order operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		versionConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pharmacy_order_version_conflicts_total",
			Help: "Total number of optimistic locking conflicts on order saves",
		}),
		lowStockEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pharmacy_stock_low_events_total",
			Help: "Total number of low stock events emitted",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordOrderDelivered увеличивает счётчик доставленных заказов.
func (m *OrderMetrics) RecordOrderDelivered() {
	m.ordersDelivered.Inc()
}

// RecordPaymentVerified фиксирует результат верификации платежа.
func (m *OrderMetrics) RecordPaymentVerified(result string) {
	m.paymentsVerified.WithLabelValues(result).Inc()
}

// RecordPrescriptionReviewed фиксирует вердикт проверки рецепта.
func (m *OrderMetrics) RecordPrescriptionReviewed(verdict string) {
	m.prescriptionsReviewed.WithLabelValues(verdict).Inc()
}

// RecordOperationDuration записывает время выполнения операции.
func (m *OrderMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordVersionConflict увеличивает счётчик конфликтов версий.
func (m *OrderMetrics) RecordVersionConflict() {
	m.versionConflicts.Inc()
}

// RecordLowStockEvent увеличивает счётчик событий о низком остатке.
func (m *OrderMetrics) RecordLowStockEvent() {
	m.lowStockEvents.Inc()
}
