package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics содержит метрики корзины и оформления заказов.
type CommerceMetrics struct {
	// Счётчики оформления
	checkoutStarted    prometheus.Counter
	checkoutCompleted  prometheus.Counter
	checkoutRejected   *prometheus.CounterVec
	checkoutRolledBack prometheus.Counter

	// Гистограмма времени оформления
	checkoutDuration prometheus.Histogram

	// Складские конфликты (проигранные гонки за остаток)
	stockConflicts prometheus.Counter

	// Мутации корзины по операциям
	cartMutations *prometheus.CounterVec

	// Gauge активных оформлений
	activeCheckouts prometheus.Gauge
}

// NewCommerceMetrics создаёт новый экземпляр метрик.
func NewCommerceMetrics() *CommerceMetrics {
	return newCommerceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCommerceMetricsWithRegisterer(registerer prometheus.Registerer) *CommerceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CommerceMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_started_total",
			Help: "Total number of checkout attempts started",
		}),
		checkoutCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_completed_total",
			Help: "Total number of orders placed successfully",
		}),
		checkoutRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_rejected_total",
			Help: "Total number of checkouts rejected during validation",
		}, []string{"reason"}),
		checkoutRolledBack: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_rolled_back_total",
			Help: "Total number of checkouts compensated after a partial commit",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of order placement in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stockConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_conflicts_total",
			Help: "Total number of stock reservations lost to a concurrent order",
		}),
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of cart mutations by operation",
		}, []string{"op"}),
		activeCheckouts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_checkouts",
			Help: "Number of currently running checkout commits",
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

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutStarted увеличивает счётчик начатых оформлений.
func (m *CommerceMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
	m.activeCheckouts.Inc()
}

// RecordCheckoutFinished уменьшает количество активных оформлений.
func (m *CommerceMetrics) RecordCheckoutFinished() {
	m.activeCheckouts.Dec()
}

// RecordCheckoutCompleted увеличивает счётчик успешно размещённых заказов.
func (m *CommerceMetrics) RecordCheckoutCompleted() {
	m.checkoutCompleted.Inc()
}

// RecordCheckoutRejected увеличивает счётчик отклонённых оформлений.
func (m *CommerceMetrics) RecordCheckoutRejected(reason string) {
	m.checkoutRejected.WithLabelValues(reason).Inc()
}

// RecordCheckoutRolledBack увеличивает счётчик компенсированных оформлений.
func (m *CommerceMetrics) RecordCheckoutRolledBack() {
	m.checkoutRolledBack.Inc()
}

// RecordCheckoutDuration записывает время оформления.
func (m *CommerceMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordStockConflict увеличивает счётчик проигранных складских гонок.
func (m *CommerceMetrics) RecordStockConflict() {
	m.stockConflicts.Inc()
}

// RecordCartMutation увеличивает счётчик мутаций корзины.
func (m *CommerceMetrics) RecordCartMutation(op string) {
	m.cartMutations.WithLabelValues(op).Inc()
}
