package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CheckoutMetrics holds Prometheus metrics for the cart and checkout funnel.
type CheckoutMetrics struct {
	// Cart
	CartMutations *prometheus.CounterVec

	// Checkout funnel
	CheckoutStarted  prometheus.Counter
	StepCompleted    *prometheus.CounterVec
	ValidationFailed *prometheus.CounterVec
	PromoApplied     *prometheus.CounterVec
	PromoRejected    *prometheus.CounterVec

	// Payments
	PaymentAttempts  *prometheus.CounterVec
	PaymentSucceeded *prometheus.CounterVec
	PaymentFailed    *prometheus.CounterVec
	PaymentLatency   prometheus.Histogram

	// Orders
	OrdersCreated  prometheus.Counter
	OrderValue     prometheus.Histogram
	OrderItemCount prometheus.Histogram

	// Email delivery
	EmailSent   prometheus.Counter
	EmailFailed prometheus.Counter
}

// NewCheckoutMetrics creates the checkout metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewCheckoutMetrics(namespace string, reg prometheus.Registerer) *CheckoutMetrics {
	if namespace == "" {
		namespace = "gyan"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	subsystem := "checkout"
	factory := promauto.With(reg)

	return &CheckoutMetrics{
		CartMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_mutations_total",
				Help:      "Cart changes by operation",
			},
			[]string{"operation"}, // add, remove, set_quantity, clear
		),

		CheckoutStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "started_total",
				Help:      "Checkouts begun with a non-empty cart",
			},
		),
		StepCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "step_completed_total",
				Help:      "Wizard steps passed validation",
			},
			[]string{"step"},
		),
		ValidationFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "validation_failed_total",
				Help:      "Wizard step validations that failed",
			},
			[]string{"step"},
		),
		PromoApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "promo_applied_total",
				Help:      "Promotion codes applied",
			},
			[]string{"code"},
		),
		PromoRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "promo_rejected_total",
				Help:      "Promotion codes rejected by reason",
			},
			[]string{"reason"}, // not_found, below_minimum, already_applied
		),

		PaymentAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_attempts_total",
				Help:      "Payment attempts by method",
			},
			[]string{"method"},
		),
		PaymentSucceeded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_succeeded_total",
				Help:      "Successful payments by method",
			},
			[]string{"method"},
		),
		PaymentFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_failed_total",
				Help:      "Failed payments by method and kind",
			},
			[]string{"method", "kind"}, // kind: declined, error
		),
		PaymentLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_duration_seconds",
				Help:      "Gateway charge duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		OrdersCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Orders finalized",
			},
		),
		OrderValue: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_rupees",
				Help:      "Order totals in rupees",
				Buckets:   []float64{250, 500, 1000, 2000, 5000, 10000, 25000},
			},
		),
		OrderItemCount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_item_count",
				Help:      "Total quantity per order",
				Buckets:   []float64{1, 2, 3, 5, 10},
			},
		),

		EmailSent: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "confirmation_emails_sent_total",
				Help:      "Order confirmation emails sent",
			},
		),
		EmailFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "confirmation_emails_failed_total",
				Help:      "Order confirmation emails that failed",
			},
		),
	}
}
