package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// StoreMetrics интерфейс для метрик витрины
type StoreMetrics interface {
	IncOrderCreated(productID string)
	IncSubscriptionSynced(created bool)
	IncReminderBatch(family string, size int)
	IncReviewSubmitted(outcome string)
	IncDuplicateDropped(reason string)
	IncSnapshotPublish(success bool)
}

type storeMetrics struct {
	log                 *logger.Logger
	ordersCreated       *prometheus.CounterVec
	subscriptionsSynced *prometheus.CounterVec
	reminderBatches     *prometheus.CounterVec
	remindersGenerated  *prometheus.CounterVec
	reviewsSubmitted    *prometheus.CounterVec
	duplicatesDropped   *prometheus.CounterVec
	snapshotPublishes   *prometheus.CounterVec
}

// NewStoreMetrics создает новые метрики витрины
func NewStoreMetrics(registry *prometheus.Registry, log *logger.Logger) StoreMetrics {
	ordersCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "The total number of recorded order line items",
		},
		[]string{"product"},
	)

	subscriptionsSynced := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_synced_total",
			Help: "The total number of order-to-subscription sync results",
		},
		[]string{"result"},
	)

	reminderBatches := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_batches_created_total",
			Help: "The total number of reminder batches generated",
		},
		[]string{"family"},
	)

	remindersGenerated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_generated_total",
			Help: "The total number of individual reminders generated",
		},
		[]string{"family"},
	)

	reviewsSubmitted := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_submitted_total",
			Help: "The total number of review submissions by outcome",
		},
		[]string{"outcome"},
	)

	duplicatesDropped := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_duplicates_dropped_total",
			Help: "The total number of duplicate reviews dropped during reconciliation",
		},
		[]string{"reason"},
	)

	snapshotPublishes := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_snapshot_publishes_total",
			Help: "The total number of merged review snapshot publish attempts",
		},
		[]string{"result"},
	)

	return &storeMetrics{
		log:                 log,
		ordersCreated:       ordersCreated,
		subscriptionsSynced: subscriptionsSynced,
		reminderBatches:     reminderBatches,
		remindersGenerated:  remindersGenerated,
		reviewsSubmitted:    reviewsSubmitted,
		duplicatesDropped:   duplicatesDropped,
		snapshotPublishes:   snapshotPublishes,
	}
}

// IncOrderCreated увеличивает счетчик записанных позиций заказов
func (m *storeMetrics) IncOrderCreated(productID string) {
	m.ordersCreated.WithLabelValues(productID).Inc()
}

// IncSubscriptionSynced увеличивает счетчик результатов синхронизации
func (m *storeMetrics) IncSubscriptionSynced(created bool) {
	result := "existing"
	if created {
		result = "created"
	}
	m.subscriptionsSynced.WithLabelValues(result).Inc()
}

// IncReminderBatch учитывает сгенерированный пакет напоминаний
func (m *storeMetrics) IncReminderBatch(family string, size int) {
	m.reminderBatches.WithLabelValues(family).Inc()
	m.remindersGenerated.WithLabelValues(family).Add(float64(size))
}

// IncReviewSubmitted увеличивает счетчик отправок отзывов
func (m *storeMetrics) IncReviewSubmitted(outcome string) {
	m.reviewsSubmitted.WithLabelValues(outcome).Inc()
}

// IncDuplicateDropped увеличивает счетчик отброшенных дубликатов
func (m *storeMetrics) IncDuplicateDropped(reason string) {
	m.duplicatesDropped.WithLabelValues(reason).Inc()
}

// IncSnapshotPublish увеличивает счетчик публикаций снапшота
func (m *storeMetrics) IncSnapshotPublish(success bool) {
	result := "error"
	if success {
		result = "ok"
	}
	m.snapshotPublishes.WithLabelValues(result).Inc()
}

// NoopStoreMetrics метрики-заглушка (используется в тестах)
type NoopStoreMetrics struct{}

func (NoopStoreMetrics) IncOrderCreated(productID string)          {}
func (NoopStoreMetrics) IncSubscriptionSynced(created bool)        {}
func (NoopStoreMetrics) IncReminderBatch(family string, size int)  {}
func (NoopStoreMetrics) IncReviewSubmitted(outcome string)         {}
func (NoopStoreMetrics) IncDuplicateDropped(reason string)         {}
func (NoopStoreMetrics) IncSnapshotPublish(success bool)           {}
