package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/kafka/producer"
	"github.com/Dhoini/Storefront-microservice/internal/metrics"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/internal/snapshot"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// TestOrderToReviewFlow прогоняет полный путь покупателя: заказ, проекция
// в подписку с напоминаниями, проверка права на отзыв и сам отзыв.
func TestOrderToReviewFlow(t *testing.T) {
	log := logger.New(logger.ERROR)
	ctx := context.Background()

	orderRepo := repository.NewInMemoryOrderRepository(log)
	subscriptionRepo := repository.NewInMemorySubscriptionRepository(log)
	reminderRepo := repository.NewInMemoryReminderRepository(log)
	reviewRepo := repository.NewInMemoryReviewRepository(log)

	scheduler := NewReminderScheduler(reminderRepo, producer.NoopEventProducer{}, metrics.NoopStoreMetrics{}, log)
	syncer := NewOrderSyncer(subscriptionRepo, reminderRepo, scheduler, metrics.NoopStoreMetrics{}, log)
	orderSvc := NewOrderService(orderRepo, syncer, producer.NoopEventProducer{}, metrics.NoopStoreMetrics{}, log)
	calendarSvc := NewCalendarService(orderRepo, subscriptionRepo, reminderRepo, syncer, log)
	reviewSvc := NewReviewService(
		reviewRepo, subscriptionRepo,
		repository.NewStaticSeedReviewLoader(nil),
		repository.NoopReviewCache{},
		snapshot.NoopPublisher{},
		producer.NoopEventProducer{},
		metrics.NoopStoreMetrics{},
		log,
	)

	// Покупатель без заказов не имеет права на отзыв
	eligibility, err := reviewSvc.CanReview(ctx, "eve@example.com")
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)

	// Заказ записывается и сразу проецируется в подписку
	result, err := orderSvc.Submit(ctx, domain.OrderRequest{
		CustomerName:  "Eve",
		CustomerEmail: "Eve@Example.com",
		ProductID:     domain.ProductAdobeCC,
		Months:        12,
		OrderID:       strPtr("ORD-100"),
		Amount:        199.90,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Order.ID)
	assert.True(t, result.Sync.Created)
	assert.Equal(t, "eve@example.com", result.Order.CustomerEmail)

	// Дизайн-пакет на год дает четыре контрольные точки
	reminders, err := reminderRepo.GetBySubscription(ctx, result.Sync.SubscriptionID)
	require.NoError(t, err)
	require.Len(t, reminders, 4)
	assert.Equal(t, domain.ReminderTypeExpiry, reminders[3].ReminderType)

	// Календарь будущих продлений видит все контрольные точки
	days, err := calendarSvc.Calendar(ctx, CalendarModeFuture)
	require.NoError(t, err)
	require.NotEmpty(t, days)

	totalRenewals, totalExpiries := 0, 0
	for _, day := range days {
		totalRenewals += day.RenewalCount
		totalExpiries += day.ExpiryCount
	}
	assert.Equal(t, 3, totalRenewals)
	assert.Equal(t, 1, totalExpiries)

	// Теперь покупатель может оставить отзыв, и ровно один раз
	eligibility, err = reviewSvc.CanReview(ctx, "eve@example.com")
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)

	review, err := reviewSvc.Submit(ctx, domain.ReviewRequest{
		Name:   "Eve",
		Email:  "eve@example.com",
		Text:   "Everything arrived instantly, renewal reminders are handy",
		Rating: 5,
	})
	require.NoError(t, err)
	require.NotNil(t, review.OrderID)
	assert.Equal(t, "ORD-100", *review.OrderID)

	_, err = reviewSvc.Submit(ctx, domain.ReviewRequest{
		Name:   "Eve",
		Email:  "eve@example.com",
		Text:   "Trying to review the same order again",
		Rating: 5,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyReviewed)

	// Отзыв виден в объединенном представлении
	reviews, err := reviewSvc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, review.ID, reviews[0].ID)

	// Повторный полный проход синхронизации ничего не плодит
	orders, err := orderRepo.GetAll(ctx)
	require.NoError(t, err)
	batch := syncer.SyncAll(ctx, orders)
	assert.Equal(t, 1, batch.SyncedCount)
	assert.Equal(t, 0, batch.ReminderSetsCreated)
}

func TestSubmitOrderUnknownProduct(t *testing.T) {
	log := logger.New(logger.ERROR)

	orderRepo := repository.NewInMemoryOrderRepository(log)
	subscriptionRepo := repository.NewInMemorySubscriptionRepository(log)
	reminderRepo := repository.NewInMemoryReminderRepository(log)
	scheduler := NewReminderScheduler(reminderRepo, producer.NoopEventProducer{}, metrics.NoopStoreMetrics{}, log)
	syncer := NewOrderSyncer(subscriptionRepo, reminderRepo, scheduler, metrics.NoopStoreMetrics{}, log)
	orderSvc := NewOrderService(orderRepo, syncer, producer.NoopEventProducer{}, metrics.NoopStoreMetrics{}, log)

	_, err := orderSvc.Submit(context.Background(), domain.OrderRequest{
		CustomerName:  "Mallory",
		CustomerEmail: "mallory@example.com",
		ProductID:     "free-lunch",
		Months:        1,
	})
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)

	orders, err := orderRepo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCalendarRejectsUnknownMode(t *testing.T) {
	log := logger.New(logger.ERROR)

	orderRepo := repository.NewInMemoryOrderRepository(log)
	subscriptionRepo := repository.NewInMemorySubscriptionRepository(log)
	reminderRepo := repository.NewInMemoryReminderRepository(log)
	scheduler := NewReminderScheduler(reminderRepo, producer.NoopEventProducer{}, metrics.NoopStoreMetrics{}, log)
	syncer := NewOrderSyncer(subscriptionRepo, reminderRepo, scheduler, metrics.NoopStoreMetrics{}, log)
	calendarSvc := NewCalendarService(orderRepo, subscriptionRepo, reminderRepo, syncer, log)

	_, err := calendarSvc.Calendar(context.Background(), "sideways")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRemindersByDayLazySync(t *testing.T) {
	log := logger.New(logger.ERROR)
	ctx := context.Background()

	orderRepo := repository.NewInMemoryOrderRepository(log)
	subscriptionRepo := repository.NewInMemorySubscriptionRepository(log)
	reminderRepo := repository.NewInMemoryReminderRepository(log)
	scheduler := NewReminderScheduler(reminderRepo, producer.NoopEventProducer{}, metrics.NoopStoreMetrics{}, log)
	syncer := NewOrderSyncer(subscriptionRepo, reminderRepo, scheduler, metrics.NoopStoreMetrics{}, log)
	calendarSvc := NewCalendarService(orderRepo, subscriptionRepo, reminderRepo, syncer, log)

	// Заказ лежит в леджере без проекции
	purchase := time.Date(2026, time.March, 3, 16, 45, 0, 0, time.UTC)
	_, err := orderRepo.Create(ctx, domain.Order{
		CustomerName:       "Frank",
		CustomerEmail:      "frank@example.com",
		ProductID:          domain.ProductChatGPTPlus,
		ProductName:        "ChatGPT Plus",
		SubscriptionMonths: 1,
		PurchaseDate:       purchase,
		IsActive:           true,
	})
	require.NoError(t, err)

	// Выборка за день истечения сама догоняет проекцию
	reminders, err := calendarSvc.RemindersByDay(ctx, purchase.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, domain.ReminderTypeExpiry, reminders[0].ReminderType)
	assert.Equal(t, "frank@example.com", reminders[0].CustomerEmail)
	assert.Equal(t, "ChatGPT Plus", reminders[0].ProductName)
}
