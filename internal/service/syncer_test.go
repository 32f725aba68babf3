package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/kafka/producer"
	"github.com/Dhoini/Storefront-microservice/internal/metrics"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

func newTestSyncer(t *testing.T) (OrderSyncer, repository.SubscriptionRepository, repository.ReminderRepository) {
	t.Helper()

	log := logger.New(logger.ERROR)
	subscriptionRepo := repository.NewInMemorySubscriptionRepository(log)
	reminderRepo := repository.NewInMemoryReminderRepository(log)
	scheduler := NewReminderScheduler(reminderRepo, producer.NoopEventProducer{}, metrics.NoopStoreMetrics{}, log)
	syncer := NewOrderSyncer(subscriptionRepo, reminderRepo, scheduler, metrics.NoopStoreMetrics{}, log)

	return syncer, subscriptionRepo, reminderRepo
}

func testOrder(id int64, email, productID string, months int) domain.Order {
	return domain.Order{
		ID:                 id,
		CustomerName:       "Test Customer",
		CustomerEmail:      email,
		ProductID:          productID,
		ProductName:        productID,
		SubscriptionMonths: months,
		PurchaseDate:       time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC),
		IsActive:           true,
	}
}

func TestSyncIdempotent(t *testing.T) {
	syncer, _, reminderRepo := newTestSyncer(t)

	order := testOrder(1, "alice@example.com", domain.ProductChatGPTPlus, 3)

	first, err := syncer.Sync(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, first.Created)

	count, err := reminderRepo.CountBySubscription(context.Background(), first.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	second, err := syncer.Sync(context.Background(), order)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)

	count, err = reminderRepo.CountBySubscription(context.Background(), first.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSyncRepairsMissingReminders(t *testing.T) {
	syncer, subscriptionRepo, reminderRepo := newTestSyncer(t)

	order := testOrder(7, "bob@example.com", domain.ProductAdobeCC, 12)

	// Подписка есть, напоминаний нет: такое состояние оставляет сбой
	// генерации после создания подписки
	subscription, err := subscriptionRepo.Create(context.Background(), domain.FromOrder(order))
	require.NoError(t, err)

	result, err := syncer.Sync(context.Background(), order)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, subscription.ID, result.SubscriptionID)

	count, err := reminderRepo.CountBySubscription(context.Background(), subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSyncConcurrentSingleBatch(t *testing.T) {
	syncer, subscriptionRepo, reminderRepo := newTestSyncer(t)

	order := testOrder(1, "alice@example.com", domain.ProductChatGPTPlus, 3)

	const workers = 8
	results := make([]domain.SyncResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = syncer.Sync(context.Background(), order)
		}(i)
	}
	wg.Wait()

	// Гонка проекций не плодит ни подписок, ни пакетов напоминаний
	created := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created)

	subscription, err := subscriptionRepo.GetBySourceOrderLineID(context.Background(), order.ID)
	require.NoError(t, err)

	count, err := reminderRepo.CountBySubscription(context.Background(), subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSyncAll(t *testing.T) {
	syncer, _, _ := newTestSyncer(t)

	orders := []domain.Order{
		testOrder(1, "alice@example.com", domain.ProductChatGPTPlus, 1),
		testOrder(2, "bob@example.com", domain.ProductAdobeCC, 6),
	}

	result := syncer.SyncAll(context.Background(), orders)
	assert.Equal(t, 2, result.SyncedCount)
	assert.Equal(t, 2, result.ReminderSetsCreated)
	assert.Empty(t, result.Errors)

	// Повторный проход ничего не создает
	again := syncer.SyncAll(context.Background(), orders)
	assert.Equal(t, 2, again.SyncedCount)
	assert.Equal(t, 0, again.ReminderSetsCreated)
	assert.Empty(t, again.Errors)
}
