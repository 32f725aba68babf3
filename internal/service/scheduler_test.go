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
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

func newTestScheduler(t *testing.T) (ReminderScheduler, repository.ReminderRepository) {
	t.Helper()

	log := logger.New(logger.ERROR)
	reminderRepo := repository.NewInMemoryReminderRepository(log)
	scheduler := NewReminderScheduler(reminderRepo, producer.NoopEventProducer{}, metrics.NoopStoreMetrics{}, log)

	return scheduler, reminderRepo
}

func reminderTypes(reminders []domain.Reminder) []string {
	types := make([]string, 0, len(reminders))
	for _, reminder := range reminders {
		types = append(types, reminder.ReminderType)
	}
	return types
}

func TestGenerateMonthlyCadence(t *testing.T) {
	scheduler, _ := newTestScheduler(t)

	purchase := time.Date(2026, time.January, 15, 14, 30, 0, 0, time.UTC)
	reminders, err := scheduler.Generate(context.Background(), 1, domain.ProductChatGPTPlus, 3, purchase)
	require.NoError(t, err)

	require.Len(t, reminders, 3)
	assert.Equal(t, []string{"renewal_2months", "renewal_1months", "expiry"}, reminderTypes(reminders))

	assert.Equal(t, purchase.AddDate(0, 1, 0), reminders[0].ReminderDate)
	assert.Equal(t, purchase.AddDate(0, 2, 0), reminders[1].ReminderDate)
	assert.Equal(t, purchase.AddDate(0, 3, 0), reminders[2].ReminderDate)

	// Время покупки в течение дня сохраняется
	for _, reminder := range reminders {
		assert.Equal(t, 14, reminder.ReminderDate.Hour())
		assert.Equal(t, 30, reminder.ReminderDate.Minute())
	}
}

func TestGenerateMonthlySingleMonth(t *testing.T) {
	scheduler, _ := newTestScheduler(t)

	purchase := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	reminders, err := scheduler.Generate(context.Background(), 1, domain.ProductCapCutPro, 1, purchase)
	require.NoError(t, err)

	require.Len(t, reminders, 1)
	assert.Equal(t, domain.ReminderTypeExpiry, reminders[0].ReminderType)
	assert.Equal(t, purchase.AddDate(0, 1, 0), reminders[0].ReminderDate)
}

func TestGenerateMilestoneTwelveMonths(t *testing.T) {
	scheduler, _ := newTestScheduler(t)

	purchase := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	reminders, err := scheduler.Generate(context.Background(), 1, domain.ProductAdobeCC, 12, purchase)
	require.NoError(t, err)

	require.Len(t, reminders, 4)
	assert.Equal(t, []string{"renewal_9months", "renewal_6months", "renewal_3months", "expiry"}, reminderTypes(reminders))

	assert.Equal(t, purchase.AddDate(0, 3, 0), reminders[0].ReminderDate)
	assert.Equal(t, purchase.AddDate(0, 6, 0), reminders[1].ReminderDate)
	assert.Equal(t, purchase.AddDate(0, 9, 0), reminders[2].ReminderDate)
	assert.Equal(t, purchase.AddDate(0, 12, 0), reminders[3].ReminderDate)
}

func TestGenerateMilestoneSixMonths(t *testing.T) {
	scheduler, _ := newTestScheduler(t)

	purchase := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	reminders, err := scheduler.Generate(context.Background(), 1, domain.ProductAdobeCC, 6, purchase)
	require.NoError(t, err)

	require.Len(t, reminders, 2)
	assert.Equal(t, []string{"renewal_3months", "expiry"}, reminderTypes(reminders))
	assert.Equal(t, purchase.AddDate(0, 3, 0), reminders[0].ReminderDate)
	assert.Equal(t, purchase.AddDate(0, 6, 0), reminders[1].ReminderDate)
}

func TestGenerateMilestoneShortTermsExpiryOnly(t *testing.T) {
	scheduler, _ := newTestScheduler(t)

	purchase := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)

	for i, months := range []int{1, 3} {
		subscriptionID := int64(i + 1)
		reminders, err := scheduler.Generate(context.Background(), subscriptionID, domain.ProductAdobeCC, months, purchase)
		require.NoError(t, err)

		require.Len(t, reminders, 1)
		assert.Equal(t, domain.ReminderTypeExpiry, reminders[0].ReminderType)
		assert.Equal(t, purchase.AddDate(0, months, 0), reminders[0].ReminderDate)
	}
}

func TestGenerateClampsNonPositiveMonths(t *testing.T) {
	scheduler, _ := newTestScheduler(t)

	purchase := time.Date(2026, time.April, 20, 12, 0, 0, 0, time.UTC)
	reminders, err := scheduler.Generate(context.Background(), 1, domain.ProductChatGPTPlus, 0, purchase)
	require.NoError(t, err)

	require.Len(t, reminders, 1)
	assert.Equal(t, domain.ReminderTypeExpiry, reminders[0].ReminderType)
	assert.Equal(t, purchase.AddDate(0, 1, 0), reminders[0].ReminderDate)
}

func TestGenerateUnknownProductFallsBackToMonthly(t *testing.T) {
	scheduler, _ := newTestScheduler(t)

	purchase := time.Date(2026, time.May, 5, 8, 0, 0, 0, time.UTC)
	reminders, err := scheduler.Generate(context.Background(), 1, "mystery-product", 2, purchase)
	require.NoError(t, err)

	require.Len(t, reminders, 2)
	assert.Equal(t, []string{"renewal_1months", "expiry"}, reminderTypes(reminders))
}

func TestGenerateIdempotent(t *testing.T) {
	scheduler, reminderRepo := newTestScheduler(t)

	purchase := time.Date(2026, time.January, 15, 14, 30, 0, 0, time.UTC)
	first, err := scheduler.Generate(context.Background(), 1, domain.ProductChatGPTPlus, 3, purchase)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := scheduler.Generate(context.Background(), 1, domain.ProductChatGPTPlus, 3, purchase)
	require.NoError(t, err)
	assert.Nil(t, second)

	count, err := reminderRepo.CountBySubscription(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
