package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

func TestReminderBatchAllOrNothing(t *testing.T) {
	repo := NewInMemoryReminderRepository(logger.New(logger.ERROR))
	ctx := context.Background()

	date := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)

	first, err := repo.CreateBatch(ctx, []domain.Reminder{
		{SubscriptionID: 1, ReminderDate: date, ReminderType: "renewal_1months"},
		{SubscriptionID: 1, ReminderDate: date.AddDate(0, 1, 0), ReminderType: domain.ReminderTypeExpiry},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Пересечение хотя бы по одному типу отменяет весь пакет
	_, err = repo.CreateBatch(ctx, []domain.Reminder{
		{SubscriptionID: 1, ReminderDate: date, ReminderType: "renewal_2months"},
		{SubscriptionID: 1, ReminderDate: date, ReminderType: domain.ReminderTypeExpiry},
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	count, err := repo.CountBySubscription(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRemindersByDayBoundaries(t *testing.T) {
	repo := NewInMemoryReminderRepository(logger.New(logger.ERROR))
	ctx := context.Background()

	day := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

	_, err := repo.CreateBatch(ctx, []domain.Reminder{
		{SubscriptionID: 1, ReminderDate: day.Add(23*time.Hour + 59*time.Minute), ReminderType: "renewal_1months"},
		{SubscriptionID: 2, ReminderDate: day.AddDate(0, 0, 1), ReminderType: "renewal_1months"},
	})
	require.NoError(t, err)

	reminders, err := repo.GetByDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, int64(1), reminders[0].SubscriptionID)
}

func TestReminderUpdateDateAndMarkSent(t *testing.T) {
	repo := NewInMemoryReminderRepository(logger.New(logger.ERROR))
	ctx := context.Background()

	created, err := repo.CreateBatch(ctx, []domain.Reminder{
		{SubscriptionID: 1, ReminderDate: time.Now(), ReminderType: domain.ReminderTypeExpiry},
	})
	require.NoError(t, err)

	newDate := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateDate(ctx, created[0].ID, newDate))
	require.NoError(t, repo.MarkSent(ctx, created[0].ID))

	reminders, err := repo.GetBySubscription(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, newDate, reminders[0].ReminderDate)
	assert.True(t, reminders[0].IsSent)

	assert.ErrorIs(t, repo.UpdateDate(ctx, 999, newDate), ErrNotFound)
	assert.ErrorIs(t, repo.MarkSent(ctx, 999), ErrNotFound)
}
