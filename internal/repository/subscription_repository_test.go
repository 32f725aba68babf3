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

func TestSubscriptionUniquePerOrderLine(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.New(logger.ERROR))
	ctx := context.Background()

	subscription := domain.Subscription{
		SourceOrderLineID: 42,
		CustomerEmail:     "alice@example.com",
		PurchaseDate:      time.Now(),
	}

	created, err := repo.Create(ctx, subscription)
	require.NoError(t, err)

	_, err = repo.Create(ctx, subscription)
	assert.ErrorIs(t, err, ErrDuplicate)

	found, err := repo.GetBySourceOrderLineID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.GetBySourceOrderLineID(ctx, 43)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscriptionsByEmailNormalized(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.New(logger.ERROR))
	ctx := context.Background()

	_, err := repo.Create(ctx, domain.Subscription{
		SourceOrderLineID: 1,
		CustomerEmail:     "Bob@Example.com",
		PurchaseDate:      time.Now(),
	})
	require.NoError(t, err)

	subscriptions, err := repo.GetByEmail(ctx, "  bob@EXAMPLE.com ")
	require.NoError(t, err)
	assert.Len(t, subscriptions, 1)
}
