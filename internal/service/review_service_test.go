package service

import (
	"context"
	"errors"
	"sync"
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

func strPtr(s string) *string { return &s }

func newTestReviewService(t *testing.T, seed []domain.Review) (ReviewService, repository.ReviewRepository, repository.SubscriptionRepository) {
	t.Helper()

	log := logger.New(logger.ERROR)
	reviewRepo := repository.NewInMemoryReviewRepository(log)
	subscriptionRepo := repository.NewInMemorySubscriptionRepository(log)

	svc := NewReviewService(
		reviewRepo,
		subscriptionRepo,
		repository.NewStaticSeedReviewLoader(seed),
		repository.NoopReviewCache{},
		snapshot.NoopPublisher{},
		producer.NoopEventProducer{},
		metrics.NoopStoreMetrics{},
		log,
	)

	return svc, reviewRepo, subscriptionRepo
}

func seedSubscription(t *testing.T, repo repository.SubscriptionRepository, lineID int64, email string, orderID *string, purchase time.Time) domain.Subscription {
	t.Helper()

	subscription, err := repo.Create(context.Background(), domain.Subscription{
		SourceOrderLineID:  lineID,
		CustomerName:       "Test Customer",
		CustomerEmail:      email,
		ProductID:          domain.ProductChatGPTPlus,
		ProductName:        "ChatGPT Plus",
		SubscriptionMonths: 1,
		PurchaseDate:       purchase,
		OrderID:            orderID,
		IsActive:           true,
	})
	require.NoError(t, err)
	return subscription
}

func TestDedupeReviewsIdempotent(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	reviews := []domain.Review{
		{ID: "a", CustomerEmail: "alice@example.com", OrderID: strPtr("ORD-1"), ReviewText: "great", CreatedAt: base, Seq: 1},
		{ID: "b", CustomerEmail: "alice@example.com", OrderID: strPtr("ORD-1"), ReviewText: "great again", CreatedAt: base.Add(time.Hour), Seq: 2},
		{ID: "c", CustomerEmail: "bob@example.com", OrderID: strPtr("ORD-2"), ReviewText: "nice", CreatedAt: base, Seq: 3},
	}

	once, dropped := DedupeReviews(reviews)
	require.Len(t, once, 2)
	require.Len(t, dropped, 1)

	// Побеждает более свежая запись
	assert.Equal(t, "b", once[0].ID)
	assert.Equal(t, "a", dropped[0].Review.ID)
	assert.Equal(t, DropReasonSameOrder, dropped[0].Reason)

	twice, droppedAgain := DedupeReviews(once)
	assert.Equal(t, once, twice)
	assert.Empty(t, droppedAgain)
}

func TestDedupeReviewsFuzzyTextKey(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	text := "This subscription saved me a lot of money"

	reviews := []domain.Review{
		{ID: "a", CustomerName: "Alice", CustomerEmail: "alice@example.com", OrderID: strPtr("ORD-1"), ReviewText: text, CreatedAt: base, Seq: 1},
		{ID: "b", CustomerName: "ALICE", CustomerEmail: "Alice@Example.com", OrderID: strPtr("ORD-2"), ReviewText: "  this   subscription saved me a lot of MONEY ", CreatedAt: base.Add(time.Hour), Seq: 2},
	}

	kept, dropped := DedupeReviews(reviews)
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].ID)
	require.Len(t, dropped, 1)
	assert.Equal(t, DropReasonSameText, dropped[0].Reason)
}

func TestDedupeReviewsShortTextNotFuzzy(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	// Короткий текст не участвует в нечетком ключе
	reviews := []domain.Review{
		{ID: "a", CustomerName: "Alice", CustomerEmail: "alice@example.com", OrderID: strPtr("ORD-1"), ReviewText: "great service", CreatedAt: base, Seq: 1},
		{ID: "b", CustomerName: "Alice", CustomerEmail: "alice@example.com", OrderID: strPtr("ORD-2"), ReviewText: "great service", CreatedAt: base.Add(time.Hour), Seq: 2},
	}

	kept, dropped := DedupeReviews(reviews)
	assert.Len(t, kept, 2)
	assert.Empty(t, dropped)
}

func TestDedupeReviewsFuzzyKeyCountsRunes(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	// 15 рун, но 28 байт: под нечеткий ключ текст попадать не должен
	shortCyrillic := "отличный сервис"
	reviews := []domain.Review{
		{ID: "a", CustomerName: "Олег", CustomerEmail: "oleg@example.com", OrderID: strPtr("ORD-1"), ReviewText: shortCyrillic, CreatedAt: base, Seq: 1},
		{ID: "b", CustomerName: "Олег", CustomerEmail: "oleg@example.com", OrderID: strPtr("ORD-2"), ReviewText: shortCyrillic, CreatedAt: base.Add(time.Hour), Seq: 2},
	}

	kept, dropped := DedupeReviews(reviews)
	assert.Len(t, kept, 2)
	assert.Empty(t, dropped)

	// Длинный кириллический текст дедуплицируется как обычно
	longCyrillic := "подписка окупилась уже в первый месяц"
	reviews = []domain.Review{
		{ID: "c", CustomerName: "Олег", CustomerEmail: "oleg@example.com", OrderID: strPtr("ORD-3"), ReviewText: longCyrillic, CreatedAt: base, Seq: 3},
		{ID: "d", CustomerName: "Олег", CustomerEmail: "oleg@example.com", OrderID: strPtr("ORD-4"), ReviewText: longCyrillic, CreatedAt: base.Add(time.Hour), Seq: 4},
	}

	kept, dropped = DedupeReviews(reviews)
	require.Len(t, kept, 1)
	assert.Equal(t, "d", kept[0].ID)
	require.Len(t, dropped, 1)
	assert.Equal(t, DropReasonSameText, dropped[0].Reason)
}

func TestGetAllMergesNewestFirst(t *testing.T) {
	base := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	seed := []domain.Review{
		{ID: "seed-1", CustomerName: "Carol", CustomerEmail: "carol@example.com", OrderID: strPtr("ORD-10"), ReviewText: "ok", Rating: 4, CreatedAt: base},
	}

	svc, reviewRepo, _ := newTestReviewService(t, seed)

	_, err := reviewRepo.Create(context.Background(), domain.Review{
		ID: "mut-1", CustomerName: "Dave", CustomerEmail: "dave@example.com",
		OrderID: strPtr("ORD-11"), ReviewText: "good", Rating: 5, CreatedAt: base.Add(48 * time.Hour),
	})
	require.NoError(t, err)

	reviews, err := svc.GetAll(context.Background())
	require.NoError(t, err)

	require.Len(t, reviews, 2)
	assert.Equal(t, "mut-1", reviews[0].ID)
	assert.Equal(t, "seed-1", reviews[1].ID)
}

func TestMutableStoreWinsOverSeed(t *testing.T) {
	base := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)

	// Стартовая запись новее, но проигрывает изменяемой с тем же ключом
	seed := []domain.Review{
		{ID: "seed-1", CustomerName: "Alice", CustomerEmail: "alice@example.com", OrderID: strPtr("ORD-1"), ReviewText: "seed copy", Rating: 3, CreatedAt: base.Add(72 * time.Hour)},
	}

	svc, reviewRepo, _ := newTestReviewService(t, seed)

	_, err := reviewRepo.Create(context.Background(), domain.Review{
		ID: "mut-1", CustomerName: "Alice", CustomerEmail: "alice@example.com",
		OrderID: strPtr("ORD-1"), ReviewText: "live copy", Rating: 5, CreatedAt: base,
	})
	require.NoError(t, err)

	reviews, err := svc.GetAll(context.Background())
	require.NoError(t, err)

	require.Len(t, reviews, 1)
	assert.Equal(t, "mut-1", reviews[0].ID)
}

func TestEqualTimestampsPreferLaterInsert(t *testing.T) {
	base := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)

	svc, reviewRepo, _ := newTestReviewService(t, nil)

	_, err := reviewRepo.Create(context.Background(), domain.Review{
		ID: "first", CustomerName: "Alice", CustomerEmail: "alice@example.com",
		OrderID: strPtr("ORD-1"), ReviewText: "one", Rating: 5, CreatedAt: base,
	})
	require.NoError(t, err)

	_, err = reviewRepo.Create(context.Background(), domain.Review{
		ID: "second", CustomerName: "Bob", CustomerEmail: "bob@example.com",
		OrderID: strPtr("ORD-2"), ReviewText: "two", Rating: 4, CreatedAt: base,
	})
	require.NoError(t, err)

	reviews, err := svc.GetAll(context.Background())
	require.NoError(t, err)

	require.Len(t, reviews, 2)
	assert.Equal(t, "second", reviews[0].ID)
	assert.Equal(t, "first", reviews[1].ID)
}

func TestCanReviewNoOrders(t *testing.T) {
	svc, _, _ := newTestReviewService(t, nil)

	eligibility, err := svc.CanReview(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.NotEmpty(t, eligibility.Reason)
}

func TestCanReviewTargetsNewestOrder(t *testing.T) {
	svc, reviewRepo, subscriptionRepo := newTestReviewService(t, nil)

	old := time.Date(2025, time.November, 1, 9, 0, 0, 0, time.UTC)
	recent := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)

	seedSubscription(t, subscriptionRepo, 1, "alice@example.com", strPtr("ORD-OLD"), old)
	seedSubscription(t, subscriptionRepo, 2, "alice@example.com", strPtr("ORD-NEW"), recent)

	// Отзыв на старый заказ не мешает отзыву на новый
	_, err := reviewRepo.Create(context.Background(), domain.Review{
		ID: "r-old", CustomerName: "Alice", CustomerEmail: "alice@example.com",
		OrderID: strPtr("ORD-OLD"), ReviewText: "old order", Rating: 4, CreatedAt: old,
	})
	require.NoError(t, err)

	eligibility, err := svc.CanReview(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)

	review, err := svc.Submit(context.Background(), domain.ReviewRequest{
		Name: "Alice", Email: "alice@example.com", Text: "newest order review", Rating: 5,
	})
	require.NoError(t, err)
	require.NotNil(t, review.OrderID)
	assert.Equal(t, "ORD-NEW", *review.OrderID)

	eligibility, err = svc.CanReview(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
}

func TestCanReviewGroupsOrderLines(t *testing.T) {
	svc, _, subscriptionRepo := newTestReviewService(t, nil)

	// Две позиции одного заказа: дата группы — самая ранняя из позиций,
	// поэтому одиночный более поздний заказ побеждает
	seedSubscription(t, subscriptionRepo, 1, "bob@example.com", strPtr("ORD-MULTI"),
		time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC))
	seedSubscription(t, subscriptionRepo, 2, "bob@example.com", strPtr("ORD-MULTI"),
		time.Date(2026, time.February, 20, 9, 0, 0, 0, time.UTC))
	seedSubscription(t, subscriptionRepo, 3, "bob@example.com", strPtr("ORD-SOLO"),
		time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC))

	review, err := svc.Submit(context.Background(), domain.ReviewRequest{
		Name: "Bob", Email: "bob@example.com", Text: "solo order wins", Rating: 5,
	})
	require.NoError(t, err)
	require.NotNil(t, review.OrderID)
	assert.Equal(t, "ORD-SOLO", *review.OrderID)
}

func TestSubmitNotEligible(t *testing.T) {
	svc, _, _ := newTestReviewService(t, nil)

	_, err := svc.Submit(context.Background(), domain.ReviewRequest{
		Name: "Ghost", Email: "ghost@example.com", Text: "no order", Rating: 5,
	})
	assert.ErrorIs(t, err, domain.ErrNotEligible)
}

func TestSubmitTwiceConflicts(t *testing.T) {
	svc, _, subscriptionRepo := newTestReviewService(t, nil)

	seedSubscription(t, subscriptionRepo, 1, "alice@example.com", strPtr("ORD-1"),
		time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC))

	_, err := svc.Submit(context.Background(), domain.ReviewRequest{
		Name: "Alice", Email: "alice@example.com", Text: "first take", Rating: 5,
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), domain.ReviewRequest{
		Name: "Alice", Email: "ALICE@example.com", Text: "second take", Rating: 4,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyReviewed)
}

func TestSubmitConcurrentSingleWinner(t *testing.T) {
	svc, reviewRepo, subscriptionRepo := newTestReviewService(t, nil)

	seedSubscription(t, subscriptionRepo, 1, "alice@example.com", strPtr("ORD-1"),
		time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC))

	const workers = 8
	results := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), domain.ReviewRequest{
				Name: "Alice", Email: "alice@example.com", Text: "race take", Rating: 5,
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	// Ровно один отзыв проходит, остальные получают конфликт
	succeeded, conflicted := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrAlreadyReviewed):
			conflicted++
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicted)

	stored, err := reviewRepo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestListPagination(t *testing.T) {
	base := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)

	svc, reviewRepo, _ := newTestReviewService(t, nil)

	for i, id := range []string{"a", "b", "c"} {
		_, err := reviewRepo.Create(context.Background(), domain.Review{
			ID: id, CustomerName: "User " + id, CustomerEmail: id + "@example.com",
			OrderID: strPtr("ORD-" + id), ReviewText: "text", Rating: 5,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	page, total, err := svc.List(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, "a", page[1].ID)
}
