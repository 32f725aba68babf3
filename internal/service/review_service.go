package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/kafka/producer"
	"github.com/Dhoini/Storefront-microservice/internal/metrics"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/internal/snapshot"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
	"github.com/Dhoini/Storefront-microservice/pkg/req"
)

// Причины отбрасывания дубликатов при сверке
const (
	DropReasonSameOrder = "same email+order_id"
	DropReasonSameText  = "same name+email+text"
)

// minFuzzyTextLength минимальная длина нормализованного текста, при которой
// включается нечеткий ключ (имя+email+текст)
const minFuzzyTextLength = 20

// DroppedReview отброшенный при сверке дубликат (для диагностики)
type DroppedReview struct {
	Review domain.Review
	Reason string
}

// ReviewService интерфейс сверки и приема отзывов
type ReviewService interface {
	// GetAll объединяет стартовую и изменяемую коллекции, убирает дубликаты
	// и возвращает отзывы новыми вперед
	GetAll(ctx context.Context) ([]domain.Review, error)
	// List возвращает страницу объединенного представления и общее количество
	List(ctx context.Context, limit, offset int) ([]domain.Review, int, error)
	// CanReview проверяет право на отзыв, не меняя состояния
	CanReview(ctx context.Context, email string) (domain.Eligibility, error)
	// Submit принимает отзыв на самый свежий заказ покупателя
	Submit(ctx context.Context, req domain.ReviewRequest) (domain.Review, error)
}

type reviewService struct {
	reviewRepo       repository.ReviewRepository
	subscriptionRepo repository.SubscriptionRepository
	cache            repository.ReviewViewCache
	publisher        snapshot.Publisher
	events           producer.EventProducer
	metrics          metrics.StoreMetrics
	log              *logger.Logger

	seedOnce sync.Once
	seed     []domain.Review
	seedErr  error
	loader   repository.SeedReviewLoader

	// Пер-email замки: проверка "уже есть отзыв" и вставка должны быть
	// атомарны для одной пары (email, заказ)
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewReviewService создает новый сервис отзывов
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	subscriptionRepo repository.SubscriptionRepository,
	loader repository.SeedReviewLoader,
	cache repository.ReviewViewCache,
	publisher snapshot.Publisher,
	events producer.EventProducer,
	storeMetrics metrics.StoreMetrics,
	log *logger.Logger,
) ReviewService {
	return &reviewService{
		reviewRepo:       reviewRepo,
		subscriptionRepo: subscriptionRepo,
		loader:           loader,
		cache:            cache,
		publisher:        publisher,
		events:           events,
		metrics:          storeMetrics,
		log:              log,
		locks:            make(map[string]*sync.Mutex),
	}
}

func (s *reviewService) lockFor(email string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, exists := s.locks[email]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[email] = lock
	}
	return lock
}

// seedReviews загружает стартовую коллекцию один раз
func (s *reviewService) seedReviews() ([]domain.Review, error) {
	s.seedOnce.Do(func() {
		s.seed, s.seedErr = s.loader.Load()
		if s.seedErr != nil {
			s.log.Error("Failed to load seed reviews: %v", s.seedErr)
		}
	})
	return s.seed, s.seedErr
}

// dedupKeys возвращает ключи дедупликации отзыва. Первичный ключ всегда
// email+order_id; нечеткий ключ имя+email+текст добавляется только для
// достаточно длинных текстов
func dedupKeys(review domain.Review) []string {
	email := domain.NormalizeEmail(review.CustomerEmail)
	keys := []string{fmt.Sprintf("%s|%s", email, review.OrderKey())}

	normalized := domain.NormalizeReviewText(review.ReviewText)
	// Длина считается в рунах, не в байтах: кириллический текст не должен
	// попадать под нечеткий ключ раньше латинского
	if utf8.RuneCountInString(normalized) > minFuzzyTextLength {
		keys = append(keys, fmt.Sprintf("%s|%s|%s",
			domain.NormalizeReviewText(review.CustomerName), email, normalized))
	}

	return keys
}

// sortNewestFirst сортирует отзывы по created_at по убыванию; при равных
// датах побеждает больший порядковый номер вставки
func sortNewestFirst(reviews []domain.Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		if reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].Seq > reviews[j].Seq
		}
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
}

// DedupeReviews убирает дубликаты из списка отзывов. Список обрабатывается
// новыми вперед; при совпадении любого ключа отбрасывается более старая
// запись. Операция идемпотентна: повторный прогон ничего не меняет.
func DedupeReviews(reviews []domain.Review) ([]domain.Review, []DroppedReview) {
	ordered := make([]domain.Review, len(reviews))
	copy(ordered, reviews)
	sortNewestFirst(ordered)

	seen := make(map[string]bool)
	kept := make([]domain.Review, 0, len(ordered))
	var dropped []DroppedReview

	for _, review := range ordered {
		keys := dedupKeys(review)

		reason := ""
		if seen[keys[0]] {
			reason = DropReasonSameOrder
		} else if len(keys) > 1 && seen[keys[1]] {
			reason = DropReasonSameText
		}

		if reason != "" {
			dropped = append(dropped, DroppedReview{Review: review, Reason: reason})
			continue
		}

		for _, key := range keys {
			seen[key] = true
		}
		kept = append(kept, review)
	}

	return kept, dropped
}

// GetAll объединяет обе коллекции отзывов в каноническое представление
func (s *reviewService) GetAll(ctx context.Context) ([]domain.Review, error) {
	if cached, err := s.cache.Get(ctx); err == nil && cached != nil {
		return cached, nil
	}

	mutable, err := s.reviewRepo.GetAll(ctx)
	if err != nil {
		s.log.Error("Failed to load mutable reviews: %v", err)
		return nil, err
	}

	seed, err := s.seedReviews()
	if err != nil {
		return nil, err
	}

	// Изменяемая коллекция побеждает стартовую при совпадении ключа,
	// независимо от меток времени
	mutableKeys := make(map[string]bool)
	for _, review := range mutable {
		for _, key := range dedupKeys(review) {
			mutableKeys[key] = true
		}
	}

	merged := make([]domain.Review, 0, len(mutable)+len(seed))
	merged = append(merged, mutable...)

	for _, review := range seed {
		keys := dedupKeys(review)

		reason := ""
		if mutableKeys[keys[0]] {
			reason = DropReasonSameOrder
		} else if len(keys) > 1 && mutableKeys[keys[1]] {
			reason = DropReasonSameText
		}

		if reason != "" {
			s.metrics.IncDuplicateDropped(reason)
			s.log.Debug("Seed review %s overridden by mutable store (%s)", review.ID, reason)
			continue
		}
		merged = append(merged, review)
	}

	deduped, dropped := DedupeReviews(merged)
	for _, drop := range dropped {
		s.metrics.IncDuplicateDropped(drop.Reason)
		s.log.Warn("Dropped duplicate review %s (%s)", drop.Review.ID, drop.Reason)
	}

	if err := s.cache.Set(ctx, deduped); err != nil {
		s.log.Warn("Failed to cache merged review view: %v", err)
	}

	return deduped, nil
}

// List возвращает страницу объединенного представления
func (s *reviewService) List(ctx context.Context, limit, offset int) ([]domain.Review, int, error) {
	reviews, err := s.GetAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	total := len(reviews)

	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}

	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	return reviews[offset:end], total, nil
}

// targetOrderKey возвращает ключ самого свежего заказа покупателя.
// Подписки группируются по внешнему номеру заказа (сиротские позиции — в
// своей группе); дата группы — самая ранняя покупка внутри нее; побеждает
// группа с самой поздней датой
func targetOrderKey(subscriptions []domain.Subscription) (string, *string) {
	type group struct {
		orderID  *string
		earliest time.Time
	}

	groups := make(map[string]*group)
	for _, subscription := range subscriptions {
		key := domain.OrderKeyOf(subscription.OrderID)
		g, exists := groups[key]
		if !exists {
			groups[key] = &group{orderID: subscription.OrderID, earliest: subscription.PurchaseDate}
			continue
		}
		if subscription.PurchaseDate.Before(g.earliest) {
			g.earliest = subscription.PurchaseDate
		}
	}

	var bestKey string
	var best *group
	for key, g := range groups {
		if best == nil || g.earliest.After(best.earliest) ||
			(g.earliest.Equal(best.earliest) && key > bestKey) {
			bestKey = key
			best = g
		}
	}

	return bestKey, best.orderID
}

// eligibilityFor применяет правила "самый свежий заказ" + "еще нет отзыва"
func (s *reviewService) eligibilityFor(ctx context.Context, email string) (string, *string, error) {
	normalized := domain.NormalizeEmail(email)

	subscriptions, err := s.subscriptionRepo.GetByEmail(ctx, normalized)
	if err != nil {
		return "", nil, err
	}
	if len(subscriptions) == 0 {
		return "", nil, domain.ErrNotEligible
	}

	orderKey, orderID := targetOrderKey(subscriptions)

	reviews, err := s.GetAll(ctx)
	if err != nil {
		return "", nil, err
	}

	for _, review := range reviews {
		if domain.NormalizeEmail(review.CustomerEmail) == normalized && review.OrderKey() == orderKey {
			return "", nil, domain.ErrAlreadyReviewed
		}
	}

	return orderKey, orderID, nil
}

// CanReview проверяет право на отзыв, не меняя состояния
func (s *reviewService) CanReview(ctx context.Context, email string) (domain.Eligibility, error) {
	_, _, err := s.eligibilityFor(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotEligible):
			return domain.Eligibility{Eligible: false, Reason: "no completed order found for this email"}, nil
		case errors.Is(err, domain.ErrAlreadyReviewed):
			return domain.Eligibility{Eligible: false, Reason: "latest order has already been reviewed"}, nil
		default:
			return domain.Eligibility{}, err
		}
	}

	return domain.Eligibility{Eligible: true}, nil
}

// Submit принимает отзыв на самый свежий заказ покупателя
func (s *reviewService) Submit(ctx context.Context, request domain.ReviewRequest) (domain.Review, error) {
	if err := req.IsValid(request); err != nil {
		s.log.Warn("Rejected invalid review request: %v", err)
		return domain.Review{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	normalized := domain.NormalizeEmail(request.Email)

	lock := s.lockFor(normalized)
	lock.Lock()
	defer lock.Unlock()

	_, orderID, err := s.eligibilityFor(ctx, request.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotEligible):
			s.metrics.IncReviewSubmitted("not_eligible")
		case errors.Is(err, domain.ErrAlreadyReviewed):
			s.metrics.IncReviewSubmitted("already_reviewed")
		}
		return domain.Review{}, err
	}

	review := domain.Review{
		ID:            uuid.NewString(),
		CustomerName:  request.Name,
		CustomerEmail: normalized,
		ReviewText:    request.Text,
		Rating:        request.Rating,
		OrderID:       orderID,
		CreatedAt:     time.Now(),
		IsStatic:      false,
	}

	created, err := s.reviewRepo.Create(ctx, review)
	if err != nil {
		// Гонка, проскочившая мимо предварительной проверки: уникальный
		// ключ хранилища эквивалентен "уже есть отзыв"
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.IncReviewSubmitted("already_reviewed")
			return domain.Review{}, domain.ErrAlreadyReviewed
		}
		s.metrics.IncReviewSubmitted("storage_error")
		s.log.Error("Failed to persist review for %s: %v", normalized, err)
		return domain.Review{}, err
	}

	s.metrics.IncReviewSubmitted("accepted")
	s.log.Info("Accepted review %s from %s for order %s", created.ID, normalized, domain.OrderKeyOf(orderID))

	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("Failed to invalidate review cache: %v", err)
	}

	if err := s.events.PublishReviewSubmitted(created); err != nil {
		s.log.Warn("Failed to publish review event: %v", err)
	}

	// Полная перезапись снапшота объединенного представления: best-effort,
	// сбой не виден отправителю отзыва
	go s.publishSnapshot()

	return created, nil
}

// publishSnapshot перестраивает объединенное представление и публикует его
func (s *reviewService) publishSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reviews, err := s.GetAll(ctx)
	if err != nil {
		s.metrics.IncSnapshotPublish(false)
		s.log.Warn("Failed to rebuild review view for snapshot: %v", err)
		return
	}

	if err := s.publisher.Publish(reviews); err != nil {
		s.metrics.IncSnapshotPublish(false)
		s.log.Warn("Failed to publish review snapshot: %v", err)
		return
	}

	s.metrics.IncSnapshotPublish(true)
}
