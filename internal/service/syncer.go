package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/metrics"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// OrderSyncer интерфейс идемпотентной проекции заказов в подписки
type OrderSyncer interface {
	// Sync проецирует позицию заказа в подписку. Повторный вызов для уже
	// спроецированного заказа возвращает существующую подписку и при
	// необходимости чинит пустой пакет напоминаний.
	Sync(ctx context.Context, order domain.Order) (domain.SyncResult, error)
	// SyncAll прогоняет весь леджер последовательно; ошибка одного заказа
	// не прерывает пакет
	SyncAll(ctx context.Context, orders []domain.Order) domain.BatchSyncResult
}

type orderSyncer struct {
	subscriptionRepo repository.SubscriptionRepository
	reminderRepo     repository.ReminderRepository
	scheduler        ReminderScheduler
	metrics          metrics.StoreMetrics
	log              *logger.Logger
}

// NewOrderSyncer создает новый синхронизатор заказов
func NewOrderSyncer(
	subscriptionRepo repository.SubscriptionRepository,
	reminderRepo repository.ReminderRepository,
	scheduler ReminderScheduler,
	storeMetrics metrics.StoreMetrics,
	log *logger.Logger,
) OrderSyncer {
	return &orderSyncer{
		subscriptionRepo: subscriptionRepo,
		reminderRepo:     reminderRepo,
		scheduler:        scheduler,
		metrics:          storeMetrics,
		log:              log,
	}
}

// Sync проецирует позицию заказа в подписку идемпотентно
func (s *orderSyncer) Sync(ctx context.Context, order domain.Order) (domain.SyncResult, error) {
	existing, err := s.subscriptionRepo.GetBySourceOrderLineID(ctx, order.ID)
	if err == nil {
		// Подписка уже есть; чиним пустой пакет напоминаний, если нужно
		count, err := s.reminderRepo.CountBySubscription(ctx, existing.ID)
		if err != nil {
			return domain.SyncResult{}, err
		}
		if count == 0 {
			s.log.Warn("Subscription %d has no reminders, running repair generation", existing.ID)
			if _, err := s.scheduler.Generate(ctx, existing.ID, existing.ProductID, existing.SubscriptionMonths, existing.PurchaseDate); err != nil {
				return domain.SyncResult{}, err
			}
		}

		s.metrics.IncSubscriptionSynced(false)
		return domain.SyncResult{SubscriptionID: existing.ID, Created: false}, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		return domain.SyncResult{}, err
	}

	created, err := s.subscriptionRepo.Create(ctx, domain.FromOrder(order))
	if err != nil {
		// Гонка с конкурентным sync того же заказа: возвращаем существующую
		// подписку, это не ошибка
		if errors.Is(err, repository.ErrDuplicate) {
			existing, lookupErr := s.subscriptionRepo.GetBySourceOrderLineID(ctx, order.ID)
			if lookupErr != nil {
				return domain.SyncResult{}, lookupErr
			}
			s.metrics.IncSubscriptionSynced(false)
			return domain.SyncResult{SubscriptionID: existing.ID, Created: false}, nil
		}
		s.log.Error("Failed to create subscription for order line %d: %v", order.ID, err)
		return domain.SyncResult{}, err
	}

	s.metrics.IncSubscriptionSynced(true)
	s.log.Info("Created subscription %d for order line %d", created.ID, order.ID)

	// Сбой генерации не откатывает подписку: она может легитимно жить без
	// напоминаний до следующего repair-прохода
	if _, err := s.scheduler.Generate(ctx, created.ID, created.ProductID, created.SubscriptionMonths, created.PurchaseDate); err != nil {
		return domain.SyncResult{SubscriptionID: created.ID, Created: true}, err
	}

	return domain.SyncResult{SubscriptionID: created.ID, Created: true}, nil
}

// SyncAll прогоняет леджер заказов последовательно
func (s *orderSyncer) SyncAll(ctx context.Context, orders []domain.Order) domain.BatchSyncResult {
	var result domain.BatchSyncResult

	for _, order := range orders {
		before, err := s.reminderCountForOrder(ctx, order)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("order line %d: %v", order.ID, err))
			continue
		}

		if _, err := s.Sync(ctx, order); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("order line %d: %v", order.ID, err))
			continue
		}

		result.SyncedCount++

		after, err := s.reminderCountForOrder(ctx, order)
		if err == nil && before == 0 && after > 0 {
			result.ReminderSetsCreated++
		}
	}

	return result
}

// reminderCountForOrder возвращает число напоминаний подписки заказа (0, если подписки нет)
func (s *orderSyncer) reminderCountForOrder(ctx context.Context, order domain.Order) (int, error) {
	subscription, err := s.subscriptionRepo.GetBySourceOrderLineID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return s.reminderRepo.CountBySubscription(ctx, subscription.ID)
}
