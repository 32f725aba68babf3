package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/kafka/producer"
	"github.com/Dhoini/Storefront-microservice/internal/metrics"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// ReminderScheduler интерфейс генератора напоминаний о продлении
type ReminderScheduler interface {
	// Generate детерминированно строит и сохраняет пакет напоминаний подписки.
	// Повторный вызов для подписки с уже существующими напоминаниями — no-op.
	Generate(ctx context.Context, subscriptionID int64, productID string, months int, purchaseDate time.Time) ([]domain.Reminder, error)
}

type reminderScheduler struct {
	reminderRepo repository.ReminderRepository
	events       producer.EventProducer
	metrics      metrics.StoreMetrics
	log          *logger.Logger

	// Пер-подписочные замки: проверка "есть ли напоминания" и вставка пакета
	// должны быть атомарны, иначе конкурентные sync создадут два пакета
	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewReminderScheduler создает новый генератор напоминаний
func NewReminderScheduler(
	reminderRepo repository.ReminderRepository,
	events producer.EventProducer,
	storeMetrics metrics.StoreMetrics,
	log *logger.Logger,
) ReminderScheduler {
	return &reminderScheduler{
		reminderRepo: reminderRepo,
		events:       events,
		metrics:      storeMetrics,
		log:          log,
		locks:        make(map[int64]*sync.Mutex),
	}
}

func (s *reminderScheduler) lockFor(subscriptionID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, exists := s.locks[subscriptionID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[subscriptionID] = lock
	}
	return lock
}

// checkpoint одна контрольная точка расписания напоминаний
type checkpoint struct {
	monthsFromStart int
	reminderType    string
}

// cadencePlan возвращает контрольные точки для семейства продукта и срока.
// Месячное семейство: напоминание на каждой месячной границе с количеством
// оставшихся месяцев, плюс терминальное expiry.
// Семейство контрольных точек: фиксированные отметки 3/6/9 месяцев для
// сроков 6 и 12; остальные сроки дают только expiry.
func cadencePlan(family domain.CadenceFamily, months int) []checkpoint {
	if months <= 0 {
		months = 1
	}

	var plan []checkpoint

	switch family {
	case domain.CadenceMilestone:
		switch months {
		case 6:
			plan = append(plan, checkpoint{3, domain.RenewalReminderType(3)})
		case 12:
			plan = append(plan,
				checkpoint{3, domain.RenewalReminderType(9)},
				checkpoint{6, domain.RenewalReminderType(6)},
				checkpoint{9, domain.RenewalReminderType(3)},
			)
		}
	default:
		for left := months - 1; left >= 1; left-- {
			plan = append(plan, checkpoint{months - left, domain.RenewalReminderType(left)})
		}
	}

	plan = append(plan, checkpoint{months, domain.ReminderTypeExpiry})
	return plan
}

// Generate строит пакет напоминаний и сохраняет его атомарно
func (s *reminderScheduler) Generate(ctx context.Context, subscriptionID int64, productID string, months int, purchaseDate time.Time) ([]domain.Reminder, error) {
	lock := s.lockFor(subscriptionID)
	lock.Lock()
	defer lock.Unlock()

	count, err := s.reminderRepo.CountBySubscription(ctx, subscriptionID)
	if err != nil {
		s.log.Error("Failed to count reminders for subscription %d: %v", subscriptionID, err)
		return nil, err
	}

	if count > 0 {
		s.log.Debug("Subscription %d already has %d reminders, skipping generation", subscriptionID, count)
		return nil, nil
	}

	family := domain.CadenceFor(productID)
	plan := cadencePlan(family, months)

	reminders := make([]domain.Reminder, 0, len(plan))
	for _, cp := range plan {
		reminders = append(reminders, domain.Reminder{
			SubscriptionID: subscriptionID,
			// Календарные месяцы, время покупки в течение дня сохраняется
			ReminderDate: purchaseDate.AddDate(0, cp.monthsFromStart, 0),
			ReminderType: cp.reminderType,
			IsSent:       false,
		})
	}

	created, err := s.reminderRepo.CreateBatch(ctx, reminders)
	if err != nil {
		// Гонка с конкурентной генерацией: пакет уже создан другим вызовом
		if errors.Is(err, repository.ErrDuplicate) {
			s.log.Warn("Reminder batch for subscription %d already created concurrently", subscriptionID)
			return nil, nil
		}
		s.log.Error("Failed to create reminder batch for subscription %d: %v", subscriptionID, err)
		return nil, err
	}

	s.metrics.IncReminderBatch(string(family), len(created))

	if err := s.events.PublishRemindersPlanned(subscriptionID, created); err != nil {
		s.log.Warn("Failed to publish reminder batch event for subscription %d: %v", subscriptionID, err)
	}

	s.log.Info("Generated %d reminders for subscription %d (family %s, %d months)",
		len(created), subscriptionID, family, months)
	return created, nil
}
