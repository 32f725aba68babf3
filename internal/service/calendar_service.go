package service

import (
	"context"
	"sort"
	"time"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// Режимы выборки календаря продлений
const (
	CalendarModeFuture = "future"
	CalendarModePast   = "past"
)

const calendarDateLayout = "2006-01-02"

// CalendarDay агрегат напоминаний на один календарный день
type CalendarDay struct {
	Date         string                       `json:"date"`
	RenewalCount int                          `json:"renewal_count"`
	ExpiryCount  int                          `json:"expiry_count"`
	Entries      []domain.ReminderWithContext `json:"entries"`
}

// CalendarService интерфейс админских выборок по напоминаниям
type CalendarService interface {
	// RemindersByDay возвращает напоминания на указанные сутки вместе с
	// данными подписок
	RemindersByDay(ctx context.Context, day time.Time) ([]domain.ReminderWithContext, error)
	// Calendar возвращает напоминания, сгруппированные по дням.
	// Режим future отбирает дни начиная с сегодняшнего, past — до него.
	Calendar(ctx context.Context, mode string) ([]CalendarDay, error)
	// UpdateReminderDate переносит напоминание на новую дату
	UpdateReminderDate(ctx context.Context, id int64, newDate time.Time) error
	// MarkReminderSent отмечает напоминание как отправленное
	MarkReminderSent(ctx context.Context, id int64) error
}

type calendarService struct {
	orderRepo        repository.OrderRepository
	subscriptionRepo repository.SubscriptionRepository
	reminderRepo     repository.ReminderRepository
	syncer           OrderSyncer
	log              *logger.Logger
}

// NewCalendarService создает новый сервис календаря продлений
func NewCalendarService(
	orderRepo repository.OrderRepository,
	subscriptionRepo repository.SubscriptionRepository,
	reminderRepo repository.ReminderRepository,
	syncer OrderSyncer,
	log *logger.Logger,
) CalendarService {
	return &calendarService{
		orderRepo:        orderRepo,
		subscriptionRepo: subscriptionRepo,
		reminderRepo:     reminderRepo,
		syncer:           syncer,
		log:              log,
	}
}

// syncLedger догоняет проекцию подписок перед админской выборкой.
// Ошибки отдельных заказов не прерывают чтение: выборка идет по тому,
// что удалось спроецировать.
func (s *calendarService) syncLedger(ctx context.Context) {
	orders, err := s.orderRepo.GetAll(ctx)
	if err != nil {
		s.log.Warn("Failed to load order ledger for sync: %v", err)
		return
	}

	result := s.syncer.SyncAll(ctx, orders)
	for _, syncErr := range result.Errors {
		s.log.Warn("Ledger sync: %s", syncErr)
	}
}

// withContext присоединяет к напоминаниям данные их подписок
func (s *calendarService) withContext(ctx context.Context, reminders []domain.Reminder) ([]domain.ReminderWithContext, error) {
	subscriptions, err := s.subscriptionRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Subscription, len(subscriptions))
	for _, subscription := range subscriptions {
		byID[subscription.ID] = subscription
	}

	enriched := make([]domain.ReminderWithContext, 0, len(reminders))
	for _, reminder := range reminders {
		entry := domain.ReminderWithContext{Reminder: reminder}
		if subscription, exists := byID[reminder.SubscriptionID]; exists {
			entry.CustomerName = subscription.CustomerName
			entry.CustomerEmail = subscription.CustomerEmail
			entry.ProductID = subscription.ProductID
			entry.ProductName = subscription.ProductName
		}
		enriched = append(enriched, entry)
	}

	return enriched, nil
}

// RemindersByDay возвращает напоминания на указанные сутки
func (s *calendarService) RemindersByDay(ctx context.Context, day time.Time) ([]domain.ReminderWithContext, error) {
	s.syncLedger(ctx)

	reminders, err := s.reminderRepo.GetByDay(ctx, day)
	if err != nil {
		return nil, err
	}

	return s.withContext(ctx, reminders)
}

// Calendar возвращает напоминания, сгруппированные по дням
func (s *calendarService) Calendar(ctx context.Context, mode string) ([]CalendarDay, error) {
	if mode != CalendarModeFuture && mode != CalendarModePast {
		return nil, domain.NewValidationError("mode", "must be future or past")
	}

	s.syncLedger(ctx)

	reminders, err := s.reminderRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	enriched, err := s.withContext(ctx, reminders)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	days := make(map[string]*CalendarDay)
	for _, entry := range enriched {
		entryDay := time.Date(entry.ReminderDate.Year(), entry.ReminderDate.Month(), entry.ReminderDate.Day(), 0, 0, 0, 0, entry.ReminderDate.Location())

		if mode == CalendarModeFuture && entryDay.Before(today) {
			continue
		}
		if mode == CalendarModePast && !entryDay.Before(today) {
			continue
		}

		key := entryDay.Format(calendarDateLayout)
		day, exists := days[key]
		if !exists {
			day = &CalendarDay{Date: key}
			days[key] = day
		}

		if entry.ReminderType == domain.ReminderTypeExpiry {
			day.ExpiryCount++
		} else {
			day.RenewalCount++
		}
		day.Entries = append(day.Entries, entry)
	}

	result := make([]CalendarDay, 0, len(days))
	for _, day := range days {
		result = append(result, *day)
	}

	sort.Slice(result, func(i, j int) bool {
		if mode == CalendarModePast {
			return result[i].Date > result[j].Date
		}
		return result[i].Date < result[j].Date
	})

	return result, nil
}

// UpdateReminderDate переносит напоминание на новую дату
func (s *calendarService) UpdateReminderDate(ctx context.Context, id int64, newDate time.Time) error {
	if err := s.reminderRepo.UpdateDate(ctx, id, newDate); err != nil {
		return err
	}

	s.log.Info("Moved reminder %d to %s", id, newDate.Format(calendarDateLayout))
	return nil
}

// MarkReminderSent отмечает напоминание как отправленное
func (s *calendarService) MarkReminderSent(ctx context.Context, id int64) error {
	if err := s.reminderRepo.MarkSent(ctx, id); err != nil {
		return err
	}

	s.log.Info("Marked reminder %d as sent", id)
	return nil
}
