package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// ReminderRepository интерфейс хранилища напоминаний
type ReminderRepository interface {
	GetAll(ctx context.Context) ([]domain.Reminder, error)
	GetBySubscription(ctx context.Context, subscriptionID int64) ([]domain.Reminder, error)
	CountBySubscription(ctx context.Context, subscriptionID int64) (int, error)
	GetByDay(ctx context.Context, day time.Time) ([]domain.Reminder, error)
	// CreateBatch вставляет пакет целиком или не вставляет ничего
	CreateBatch(ctx context.Context, reminders []domain.Reminder) ([]domain.Reminder, error)
	UpdateDate(ctx context.Context, id int64, newDate time.Time) error
	MarkSent(ctx context.Context, id int64) error
}

// InMemoryReminderRepository реализация хранилища напоминаний в памяти
type InMemoryReminderRepository struct {
	reminders map[int64]domain.Reminder
	nextID    int64
	mutex     sync.RWMutex
	log       *logger.Logger
}

// NewInMemoryReminderRepository создает новое хранилище напоминаний в памяти
func NewInMemoryReminderRepository(log *logger.Logger) *InMemoryReminderRepository {
	return &InMemoryReminderRepository{
		reminders: make(map[int64]domain.Reminder),
		nextID:    1,
		log:       log,
	}
}

func (r *InMemoryReminderRepository) sorted(filter func(domain.Reminder) bool) []domain.Reminder {
	var reminders []domain.Reminder
	for _, reminder := range r.reminders {
		if filter == nil || filter(reminder) {
			reminders = append(reminders, reminder)
		}
	}

	sort.Slice(reminders, func(i, j int) bool {
		if reminders[i].ReminderDate.Equal(reminders[j].ReminderDate) {
			return reminders[i].ID < reminders[j].ID
		}
		return reminders[i].ReminderDate.Before(reminders[j].ReminderDate)
	})

	return reminders
}

// GetAll возвращает все напоминания, отсортированные по дате
func (r *InMemoryReminderRepository) GetAll(ctx context.Context) ([]domain.Reminder, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.sorted(nil), nil
}

// GetBySubscription возвращает напоминания подписки
func (r *InMemoryReminderRepository) GetBySubscription(ctx context.Context, subscriptionID int64) ([]domain.Reminder, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.sorted(func(reminder domain.Reminder) bool {
		return reminder.SubscriptionID == subscriptionID
	}), nil
}

// CountBySubscription возвращает количество напоминаний подписки
func (r *InMemoryReminderRepository) CountBySubscription(ctx context.Context, subscriptionID int64) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	count := 0
	for _, reminder := range r.reminders {
		if reminder.SubscriptionID == subscriptionID {
			count++
		}
	}

	return count, nil
}

// GetByDay возвращает напоминания, попадающие в указанные сутки
func (r *InMemoryReminderRepository) GetByDay(ctx context.Context, day time.Time) ([]domain.Reminder, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	return r.sorted(func(reminder domain.Reminder) bool {
		return !reminder.ReminderDate.Before(dayStart) && reminder.ReminderDate.Before(dayEnd)
	}), nil
}

// CreateBatch вставляет пакет напоминаний атомарно.
// Дубликат (subscription_id, reminder_type) отменяет весь пакет с ErrDuplicate.
func (r *InMemoryReminderRepository) CreateBatch(ctx context.Context, reminders []domain.Reminder) ([]domain.Reminder, error) {
	if len(reminders) == 0 {
		return nil, nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	seen := make(map[string]bool)
	for _, existing := range r.reminders {
		seen[fmt.Sprintf("%d|%s", existing.SubscriptionID, existing.ReminderType)] = true
	}

	for _, reminder := range reminders {
		key := fmt.Sprintf("%d|%s", reminder.SubscriptionID, reminder.ReminderType)
		if seen[key] {
			return nil, ErrDuplicate
		}
		seen[key] = true
	}

	created := make([]domain.Reminder, 0, len(reminders))
	for _, reminder := range reminders {
		reminder.ID = r.nextID
		r.nextID++
		r.reminders[reminder.ID] = reminder
		created = append(created, reminder)
	}

	return created, nil
}

// UpdateDate переносит напоминание на новую дату (ручная правка оператором)
func (r *InMemoryReminderRepository) UpdateDate(ctx context.Context, id int64, newDate time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	reminder, exists := r.reminders[id]
	if !exists {
		return ErrNotFound
	}

	reminder.ReminderDate = newDate
	r.reminders[id] = reminder

	return nil
}

// MarkSent отмечает напоминание как отправленное
func (r *InMemoryReminderRepository) MarkSent(ctx context.Context, id int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	reminder, exists := r.reminders[id]
	if !exists {
		return ErrNotFound
	}

	reminder.IsSent = true
	r.reminders[id] = reminder

	return nil
}

// PostgresReminderRepository реализация хранилища напоминаний через PostgreSQL
type PostgresReminderRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresReminderRepository создает новое хранилище напоминаний через PostgreSQL
func NewPostgresReminderRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresReminderRepository {
	return &PostgresReminderRepository{
		db:  db,
		log: log,
	}
}

const reminderColumns = `id, subscription_id, reminder_date, reminder_type, is_sent`

func (r *PostgresReminderRepository) queryReminders(ctx context.Context, query string, args ...any) ([]domain.Reminder, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		var reminder domain.Reminder
		err := rows.Scan(
			&reminder.ID,
			&reminder.SubscriptionID,
			&reminder.ReminderDate,
			&reminder.ReminderType,
			&reminder.IsSent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}

	return reminders, nil
}

// GetAll возвращает все напоминания, отсортированные по дате
func (r *PostgresReminderRepository) GetAll(ctx context.Context) ([]domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders ORDER BY reminder_date, id`
	return r.queryReminders(ctx, query)
}

// GetBySubscription возвращает напоминания подписки
func (r *PostgresReminderRepository) GetBySubscription(ctx context.Context, subscriptionID int64) ([]domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE subscription_id = $1 ORDER BY reminder_date, id`
	return r.queryReminders(ctx, query, subscriptionID)
}

// CountBySubscription возвращает количество напоминаний подписки
func (r *PostgresReminderRepository) CountBySubscription(ctx context.Context, subscriptionID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reminders WHERE subscription_id = $1`, subscriptionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reminders: %w", err)
	}
	return count, nil
}

// GetByDay возвращает напоминания, попадающие в указанные сутки
func (r *PostgresReminderRepository) GetByDay(ctx context.Context, day time.Time) ([]domain.Reminder, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE reminder_date >= $1 AND reminder_date < $2
		ORDER BY reminder_date, id
	`
	return r.queryReminders(ctx, query, dayStart, dayEnd)
}

// CreateBatch вставляет пакет напоминаний в одной транзакции.
// Уникальный индекс (subscription_id, reminder_type) превращает гонку в ErrDuplicate,
// при этом транзакция откатывается целиком.
func (r *PostgresReminderRepository) CreateBatch(ctx context.Context, reminders []domain.Reminder) ([]domain.Reminder, error) {
	if len(reminders) == 0 {
		return nil, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO reminders (subscription_id, reminder_date, reminder_type, is_sent)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	created := make([]domain.Reminder, 0, len(reminders))
	for _, reminder := range reminders {
		err := tx.QueryRow(
			ctx,
			query,
			reminder.SubscriptionID,
			reminder.ReminderDate,
			reminder.ReminderType,
			reminder.IsSent,
		).Scan(&reminder.ID)

		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return nil, ErrDuplicate
			}
			return nil, fmt.Errorf("failed to insert reminder: %w", err)
		}
		created = append(created, reminder)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reminder batch: %w", err)
	}

	return created, nil
}

// UpdateDate переносит напоминание на новую дату (ручная правка оператором)
func (r *PostgresReminderRepository) UpdateDate(ctx context.Context, id int64, newDate time.Time) error {
	result, err := r.db.Exec(ctx, `UPDATE reminders SET reminder_date = $1 WHERE id = $2`, newDate, id)
	if err != nil {
		return fmt.Errorf("failed to update reminder date: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkSent отмечает напоминание как отправленное
func (r *PostgresReminderRepository) MarkSent(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `UPDATE reminders SET is_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder as sent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
