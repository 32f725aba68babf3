package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// SubscriptionRepository интерфейс хранилища подписок
type SubscriptionRepository interface {
	GetAll(ctx context.Context) ([]domain.Subscription, error)
	GetByID(ctx context.Context, id int64) (domain.Subscription, error)
	GetBySourceOrderLineID(ctx context.Context, orderLineID int64) (domain.Subscription, error)
	GetByEmail(ctx context.Context, email string) ([]domain.Subscription, error)
	Create(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// InMemorySubscriptionRepository реализация хранилища подписок в памяти
type InMemorySubscriptionRepository struct {
	subscriptions map[int64]domain.Subscription
	bySourceLine  map[int64]int64
	nextID        int64
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository создает новое хранилище подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[int64]domain.Subscription),
		bySourceLine:  make(map[int64]int64),
		nextID:        1,
		log:           log,
	}
}

// GetAll возвращает все подписки
func (r *InMemorySubscriptionRepository) GetAll(ctx context.Context) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	subscriptions := make([]domain.Subscription, 0, len(r.subscriptions))
	for _, subscription := range r.subscriptions {
		subscriptions = append(subscriptions, subscription)
	}

	sort.Slice(subscriptions, func(i, j int) bool {
		return subscriptions[i].ID < subscriptions[j].ID
	})

	return subscriptions, nil
}

// GetByID возвращает подписку по ID
func (r *InMemorySubscriptionRepository) GetByID(ctx context.Context, id int64) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	subscription, exists := r.subscriptions[id]
	if !exists {
		return domain.Subscription{}, ErrNotFound
	}

	return subscription, nil
}

// GetBySourceOrderLineID возвращает подписку по id исходной позиции заказа
func (r *InMemorySubscriptionRepository) GetBySourceOrderLineID(ctx context.Context, orderLineID int64) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, exists := r.bySourceLine[orderLineID]
	if !exists {
		return domain.Subscription{}, ErrNotFound
	}

	return r.subscriptions[id], nil
}

// GetByEmail возвращает подписки по нормализованному email покупателя
func (r *InMemorySubscriptionRepository) GetByEmail(ctx context.Context, email string) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	normalized := domain.NormalizeEmail(email)

	var subscriptions []domain.Subscription
	for _, subscription := range r.subscriptions {
		if subscription.CustomerEmail == normalized {
			subscriptions = append(subscriptions, subscription)
		}
	}

	sort.Slice(subscriptions, func(i, j int) bool {
		return subscriptions[i].ID < subscriptions[j].ID
	})

	return subscriptions, nil
}

// Create создает новую подписку.
// Возвращает ErrDuplicate, если подписка на эту позицию заказа уже есть.
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.bySourceLine[subscription.SourceOrderLineID]; exists {
		return domain.Subscription{}, ErrDuplicate
	}

	subscription.ID = r.nextID
	r.nextID++
	subscription.CustomerEmail = domain.NormalizeEmail(subscription.CustomerEmail)

	r.subscriptions[subscription.ID] = subscription
	r.bySourceLine[subscription.SourceOrderLineID] = subscription.ID

	return subscription, nil
}

// SetActive переключает флаг активности подписки
func (r *InMemorySubscriptionRepository) SetActive(ctx context.Context, id int64, active bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	subscription, exists := r.subscriptions[id]
	if !exists {
		return ErrNotFound
	}

	subscription.IsActive = active
	r.subscriptions[id] = subscription

	return nil
}

// PostgresSubscriptionRepository реализация хранилища подписок через PostgreSQL
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новое хранилище подписок через PostgreSQL
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

const subscriptionColumns = `
	id, source_order_line_id, customer_name, customer_email,
	product_id, product_name, subscription_months, purchase_date,
	order_id, amount, is_active
`

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID,
		&s.SourceOrderLineID,
		&s.CustomerName,
		&s.CustomerEmail,
		&s.ProductID,
		&s.ProductName,
		&s.SubscriptionMonths,
		&s.PurchaseDate,
		&s.OrderID,
		&s.Amount,
		&s.IsActive,
	)
	return s, err
}

// GetAll возвращает все подписки из базы данных
func (r *PostgresSubscriptionRepository) GetAll(ctx context.Context) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subscriptions []domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subscriptions = append(subscriptions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subscriptions, nil
}

// GetByID возвращает подписку по ID из базы данных
func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, id int64) (domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	s, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	return s, nil
}

// GetBySourceOrderLineID возвращает подписку по id исходной позиции заказа
func (r *PostgresSubscriptionRepository) GetBySourceOrderLineID(ctx context.Context, orderLineID int64) (domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE source_order_line_id = $1`

	s, err := scanSubscription(r.db.QueryRow(ctx, query, orderLineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get subscription by order line: %w", err)
	}

	return s, nil
}

// GetByEmail возвращает подписки по нормализованному email покупателя
func (r *PostgresSubscriptionRepository) GetByEmail(ctx context.Context, email string) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE customer_email = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, domain.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions by email: %w", err)
	}
	defer rows.Close()

	var subscriptions []domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subscriptions = append(subscriptions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subscriptions, nil
}

// Create создает новую подписку в базе данных.
// Уникальный индекс по source_order_line_id превращает гонку в ErrDuplicate.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (
			source_order_line_id, customer_name, customer_email,
			product_id, product_name, subscription_months, purchase_date,
			order_id, amount, is_active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING id
	`

	err := r.db.QueryRow(
		ctx,
		query,
		subscription.SourceOrderLineID,
		subscription.CustomerName,
		domain.NormalizeEmail(subscription.CustomerEmail),
		subscription.ProductID,
		subscription.ProductName,
		subscription.SubscriptionMonths,
		subscription.PurchaseDate,
		subscription.OrderID,
		subscription.Amount,
		subscription.IsActive,
	).Scan(&subscription.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Subscription{}, ErrDuplicate
		}
		return domain.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	subscription.CustomerEmail = domain.NormalizeEmail(subscription.CustomerEmail)
	return subscription, nil
}

// SetActive переключает флаг активности подписки
func (r *PostgresSubscriptionRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE subscriptions SET is_active = $1 WHERE id = $2`

	result, err := r.db.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
