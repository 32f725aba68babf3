package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// OrderRepository интерфейс леджера заказов (append-only)
type OrderRepository interface {
	GetAll(ctx context.Context) ([]domain.Order, error)
	GetByID(ctx context.Context, id int64) (domain.Order, error)
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
}

// InMemoryOrderRepository реализация леджера заказов в памяти
type InMemoryOrderRepository struct {
	orders map[int64]domain.Order
	mutex  sync.RWMutex
	log    *logger.Logger
}

// NewInMemoryOrderRepository создает новый леджер заказов в памяти
func NewInMemoryOrderRepository(log *logger.Logger) *InMemoryOrderRepository {
	return &InMemoryOrderRepository{
		orders: make(map[int64]domain.Order),
		log:    log,
	}
}

// GetAll возвращает все заказы, новые первыми
func (r *InMemoryOrderRepository) GetAll(ctx context.Context) ([]domain.Order, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	orders := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orders = append(orders, order)
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].PurchaseDate.Equal(orders[j].PurchaseDate) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].PurchaseDate.After(orders[j].PurchaseDate)
	})

	return orders, nil
}

// GetByID возвращает заказ по ID
func (r *InMemoryOrderRepository) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	order, exists := r.orders[id]
	if !exists {
		return domain.Order{}, ErrNotFound
	}

	return order, nil
}

// Create добавляет заказ в леджер, присваивая id = max(существующих) + 1
func (r *InMemoryOrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var maxID int64
	for id := range r.orders {
		if id > maxID {
			maxID = id
		}
	}

	order.ID = maxID + 1
	order.CustomerEmail = domain.NormalizeEmail(order.CustomerEmail)
	r.orders[order.ID] = order

	return order, nil
}

// PostgresOrderRepository реализация леджера заказов через PostgreSQL
type PostgresOrderRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresOrderRepository создает новый леджер заказов через PostgreSQL
func NewPostgresOrderRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:  db,
		log: log,
	}
}

// GetAll возвращает все заказы из базы данных, новые первыми
func (r *PostgresOrderRepository) GetAll(ctx context.Context) ([]domain.Order, error) {
	query := `
		SELECT
			id, customer_name, customer_email, product_id, product_name,
			subscription_months, purchase_date, order_id, amount, is_active
		FROM orders
		ORDER BY purchase_date DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		err := rows.Scan(
			&order.ID,
			&order.CustomerName,
			&order.CustomerEmail,
			&order.ProductID,
			&order.ProductName,
			&order.SubscriptionMonths,
			&order.PurchaseDate,
			&order.OrderID,
			&order.Amount,
			&order.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// GetByID возвращает заказ по ID из базы данных
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	query := `
		SELECT
			id, customer_name, customer_email, product_id, product_name,
			subscription_months, purchase_date, order_id, amount, is_active
		FROM orders
		WHERE id = $1
	`

	var order domain.Order
	err := r.db.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.CustomerName,
		&order.CustomerEmail,
		&order.ProductID,
		&order.ProductName,
		&order.SubscriptionMonths,
		&order.PurchaseDate,
		&order.OrderID,
		&order.Amount,
		&order.IsActive,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// Create добавляет заказ в леджер, присваивая id = max(существующих) + 1
func (r *PostgresOrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	query := `
		INSERT INTO orders (
			id, customer_name, customer_email, product_id, product_name,
			subscription_months, purchase_date, order_id, amount, is_active
		)
		SELECT
			COALESCE(MAX(id), 0) + 1, $1, $2, $3, $4, $5, $6, $7, $8, $9
		FROM orders
		RETURNING id
	`

	err := r.db.QueryRow(
		ctx,
		query,
		order.CustomerName,
		domain.NormalizeEmail(order.CustomerEmail),
		order.ProductID,
		order.ProductName,
		order.SubscriptionMonths,
		order.PurchaseDate,
		order.OrderID,
		order.Amount,
		order.IsActive,
	).Scan(&order.ID)

	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to create order: %w", err)
	}

	order.CustomerEmail = domain.NormalizeEmail(order.CustomerEmail)
	return order, nil
}
