package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// NewConnection создает новое подключение к PostgreSQL
func NewConnection(ctx context.Context, connString string, log *logger.Logger) (*pgxpool.Pool, error) {
	log.Info("Connecting to PostgreSQL")

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Настраиваем пул соединений
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Проверяем подключение
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL")
	return pool, nil
}

// EnsureSchema создает таблицы и уникальные индексы, на которые опираются
// инварианты хранилищ (одна подписка на позицию заказа, один пакет
// напоминаний на подписку, один отзыв на пару email+заказ)
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT PRIMARY KEY,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			subscription_months INT NOT NULL,
			purchase_date TIMESTAMPTZ NOT NULL,
			order_id TEXT,
			amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id BIGSERIAL PRIMARY KEY,
			source_order_line_id BIGINT NOT NULL UNIQUE,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			subscription_months INT NOT NULL,
			purchase_date TIMESTAMPTZ NOT NULL,
			order_id TEXT,
			amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_email ON subscriptions (customer_email)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id BIGSERIAL PRIMARY KEY,
			subscription_id BIGINT NOT NULL REFERENCES subscriptions(id),
			reminder_date TIMESTAMPTZ NOT NULL,
			reminder_type TEXT NOT NULL,
			is_sent BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (subscription_id, reminder_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_date ON reminders (reminder_date)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			review_text TEXT NOT NULL,
			rating SMALLINT NOT NULL CHECK (rating >= 1 AND rating <= 5),
			order_id TEXT,
			order_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			is_static BOOLEAN NOT NULL DEFAULT FALSE,
			seq BIGSERIAL,
			UNIQUE (customer_email, order_key)
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	log.Info("Database schema ensured")
	return nil
}
