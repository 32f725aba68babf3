package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// ReviewRepository интерфейс изменяемого хранилища отзывов (append-only)
type ReviewRepository interface {
	GetAll(ctx context.Context) ([]domain.Review, error)
	// Create добавляет отзыв; дубликат (customer_email, order_key) дает ErrDuplicate
	Create(ctx context.Context, review domain.Review) (domain.Review, error)
}

// InMemoryReviewRepository реализация изменяемого хранилища отзывов в памяти
type InMemoryReviewRepository struct {
	reviews []domain.Review
	byKey   map[string]bool
	nextSeq int64
	mutex   sync.RWMutex
	log     *logger.Logger
}

// NewInMemoryReviewRepository создает новое хранилище отзывов в памяти
func NewInMemoryReviewRepository(log *logger.Logger) *InMemoryReviewRepository {
	return &InMemoryReviewRepository{
		byKey:   make(map[string]bool),
		nextSeq: 1,
		log:     log,
	}
}

// GetAll возвращает все отзывы в порядке вставки
func (r *InMemoryReviewRepository) GetAll(ctx context.Context) ([]domain.Review, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	reviews := make([]domain.Review, len(r.reviews))
	copy(reviews, r.reviews)

	return reviews, nil
}

// Create добавляет отзыв, присваивая порядковый номер вставки
func (r *InMemoryReviewRepository) Create(ctx context.Context, review domain.Review) (domain.Review, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	review.CustomerEmail = domain.NormalizeEmail(review.CustomerEmail)
	key := fmt.Sprintf("%s|%s", review.CustomerEmail, review.OrderKey())
	if r.byKey[key] {
		return domain.Review{}, ErrDuplicate
	}

	review.Seq = r.nextSeq
	r.nextSeq++

	r.reviews = append(r.reviews, review)
	r.byKey[key] = true

	return review, nil
}

// PostgresReviewRepository реализация изменяемого хранилища отзывов через PostgreSQL
type PostgresReviewRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresReviewRepository создает новое хранилище отзывов через PostgreSQL
func NewPostgresReviewRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresReviewRepository {
	return &PostgresReviewRepository{
		db:  db,
		log: log,
	}
}

// GetAll возвращает все отзывы в порядке вставки
func (r *PostgresReviewRepository) GetAll(ctx context.Context) ([]domain.Review, error) {
	query := `
		SELECT id, customer_name, customer_email, review_text, rating,
		       order_id, created_at, is_static, seq
		FROM reviews
		ORDER BY seq
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var review domain.Review
		err := rows.Scan(
			&review.ID,
			&review.CustomerName,
			&review.CustomerEmail,
			&review.ReviewText,
			&review.Rating,
			&review.OrderID,
			&review.CreatedAt,
			&review.IsStatic,
			&review.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

// Create добавляет отзыв в базу данных.
// Уникальный индекс (customer_email, order_key) превращает гонку в ErrDuplicate.
func (r *PostgresReviewRepository) Create(ctx context.Context, review domain.Review) (domain.Review, error) {
	query := `
		INSERT INTO reviews (
			id, customer_name, customer_email, review_text, rating,
			order_id, order_key, created_at, is_static
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING seq
	`

	review.CustomerEmail = domain.NormalizeEmail(review.CustomerEmail)

	err := r.db.QueryRow(
		ctx,
		query,
		review.ID,
		review.CustomerName,
		review.CustomerEmail,
		review.ReviewText,
		review.Rating,
		review.OrderID,
		review.OrderKey(),
		review.CreatedAt,
		review.IsStatic,
	).Scan(&review.Seq)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Review{}, ErrDuplicate
		}
		return domain.Review{}, fmt.Errorf("failed to create review: %w", err)
	}

	return review, nil
}
