package repository

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// SeedReviewLoader загружает неизменяемую стартовую коллекцию отзывов.
// Коллекция читается один раз и никогда не пишется ядром.
type SeedReviewLoader interface {
	Load() ([]domain.Review, error)
}

// FileSeedReviewLoader читает стартовые отзывы из статического JSON файла
type FileSeedReviewLoader struct {
	path string
	log  *logger.Logger
}

// NewFileSeedReviewLoader создает загрузчик стартовых отзывов из файла
func NewFileSeedReviewLoader(path string, log *logger.Logger) *FileSeedReviewLoader {
	return &FileSeedReviewLoader{
		path: path,
		log:  log,
	}
}

// Load читает и разбирает файл стартовых отзывов.
// Отсутствующий файл дает пустую коллекцию, не ошибку.
func (l *FileSeedReviewLoader) Load() ([]domain.Review, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Warn("Seed review file not found: %s", l.path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read seed reviews: %w", err)
	}

	var reviews []domain.Review
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("failed to parse seed reviews: %w", err)
	}

	// Стартовые записи помечаются статическими; отрицательный seq ставит их
	// после изменяемых записей при равных created_at
	for i := range reviews {
		reviews[i].IsStatic = true
		reviews[i].CustomerEmail = domain.NormalizeEmail(reviews[i].CustomerEmail)
		reviews[i].Seq = -int64(len(reviews) - i)
	}

	l.log.Info("Loaded %d seed reviews from %s", len(reviews), l.path)
	return reviews, nil
}

// StaticSeedReviewLoader отдает заранее заданную коллекцию (используется в тестах)
type StaticSeedReviewLoader struct {
	reviews []domain.Review
}

// NewStaticSeedReviewLoader создает загрузчик с фиксированной коллекцией
func NewStaticSeedReviewLoader(reviews []domain.Review) *StaticSeedReviewLoader {
	for i := range reviews {
		reviews[i].IsStatic = true
		reviews[i].CustomerEmail = domain.NormalizeEmail(reviews[i].CustomerEmail)
		if reviews[i].Seq == 0 {
			reviews[i].Seq = -int64(len(reviews) - i)
		}
	}
	return &StaticSeedReviewLoader{reviews: reviews}
}

// Load возвращает фиксированную коллекцию
func (l *StaticSeedReviewLoader) Load() ([]domain.Review, error) {
	reviews := make([]domain.Review, len(l.reviews))
	copy(reviews, l.reviews)
	return reviews, nil
}
