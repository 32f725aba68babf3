package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// Publisher публикует полный снапшот объединенного представления отзывов.
// Публикация best-effort: сбой логируется и никогда не влияет на запрос,
// который ее инициировал.
type Publisher interface {
	Publish(reviews []domain.Review) error
}

// FilePublisher пишет снапшот в JSON файл атомарно (temp + rename).
// Файл подхватывается внешним коммиттером.
type FilePublisher struct {
	path  string
	log   *logger.Logger
	mutex sync.Mutex
}

// NewFilePublisher создает новый файловый публикатор снапшотов
func NewFilePublisher(path string, log *logger.Logger) *FilePublisher {
	return &FilePublisher{
		path: path,
		log:  log,
	}
}

type snapshotFile struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Count       int             `json:"count"`
	Reviews     []domain.Review `json:"reviews"`
}

// Publish записывает полный снапшот. Конкурентные публикации сериализуются,
// последняя запись побеждает.
func (p *FilePublisher) Publish(reviews []domain.Review) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	data, err := json.MarshalIndent(snapshotFile{
		GeneratedAt: time.Now(),
		Count:       len(reviews),
		Reviews:     reviews,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal review snapshot: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".reviews-*.json")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), p.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	p.log.Debug("Published review snapshot with %d entries to %s", len(reviews), p.path)
	return nil
}

// NoopPublisher публикатор-заглушка, когда снапшоты не сконфигурированы
type NoopPublisher struct{}

// Publish ничего не делает
func (NoopPublisher) Publish(reviews []domain.Review) error { return nil }
