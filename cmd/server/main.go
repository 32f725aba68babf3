package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dhoini/Storefront-microservice/config"
	"github.com/Dhoini/Storefront-microservice/internal/api/rest"
	"github.com/Dhoini/Storefront-microservice/internal/api/rest/handlers"
	"github.com/Dhoini/Storefront-microservice/internal/kafka"
	"github.com/Dhoini/Storefront-microservice/internal/kafka/producer"
	"github.com/Dhoini/Storefront-microservice/internal/metrics"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/internal/repository/postgres"
	"github.com/Dhoini/Storefront-microservice/internal/service"
	"github.com/Dhoini/Storefront-microservice/internal/snapshot"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

var log *logger.Logger

func init() {
	// Загружаем переменные окружения
	if err := godotenv.Load(); err != nil {
		// Пропускаем ошибку, если .env файл не найден
	}

	// Инициализация логгера
	logLevel := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if os.Getenv("DEBUG") == "true" {
		logLevel = logger.DEBUG
	}
	log = logger.New(logLevel)
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	// Создаем контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Prometheus
	promRegistry := prometheus.NewRegistry()
	storeMetrics := metrics.NewStoreMetrics(promRegistry, log)
	systemMetrics := metrics.NewSystemMetrics(promRegistry, log)

	// Запускаем сбор системных метрик
	systemMetrics.StartRecording(15 * time.Second)
	defer systemMetrics.Stop()

	// Хранилища: PostgreSQL, если сконфигурирован, иначе в памяти
	var (
		orderRepo        repository.OrderRepository
		subscriptionRepo repository.SubscriptionRepository
		reminderRepo     repository.ReminderRepository
		reviewRepo       repository.ReviewRepository
	)

	if cfg.Database.Enabled() {
		dbPool, err := postgres.NewConnection(ctx, cfg.Database.GetDSN(), log)
		if err != nil {
			log.Fatal("Failed to connect to database: %v", err)
		}
		defer dbPool.Close()

		if err := postgres.EnsureSchema(ctx, dbPool, log); err != nil {
			log.Fatal("Failed to ensure database schema: %v", err)
		}

		orderRepo = repository.NewPostgresOrderRepository(dbPool, log)
		subscriptionRepo = repository.NewPostgresSubscriptionRepository(dbPool, log)
		reminderRepo = repository.NewPostgresReminderRepository(dbPool, log)
		reviewRepo = repository.NewPostgresReviewRepository(dbPool, log)
	} else {
		log.Warn("Database not configured, using in-memory stores")
		orderRepo = repository.NewInMemoryOrderRepository(log)
		subscriptionRepo = repository.NewInMemorySubscriptionRepository(log)
		reminderRepo = repository.NewInMemoryReminderRepository(log)
		reviewRepo = repository.NewInMemoryReviewRepository(log)
	}

	// Кэш объединенного представления отзывов
	var reviewCache repository.ReviewViewCache = repository.NoopReviewCache{}
	if cfg.Redis.Addr != "" {
		cache, err := repository.NewRedisReviewCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warn("Redis unavailable, review view cache disabled: %v", err)
		} else {
			reviewCache = cache
			defer cache.Close()
		}
	}

	// Продюсер событий витрины
	var events producer.EventProducer = producer.NoopEventProducer{}
	if cfg.Kafka.Enabled() {
		kafkaConfig := kafka.NewConfig(cfg.Kafka.Brokers)
		saramaConfig := kafka.NewSaramaConfig(kafkaConfig, log)

		kafkaProducer, err := sarama.NewSyncProducer(kafkaConfig.Brokers, saramaConfig)
		if err != nil {
			log.Warn("Kafka unavailable, event publishing disabled: %v", err)
		} else {
			events = producer.NewKafkaEventProducer(kafkaProducer, log)
			defer events.Close()
		}
	}

	// Публикатор снапшота отзывов
	var snapshotPublisher snapshot.Publisher = snapshot.NoopPublisher{}
	if cfg.Reviews.SnapshotPath != "" {
		snapshotPublisher = snapshot.NewFilePublisher(cfg.Reviews.SnapshotPath, log)
	}

	seedLoader := repository.NewFileSeedReviewLoader(cfg.Reviews.SeedPath, log)

	// Сервисы
	scheduler := service.NewReminderScheduler(reminderRepo, events, storeMetrics, log)
	syncer := service.NewOrderSyncer(subscriptionRepo, reminderRepo, scheduler, storeMetrics, log)
	orderSvc := service.NewOrderService(orderRepo, syncer, events, storeMetrics, log)
	calendarSvc := service.NewCalendarService(orderRepo, subscriptionRepo, reminderRepo, syncer, log)
	reviewSvc := service.NewReviewService(reviewRepo, subscriptionRepo, seedLoader, reviewCache, snapshotPublisher, events, storeMetrics, log)

	// Установка режима Gin
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Настройка маршрутизатора
	router := rest.SetupRouter(log, promRegistry, rest.Handlers{
		Orders:    handlers.NewOrderHandler(orderSvc, syncer, log),
		Reminders: handlers.NewReminderHandler(calendarSvc, log),
		Reviews:   handlers.NewReviewHandler(reviewSvc, log),
	})

	// Создание и запуск HTTP сервера
	server := rest.NewServer(router, cfg, log)

	// Запуск сервера в горутине
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Останавливаем сервер
	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
