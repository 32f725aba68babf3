package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/kafka/producer"
	"github.com/Dhoini/Storefront-microservice/internal/metrics"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
	"github.com/Dhoini/Storefront-microservice/pkg/req"
)

// OrderResult результат приема заказа
type OrderResult struct {
	Order domain.Order      `json:"order"`
	Sync  domain.SyncResult `json:"sync"`
}

// OrderService интерфейс приема заказов
type OrderService interface {
	// Submit записывает позицию заказа в леджер и сразу проецирует ее в
	// подписку с пакетом напоминаний
	Submit(ctx context.Context, req domain.OrderRequest) (OrderResult, error)
	// GetAll возвращает леджер заказов, новые первыми
	GetAll(ctx context.Context) ([]domain.Order, error)
	// GetByID возвращает заказ по внутреннему id
	GetByID(ctx context.Context, id int64) (domain.Order, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
	syncer    OrderSyncer
	events    producer.EventProducer
	metrics   metrics.StoreMetrics
	log       *logger.Logger
}

// NewOrderService создает новый сервис заказов
func NewOrderService(
	orderRepo repository.OrderRepository,
	syncer OrderSyncer,
	events producer.EventProducer,
	storeMetrics metrics.StoreMetrics,
	log *logger.Logger,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		syncer:    syncer,
		events:    events,
		metrics:   storeMetrics,
		log:       log,
	}
}

// Submit записывает заказ и сразу синхронизирует подписку
func (s *orderService) Submit(ctx context.Context, request domain.OrderRequest) (OrderResult, error) {
	if err := req.IsValid(request); err != nil {
		s.log.Warn("Rejected invalid order request: %v", err)
		return OrderResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	product, known := domain.ProductByID(request.ProductID)
	if !known {
		s.log.Warn("Rejected order for unknown product %q", request.ProductID)
		return OrderResult{}, domain.ErrUnknownProduct
	}

	months := request.Months
	if months <= 0 {
		months = 1
	}

	order := domain.Order{
		CustomerName:       request.CustomerName,
		CustomerEmail:      domain.NormalizeEmail(request.CustomerEmail),
		ProductID:          product.ID,
		ProductName:        product.Name,
		SubscriptionMonths: months,
		PurchaseDate:       time.Now(),
		OrderID:            request.OrderID,
		Amount:             request.Amount,
		IsActive:           true,
	}

	created, err := s.orderRepo.Create(ctx, order)
	if err != nil {
		s.log.Error("Failed to record order for %s: %v", order.CustomerEmail, err)
		return OrderResult{}, err
	}

	s.metrics.IncOrderCreated(created.ProductID)
	s.log.Info("Recorded order line %d (%s, %d months) for %s",
		created.ID, created.ProductID, created.SubscriptionMonths, created.CustomerEmail)

	if err := s.events.PublishOrderCreated(created); err != nil {
		s.log.Warn("Failed to publish order event for line %d: %v", created.ID, err)
	}

	// Заказ уже в леджере; сбой проекции не откатывает его, подписку
	// догонит следующий полный проход синхронизации
	syncResult, err := s.syncer.Sync(ctx, created)
	if err != nil {
		s.log.Error("Failed to sync subscription for order line %d: %v", created.ID, err)
		return OrderResult{Order: created, Sync: syncResult}, err
	}

	return OrderResult{Order: created, Sync: syncResult}, nil
}

// GetAll возвращает леджер заказов, новые первыми
func (s *orderService) GetAll(ctx context.Context) ([]domain.Order, error) {
	return s.orderRepo.GetAll(ctx)
}

// GetByID возвращает заказ по внутреннему id
func (s *orderService) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}
