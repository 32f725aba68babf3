package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/internal/service"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
	"github.com/Dhoini/Storefront-microservice/pkg/res"
)

// OrderHandler обработчик для заказов
type OrderHandler struct {
	orderSvc service.OrderService
	syncer   service.OrderSyncer
	log      *logger.Logger
}

// NewOrderHandler создает новый обработчик заказов
func NewOrderHandler(orderSvc service.OrderService, syncer service.OrderSyncer, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderSvc: orderSvc,
		syncer:   syncer,
		log:      log,
	}
}

// CreateOrder записывает новую позицию заказа
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req domain.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid order request: %v", err)
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid order request", Details: err.Error()})
		return
	}

	result, err := h.orderSvc.Submit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownProduct) {
			h.log.Warn("Unknown product in order request: %s", req.ProductID)
			c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Unknown product"})
			return
		}

		if errors.Is(err, domain.ErrInvalidInput) {
			h.log.Warn("Invalid order payload: %v", err)
			c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid order data", Details: err.Error()})
			return
		}

		// Заказ записан, но проекция не прошла: клиенту отвечаем успехом,
		// подписку догонит следующий полный проход синхронизации
		if result.Order.ID != 0 {
			h.log.Warn("Order %d recorded but sync failed: %v", result.Order.ID, err)
			c.JSON(http.StatusCreated, gin.H{
				"order":   result.Order,
				"warning": "subscription sync deferred",
			})
			return
		}

		h.log.Error("Failed to create order: %v", err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to create order"})
		return
	}

	h.log.Info("Created order line %d", result.Order.ID)
	c.JSON(http.StatusCreated, result)
}

// GetOrders возвращает леджер заказов, новые первыми
func (h *OrderHandler) GetOrders(c *gin.Context) {
	orders, err := h.orderSvc.GetAll(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to get orders: %v", err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to get orders"})
		return
	}

	h.log.Info("Returned %d orders", len(orders))
	c.JSON(http.StatusOK, orders)
}

// GetOrder возвращает заказ по ID
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.log.Warn("Invalid order ID format: %s", c.Param("id"))
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid order ID format"})
		return
	}

	order, err := h.orderSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.log.Warn("Order not found: %d", id)
			c.JSON(http.StatusNotFound, res.ErrorResponse{Error: "Order not found"})
			return
		}

		h.log.Error("Failed to get order: %v", err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to get order"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// SyncOrders прогоняет весь леджер заказов через проекцию подписок
func (h *OrderHandler) SyncOrders(c *gin.Context) {
	orders, err := h.orderSvc.GetAll(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to load order ledger: %v", err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to load order ledger"})
		return
	}

	result := h.syncer.SyncAll(c.Request.Context(), orders)

	h.log.Info("Ledger sync finished: %d synced, %d reminder sets created, %d errors",
		result.SyncedCount, result.ReminderSetsCreated, len(result.Errors))
	c.JSON(http.StatusOK, result)
}
