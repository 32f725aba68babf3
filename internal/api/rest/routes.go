package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dhoini/Storefront-microservice/internal/api/rest/handlers"
	"github.com/Dhoini/Storefront-microservice/internal/api/rest/middleware"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

// Handlers обработчики, подключаемые к маршрутизатору
type Handlers struct {
	Orders    *handlers.OrderHandler
	Reminders *handlers.ReminderHandler
	Reviews   *handlers.ReviewHandler
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(log *logger.Logger, registry *prometheus.Registry, h Handlers) *gin.Engine {
	r := gin.New()

	// Подключение middleware
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		// Заказы
		orders := v1.Group("/orders")
		{
			orders.GET("", h.Orders.GetOrders)
			orders.GET("/:id", h.Orders.GetOrder)
			orders.POST("", h.Orders.CreateOrder)
			orders.POST("/sync", h.Orders.SyncOrders)
		}

		// Напоминания и календарь продлений
		reminders := v1.Group("/reminders")
		{
			reminders.GET("", h.Reminders.GetRemindersByDay)
			reminders.PUT("/:id/date", h.Reminders.UpdateReminderDate)
			reminders.PUT("/:id/sent", h.Reminders.MarkReminderSent)
		}
		v1.GET("/renewals/calendar", h.Reminders.GetRenewalsCalendar)

		// Отзывы
		reviews := v1.Group("/reviews")
		{
			reviews.GET("", h.Reviews.GetReviews)
			reviews.POST("", h.Reviews.CreateReview)
			reviews.POST("/eligibility", h.Reviews.CheckEligibility)
		}
	}

	return r
}
