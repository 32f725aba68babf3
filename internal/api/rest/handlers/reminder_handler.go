package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/repository"
	"github.com/Dhoini/Storefront-microservice/internal/service"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
	"github.com/Dhoini/Storefront-microservice/pkg/res"
)

// ReminderHandler обработчик админских выборок по напоминаниям
type ReminderHandler struct {
	calendarSvc service.CalendarService
	log         *logger.Logger
}

// NewReminderHandler создает новый обработчик напоминаний
func NewReminderHandler(calendarSvc service.CalendarService, log *logger.Logger) *ReminderHandler {
	return &ReminderHandler{
		calendarSvc: calendarSvc,
		log:         log,
	}
}

// GetRemindersByDay возвращает напоминания на указанные сутки
func (h *ReminderHandler) GetRemindersByDay(c *gin.Context) {
	dateParam := c.Query("date")
	if dateParam == "" {
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "date query parameter is required"})
		return
	}

	day, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		h.log.Warn("Invalid date format: %s", dateParam)
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "date must be in YYYY-MM-DD format"})
		return
	}

	reminders, err := h.calendarSvc.RemindersByDay(c.Request.Context(), day)
	if err != nil {
		h.log.Error("Failed to get reminders for %s: %v", dateParam, err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to get reminders"})
		return
	}

	h.log.Info("Returned %d reminders for %s", len(reminders), dateParam)
	c.JSON(http.StatusOK, reminders)
}

// GetRenewalsCalendar возвращает напоминания, сгруппированные по дням
func (h *ReminderHandler) GetRenewalsCalendar(c *gin.Context) {
	mode := c.DefaultQuery("mode", service.CalendarModeFuture)

	days, err := h.calendarSvc.Calendar(c.Request.Context(), mode)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "mode must be future or past"})
			return
		}

		h.log.Error("Failed to build renewals calendar: %v", err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to build renewals calendar"})
		return
	}

	h.log.Info("Returned renewals calendar with %d days (mode %s)", len(days), mode)
	c.JSON(http.StatusOK, days)
}

// updateReminderDateRequest тело запроса переноса напоминания
type updateReminderDateRequest struct {
	NewDate time.Time `json:"new_date" binding:"required"`
}

// UpdateReminderDate переносит напоминание на новую дату
func (h *ReminderHandler) UpdateReminderDate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid reminder ID format"})
		return
	}

	var req updateReminderDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid reminder date request: %v", err)
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid reminder date request", Details: err.Error()})
		return
	}

	if err := h.calendarSvc.UpdateReminderDate(c.Request.Context(), id, req.NewDate); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, res.ErrorResponse{Error: "Reminder not found"})
			return
		}

		h.log.Error("Failed to update reminder %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to update reminder"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "new_date": req.NewDate})
}

// MarkReminderSent отмечает напоминание как отправленное
func (h *ReminderHandler) MarkReminderSent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid reminder ID format"})
		return
	}

	if err := h.calendarSvc.MarkReminderSent(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, res.ErrorResponse{Error: "Reminder not found"})
			return
		}

		h.log.Error("Failed to mark reminder %d as sent: %v", id, err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to mark reminder as sent"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "is_sent": true})
}
