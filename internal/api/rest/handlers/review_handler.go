package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/internal/service"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
	"github.com/Dhoini/Storefront-microservice/pkg/res"
)

// ReviewHandler обработчик для отзывов
type ReviewHandler struct {
	reviewSvc service.ReviewService
	log       *logger.Logger
}

// NewReviewHandler создает новый обработчик отзывов
func NewReviewHandler(reviewSvc service.ReviewService, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviewSvc: reviewSvc,
		log:       log,
	}
}

// GetReviews возвращает объединенное представление отзывов, новые первыми
func (h *ReviewHandler) GetReviews(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid limit parameter"})
		return
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid offset parameter"})
		return
	}

	reviews, total, err := h.reviewSvc.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error("Failed to get reviews: %v", err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to get reviews"})
		return
	}

	h.log.Info("Returned %d of %d reviews", len(reviews), total)
	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"total":   total,
	})
}

// CheckEligibility проверяет право покупателя на отзыв
func (h *ReviewHandler) CheckEligibility(c *gin.Context) {
	var req domain.EligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid eligibility request: %v", err)
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid eligibility request", Details: err.Error()})
		return
	}

	eligibility, err := h.reviewSvc.CanReview(c.Request.Context(), req.Email)
	if err != nil {
		h.log.Error("Failed to check review eligibility: %v", err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to check eligibility"})
		return
	}

	c.JSON(http.StatusOK, eligibility)
}

// CreateReview принимает новый отзыв
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	var req domain.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid review request: %v", err)
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid review request", Details: err.Error()})
		return
	}

	review, err := h.reviewSvc.Submit(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			h.log.Warn("Invalid review payload: %v", err)
			c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "Invalid review data", Details: err.Error()})
		case errors.Is(err, domain.ErrNotEligible):
			h.log.Warn("Review rejected, no eligible order for %s", req.Email)
			c.JSON(http.StatusForbidden, res.ErrorResponse{Error: "No completed order found for this email"})
		case errors.Is(err, domain.ErrAlreadyReviewed):
			h.log.Warn("Review rejected, order already reviewed by %s", req.Email)
			c.JSON(http.StatusConflict, res.ErrorResponse{Error: "Latest order has already been reviewed"})
		default:
			h.log.Error("Failed to create review: %v", err)
			c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "Failed to create review"})
		}
		return
	}

	h.log.Info("Created review %s", review.ID)
	c.JSON(http.StatusCreated, review)
}
