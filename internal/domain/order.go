package domain

import (
	"strings"
	"time"
)

// Order представляет одну позицию покупки (неизменяемая запись леджера)
type Order struct {
	ID                 int64     `json:"id"`
	CustomerName       string    `json:"customer_name"`
	CustomerEmail      string    `json:"customer_email"`
	ProductID          string    `json:"product_id"`
	ProductName        string    `json:"product_name"`
	SubscriptionMonths int       `json:"subscription_months"`
	PurchaseDate       time.Time `json:"purchase_date"`
	OrderID            *string   `json:"order_id,omitempty"` // Внешний номер заказа, не уникален
	Amount             float64   `json:"amount"`
	IsActive           bool      `json:"is_active"`
}

// OrderRequest представляет запрос на создание заказа
type OrderRequest struct {
	CustomerName  string  `json:"customer_name" binding:"required" validate:"required"`
	CustomerEmail string  `json:"customer_email" binding:"required,email" validate:"required,email"`
	ProductID     string  `json:"product_id" binding:"required" validate:"required"`
	Months        int     `json:"months" binding:"required,min=1" validate:"required,min=1"`
	OrderID       *string `json:"order_id,omitempty"`
	Amount        float64 `json:"amount" binding:"min=0" validate:"min=0"`
}

// NormalizeEmail приводит email к каноническому виду (нижний регистр, без пробелов)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
