package domain

import (
	"strings"
	"time"
)

// NoOrderKey значение ключа дедупликации для отзывов без внешнего номера заказа.
// Отсутствующий order_id сопоставляется только с таким же отсутствующим,
// никогда не работает как wildcard.
const NoOrderKey = "no_order"

// Review представляет отзыв покупателя
type Review struct {
	ID            string    `json:"id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	ReviewText    string    `json:"review_text"`
	Rating        int       `json:"rating"`
	OrderID       *string   `json:"order_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	IsStatic      bool      `json:"is_static"`
	// Seq порядковый номер вставки, вторичный ключ сортировки при равных created_at
	Seq int64 `json:"seq"`
}

// OrderKey возвращает значение order_id для ключей дедупликации
func (r Review) OrderKey() string {
	return OrderKeyOf(r.OrderID)
}

// OrderKeyOf возвращает значение внешнего номера заказа для ключей дедупликации
func OrderKeyOf(orderID *string) string {
	if orderID == nil || *orderID == "" {
		return NoOrderKey
	}
	return *orderID
}

// NormalizeReviewText нормализует текст отзыва для нечеткого сравнения:
// нижний регистр, схлопнутые пробелы
func NormalizeReviewText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// ReviewRequest представляет запрос на отправку отзыва
type ReviewRequest struct {
	Name    string  `json:"name" binding:"required" validate:"required"`
	Email   string  `json:"email" binding:"required,email" validate:"required,email"`
	Text    string  `json:"text" binding:"required" validate:"required"`
	Rating  int     `json:"rating" binding:"required,min=1,max=5" validate:"required,min=1,max=5"`
	OrderID *string `json:"order_id,omitempty"`
}

// EligibilityRequest представляет запрос проверки права на отзыв
type EligibilityRequest struct {
	Email string `json:"email" binding:"required,email" validate:"required,email"`
}

// Eligibility результат проверки права на отзыв
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}
