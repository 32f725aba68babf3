package domain

import "time"

// Subscription представляет операционную проекцию одной позиции заказа.
// Инвариант: не более одной подписки на позицию заказа (source_order_line_id уникален).
type Subscription struct {
	ID                 int64     `json:"id"`
	SourceOrderLineID  int64     `json:"source_order_line_id"`
	CustomerName       string    `json:"customer_name"`
	CustomerEmail      string    `json:"customer_email"`
	ProductID          string    `json:"product_id"`
	ProductName        string    `json:"product_name"`
	SubscriptionMonths int       `json:"subscription_months"`
	PurchaseDate       time.Time `json:"purchase_date"`
	OrderID            *string   `json:"order_id,omitempty"`
	Amount             float64   `json:"amount"`
	IsActive           bool      `json:"is_active"`
}

// FromOrder строит подписку из позиции заказа
func FromOrder(order Order) Subscription {
	return Subscription{
		SourceOrderLineID:  order.ID,
		CustomerName:       order.CustomerName,
		CustomerEmail:      NormalizeEmail(order.CustomerEmail),
		ProductID:          order.ProductID,
		ProductName:        order.ProductName,
		SubscriptionMonths: order.SubscriptionMonths,
		PurchaseDate:       order.PurchaseDate,
		OrderID:            order.OrderID,
		Amount:             order.Amount,
		IsActive:           order.IsActive,
	}
}

// SyncResult результат идемпотентной синхронизации заказа в подписку
type SyncResult struct {
	SubscriptionID int64 `json:"subscription_id"`
	Created        bool  `json:"created"`
}

// BatchSyncResult результат пакетной синхронизации леджера заказов
type BatchSyncResult struct {
	SyncedCount         int      `json:"synced_count"`
	ReminderSetsCreated int      `json:"reminder_sets_created"`
	Errors              []string `json:"errors,omitempty"`
}
