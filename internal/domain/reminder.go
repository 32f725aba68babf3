package domain

import (
	"fmt"
	"time"
)

// ReminderTypeExpiry тип терминального напоминания об истечении подписки
const ReminderTypeExpiry = "expiry"

// RenewalReminderType возвращает тип напоминания для N оставшихся месяцев
func RenewalReminderType(monthsLeft int) string {
	return fmt.Sprintf("renewal_%dmonths", monthsLeft)
}

// Reminder представляет запланированную контрольную точку продления подписки
type Reminder struct {
	ID             int64     `json:"id"`
	SubscriptionID int64     `json:"subscription_id"`
	ReminderDate   time.Time `json:"reminder_date"`
	ReminderType   string    `json:"reminder_type"`
	IsSent         bool      `json:"is_sent"`
}

// ReminderWithContext напоминание вместе с данными подписки (для админских выборок)
type ReminderWithContext struct {
	Reminder
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
}
