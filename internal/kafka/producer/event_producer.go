package producer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/Dhoini/Storefront-microservice/internal/domain"
	"github.com/Dhoini/Storefront-microservice/pkg/logger"
)

const (
	TopicOrderCreated     = "storefront.order.created"
	TopicReviewSubmitted  = "storefront.review.submitted"
	TopicRemindersPlanned = "storefront.reminders.planned"
)

// OrderEvent представляет событие записи заказа для Kafka
type OrderEvent struct {
	ID            int64     `json:"id"`
	CustomerEmail string    `json:"customer_email"`
	ProductID     string    `json:"product_id"`
	Months        int       `json:"months"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReviewEvent представляет событие принятого отзыва для Kafka
type ReviewEvent struct {
	ID            string    `json:"id"`
	CustomerEmail string    `json:"customer_email"`
	Rating        int       `json:"rating"`
	OrderID       *string   `json:"order_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReminderBatchEvent представляет событие сгенерированного пакета напоминаний
type ReminderBatchEvent struct {
	SubscriptionID int64     `json:"subscription_id"`
	Count          int       `json:"count"`
	Types          []string  `json:"types"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventProducer интерфейс для отправки событий витрины.
// Отправка всегда best-effort: сбой логируется вызывающей стороной и
// не влияет на результат операции.
type EventProducer interface {
	PublishOrderCreated(order domain.Order) error
	PublishReviewSubmitted(review domain.Review) error
	PublishRemindersPlanned(subscriptionID int64, reminders []domain.Reminder) error
	Close() error
}

type kafkaEventProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewKafkaEventProducer создает новый продюсер событий витрины
func NewKafkaEventProducer(producer sarama.SyncProducer, log *logger.Logger) EventProducer {
	return &kafkaEventProducer{
		producer: producer,
		log:      log,
	}
}

// PublishOrderCreated публикует событие о записанном заказе
func (p *kafkaEventProducer) PublishOrderCreated(order domain.Order) error {
	event := OrderEvent{
		ID:            order.ID,
		CustomerEmail: order.CustomerEmail,
		ProductID:     order.ProductID,
		Months:        order.SubscriptionMonths,
		Amount:        order.Amount,
		Timestamp:     time.Now(),
	}
	return p.publish(TopicOrderCreated, strconv.FormatInt(order.ID, 10), event)
}

// PublishReviewSubmitted публикует событие о принятом отзыве
func (p *kafkaEventProducer) PublishReviewSubmitted(review domain.Review) error {
	event := ReviewEvent{
		ID:            review.ID,
		CustomerEmail: review.CustomerEmail,
		Rating:        review.Rating,
		OrderID:       review.OrderID,
		Timestamp:     time.Now(),
	}
	return p.publish(TopicReviewSubmitted, review.ID, event)
}

// PublishRemindersPlanned публикует событие о сгенерированном пакете напоминаний
func (p *kafkaEventProducer) PublishRemindersPlanned(subscriptionID int64, reminders []domain.Reminder) error {
	types := make([]string, 0, len(reminders))
	for _, reminder := range reminders {
		types = append(types, reminder.ReminderType)
	}

	event := ReminderBatchEvent{
		SubscriptionID: subscriptionID,
		Count:          len(reminders),
		Types:          types,
		Timestamp:      time.Now(),
	}
	return p.publish(TopicRemindersPlanned, strconv.FormatInt(subscriptionID, 10), event)
}

// publish сериализует событие и отправляет его в указанный топик
func (p *kafkaEventProducer) publish(topic, key string, event any) error {
	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(topic),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.log.Info("Published event to topic %s: partition=%d offset=%d", topic, partition, offset)
	return nil
}

// Close закрывает продюсер
func (p *kafkaEventProducer) Close() error {
	return p.producer.Close()
}

// NoopEventProducer продюсер-заглушка, когда Kafka не сконфигурирована
type NoopEventProducer struct{}

func (NoopEventProducer) PublishOrderCreated(order domain.Order) error       { return nil }
func (NoopEventProducer) PublishReviewSubmitted(review domain.Review) error  { return nil }
func (NoopEventProducer) PublishRemindersPlanned(subscriptionID int64, reminders []domain.Reminder) error {
	return nil
}
func (NoopEventProducer) Close() error { return nil }
