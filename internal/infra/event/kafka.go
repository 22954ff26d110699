package event

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TopicOrderEvents = "order.events"

	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

type OrderStatusChangedPayload struct {
	OrderID     int64             `json:"order_id"`
	From        model.OrderStatus `json:"from"`
	To          model.OrderStatus `json:"to"`
	ActorUserID int64             `json:"actor_user_id"`
	ActorRole   model.Role        `json:"actor_role"`
}

// 注文イベントをKafkaへ流す。通知・分析側が購読する。
type KafkaOrderEventPublisher struct {
	w       *kafka.Writer
	service string
}

func NewKafkaOrderEventPublisher(brokers []string, service string) *KafkaOrderEventPublisher {
	return &KafkaOrderEventPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        TopicOrderEvents,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		service: service,
	}
}

func (p *KafkaOrderEventPublisher) PublishStatusChanged(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, actorUserID int64, actorRole model.Role) error {
	raw, err := json.Marshal(OrderStatusChangedPayload{
		OrderID:     orderID,
		From:        from,
		To:          to,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
	})
	if err != nil {
		return err
	}

	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  EventOrderStatusChanged,
		OccurredAt: time.Now(),
		Producer:   p.service,
		Payload:    raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}

	//注文IDをキーにして同一注文の順序を保つ
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(orderID, 10)),
		Value: value,
		Time:  env.OccurredAt,
	})
}

func (p *KafkaOrderEventPublisher) Close() error {
	return p.w.Close()
}
