package events

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/yourorg/institute-portal/internal/models"
)

// Producer publishes durable message-sent events for downstream consumers
// (audit, push notification workers). Chat delivery itself rides the change
// feed, not kafka.
type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Producer{writer: w}
}

func (p *Producer) PublishMessageSent(ctx context.Context, m *models.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(m.RoomID),
		Value: b,
		Time:  m.CreatedAt,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
