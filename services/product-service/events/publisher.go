// Package events announces finished imports to other services.
package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	awspkg "github.com/samirvithlani/mayaa-backend/pkg/aws"
	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

// Publisher delivers an ImportFinishedEvent. Delivery is best effort; the
// worker logs failures and moves on.
type Publisher interface {
	PublishImportFinished(ctx context.Context, event models.ImportFinishedEvent) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) PublishImportFinished(context.Context, models.ImportFinishedEvent) error {
	return nil
}

func (NopPublisher) Close() error { return nil }

func attributes(e models.ImportFinishedEvent) map[string]string {
	return map[string]string{
		"event_type": e.EventType,
		"state":      string(e.State),
	}
}

// SNSPublisher fans the event out to an SNS topic.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) PublishImportFinished(ctx context.Context, e models.ImportFinishedEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topicArn, body, attributes(e))
}

func (p *SNSPublisher) Close() error { return nil }

// MessageSender is satisfied by awspkg.SQSSender.
type MessageSender interface {
	SendMessage(ctx context.Context, body string, attributes map[string]string) error
}

// SQSPublisher sends the event to a single SQS queue.
type SQSPublisher struct {
	sender MessageSender
}

func NewSQSPublisher(sender MessageSender) *SQSPublisher {
	return &SQSPublisher{sender: sender}
}

func (p *SQSPublisher) PublishImportFinished(ctx context.Context, e models.ImportFinishedEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.sender.SendMessage(ctx, string(body), attributes(e))
}

func (p *SQSPublisher) Close() error { return nil }

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes the event keyed by job id.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
}

func newKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishImportFinished(ctx context.Context, e models.ImportFinishedEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(e.JobID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		zap.L().Warn("failed to send Kafka message", zap.String("job_id", e.JobID), zap.Error(err))
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
