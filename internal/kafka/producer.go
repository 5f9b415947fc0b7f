package kafka

import (
	"fmt"
	"time"

	"opspulse/internal/config"
	"opspulse/internal/logger"
	"opspulse/internal/models"
	"opspulse/internal/realtime"

	"github.com/IBM/sarama"
)

// Producer публикует примененные события в журнальный топик
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topic    string
}

// NewProducer создает новый Kafka producer
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Info("Kafka producer created successfully")

	return NewProducerWith(producer, cfg.Topics.Journal, log), nil
}

// NewProducerWith создает журнал поверх готового SyncProducer
func NewProducerWith(producer sarama.SyncProducer, topic string, log *logger.Logger) *Producer {
	return &Producer{producer: producer, log: log, topic: topic}
}

// Close закрывает producer
func (p *Producer) Close() error {
	return p.producer.Close()
}

// Publish записывает событие в журнал в том же формате, что и канал
func (p *Producer) Publish(event *models.Event) error {
	data, err := realtime.Encode(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(event.Type),
			},
			{
				Key:   []byte("timestamp"),
				Value: []byte(event.Timestamp.Format(time.RFC3339)),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", p.topic, err)
	}

	p.log.WithField("topic", p.topic).
		WithField("partition", partition).
		WithField("offset", offset).
		WithField("event_type", event.Type).
		WithField("event_id", event.ID).
		Debug("Event journaled")

	return nil
}
