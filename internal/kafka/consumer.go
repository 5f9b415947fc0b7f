package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opspulse/internal/config"
	"opspulse/internal/logger"

	"github.com/IBM/sarama"
)

// Consumer читает события бэкенда из топика Kafka и служит источником канала реального времени
type Consumer struct {
	group  sarama.ConsumerGroup
	log    *logger.Logger
	topics []string

	emit      func([]byte)
	onConnect func()
}

// NewConsumer создает новый Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, log *logger.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	// Дашборду нужны только новые события, история приходит полной загрузкой
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Group.Session.Timeout = 10 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 3 * time.Second

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	log.Info("Kafka consumer created successfully")

	return &Consumer{
		group:  group,
		log:    log,
		topics: []string{cfg.Topics.Events},
	}, nil
}

// OnConnect задает функцию, вызываемую после получения партиций
func (c *Consumer) OnConnect(fn func()) { c.onConnect = fn }

// Run читает сообщения до отмены ctx или закрытия группы
func (c *Consumer) Run(ctx context.Context, emit func([]byte)) error {
	c.emit = emit
	defer c.group.Close()

	c.log.WithField("topics", c.topics).Info("Kafka consumer started")

	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("error consuming messages: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Setup реализует интерфейс sarama.ConsumerGroupHandler
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	if c.onConnect != nil {
		c.onConnect()
	}
	return nil
}

// Cleanup реализует интерфейс sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim реализует интерфейс sarama.ConsumerGroupHandler
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			c.log.WithField("topic", message.Topic).
				WithField("partition", message.Partition).
				WithField("offset", message.Offset).
				Debug("Event received")

			c.emit(message.Value)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
