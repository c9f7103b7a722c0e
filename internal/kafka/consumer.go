package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"repair-marketplace/internal/config"
	"repair-marketplace/internal/logger"
	"repair-marketplace/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// EventHandler обрабатывает событие определённого типа
type EventHandler func(ctx context.Context, event *models.Event) error

// Consumer читает события из Kafka в составе группы потребителей
type Consumer struct {
	consumer sarama.ConsumerGroup
	log      *logger.Logger
	handlers map[models.EventType]EventHandler
	topics   []string
	groupID  string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewConsumer создает потребителя, подписанного на топик правил комиссии.
// Каждый экземпляр читает топик в собственной группе, поэтому событие об изменении
// правила получают все экземпляры. Чтение начинается с новых сообщений: правила,
// изменённые до старта, движок загружает сам.
func NewConsumer(cfg *config.KafkaConfig, log *logger.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest

	groupID := instanceGroupID(cfg.GroupID)
	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics:   []string{cfg.Topics.FeeRules},
		groupID:  groupID,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// instanceGroupID возвращает имя группы экземпляра: базовое имя, хост и случайный суффикс.
func instanceGroupID(base string) string {
	suffix := uuid.NewString()[:8]
	if host, err := os.Hostname(); err == nil && host != "" {
		suffix = host + "-" + suffix
	}
	return base + "-" + suffix
}

// NewTestConsumer создает потребителя поверх готовой группы
func NewTestConsumer(group sarama.ConsumerGroup, log *logger.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics:   []string{"fee_rules"},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler регистрирует обработчик для типа события
func (c *Consumer) RegisterHandler(eventType models.EventType, handler EventHandler) {
	c.handlers[eventType] = handler
}

// Handler возвращает обработчик для типа события
func (c *Consumer) Handler(eventType models.EventType) EventHandler {
	return c.handlers[eventType]
}

// HandlerCount возвращает количество зарегистрированных обработчиков
func (c *Consumer) HandlerCount() int {
	return len(c.handlers)
}

// Start запускает чтение сообщений в фоне
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumer.Consume(c.ctx, c.topics, c); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.log.WithError(err).Error("Kafka consume error")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	c.log.WithFields(map[string]interface{}{
		"topics":   c.topics,
		"group_id": c.groupID,
	}).Info("Kafka consumer started")
	return nil
}

// Stop останавливает потребителя и дожидается завершения чтения
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.consumer == nil {
		return nil
	}
	return c.consumer.Close()
}

// Setup вызывается в начале новой сессии группы
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup вызывается по завершении сессии группы
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения партиции
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.processMessage(msg); err != nil {
				c.log.WithError(err).WithFields(map[string]interface{}{
					"topic":     msg.Topic,
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Error("Failed to process message")
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) error {
	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.log.WithField("event_type", string(event.Type)).Debug("No handler for event type")
		return nil
	}

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := handler(ctx, &event); err != nil {
		return fmt.Errorf("handler for %s failed: %w", event.Type, err)
	}
	return nil
}
