package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"repair-marketplace/internal/config"
	"repair-marketplace/internal/logger"
	"repair-marketplace/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера Kafka
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishFeeRuleChanged публикует событие изменения правила комиссии
func (p *Producer) PublishFeeRuleChanged(ruleID uuid.UUID, action models.FeeRuleAction) error {
	data := models.FeeRuleChangedData{
		RuleID: ruleID,
		Action: action,
	}
	event, err := newEvent(models.EventTypeFeeRuleChanged, data)
	if err != nil {
		return err
	}
	return p.publishEvent(p.topics.FeeRules, event)
}

// PublishQuotePriced публикует событие расчёта сметы
func (p *Producer) PublishQuotePriced(quote *models.PricedQuote) error {
	data := models.QuotePricedData{
		ServiceType:        quote.ServiceType,
		ProviderType:       quote.ProviderType,
		Subtotal:           quote.Subtotal,
		PlatformFeePercent: quote.Fee.PlatformFeePercent,
		PlatformFeeAmount:  quote.Fee.PlatformFeeAmount,
		CustomerTotal:      quote.Fee.CustomerTotal,
		AppliedRuleName:    quote.Fee.AppliedRuleName,
		RuleID:             quote.Fee.RuleID,
	}
	event, err := newEvent(models.EventTypeQuotePriced, data)
	if err != nil {
		return err
	}
	return p.publishEvent(p.topics.Quotes, event)
}

func newEvent(eventType models.EventType, data interface{}) (models.Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      payload,
	}, nil
}

func (p *Producer) publishEvent(topic string, event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.ID.String()),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.WithError(err).WithFields(map[string]interface{}{
			"topic":      topic,
			"event_type": string(event.Type),
		}).Error("Failed to publish event")
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":      topic,
		"event_type": string(event.Type),
		"event_id":   event.ID.String(),
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}
