package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события в Kafka
type EventType string

const (
	EventTypeFeeRuleChanged EventType = "fee_rule.changed"
	EventTypeQuotePriced    EventType = "quote.priced"
)

// Event представляет событие, публикуемое в Kafka
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// FeeRuleAction описывает действие над правилом комиссии.
type FeeRuleAction string

const (
	FeeRuleActionCreated FeeRuleAction = "created"
	FeeRuleActionUpdated FeeRuleAction = "updated"
	FeeRuleActionDeleted FeeRuleAction = "deleted"
)

// FeeRuleChangedData данные события изменения правила
type FeeRuleChangedData struct {
	RuleID uuid.UUID     `json:"rule_id"`
	Action FeeRuleAction `json:"action"`
}

// QuotePricedData данные события расчёта сметы
type QuotePricedData struct {
	ServiceType        string           `json:"service_type"`
	ProviderType       ProviderCategory `json:"provider_type"`
	Subtotal           float64          `json:"subtotal"`
	PlatformFeePercent float64          `json:"platform_fee_percent"`
	PlatformFeeAmount  float64          `json:"platform_fee_amount"`
	CustomerTotal      float64          `json:"customer_total"`
	AppliedRuleName    string           `json:"applied_rule"`
	RuleID             *uuid.UUID       `json:"rule_id,omitempty"`
}
