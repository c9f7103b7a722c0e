package models

import (
	"time"

	"github.com/google/uuid"
)

// FeeRuleType описывает стратегию расчёта комиссии платформы.
type FeeRuleType string

const (
	FeeRuleTypeFlat         FeeRuleType = "flat"
	FeeRuleTypePercentage   FeeRuleType = "percentage"
	FeeRuleTypeTiered       FeeRuleType = "tiered"
	FeeRuleTypeServiceBased FeeRuleType = "service_based"
)

// Valid сообщает, известен ли тип правила.
func (t FeeRuleType) Valid() bool {
	switch t {
	case FeeRuleTypeFlat, FeeRuleTypePercentage, FeeRuleTypeTiered, FeeRuleTypeServiceBased:
		return true
	}
	return false
}

// ProviderCategory описывает категорию исполнителя, к которой относится правило.
type ProviderCategory string

const (
	ProviderCategoryAll         ProviderCategory = "all"
	ProviderCategoryWorkshop    ProviderCategory = "workshop"
	ProviderCategoryIndependent ProviderCategory = "independent"
	ProviderCategoryMobile      ProviderCategory = "mobile"
)

// Valid сообщает, допустима ли категория в правиле (включая "all").
func (c ProviderCategory) Valid() bool {
	return c == ProviderCategoryAll || c.IsProvider()
}

// IsProvider сообщает, является ли категория конкретным типом исполнителя.
func (c ProviderCategory) IsProvider() bool {
	switch c {
	case ProviderCategoryWorkshop, ProviderCategoryIndependent, ProviderCategoryMobile:
		return true
	}
	return false
}

// FeeTier представляет ступень тарифной шкалы. MaxValue == nil означает ступень без верхней границы.
type FeeTier struct {
	MaxValue   *float64 `json:"max_value"`
	FeePercent float64  `json:"fee_percent"`
}

// FeeRule представляет правило расчёта комиссии платформы.
type FeeRule struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	Name              string           `json:"rule_name" db:"rule_name"`
	Description       string           `json:"description,omitempty" db:"description"`
	Type              FeeRuleType      `json:"rule_type" db:"rule_type"`
	AppliesTo         ProviderCategory `json:"applies_to" db:"applies_to"`
	MinJobValue       *float64         `json:"min_job_value,omitempty" db:"min_job_value"`
	MaxJobValue       *float64         `json:"max_job_value,omitempty" db:"max_job_value"`
	ServiceCategories []string         `json:"service_categories,omitempty" db:"service_categories"`
	FeePercentage     *float64         `json:"fee_percentage,omitempty" db:"fee_percentage"`
	FlatFee           *float64         `json:"flat_fee,omitempty" db:"flat_fee"`
	Tiers             []FeeTier        `json:"tiers,omitempty" db:"tiers"`
	Priority          int              `json:"priority" db:"priority"`
	Active            bool             `json:"is_active" db:"is_active"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// FeeRuleRequest описывает запрос на создание или обновление правила.
type FeeRuleRequest struct {
	Name              string           `json:"rule_name"`
	Description       string           `json:"description,omitempty"`
	Type              FeeRuleType      `json:"rule_type"`
	AppliesTo         ProviderCategory `json:"applies_to"`
	MinJobValue       *float64         `json:"min_job_value,omitempty"`
	MaxJobValue       *float64         `json:"max_job_value,omitempty"`
	ServiceCategories []string         `json:"service_categories,omitempty"`
	FeePercentage     *float64         `json:"fee_percentage,omitempty"`
	FlatFee           *float64         `json:"flat_fee,omitempty"`
	Tiers             []FeeTier        `json:"tiers,omitempty"`
	Priority          int              `json:"priority"`
	Active            bool             `json:"is_active"`
}

// FeeCalculationInput описывает входные данные расчёта комиссии.
type FeeCalculationInput struct {
	Subtotal     float64          `json:"subtotal"`
	ServiceType  string           `json:"service_type"`
	ProviderType ProviderCategory `json:"provider_type"`
	LineItems    []LineItem       `json:"line_items,omitempty"`
}

// FeeCalculationResult описывает итог расчёта комиссии.
type FeeCalculationResult struct {
	PlatformFeePercent float64    `json:"platform_fee_percent"`
	PlatformFeeAmount  float64    `json:"platform_fee_amount"`
	CustomerTotal      float64    `json:"customer_total"`
	ProviderReceives   float64    `json:"provider_receives"`
	AppliedRuleName    string     `json:"applied_rule"`
	RuleID             *uuid.UUID `json:"rule_id,omitempty"`
}

// FeeSimulation объединяет входные данные сценария и результат расчёта.
type FeeSimulation struct {
	Input  FeeCalculationInput  `json:"input"`
	Result FeeCalculationResult `json:"result"`
	Error  string               `json:"error,omitempty"`
}
