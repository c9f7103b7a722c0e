package services

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"repair-marketplace/internal/apperror"
	"repair-marketplace/internal/logger"
	"repair-marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultFeePercent ставка, применяемая когда ни одно правило не подошло.
	DefaultFeePercent = 12.0
	// DefaultFeeRuleName имя, под которым в результате отображается ставка по умолчанию.
	DefaultFeeRuleName = "Default (12%)"
)

// FeeEngine рассчитывает комиссию платформы по набору правил.
// Набор правил фиксируется при создании и не меняется, поэтому движок можно
// использовать из нескольких горутин без блокировок.
type FeeEngine struct {
	rules  []models.FeeRule
	policy ServiceFeePolicy
	log    *logger.Logger
}

// NewFeeEngine создаёт движок из правил: неактивные отбрасываются, остальные
// сортируются по убыванию приоритета с сохранением исходного порядка при равенстве.
func NewFeeEngine(rules []models.FeeRule, policy ServiceFeePolicy, log *logger.Logger) *FeeEngine {
	if log == nil {
		log = logger.Nop()
	}

	active := make([]models.FeeRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if err := ValidateFeeRule(&rule); err != nil {
			log.WithError(err).WithFields(map[string]interface{}{
				"rule_id":   rule.ID.String(),
				"rule_name": rule.Name,
			}).Warn("Fee rule is misconfigured")
		}
		active = append(active, cloneFeeRule(rule))
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	return &FeeEngine{
		rules:  active,
		policy: policy.clone(),
		log:    log,
	}
}

// Rules возвращает копию активных правил в порядке проверки.
func (e *FeeEngine) Rules() []models.FeeRule {
	out := make([]models.FeeRule, len(e.rules))
	for i, rule := range e.rules {
		out[i] = cloneFeeRule(rule)
	}
	return out
}

// CalculateFee рассчитывает комиссию для сметы.
func (e *FeeEngine) CalculateFee(input models.FeeCalculationInput) (models.FeeCalculationResult, error) {
	if err := validateCalculationInput(input); err != nil {
		return models.FeeCalculationResult{}, err
	}

	rule := MatchFeeRule(e.rules, input)
	if rule == nil {
		return DefaultFee(input.Subtotal), nil
	}
	return e.resolve(rule, input), nil
}

// Simulate рассчитывает комиссию для набора сценариев.
func (e *FeeEngine) Simulate(inputs []models.FeeCalculationInput) []models.FeeSimulation {
	out := make([]models.FeeSimulation, 0, len(inputs))
	for _, input := range inputs {
		sim := models.FeeSimulation{Input: input}
		result, err := e.CalculateFee(input)
		if err != nil {
			sim.Error = err.Error()
		} else {
			sim.Result = result
		}
		out = append(out, sim)
	}
	return out
}

// MatchFeeRule возвращает первое подходящее правило из отсортированного списка или nil.
func MatchFeeRule(rules []models.FeeRule, input models.FeeCalculationInput) *models.FeeRule {
	for i := range rules {
		if feeRuleMatches(&rules[i], input) {
			return &rules[i]
		}
	}
	return nil
}

func feeRuleMatches(rule *models.FeeRule, input models.FeeCalculationInput) bool {
	if rule.AppliesTo != models.ProviderCategoryAll && rule.AppliesTo != input.ProviderType {
		return false
	}
	if rule.MinJobValue != nil && input.Subtotal < *rule.MinJobValue {
		return false
	}
	if rule.MaxJobValue != nil && input.Subtotal > *rule.MaxJobValue {
		return false
	}
	if len(rule.ServiceCategories) > 0 && !slices.Contains(rule.ServiceCategories, input.ServiceType) {
		return false
	}
	return true
}

// DefaultFee возвращает расчёт по ставке по умолчанию (12%).
func DefaultFee(subtotal float64) models.FeeCalculationResult {
	return assembleResult(subtotal, DefaultFeePercent, percentOf(subtotal, DefaultFeePercent), DefaultFeeRuleName, nil)
}

func (e *FeeEngine) resolve(rule *models.FeeRule, input models.FeeCalculationInput) models.FeeCalculationResult {
	subtotal := input.Subtotal
	ruleID := rule.ID

	switch rule.Type {
	case models.FeeRuleTypeFlat:
		if subtotal == 0 {
			return assembleResult(subtotal, 0, decimal.Zero, rule.Name, &ruleID)
		}
		amount := decimal.Zero
		if rule.FlatFee != nil {
			amount = toDecimal(*rule.FlatFee).Round(2)
		}
		percent := amount.Div(toDecimal(subtotal)).Mul(hundred).Round(2).InexactFloat64()
		return assembleResult(subtotal, percent, amount, rule.Name, &ruleID)

	case models.FeeRuleTypePercentage:
		percent := feePercentOrDefault(rule)
		return assembleResult(subtotal, percent, percentOf(subtotal, percent), rule.Name, &ruleID)

	case models.FeeRuleTypeTiered:
		if len(rule.Tiers) == 0 {
			e.warnRule(rule, "Tiered fee rule has no tiers, using default fee")
			return DefaultFee(subtotal)
		}
		tier, ok := selectTier(rule.Tiers, subtotal)
		if !ok {
			e.warnRule(rule, "Tiered fee rule has no tier for subtotal, using default fee")
			return DefaultFee(subtotal)
		}
		name := fmt.Sprintf("%s (Tier: %s)", rule.Name, tierLabel(tier))
		return assembleResult(subtotal, tier.FeePercent, percentOf(subtotal, tier.FeePercent), name, &ruleID)

	case models.FeeRuleTypeServiceBased:
		percent := e.policy.Adjust(input.ServiceType, subtotal, feePercentOrDefault(rule))
		name := fmt.Sprintf("%s (%s)", rule.Name, input.ServiceType)
		return assembleResult(subtotal, percent, percentOf(subtotal, percent), name, &ruleID)
	}

	e.warnRule(rule, "Unknown fee rule type, using default fee")
	return DefaultFee(subtotal)
}

func (e *FeeEngine) warnRule(rule *models.FeeRule, msg string) {
	e.log.WithFields(map[string]interface{}{
		"rule_id":   rule.ID.String(),
		"rule_name": rule.Name,
		"rule_type": string(rule.Type),
	}).Warn(msg)
}

// assembleResult формирует итог: сумма клиенту и выплата исполнителю округляются здесь.
func assembleResult(subtotal, percent float64, amount decimal.Decimal, name string, ruleID *uuid.UUID) models.FeeCalculationResult {
	sub := toDecimal(subtotal)
	fee := amount.Round(2)

	return models.FeeCalculationResult{
		PlatformFeePercent: percent,
		PlatformFeeAmount:  fee.InexactFloat64(),
		CustomerTotal:      sub.Add(fee).Round(2).InexactFloat64(),
		ProviderReceives:   sub.Round(2).InexactFloat64(),
		AppliedRuleName:    name,
		RuleID:             ruleID,
	}
}

func selectTier(tiers []models.FeeTier, subtotal float64) (models.FeeTier, bool) {
	for _, tier := range tiers {
		if tier.MaxValue == nil || subtotal <= *tier.MaxValue {
			return tier, true
		}
	}
	return models.FeeTier{}, false
}

func tierLabel(tier models.FeeTier) string {
	if tier.MaxValue == nil {
		return "unbounded"
	}
	return "$" + formatAmount(*tier.MaxValue)
}

func feePercentOrDefault(rule *models.FeeRule) float64 {
	if rule.FeePercentage == nil {
		return DefaultFeePercent
	}
	return *rule.FeePercentage
}

func validateCalculationInput(input models.FeeCalculationInput) error {
	if math.IsNaN(input.Subtotal) || math.IsInf(input.Subtotal, 0) {
		return apperror.Validation("subtotal must be a finite number", nil)
	}
	if input.Subtotal < 0 {
		return apperror.Validation("subtotal must be non-negative", nil)
	}
	if !input.ProviderType.IsProvider() {
		return apperror.Validationf("invalid provider_type %q", input.ProviderType)
	}
	return nil
}

func cloneFeeRule(rule models.FeeRule) models.FeeRule {
	rule.MinJobValue = cloneFloat(rule.MinJobValue)
	rule.MaxJobValue = cloneFloat(rule.MaxJobValue)
	rule.FeePercentage = cloneFloat(rule.FeePercentage)
	rule.FlatFee = cloneFloat(rule.FlatFee)
	rule.ServiceCategories = slices.Clone(rule.ServiceCategories)
	if rule.Tiers != nil {
		tiers := make([]models.FeeTier, len(rule.Tiers))
		for i, tier := range rule.Tiers {
			tiers[i] = models.FeeTier{MaxValue: cloneFloat(tier.MaxValue), FeePercent: tier.FeePercent}
		}
		rule.Tiers = tiers
	}
	return rule
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
