package services

import (
	"fmt"
	"strings"

	"repair-marketplace/internal/models"

	"github.com/shopspring/decimal"
)

// maxStoredAmount наибольшее значение колонки NUMERIC(12, 2).
const maxStoredAmount = 9_999_999_999.99

// ValidateFeeRule проверяет согласованность правила комиссии.
func ValidateFeeRule(rule *models.FeeRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("rule_name is required")
	}
	if !rule.Type.Valid() {
		return fmt.Errorf("invalid rule_type %q", rule.Type)
	}
	if !rule.AppliesTo.Valid() {
		return fmt.Errorf("invalid applies_to %q", rule.AppliesTo)
	}

	if err := storedAmount("min_job_value", rule.MinJobValue); err != nil {
		return err
	}
	if err := storedAmount("max_job_value", rule.MaxJobValue); err != nil {
		return err
	}
	if rule.MinJobValue != nil && rule.MaxJobValue != nil && *rule.MinJobValue > *rule.MaxJobValue {
		return fmt.Errorf("min_job_value must not exceed max_job_value")
	}
	if rule.FeePercentage != nil {
		if !validPercent(*rule.FeePercentage) {
			return fmt.Errorf("fee_percentage must be between 0 and 100")
		}
		if !hasCents(*rule.FeePercentage) {
			return fmt.Errorf("fee_percentage must have at most 2 decimal places")
		}
	}

	switch rule.Type {
	case models.FeeRuleTypeFlat:
		if rule.FlatFee == nil {
			return fmt.Errorf("flat_fee is required for flat rules")
		}
		if err := storedAmount("flat_fee", rule.FlatFee); err != nil {
			return err
		}
	case models.FeeRuleTypeTiered:
		return validateTiers(rule.Tiers)
	case models.FeeRuleTypePercentage, models.FeeRuleTypeServiceBased:
		// процент необязателен, по умолчанию 12
	}
	return nil
}

func validateTiers(tiers []models.FeeTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("tiered rule requires at least one tier")
	}

	prev := -1.0
	for i, tier := range tiers {
		if !validPercent(tier.FeePercent) {
			return fmt.Errorf("tier %d: fee_percent must be between 0 and 100", i+1)
		}
		last := i == len(tiers)-1
		if tier.MaxValue == nil {
			if !last {
				return fmt.Errorf("tier %d: only the last tier may be unbounded", i+1)
			}
			continue
		}
		if last {
			return fmt.Errorf("last tier must be unbounded (max_value null)")
		}
		if *tier.MaxValue <= prev {
			return fmt.Errorf("tier %d: max_value must be greater than previous tier", i+1)
		}
		prev = *tier.MaxValue
	}
	return nil
}

func nonNegative(field string, v *float64) error {
	if v != nil && (*v < 0 || !finite(*v)) {
		return fmt.Errorf("%s must be non-negative", field)
	}
	return nil
}

// storedAmount проверяет денежное значение так, чтобы колонка сохранила его без округления.
func storedAmount(field string, v *float64) error {
	if err := nonNegative(field, v); err != nil || v == nil {
		return err
	}
	if *v > maxStoredAmount {
		return fmt.Errorf("%s must not exceed %s", field, formatAmount(maxStoredAmount))
	}
	if !hasCents(*v) {
		return fmt.Errorf("%s must have at most 2 decimal places", field)
	}
	return nil
}

func hasCents(v float64) bool {
	d := decimal.NewFromFloat(v)
	return d.Equal(d.Round(2))
}

func validPercent(p float64) bool {
	return finite(p) && p >= 0 && p <= 100
}
