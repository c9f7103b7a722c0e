package services

import (
	"math"
	"strings"

	"repair-marketplace/internal/apperror"
	"repair-marketplace/internal/models"

	"github.com/shopspring/decimal"
)

// AggregateLineItems суммирует работы и запчасти сметы. Все суммы округлены до копеек.
// Некорректные позиции не отбрасываются, проверка выполняется отдельно через ValidateLineItem.
func AggregateLineItems(items []models.LineItem) models.LineItemTotals {
	labor := decimal.Zero
	parts := decimal.Zero

	for _, item := range items {
		switch item.Kind {
		case models.LineItemKindLabor:
			labor = labor.Add(toDecimal(item.Subtotal))
		case models.LineItemKindParts:
			parts = parts.Add(toDecimal(item.Subtotal))
		}
	}

	return models.LineItemTotals{
		LaborCost: labor.Round(2).InexactFloat64(),
		PartsCost: parts.Round(2).InexactFloat64(),
		Subtotal:  labor.Add(parts).Round(2).InexactFloat64(),
	}
}

// ValidateLineItem проверяет структуру позиции сметы.
func ValidateLineItem(item models.LineItem) models.LineItemValidation {
	if msg := lineItemError(item); msg != "" {
		return models.LineItemValidation{Valid: false, Error: msg}
	}
	return models.LineItemValidation{Valid: true}
}

// ValidateLineItems возвращает отчёт по каждой позиции и ошибку валидации для первой некорректной.
func ValidateLineItems(items []models.LineItem) ([]models.LineItemValidation, error) {
	report := make([]models.LineItemValidation, len(items))
	var firstErr error
	for i, item := range items {
		report[i] = ValidateLineItem(item)
		if !report[i].Valid && firstErr == nil {
			firstErr = apperror.Validationf("line item %d: %s", i+1, report[i].Error)
		}
	}
	return report, firstErr
}

func lineItemError(item models.LineItem) string {
	if strings.TrimSpace(item.Description) == "" {
		return "Description is required"
	}

	switch item.Kind {
	case models.LineItemKindLabor:
		if !positive(item.Hours) {
			return "Hours must be greater than 0"
		}
		if !positive(item.Rate) {
			return "Rate must be greater than 0"
		}
	case models.LineItemKindParts:
		if !positive(item.Quantity) {
			return "Quantity must be greater than 0"
		}
		if item.UnitCost == nil {
			return "Unit cost is required"
		}
		if *item.UnitCost < 0 || !finite(*item.UnitCost) {
			return "Unit cost cannot be negative"
		}
	default:
		return "Type must be labor or parts"
	}

	if item.Subtotal < 0 || !finite(item.Subtotal) {
		return "Subtotal cannot be negative"
	}
	return ""
}

func positive(v *float64) bool {
	return v != nil && finite(*v) && *v > 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
