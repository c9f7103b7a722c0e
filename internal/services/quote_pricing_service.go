package services

import (
	"context"

	"repair-marketplace/internal/apperror"
	"repair-marketplace/internal/logger"
	"repair-marketplace/internal/models"
)

// FeeEngineSource отдаёт актуальный движок комиссии.
type FeeEngineSource interface {
	Engine(ctx context.Context) *FeeEngine
}

// QuotePricingService рассчитывает итоговую стоимость сметы с учётом комиссии платформы.
type QuotePricingService struct {
	engines FeeEngineSource
	log     *logger.Logger
}

// NewQuotePricingService создаёт сервис расчёта смет.
func NewQuotePricingService(engines FeeEngineSource, log *logger.Logger) *QuotePricingService {
	return &QuotePricingService{
		engines: engines,
		log:     log,
	}
}

// PriceQuote проверяет позиции, суммирует их и применяет комиссию.
func (s *QuotePricingService) PriceQuote(ctx context.Context, req *models.PriceQuoteRequest) (*models.PricedQuote, error) {
	if len(req.LineItems) == 0 {
		return nil, apperror.Validation("quote must contain at least one line item", nil)
	}
	if _, err := ValidateLineItems(req.LineItems); err != nil {
		return nil, err
	}

	totals := AggregateLineItems(req.LineItems)
	fee, err := s.engines.Engine(ctx).CalculateFee(models.FeeCalculationInput{
		Subtotal:     totals.Subtotal,
		ServiceType:  req.ServiceType,
		ProviderType: req.ProviderType,
		LineItems:    req.LineItems,
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"service_type":  req.ServiceType,
		"provider_type": string(req.ProviderType),
		"subtotal":      totals.Subtotal,
		"fee":           fee.PlatformFeeAmount,
		"applied_rule":  fee.AppliedRuleName,
	}).Debug("Quote priced")

	return &models.PricedQuote{
		LineItemTotals: totals,
		ServiceType:    req.ServiceType,
		ProviderType:   req.ProviderType,
		Fee:            fee,
	}, nil
}
