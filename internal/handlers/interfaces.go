package handlers

import (
	"context"

	"repair-marketplace/internal/models"
	"repair-marketplace/internal/services"

	"github.com/google/uuid"
)

// ----- Fees -----

type FeeEngines interface {
	Engine(ctx context.Context) *services.FeeEngine
	Invalidate(ctx context.Context) error
	Fallback() bool
}

type QuotePricer interface {
	PriceQuote(ctx context.Context, req *models.PriceQuoteRequest) (*models.PricedQuote, error)
}

type FeeRuleService interface {
	CreateFeeRule(ctx context.Context, req *models.FeeRuleRequest) (*models.FeeRule, error)
	GetFeeRule(ctx context.Context, id uuid.UUID) (*models.FeeRule, error)
	UpdateFeeRule(ctx context.Context, id uuid.UUID, req *models.FeeRuleRequest) (*models.FeeRule, error)
	DeleteFeeRule(ctx context.Context, id uuid.UUID) error
	ListFeeRules(ctx context.Context, limit, offset int) ([]*models.FeeRule, error)
}

type EventProducer interface {
	PublishFeeRuleChanged(ruleID uuid.UUID, action models.FeeRuleAction) error
	PublishQuotePriced(quote *models.PricedQuote) error
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
