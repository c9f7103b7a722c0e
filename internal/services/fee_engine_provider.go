package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"repair-marketplace/internal/logger"
	"repair-marketplace/internal/models"
	"repair-marketplace/internal/redis"
)

// FeeRuleLister источник активных правил комиссии.
type FeeRuleLister interface {
	ListActiveFeeRules(ctx context.Context) ([]models.FeeRule, error)
}

// failedLoadRetryInterval ограничивает частоту повторных загрузок после ошибки.
const failedLoadRetryInterval = 5 * time.Second

// FeeEngineProvider хранит текущий движок комиссии и пересобирает его при изменении правил.
// Снимок активных правил кешируется в Redis с TTL, движок в памяти перечитывается
// по истечении того же TTL.
type FeeEngineProvider struct {
	source   FeeRuleLister
	redis    *redis.Client
	policy   ServiceFeePolicy
	cacheTTL time.Duration
	log      *logger.Logger
	now      func() time.Time

	snapshot   atomic.Pointer[engineSnapshot]
	refreshing atomic.Bool
	mu         sync.Mutex
}

// engineSnapshot движок и момент, после которого его нужно перечитать.
// fallback означает, что правила не загрузились и действует ставка по умолчанию.
type engineSnapshot struct {
	engine       *FeeEngine
	fallback     bool
	refreshAfter time.Time
}

// NewFeeEngineProvider создаёт провайдер. redisClient может быть nil.
func NewFeeEngineProvider(source FeeRuleLister, redisClient *redis.Client, policy ServiceFeePolicy, cacheTTL time.Duration, log *logger.Logger) *FeeEngineProvider {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &FeeEngineProvider{
		source:   source,
		redis:    redisClient,
		policy:   policy,
		cacheTTL: cacheTTL,
		log:      log,
		now:      time.Now,
	}
}

// Engine возвращает текущий движок, загружая правила при первом обращении.
// Устаревший снимок перечитывается одним вызывающим, остальные получают текущий движок.
// Всегда возвращает рабочий движок: при недоступности правил применяется ставка по умолчанию.
func (p *FeeEngineProvider) Engine(ctx context.Context) *FeeEngine {
	current := p.snapshot.Load()
	if current == nil {
		return p.reloadAndWarn(ctx)
	}
	if p.now().Before(current.refreshAfter) || !p.refreshing.CompareAndSwap(false, true) {
		return current.engine
	}
	defer p.refreshing.Store(false)
	return p.reloadAndWarn(ctx)
}

func (p *FeeEngineProvider) reloadAndWarn(ctx context.Context) *FeeEngine {
	engine, err := p.Reload(ctx)
	if err != nil {
		p.log.WithError(err).Warn("Failed to load fee rules, keeping current fee engine")
	}
	return engine
}

// Fallback сообщает, что сейчас действует ставка по умолчанию из-за ошибки загрузки правил.
func (p *FeeEngineProvider) Fallback() bool {
	current := p.snapshot.Load()
	return current == nil || current.fallback
}

// Reload перечитывает правила и атомарно подменяет движок.
// При ошибке загрузки остаётся прежний движок, а если его нет, ставится пустой;
// следующая попытка не раньше чем через failedLoadRetryInterval.
func (p *FeeEngineProvider) Reload(ctx context.Context) (*FeeEngine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rules, err := p.loadRules(ctx)
	if err != nil {
		next := engineSnapshot{fallback: true}
		if current := p.snapshot.Load(); current != nil {
			next = *current
		} else {
			next.engine = NewFeeEngine(nil, p.policy, p.log)
		}
		next.refreshAfter = p.now().Add(min(failedLoadRetryInterval, p.cacheTTL))
		p.snapshot.Store(&next)
		return next.engine, err
	}

	engine := NewFeeEngine(rules, p.policy, p.log)
	p.snapshot.Store(&engineSnapshot{
		engine:       engine,
		refreshAfter: p.now().Add(p.cacheTTL),
	})

	p.log.WithField("rules", len(engine.rules)).Info("Fee engine reloaded")
	return engine, nil
}

// Invalidate сбрасывает кеш правил и пересобирает движок.
func (p *FeeEngineProvider) Invalidate(ctx context.Context) error {
	if p.redis != nil {
		if err := p.redis.DeleteByPrefix(ctx, redis.KeyPrefixFeeRules); err != nil {
			p.log.WithError(err).Warn("Failed to drop cached fee rules")
		}
	}
	_, err := p.Reload(ctx)
	return err
}

func (p *FeeEngineProvider) loadRules(ctx context.Context) ([]models.FeeRule, error) {
	key := activeRulesKey()

	var rules []models.FeeRule
	if p.redis != nil {
		err := p.redis.Get(ctx, key, &rules)
		if err == nil {
			return rules, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			p.log.WithError(err).Warn("Failed to read cached fee rules")
		}
	}

	if p.source == nil {
		return nil, errors.New("fee rule source is not configured")
	}
	rules, err := p.source.ListActiveFeeRules(ctx)
	if err != nil {
		return nil, err
	}

	if p.redis != nil {
		if err := p.redis.Set(ctx, key, rules, p.cacheTTL); err != nil {
			p.log.WithError(err).WithField("key", key).Warn("Failed to cache fee rules")
		}
	}
	return rules, nil
}

func activeRulesKey() string {
	return redis.GenerateKey(redis.KeyPrefixFeeRules, "active")
}
