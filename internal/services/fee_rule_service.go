package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"repair-marketplace/internal/apperror"
	"repair-marketplace/internal/database"
	"repair-marketplace/internal/logger"
	"repair-marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const feeRuleColumns = `id, rule_name, description, rule_type, applies_to, min_job_value, max_job_value,
	service_categories, fee_percentage, flat_fee, tiers, priority, is_active, created_at, updated_at`

// FeeRuleService управляет правилами комиссии платформы.
type FeeRuleService struct {
	db  *database.DB
	log *logger.Logger
}

// NewFeeRuleService создаёт сервис правил комиссии.
func NewFeeRuleService(db *database.DB, log *logger.Logger) *FeeRuleService {
	return &FeeRuleService{
		db:  db,
		log: log,
	}
}

// CreateFeeRule создаёт новое правило.
func (s *FeeRuleService) CreateFeeRule(ctx context.Context, req *models.FeeRuleRequest) (*models.FeeRule, error) {
	now := time.Now()
	rule := feeRuleFromRequest(req)
	rule.ID = uuid.New()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := ValidateFeeRule(rule); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	tiers, err := marshalTiers(rule.Tiers)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO platform_fee_rules (id, rule_name, description, rule_type, applies_to, min_job_value, max_job_value,
			service_categories, fee_percentage, flat_fee, tiers, priority, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = s.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.Description, rule.Type, rule.AppliesTo, rule.MinJobValue, rule.MaxJobValue,
		pq.Array(rule.ServiceCategories), rule.FeePercentage, rule.FlatFee, tiers, rule.Priority, rule.Active,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperror.Conflict("fee rule with this name already exists", err)
		}
		return nil, fmt.Errorf("failed to create fee rule: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"rule_id":   rule.ID.String(),
		"rule_name": rule.Name,
	}).Info("Fee rule created")
	return rule, nil
}

// UpdateFeeRule обновляет правило целиком.
func (s *FeeRuleService) UpdateFeeRule(ctx context.Context, id uuid.UUID, req *models.FeeRuleRequest) (*models.FeeRule, error) {
	rule := feeRuleFromRequest(req)
	rule.ID = id
	if err := ValidateFeeRule(rule); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	tiers, err := marshalTiers(rule.Tiers)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE platform_fee_rules
		SET rule_name = $1, description = $2, rule_type = $3, applies_to = $4, min_job_value = $5, max_job_value = $6,
			service_categories = $7, fee_percentage = $8, flat_fee = $9, tiers = $10, priority = $11, is_active = $12,
			updated_at = $13
		WHERE id = $14
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Description, rule.Type, rule.AppliesTo, rule.MinJobValue, rule.MaxJobValue,
		pq.Array(rule.ServiceCategories), rule.FeePercentage, rule.FlatFee, tiers, rule.Priority, rule.Active,
		time.Now(), id,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperror.Conflict("fee rule with this name already exists", err)
		}
		return nil, fmt.Errorf("failed to update fee rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("fee rule not found", nil)
	}

	return s.GetFeeRule(ctx, id)
}

// DeleteFeeRule удаляет правило.
func (s *FeeRuleService) DeleteFeeRule(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM platform_fee_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete fee rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("fee rule not found", nil)
	}
	return nil
}

// GetFeeRule возвращает правило по ID.
func (s *FeeRuleService) GetFeeRule(ctx context.Context, id uuid.UUID) (*models.FeeRule, error) {
	query := `SELECT ` + feeRuleColumns + ` FROM platform_fee_rules WHERE id = $1`

	rule, err := scanFeeRule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("fee rule not found", err)
		}
		return nil, fmt.Errorf("failed to get fee rule: %w", err)
	}
	return rule, nil
}

// ListFeeRules возвращает страницу правил, включая неактивные.
func (s *FeeRuleService) ListFeeRules(ctx context.Context, limit, offset int) ([]*models.FeeRule, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + feeRuleColumns + `
		FROM platform_fee_rules
		ORDER BY priority DESC, created_at ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list fee rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.FeeRule
	for rows.Next() {
		rule, err := scanFeeRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fee rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fee rules: %w", err)
	}

	return rules, nil
}

// ListActiveFeeRules возвращает активные правила. Правила с равным приоритетом
// идут в порядке создания, движок сохраняет этот порядок.
func (s *FeeRuleService) ListActiveFeeRules(ctx context.Context) ([]models.FeeRule, error) {
	query := `
		SELECT ` + feeRuleColumns + `
		FROM platform_fee_rules
		WHERE is_active = TRUE
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active fee rules: %w", err)
	}
	defer rows.Close()

	rules := make([]models.FeeRule, 0)
	for rows.Next() {
		rule, err := scanFeeRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fee rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fee rules: %w", err)
	}

	return rules, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeeRule(row rowScanner) (*models.FeeRule, error) {
	var (
		rule                              models.FeeRule
		minValue, maxValue, percent, flat sql.NullFloat64
		tiers                             []byte
		categories                        pq.StringArray
	)

	if err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Type, &rule.AppliesTo, &minValue, &maxValue,
		&categories, &percent, &flat, &tiers, &rule.Priority, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.MinJobValue = nullableFloat(minValue)
	rule.MaxJobValue = nullableFloat(maxValue)
	rule.FeePercentage = nullableFloat(percent)
	rule.FlatFee = nullableFloat(flat)
	if len(categories) > 0 {
		rule.ServiceCategories = []string(categories)
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &rule.Tiers); err != nil {
			return nil, fmt.Errorf("failed to decode tiers: %w", err)
		}
	}

	return &rule, nil
}

func feeRuleFromRequest(req *models.FeeRuleRequest) *models.FeeRule {
	appliesTo := req.AppliesTo
	if appliesTo == "" {
		appliesTo = models.ProviderCategoryAll
	}
	return &models.FeeRule{
		Name:              req.Name,
		Description:       req.Description,
		Type:              req.Type,
		AppliesTo:         appliesTo,
		MinJobValue:       req.MinJobValue,
		MaxJobValue:       req.MaxJobValue,
		ServiceCategories: req.ServiceCategories,
		FeePercentage:     req.FeePercentage,
		FlatFee:           req.FlatFee,
		Tiers:             req.Tiers,
		Priority:          req.Priority,
		Active:            req.Active,
	}
}

func marshalTiers(tiers []models.FeeTier) ([]byte, error) {
	if len(tiers) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tiers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tiers: %w", err)
	}
	return data, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
