package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"repair-marketplace/internal/apperror"
	"repair-marketplace/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var feeRuleRowColumns = []string{
	"id", "rule_name", "description", "rule_type", "applies_to", "min_job_value", "max_job_value",
	"service_categories", "fee_percentage", "flat_fee", "tiers", "priority", "is_active", "created_at", "updated_at",
}

func TestFeeRuleService_CreateFeeRule(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())

	mock.ExpectExec("INSERT INTO platform_fee_rules").
		WithArgs(sqlmock.AnyArg(), "Volume Discount", "", models.FeeRuleTypeTiered, models.ProviderCategoryAll,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), 10, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule, err := service.CreateFeeRule(context.Background(), &models.FeeRuleRequest{
		Name:     "Volume Discount",
		Type:     models.FeeRuleTypeTiered,
		Tiers:    []models.FeeTier{{MaxValue: f64(200), FeePercent: 15}, {MaxValue: nil, FeePercent: 8}},
		Priority: 10,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if rule.ID == uuid.Nil {
		t.Fatalf("expected generated id")
	}
	if rule.AppliesTo != models.ProviderCategoryAll {
		t.Fatalf("expected applies_to defaulted to all, got %q", rule.AppliesTo)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFeeRuleService_CreateFeeRule_InvalidPayload(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())

	_, err := service.CreateFeeRule(context.Background(), &models.FeeRuleRequest{
		Name:  "Broken tiers",
		Type:  models.FeeRuleTypeTiered,
		Tiers: []models.FeeTier{{MaxValue: f64(200), FeePercent: 15}},
	})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected db calls: %v", err)
	}
}

func TestFeeRuleService_CreateFeeRule_RejectsSubCentValues(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())

	_, err := service.CreateFeeRule(context.Background(), &models.FeeRuleRequest{
		Name:          "Routine Maintenance Fee",
		Type:          models.FeeRuleTypePercentage,
		MaxJobValue:   f64(150.005),
		FeePercentage: f64(8),
		Active:        true,
	})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected db calls: %v", err)
	}
}

func TestFeeRuleService_CreateFeeRule_DuplicateName(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())

	mock.ExpectExec("INSERT INTO platform_fee_rules").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := service.CreateFeeRule(context.Background(), &models.FeeRuleRequest{
		Name:          "Standard Rate",
		Type:          models.FeeRuleTypePercentage,
		FeePercentage: f64(12),
		Active:        true,
	})
	if !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestFeeRuleService_GetFeeRule(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM platform_fee_rules WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(feeRuleRowColumns).
			AddRow(id.String(), "Routine Maintenance", "oil and tires", "service_based", "all", nil, nil,
				"{oil_change,tire_rotation}", 12.0, nil, nil, 5, true, now, now))

	rule, err := service.GetFeeRule(context.Background(), id)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if rule.Type != models.FeeRuleTypeServiceBased || rule.Priority != 5 {
		t.Fatalf("unexpected rule %+v", rule)
	}
	if len(rule.ServiceCategories) != 2 || rule.ServiceCategories[1] != "tire_rotation" {
		t.Fatalf("unexpected categories %v", rule.ServiceCategories)
	}
	if rule.FeePercentage == nil || *rule.FeePercentage != 12 {
		t.Fatalf("unexpected fee percentage %v", rule.FeePercentage)
	}
	if rule.FlatFee != nil || rule.MinJobValue != nil || rule.Tiers != nil {
		t.Fatalf("expected nullable fields to stay nil: %+v", rule)
	}
}

func TestFeeRuleService_GetFeeRule_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM platform_fee_rules").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := service.GetFeeRule(context.Background(), id)
	if !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFeeRuleService_ListActiveFeeRules(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM platform_fee_rules\\s+WHERE is_active = TRUE").
		WillReturnRows(sqlmock.NewRows(feeRuleRowColumns).
			AddRow(uuid.NewString(), "Volume Discount", "", "tiered", "all", nil, nil, nil, nil, nil,
				[]byte(`[{"max_value":200,"fee_percent":15},{"max_value":null,"fee_percent":8}]`), 10, true, now, now).
			AddRow(uuid.NewString(), "Standard Rate", "", "percentage", "all", nil, nil, nil, 12.0, nil, nil, 1, true, now, now))

	rules, err := service.ListActiveFeeRules(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	tiers := rules[0].Tiers
	if len(tiers) != 2 || tiers[0].MaxValue == nil || *tiers[0].MaxValue != 200 || tiers[1].MaxValue != nil {
		t.Fatalf("unexpected tiers %+v", tiers)
	}

	engine := NewFeeEngine(rules, DefaultServiceFeePolicy(), newTestLogger())
	res := mustCalculate(t, engine, models.FeeCalculationInput{Subtotal: 150, ServiceType: "brake_repair", ProviderType: models.ProviderCategoryWorkshop})
	if res.PlatformFeeAmount != 22.5 {
		t.Fatalf("expected tier fee 22.5, got %v", res.PlatformFeeAmount)
	}
}

func TestFeeRuleService_ListActiveFeeRules_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())
	mock.ExpectQuery("SELECT (.+) FROM platform_fee_rules").WillReturnError(errors.New("boom"))

	if _, err := service.ListActiveFeeRules(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFeeRuleService_ListFeeRules_DefaultLimit(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())
	mock.ExpectQuery("SELECT (.+) FROM platform_fee_rules").
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(feeRuleRowColumns))

	rules, err := service.ListFeeRules(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected empty list, got %d", len(rules))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFeeRuleService_UpdateFeeRule(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())
	id := uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE platform_fee_rules").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM platform_fee_rules WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(feeRuleRowColumns).
			AddRow(id.String(), "Diagnostic Flat", "", "flat", "mobile", nil, 100.0, "{diagnostic}", nil, 15.0, nil, 7, true, now, now))

	rule, err := service.UpdateFeeRule(context.Background(), id, &models.FeeRuleRequest{
		Name:              "Diagnostic Flat",
		Type:              models.FeeRuleTypeFlat,
		AppliesTo:         models.ProviderCategoryMobile,
		MaxJobValue:       f64(100),
		ServiceCategories: []string{"diagnostic"},
		FlatFee:           f64(15),
		Priority:          7,
		Active:            true,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if rule.FlatFee == nil || *rule.FlatFee != 15 || rule.AppliesTo != models.ProviderCategoryMobile {
		t.Fatalf("unexpected rule %+v", rule)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFeeRuleService_UpdateFeeRule_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())
	mock.ExpectExec("UPDATE platform_fee_rules").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := service.UpdateFeeRule(context.Background(), uuid.New(), &models.FeeRuleRequest{
		Name: "Standard Rate",
		Type: models.FeeRuleTypePercentage,
	})
	if !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFeeRuleService_DeleteFeeRule(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewFeeRuleService(db, newTestLogger())
	id := uuid.New()

	mock.ExpectExec("DELETE FROM platform_fee_rules").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := service.DeleteFeeRule(context.Background(), id); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	mock.ExpectExec("DELETE FROM platform_fee_rules").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := service.DeleteFeeRule(context.Background(), id); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectExec("DELETE FROM platform_fee_rules").WithArgs(id).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected failed")))
	if err := service.DeleteFeeRule(context.Background(), id); err == nil {
		t.Fatalf("expected rows affected error")
	}
}
