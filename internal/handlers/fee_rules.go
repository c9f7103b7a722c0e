package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"repair-marketplace/internal/logger"
	"repair-marketplace/internal/models"

	"github.com/google/uuid"
)

const feeRulesPathPrefix = "/api/admin/fees/rules/"

// FeeRuleHandler управляет правилами комиссии.
type FeeRuleHandler struct {
	ruleService FeeRuleService
	engines     FeeEngines
	producer    EventProducer
	log         *logger.Logger
}

// NewFeeRuleHandler создаёт обработчик правил комиссии.
func NewFeeRuleHandler(ruleService FeeRuleService, engines FeeEngines, producer EventProducer, log *logger.Logger) *FeeRuleHandler {
	return &FeeRuleHandler{
		ruleService: ruleService,
		engines:     engines,
		producer:    producer,
		log:         log,
	}
}

// CreateFeeRule создаёт правило.
func (h *FeeRuleHandler) CreateFeeRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.FeeRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := h.ruleService.CreateFeeRule(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create fee rule")
		return
	}

	h.afterChange(r.Context(), rule.ID, models.FeeRuleActionCreated)
	writeJSONResponse(w, http.StatusCreated, rule)
}

// ListFeeRules возвращает список правил, включая неактивные.
func (h *FeeRuleHandler) ListFeeRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	rules, err := h.ruleService.ListFeeRules(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list fee rules")
		return
	}
	if rules == nil {
		rules = []*models.FeeRule{}
	}

	writeJSONResponse(w, http.StatusOK, rules)
}

// GetFeeRule возвращает правило по ID.
func (h *FeeRuleHandler) GetFeeRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, feeRulesPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid fee rule ID")
		return
	}

	rule, err := h.ruleService.GetFeeRule(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get fee rule")
		return
	}

	writeJSONResponse(w, http.StatusOK, rule)
}

// UpdateFeeRule обновляет правило.
func (h *FeeRuleHandler) UpdateFeeRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, feeRulesPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid fee rule ID")
		return
	}

	var req models.FeeRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := h.ruleService.UpdateFeeRule(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update fee rule")
		return
	}

	h.afterChange(r.Context(), rule.ID, models.FeeRuleActionUpdated)
	writeJSONResponse(w, http.StatusOK, rule)
}

// DeleteFeeRule удаляет правило.
func (h *FeeRuleHandler) DeleteFeeRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, feeRulesPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid fee rule ID")
		return
	}

	if err := h.ruleService.DeleteFeeRule(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete fee rule")
		return
	}

	h.afterChange(r.Context(), id, models.FeeRuleActionDeleted)
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Fee rule deleted"})
}

// afterChange пересобирает локальный движок и оповещает остальные экземпляры.
// Ошибки не возвращаются клиенту: изменение уже сохранено.
func (h *FeeRuleHandler) afterChange(ctx context.Context, ruleID uuid.UUID, action models.FeeRuleAction) {
	fields := map[string]interface{}{
		"rule_id": ruleID.String(),
		"action":  string(action),
	}

	if err := h.engines.Invalidate(ctx); err != nil {
		h.log.WithError(err).WithFields(fields).Error("Failed to reload fee engine")
	}
	if h.producer != nil {
		if err := h.producer.PublishFeeRuleChanged(ruleID, action); err != nil {
			h.log.WithError(err).WithFields(fields).Error("Failed to publish fee rule changed event")
		}
	}

	h.log.WithFields(fields).Info("Fee rule changed")
}
