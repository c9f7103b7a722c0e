package handlers

import (
	"encoding/json"
	"net/http"

	"repair-marketplace/internal/logger"
	"repair-marketplace/internal/models"
	"repair-marketplace/internal/services"
)

const maxSimulationScenarios = 100

// FeeHandler обрабатывает расчёт комиссии и смет.
type FeeHandler struct {
	engines  FeeEngines
	quotes   QuotePricer
	producer EventProducer
	log      *logger.Logger
}

// NewFeeHandler создаёт обработчик расчёта комиссии.
func NewFeeHandler(engines FeeEngines, quotes QuotePricer, producer EventProducer, log *logger.Logger) *FeeHandler {
	return &FeeHandler{
		engines:  engines,
		quotes:   quotes,
		producer: producer,
		log:      log,
	}
}

// CalculateFee рассчитывает комиссию для одной сметы.
func (h *FeeHandler) CalculateFee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var input models.FeeCalculationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.engines.Engine(r.Context()).CalculateFee(input)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to calculate fee")
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// SimulateFees рассчитывает комиссию для набора сценариев.
func (h *FeeHandler) SimulateFees(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var inputs []models.FeeCalculationInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(inputs) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "At least one scenario is required")
		return
	}
	if len(inputs) > maxSimulationScenarios {
		writeErrorResponse(w, http.StatusBadRequest, "Too many scenarios")
		return
	}

	writeJSONResponse(w, http.StatusOK, h.engines.Engine(r.Context()).Simulate(inputs))
}

// ActiveRules возвращает активные правила в порядке проверки.
func (h *FeeHandler) ActiveRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, h.engines.Engine(r.Context()).Rules())
}

// PriceQuote рассчитывает итог сметы и публикует событие quote.priced.
func (h *FeeHandler) PriceQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.PriceQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	quote, err := h.quotes.PriceQuote(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to price quote")
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishQuotePriced(quote); err != nil {
			h.log.WithError(err).Error("Failed to publish quote priced event")
		}
	}

	writeJSONResponse(w, http.StatusOK, quote)
}

// ValidateLineItems возвращает результат проверки каждой позиции сметы.
func (h *FeeHandler) ValidateLineItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		LineItems []models.LineItem `json:"line_items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, err := services.ValidateLineItems(req.LineItems)
	response := map[string]interface{}{
		"valid":  err == nil,
		"items":  report,
		"totals": services.AggregateLineItems(req.LineItems),
	}
	if err != nil {
		response["error"] = err.Error()
	}

	writeJSONResponse(w, http.StatusOK, response)
}
