package models

// LineItemKind описывает тип позиции сметы.
type LineItemKind string

const (
	LineItemKindLabor LineItemKind = "labor"
	LineItemKindParts LineItemKind = "parts"
)

// LineItem представляет позицию сметы ремонта (работа или запчасти).
type LineItem struct {
	Kind        LineItemKind `json:"type"`
	Description string       `json:"description"`
	Hours       *float64     `json:"hours,omitempty"`
	Rate        *float64     `json:"rate,omitempty"`
	Quantity    *float64     `json:"quantity,omitempty"`
	UnitCost    *float64     `json:"unit_cost,omitempty"`
	Subtotal    float64      `json:"subtotal"`
}

// LineItemTotals содержит суммы по позициям сметы.
type LineItemTotals struct {
	LaborCost float64 `json:"labor_cost"`
	PartsCost float64 `json:"parts_cost"`
	Subtotal  float64 `json:"subtotal"`
}

// LineItemValidation результат проверки одной позиции.
type LineItemValidation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// PriceQuoteRequest описывает черновик сметы для расчёта итоговой стоимости.
type PriceQuoteRequest struct {
	ServiceType  string           `json:"service_type"`
	ProviderType ProviderCategory `json:"provider_type"`
	LineItems    []LineItem       `json:"line_items"`
}

// PricedQuote описывает рассчитанную смету.
type PricedQuote struct {
	LineItemTotals
	ServiceType  string               `json:"service_type"`
	ProviderType ProviderCategory     `json:"provider_type"`
	Fee          FeeCalculationResult `json:"fee"`
}
