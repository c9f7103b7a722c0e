package services

import (
	"slices"

	"repair-marketplace/internal/config"
)

// ServiceFeePolicy задаёт корректировки процента для правил типа service_based.
// Корректировки применяются в фиксированном порядке: плановое ТО, мелкая диагностика, крупный заказ.
type ServiceFeePolicy struct {
	RoutineMaintenanceServices  []string
	RoutineMaintenanceCap       float64
	DiagnosticService           string
	DiagnosticSmallJobThreshold float64
	DiagnosticFloor             float64
	HighValueThreshold          float64
	HighValueCap                float64
}

// DefaultServiceFeePolicy возвращает политику с действующими бизнес-значениями.
func DefaultServiceFeePolicy() ServiceFeePolicy {
	return ServiceFeePolicy{
		RoutineMaintenanceServices:  []string{"oil_change", "tire_rotation", "air_filter", "wiper_blades"},
		RoutineMaintenanceCap:       8,
		DiagnosticService:           "diagnostic",
		DiagnosticSmallJobThreshold: 100,
		DiagnosticFloor:             15,
		HighValueThreshold:          1000,
		HighValueCap:                10,
	}
}

// NewServiceFeePolicy собирает политику из конфигурации.
func NewServiceFeePolicy(cfg *config.FeesConfig) ServiceFeePolicy {
	if cfg == nil {
		return DefaultServiceFeePolicy()
	}
	return ServiceFeePolicy{
		RoutineMaintenanceServices:  slices.Clone(cfg.RoutineMaintenanceServices),
		RoutineMaintenanceCap:       cfg.RoutineMaintenanceCap,
		DiagnosticService:           cfg.DiagnosticService,
		DiagnosticSmallJobThreshold: cfg.DiagnosticSmallJobThreshold,
		DiagnosticFloor:             cfg.DiagnosticFloor,
		HighValueThreshold:          cfg.HighValueThreshold,
		HighValueCap:                cfg.HighValueCap,
	}
}

// Adjust применяет корректировки политики к исходному проценту.
func (p ServiceFeePolicy) Adjust(serviceType string, subtotal, percent float64) float64 {
	if slices.Contains(p.RoutineMaintenanceServices, serviceType) {
		percent = min(percent, p.RoutineMaintenanceCap)
	}
	if p.DiagnosticService != "" && serviceType == p.DiagnosticService && subtotal < p.DiagnosticSmallJobThreshold {
		percent = max(percent, p.DiagnosticFloor)
	}
	if subtotal > p.HighValueThreshold {
		percent = min(percent, p.HighValueCap)
	}
	return percent
}

func (p ServiceFeePolicy) clone() ServiceFeePolicy {
	p.RoutineMaintenanceServices = slices.Clone(p.RoutineMaintenanceServices)
	return p
}
