package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"repair-marketplace/internal/services"

	"github.com/IBM/sarama"
)

type stubDB struct{ err error }

func (s *stubDB) Health() error { return s.err }

type stubRedisHealth struct{ err error }

func (s *stubRedisHealth) Health(ctx context.Context) error { return s.err }

func kafkaOK([]string) error { return nil }

func decodeHealth(t *testing.T, rr *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHealthHandler_ReportsActiveFeeRules(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{}, newTestEngines(), []string{}, kafkaOK)
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeHealth(t, rr)
	if resp.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", resp.Status)
	}
	if resp.Services["fee_rules"] != "2 active" {
		t.Fatalf("unexpected fee_rules status %q", resp.Services["fee_rules"])
	}
}

func TestHealthHandler_ReportsDefaultFeeWhenRulesUnavailable(t *testing.T) {
	engines := &stubEngines{
		engine:   services.NewFeeEngine(nil, services.DefaultServiceFeePolicy(), newTestLogger()),
		fallback: true,
	}
	h := NewHealthHandler(&stubDB{err: errors.New("db down")}, &stubRedisHealth{}, engines, []string{}, kafkaOK)
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	resp := decodeHealth(t, rr)
	if resp.Services["fee_rules"] != "unavailable: default fee applies" {
		t.Fatalf("unexpected fee_rules status %q", resp.Services["fee_rules"])
	}
	if resp.Services["database"] != "unhealthy: db down" {
		t.Fatalf("unexpected database status %q", resp.Services["database"])
	}
}

func TestHealthHandler_WithoutEnginesOmitsFeeRules(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{}, nil, []string{}, kafkaOK)
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := decodeHealth(t, rr)
	if _, ok := resp.Services["fee_rules"]; ok {
		t.Fatalf("expected no fee_rules entry, got %+v", resp.Services)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	cases := []struct {
		name     string
		db       error
		redis    error
		kafka    error
		fallback bool
		code     int
		feeRules string
	}{
		{name: "ready", code: http.StatusOK, feeRules: "loaded"},
		{name: "ready on default fee", fallback: true, code: http.StatusOK, feeRules: "default"},
		{name: "database down", db: errors.New("db down"), code: http.StatusServiceUnavailable},
		{name: "redis down", redis: errors.New("redis down"), code: http.StatusServiceUnavailable},
		{name: "kafka down", kafka: errors.New("kafka down"), code: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		engines := newTestEngines()
		engines.fallback = tc.fallback
		kafkaErr := tc.kafka
		h := NewHealthHandler(&stubDB{err: tc.db}, &stubRedisHealth{err: tc.redis}, engines, []string{"kafka:9092"},
			func([]string) error { return kafkaErr })

		rr := httptest.NewRecorder()
		h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
		if rr.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.code, rr.Code)
		}
		if tc.code != http.StatusOK {
			continue
		}
		var body map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: failed to decode response: %v", tc.name, err)
		}
		if body["fee_rules"] != tc.feeRules {
			t.Fatalf("%s: expected fee_rules %q, got %q", tc.name, tc.feeRules, body["fee_rules"])
		}
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{}, nil, []string{}, kafkaOK)
	rr := httptest.NewRecorder()
	h.Liveness(rr, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{}, newTestEngines(), []string{}, kafkaOK)
	endpoints := map[string]http.HandlerFunc{
		"/health":           h.Health,
		"/health/readiness": h.Readiness,
		"/health/liveness":  h.Liveness,
	}
	for path, handle := range endpoints {
		rr := httptest.NewRecorder()
		handle(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", path, rr.Code)
		}
	}
}

func TestCheckKafkaHealth_NoBrokers(t *testing.T) {
	if err := CheckKafkaHealth([]string{}); err == nil {
		t.Fatalf("expected error for empty brokers")
	}
}

func TestCheckKafkaHealth_WithMockBroker(t *testing.T) {
	broker := sarama.NewMockBroker(t, 1)
	defer broker.Close()

	broker.SetHandlerByMap(map[string]sarama.MockResponse{
		"MetadataRequest": sarama.NewMockMetadataResponse(t).
			SetBroker(broker.Addr(), broker.BrokerID()).
			SetController(broker.BrokerID()).
			SetLeader("fee_rules", 0, broker.BrokerID()),
	})

	if err := checkKafkaHealth([]string{broker.Addr()}); err != nil {
		t.Fatalf("expected kafka health ok, got %v", err)
	}
}
