package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
	"github.com/vladislavdragonenkov/pharmacy/internal/storage/memory"
)

func TestHandler_AllHealthy(t *testing.T) {
	h := NewHandler("1.2.3")
	h.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))
	h.RegisterChecker("kafka", NewSimpleChecker("kafka", func() error { return nil }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %s", resp.Version)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(resp.Checks))
	}
}

func TestHandler_UnhealthyComponent(t *testing.T) {
	h := NewHandler("test")
	h.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))
	h.RegisterChecker("kafka", NewSimpleChecker("kafka", func() error {
		return errors.New("broker unreachable")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", resp.Status)
	}
	if resp.Checks["kafka"].Message != "broker unreachable" {
		t.Fatalf("unexpected check message: %q", resp.Checks["kafka"].Message)
	}
}

func TestHandler_DegradedDoesNotFailReadiness(t *testing.T) {
	h := NewHandler("test")
	h.RegisterChecker("outbox", checkerFunc(func() Check {
		return Check{Name: "outbox", Status: StatusDegraded, Message: "backlog is growing"}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded must keep 200 on health, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", resp.Status)
	}

	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded must stay ready, got %d", rec.Code)
	}
}

func TestReadinessHandler_Unready(t *testing.T) {
	h := NewHandler("test")
	h.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error {
		return errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestOutboxChecker(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	checker := NewOutboxChecker(outbox, time.Minute)

	if check := checker.Check(); check.Status != StatusHealthy {
		t.Fatalf("empty backlog must be healthy, got %s", check.Status)
	}

	_, err := outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "ord-1",
		EventType:     "order.created",
		Payload:       []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if check := checker.Check(); check.Status != StatusHealthy {
		t.Fatalf("fresh backlog must be healthy, got %s", check.Status)
	}

	// a tight threshold turns the same backlog into a degradation
	tight := NewOutboxChecker(outbox, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)
	if check := tight.Check(); check.Status != StatusDegraded {
		t.Fatalf("stale backlog must degrade, got %s", check.Status)
	}
}

type checkerFunc func() Check

func (f checkerFunc) Check() Check { return f() }
