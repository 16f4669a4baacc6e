package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewOrderMetrics(t *testing.T) {
	metrics := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("newOrderMetricsWithRegisterer should not return nil")
	}
	if metrics.ordersCreated == nil {
		t.Error("ordersCreated counter should not be nil")
	}
	if metrics.ordersCancelled == nil {
		t.Error("ordersCancelled counter should not be nil")
	}
	if metrics.ordersDelivered == nil {
		t.Error("ordersDelivered counter should not be nil")
	}
	if metrics.paymentsVerified == nil {
		t.Error("paymentsVerified counter vec should not be nil")
	}
	if metrics.prescriptionsReviewed == nil {
		t.Error("prescriptionsReviewed counter vec should not be nil")
	}
	if metrics.operationDuration == nil {
		t.Error("operationDuration histogram vec should not be nil")
	}
	if metrics.versionConflicts == nil {
		t.Error("versionConflicts counter should not be nil")
	}
	if metrics.lowStockEvents == nil {
		t.Error("lowStockEvents counter should not be nil")
	}
}

func TestNewOrderMetrics_ReregistrationIsTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(reg)
	second := newOrderMetricsWithRegisterer(reg)

	// Both instances must share the same underlying collectors.
	first.RecordOrderCreated()
	second.RecordOrderCreated()

	metric := &dto.Metric{}
	if err := first.ordersCreated.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordPaymentVerified(t *testing.T) {
	metrics := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordPaymentVerified("completed")
	metrics.RecordPaymentVerified("completed")
	metrics.RecordPaymentVerified("failed")

	metric := &dto.Metric{}
	counter, err := metrics.paymentsVerified.GetMetricWithLabelValues("completed")
	if err != nil {
		t.Fatalf("failed to get counter: %v", err)
	}
	if err := counter.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 completed verifications, got %f", metric.Counter.GetValue())
	}
}

func TestRecordOperationDuration(t *testing.T) {
	metrics := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOperationDuration("create_order", 100*time.Millisecond)
	metrics.RecordOperationDuration("create_order", 500*time.Millisecond)

	observer, err := metrics.operationDuration.GetMetricWithLabelValues("create_order")
	if err != nil {
		t.Fatalf("failed to get histogram: %v", err)
	}

	metric := &dto.Metric{}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", metric.Histogram.GetSampleCount())
	}
	// Sum is approximately 0.6 seconds.
	sum := metric.Histogram.GetSampleSum()
	if sum < 0.55 || sum > 0.65 {
		t.Errorf("expected sum around 0.6, got %f", sum)
	}
}

func TestRecordCountersIncrement(t *testing.T) {
	metrics := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOrderCancelled()
	metrics.RecordOrderDelivered()
	metrics.RecordVersionConflict()
	metrics.RecordVersionConflict()
	metrics.RecordLowStockEvent()
	metrics.RecordPrescriptionReviewed("approved")

	metric := &dto.Metric{}
	if err := metrics.versionConflicts.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 version conflicts, got %f", metric.Counter.GetValue())
	}
}
