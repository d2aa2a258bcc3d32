package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/danmuck/neuraflow/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordControlCall("server", "register", "ok", 3*time.Millisecond)
	RecordStreamMessage("in", 22, true)
	RecordStreamMessage("out", 22, false)
	RecordRegistration("llm_service", 1)
	RecordSinkMessage()
	RecordRegistrationAttempt("llm_service", false)
	RecordHTTPRequest("broker", "GET", "/health", 200, 12*time.Millisecond)
}

func TestRecordRegistrationAttemptOutcomes(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(registrationAttempts.WithLabelValues("metrics_service", "registered"))
	RecordRegistrationAttempt("metrics_service", true)
	after := testutil.ToFloat64(registrationAttempts.WithLabelValues("metrics_service", "registered"))
	if after-before != 1 {
		t.Fatalf("expected one registered attempt, delta=%v", after-before)
	}
}
