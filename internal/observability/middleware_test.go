package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/danmuck/neuraflow/internal/testutil/testlog"
)

func newLoggedRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(buf).Level(zerolog.DebugLevel), ParamField("name", "service")))
	r.Use(RequestMetricsMiddleware("middleware_test"))
	r.GET("/services/:name", func(c *gin.Context) {
		if c.Param("name") != "llm_service" {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"address": "ipc:///tmp/neura.stream.100"})
	})
	return r
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return line
}

func TestRequestLoggerCarriesServiceName(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	r := newLoggedRouter(&buf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/services/llm_service", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	line := decodeLine(t, &buf)
	if line["service"] != "llm_service" || line["route"] != "/services/:name" {
		t.Fatalf("missing request context: %v", line)
	}
	if line["level"] != "debug" || line["message"] != "broker.admin request" {
		t.Fatalf("unexpected level/message: %v", line)
	}
}

func TestRequestLoggerLevelsByStatus(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	r := newLoggedRouter(&buf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/services/absent", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
	line := decodeLine(t, &buf)
	if line["level"] != "info" || line["service"] != "absent" {
		t.Fatalf("unexpected not-found log: %v", line)
	}
}

func TestRequestMetricsUseRouteLabel(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	var buf bytes.Buffer
	r := newLoggedRouter(&buf)

	counter := httpRequests.WithLabelValues("middleware_test", http.MethodGet, "/services/:name", "200")
	before := testutil.ToFloat64(counter)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/services/llm_service", nil))
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("expected one request on the route label, delta=%v", got)
	}
}
