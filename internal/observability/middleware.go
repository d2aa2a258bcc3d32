package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestField adds request-specific context to an admin log line.
type RequestField func(c *gin.Context, event *zerolog.Event)

// ParamField logs route parameter param under key when the route carries it,
// e.g. ParamField("name", "service") on /services/:name.
func ParamField(param, key string) RequestField {
	return func(c *gin.Context, event *zerolog.Event) {
		if v := c.Param(param); v != "" {
			event.Str(key, v)
		}
	}
}

// RequestLogger logs one line per admin request. Successful reads stay at
// debug so polling dashboards do not flood the broker log.
func RequestLogger(logger zerolog.Logger, fields ...RequestField) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status == 401 || status == 403:
			event = logger.Warn().Bool("auth_rejected", true)
		case status >= 400:
			event = logger.Info()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("route", routeLabel(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int("bytes", c.Writer.Size())
		for _, field := range fields {
			field(c, event)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("broker.admin request")
	}
}

// RequestMetricsMiddleware records request counts and latency labelled with
// component and the matched route, never the raw path.
func RequestMetricsMiddleware(component string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(component, c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
