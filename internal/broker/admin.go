package broker

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/neuraflow/internal/auth"
	logs "github.com/danmuck/neuraflow/internal/logging"
	"github.com/danmuck/neuraflow/internal/observability"
)

// NewAdminRouter builds the read-only HTTP admin surface.
func NewAdminRouter(b *Broker) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	observability.RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(
		logs.With("component", "broker.admin"),
		observability.ParamField("name", "service"),
	))
	r.Use(observability.RequestMetricsMiddleware("broker"))
	if origins := b.cfg.AdminAllowOrigins; len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		status := b.Status()
		code := http.StatusOK
		if status.Phase != PhaseListening {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	api := r.Group("/")
	if b.cfg.AdminToken != "" {
		api.Use(auth.RequireBearer(auth.StaticToken{Token: b.cfg.AdminToken}))
	}
	api.GET("/services", func(c *gin.Context) {
		c.JSON(http.StatusOK, b.registry.Snapshot())
	})
	api.GET("/services/:name", func(c *gin.Context) {
		entry, ok := b.registry.Lookup(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusOK, entry)
	})
	api.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (b *Broker) startAdmin() error {
	ln, err := net.Listen("tcp", b.cfg.AdminListenAddr)
	if err != nil {
		return fmt.Errorf("broker: admin listen %q: %w", b.cfg.AdminListenAddr, err)
	}
	srv := &http.Server{Handler: NewAdminRouter(b)}
	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	b.mu.Lock()
	b.admin = srv
	b.adminErr = errCh
	b.mu.Unlock()
	logs.Infof("broker.admin listening addr=%q", ln.Addr().String())
	return nil
}
