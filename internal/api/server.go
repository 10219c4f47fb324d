package api

import (
	"context"
	"errors"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	logx "petbot/pkg/logx"
)

// Option adds optional routes.
type Option func(e *gin.Engine)

// WithPprof exposes the runtime profiles under /debug/pprof.
func WithPprof() Option {
	return func(e *gin.Engine) {
		e.GET("/debug/pprof/*name", func(c *gin.Context) {
			switch name := strings.Trim(c.Param("name"), "/"); name {
			case "":
				hpprof.Index(c.Writer, c.Request)
			case "cmdline":
				hpprof.Cmdline(c.Writer, c.Request)
			case "profile":
				hpprof.Profile(c.Writer, c.Request)
			case "symbol":
				hpprof.Symbol(c.Writer, c.Request)
			case "trace":
				hpprof.Trace(c.Writer, c.Request)
			default:
				hpprof.Handler(name).ServeHTTP(c.Writer, c.Request)
			}
		})
	}
}

// NewRouter builds the HTTP routes.
func NewRouter(h *Handler, log logx.Logger, opts ...Option) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery(), requestLog(log))
	e.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	e.POST("/api/notify", h.Notify)
	for _, o := range opts {
		o(e)
	}
	return e
}

func requestLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("dur", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("http request", fields...)
			return
		}
		log.Debug("http request", fields...)
	}
}

// Serve runs the server until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log logx.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", logx.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	log.Info("http server stopped")
	return nil
}
