// Package dashboard serves the ATILA worklist as HTML pages and a JSON API.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zulandar/atila/internal/logging"
	"github.com/zulandar/atila/internal/normalize"
	"github.com/zulandar/atila/internal/worklist"
)

const (
	defaultPort         = 8080
	defaultPollInterval = 3 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Service      *worklist.Service
	Platforms    normalize.PlatformMap // nil uses the built-in map
	Port         int
	Out          io.Writer
	Logger       *zap.Logger
	PollInterval time.Duration // how often /api/events checks for rank changes
}

// NewRouter builds the Gin engine with templates, assets and every route.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("dashboard: worklist service is required")
	}
	if opts.Platforms == nil {
		opts.Platforms = normalize.DefaultPlatformMap()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	log := logging.WithComponent(logging.OrNop(opts.Logger), "dashboard")

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, &deps{
		svc:       opts.Service,
		platforms: opts.Platforms,
		log:       log,
		poll:      opts.PollInterval,
	})
	return router, nil
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = defaultPort
	}
	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

var templateFuncs = template.FuncMap{
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(time.DateOnly)
	},
	"score": func(f float64) string { return fmt.Sprintf("%.2f", f) },
}

// requestLogger logs one line per request at debug level.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
