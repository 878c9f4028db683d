package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/observability"
	"github.com/itsmewidii/fitriacookry/internal/presentation/http/response"
	"github.com/itsmewidii/fitriacookry/internal/presentation/http/view"
	"github.com/itsmewidii/fitriacookry/internal/storage"
	"github.com/itsmewidii/fitriacookry/internal/validation"
	"github.com/itsmewidii/fitriacookry/pkg/errorbank"
)

// AdminPrefix mounts the back-office routes.
const AdminPrefix = "/admin"

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho, NewAdminGroup),
	fx.Invoke(Run),
)

// Params collects the Echo dependencies.
type Params struct {
	fx.In

	Config    config.Config
	Obs       *observability.Manager `optional:"true"`
	Renderer  *view.Renderer
	Validator *validation.Validator
	Disk      *storage.Disk
	Logger    *zap.Logger
}

// NewEcho configures the Echo router with middleware, rendering and static files.
func NewEcho(p Params) *echo.Echo {
	cfg := p.Config
	logger := p.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = p.Renderer
	e.Validator = p.Validator
	e.HTTPErrorHandler = ErrorHandler(p.Renderer, logger)

	e.Pre(middleware.MethodOverrideWithConfig(middleware.MethodOverrideConfig{
		Getter: middleware.MethodFromForm("_method"),
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				logger.Warn("http request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("http request", fields...)
			return nil
		},
	}))
	if cfg.HTTP.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.HTTP.BodyLimit))
	}

	if p.Obs != nil && p.Obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if p.Obs != nil && p.Obs.MetricsEnabled() && p.Obs.MetricsHandler() != nil {
		e.GET(p.Obs.PrometheusPath(), echo.WrapHandler(p.Obs.MetricsHandler()))
	}

	if p.Disk != nil {
		e.GET(p.Disk.PublicURL()+"/*", echo.WrapHandler(p.Disk.Handler()))
	}

	return e
}

// NewAdminGroup mounts the back-office group, behind basic auth when credentials are configured.
func NewAdminGroup(cfg config.Config, e *echo.Echo) *echo.Group {
	g := e.Group(AdminPrefix)
	if cfg.Admin.Username != "" {
		g.Use(middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
			Realm: cfg.App.Name,
			Validator: func(user, pass string, _ echo.Context) (bool, error) {
				okUser := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Admin.Username)) == 1
				okPass := subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Admin.Password)) == 1
				return okUser && okPass, nil
			},
		}))
	}
	g.GET("", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, c.Echo().Reverse("orders.index"))
	})
	return g
}

// ErrorHandler answers JSON clients with the response envelope and browsers with the error page.
func ErrorHandler(r *view.Renderer, logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message := describe(err)
		if status >= http.StatusInternalServerError {
			logger.Error("http request failed", zap.Error(err), zap.String("path", c.Path()))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}

		if wantsJSON(c) || r == nil || !r.Has(view.ErrorTemplate) {
			appErr := errorbank.From(err)
			var he *echo.HTTPError
			if errors.As(err, &he) {
				appErr = errorbank.New(kindFor(status), message, errorbank.WithCause(err))
			}
			if rerr := response.New(c).WithStatus(status).WithError(appErr).Build(); rerr != nil {
				logger.Error("write error response", zap.Error(rerr))
			}
			return
		}

		page := &view.Page{
			Meta:    view.Meta{Title: http.StatusText(status)},
			Status:  status,
			Message: message,
		}
		if rerr := c.Render(status, view.ErrorTemplate, page); rerr != nil {
			logger.Error("render error page", zap.Error(rerr))
		}
	}
}

func describe(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, msg
	}
	appErr := errorbank.From(err)
	return appErr.StatusCode(), appErr.Message()
}

func kindFor(status int) errorbank.Kind {
	switch {
	case status == http.StatusNotFound:
		return errorbank.KindNotFound
	case status == http.StatusUnprocessableEntity:
		return errorbank.KindUnprocessableEntity
	case status == http.StatusConflict:
		return errorbank.KindConflict
	case status >= http.StatusInternalServerError:
		return errorbank.KindInternal
	default:
		return errorbank.KindBadRequest
	}
}

func wantsJSON(c echo.Context) bool {
	req := c.Request()
	if strings.EqualFold(req.Header.Get(echo.HeaderXRequestedWith), "XMLHttpRequest") {
		return true
	}
	if strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return true
	}
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:    addr,
		Handler: e,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
