package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/macro-export/internal/config"
	"github.com/any-hub/macro-export/internal/pyc"
)

// CacheInspector locates and decodes compiled caches for diagnostics. It
// allows injecting fakes during tests.
type CacheInspector interface {
	CachePathFor(source string) (string, error)
	Inspect(cachePath string) (*pyc.Report, error)
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Runtime    *config.ExporterRuntime
	Inspector  CacheInspector
	ListenPort int
}

const contextKeyRequestID = "_macro_export_request_id"

// NewApp builds a Fiber application with recover, request-ID and access-log
// middleware. Routes are attached by the routes package.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Runtime == nil {
		return nil, errors.New("exporter runtime is required")
	}
	if opts.Inspector == nil {
		return nil, errors.New("cache inspector is required")
	}
	if opts.ListenPort <= 0 || opts.ListenPort > 65535 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger, opts.Runtime))

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID、标注当前宿主，并在请求结束后输出 debug 级访问日志。
func requestContextMiddleware(logger *logrus.Logger, runtime *config.ExporterRuntime) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		c.Set("X-Macro-Export-Runtime", runtime.Runtime.Name)

		start := time.Now()
		err := c.Next()

		logger.WithFields(logrus.Fields{
			"action":     "http_request",
			"request_id": reqID,
			"exporter":   runtime.Config.Kind,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Debug("diagnostics request")
		return err
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
