package server

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/macro-export/internal/config"
	"github.com/any-hub/macro-export/internal/pyc"
)

func TestRouterSetsRequestID(t *testing.T) {
	app := newTestApp(t, 5000)

	var seen string
	app.Get("/-/ping", func(c fiber.Ctx) error {
		seen = RequestID(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 status, got %d", resp.StatusCode)
	}
	reqID := resp.Header.Get("X-Request-ID")
	if reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if got := resp.Header.Get("X-Macro-Export-Runtime"); got != pyc.DefaultRuntimeName {
		t.Fatalf("expected runtime header %q, got %q", pyc.DefaultRuntimeName, got)
	}
	if seen != reqID {
		t.Fatalf("handler saw request id %q, header has %q", seen, reqID)
	}
}

func TestRouterRecoversFromPanic(t *testing.T) {
	app := newTestApp(t, 5000)
	app.Get("/-/boom", func(c fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/boom", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	runtime := &config.ExporterRuntime{}
	inspector := pyc.NewInspector(nil, pyc.Runtime{}, pyc.PathOptions{})

	cases := map[string]AppOptions{
		"missing logger":    {Runtime: runtime, Inspector: inspector, ListenPort: 5000},
		"missing runtime":   {Logger: logger, Inspector: inspector, ListenPort: 5000},
		"missing inspector": {Logger: logger, Runtime: runtime, ListenPort: 5000},
		"bad port":          {Logger: logger, Runtime: runtime, Inspector: inspector, ListenPort: 70000},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewApp(opts); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func newTestApp(t *testing.T, port int) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rt, _ := pyc.ResolveRuntime(pyc.DefaultRuntimeName)
	app, err := NewApp(AppOptions{
		Logger:     logger,
		Runtime:    &config.ExporterRuntime{Runtime: rt},
		Inspector:  pyc.NewInspector(nil, rt, pyc.PathOptions{}),
		ListenPort: port,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}
