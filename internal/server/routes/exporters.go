package routes

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/jmgilman/go/errors"

	"github.com/any-hub/macro-export/internal/config"
	"github.com/any-hub/macro-export/internal/exporter"
	"github.com/any-hub/macro-export/internal/pyc"
	"github.com/any-hub/macro-export/internal/server"
	"github.com/any-hub/macro-export/internal/version"
)

// RegisterExporterRoutes 暴露 /-/exporters、/-/runtimes 与 /-/cache 诊断接口，只读。
func RegisterExporterRoutes(app *fiber.App, runtime *config.ExporterRuntime, inspector server.CacheInspector) {
	if app == nil || runtime == nil || inspector == nil {
		return
	}

	app.Get("/-/exporters", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"kinds":   encodeKinds(exporter.List()),
			"active":  encodeActive(*runtime),
			"version": version.Full(),
		})
	})

	app.Get("/-/runtimes", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"runtimes": encodeRuntimes(pyc.Runtimes()),
			"active":   runtime.Runtime.Name,
		})
	})

	app.Get("/-/cache", func(c fiber.Ctx) error {
		source := strings.TrimSpace(c.Query("source"))
		if source == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "source_required"})
		}
		if abs, err := filepath.Abs(source); err == nil {
			source = abs
		}

		cachePath, err := inspector.CachePathFor(source)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  "cache_path_unavailable",
				"detail": err.Error(),
			})
		}

		report, err := inspector.Inspect(cachePath)
		if err != nil {
			return renderInspectError(c, cachePath, err)
		}
		report.Source = source
		return c.JSON(report)
	})
}

func renderInspectError(c fiber.Ctx, cachePath string, err error) error {
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":      "cache_not_found",
			"cache_path": cachePath,
		})
	case pyc.CodeForeignOrCorruptCache:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":      "foreign_or_corrupt_cache",
			"cache_path": cachePath,
			"detail":     err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":      "inspect_failed",
			"cache_path": cachePath,
		})
	}
}

type kindPayload struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Destructive bool   `json:"destructive"`
}

type activePayload struct {
	Kind            string `json:"kind"`
	Root            string `json:"root"`
	TargetDirectory string `json:"target_directory,omitempty"`
	Runtime         string `json:"runtime"`
	Invalidation    string `json:"invalidation"`
	Optimization    string `json:"optimization,omitempty"`
	PycachePrefix   string `json:"pycache_prefix,omitempty"`
}

type runtimePayload struct {
	Name        string `json:"name"`
	CacheTag    string `json:"cache_tag"`
	MagicNumber uint16 `json:"magic_number"`
	Magic       string `json:"magic"`
}

func encodeKinds(kinds []exporter.KindMetadata) []kindPayload {
	if len(kinds) == 0 {
		return nil
	}
	result := make([]kindPayload, 0, len(kinds))
	for _, meta := range kinds {
		result = append(result, kindPayload{
			Kind:        string(meta.Kind),
			Description: meta.Description,
			Destructive: meta.Destructive,
		})
	}
	return result
}

func encodeActive(rt config.ExporterRuntime) activePayload {
	cfg := rt.Config
	return activePayload{
		Kind:            string(cfg.KindValue()),
		Root:            cfg.Root,
		TargetDirectory: cfg.TargetDirectory,
		Runtime:         rt.Runtime.Name,
		Invalidation:    string(cfg.Invalidation),
		Optimization:    cfg.Optimization,
		PycachePrefix:   cfg.PycachePrefix,
	}
}

func encodeRuntimes(runtimes []pyc.Runtime) []runtimePayload {
	if len(runtimes) == 0 {
		return nil
	}
	result := make([]runtimePayload, 0, len(runtimes))
	for _, rt := range runtimes {
		result = append(result, runtimePayload{
			Name:        rt.Name,
			CacheTag:    rt.CacheTag,
			MagicNumber: rt.MagicNumber,
			Magic:       pyc.MagicString(rt.Magic()),
		})
	}
	return result
}
