package routes

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/codefolio/codefolio/internal/cache"
	"github.com/codefolio/codefolio/internal/server"
	"github.com/codefolio/codefolio/internal/version"
)

// RegisterDiagnosticsRoutes 暴露 /-/ 前缀的运维接口：健康检查、缓存列表与手动失效。
func RegisterDiagnosticsRoutes(app *fiber.App, store cache.Store, logger *logrus.Logger) {
	if app == nil || store == nil || logger == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version.Full(),
		})
	})

	app.Get("/-/cache", func(c fiber.Ctx) error {
		entries, err := store.Entries()
		if err != nil {
			logger.WithError(err).WithField("action", "cache_list").Error("cache_list_failed")
			return server.WriteError(c, fiber.StatusInternalServerError, "failed to list cache")
		}
		return c.JSON(fiber.Map{"entries": encodeEntries(entries)})
	})

	app.Delete("/-/cache/:id", func(c fiber.Ctx) error {
		rawID := c.Params("id")
		id, ok := parseProjectID(rawID)
		if !ok {
			return server.WriteError(c, fiber.StatusBadRequest, "invalid project id")
		}
		key := strconv.FormatInt(id, 10)
		fields := logrus.Fields{
			"action":     "cache_purge",
			"project_id": key,
			"request_id": server.RequestID(c),
		}
		if err := store.Purge(key); err != nil {
			logger.WithError(err).WithFields(fields).Error("cache_purge_failed")
			return server.WriteError(c, fiber.StatusInternalServerError, "failed to purge cache")
		}
		logger.WithFields(fields).Info("cache_purged")
		return c.SendStatus(fiber.StatusNoContent)
	})
}

type entryPayload struct {
	cache.Entry
	Age string `json:"age,omitempty"`
}

func encodeEntries(entries []cache.Entry) []entryPayload {
	result := make([]entryPayload, 0, len(entries))
	for _, e := range entries {
		item := entryPayload{Entry: e}
		if !e.ModTime.IsZero() {
			item.Age = humanize.Time(e.ModTime)
		}
		result = append(result, item)
	}
	return result
}
