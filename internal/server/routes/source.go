package routes

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/codefolio/codefolio/internal/logging"
	"github.com/codefolio/codefolio/internal/project"
	"github.com/codefolio/codefolio/internal/server"
	"github.com/codefolio/codefolio/internal/source"
)

// SourceBrowser is what the source routes need from the browsing service.
type SourceBrowser interface {
	Tree(ctx context.Context, id int64) ([]source.TreeNode, bool, error)
	File(ctx context.Context, id int64, rel string) (source.FileContent, bool, error)
}

const (
	endpointTree = "source-code-tree"
	endpointFile = "source-code-file"
)

// RegisterSourceRoutes 挂载项目源码浏览接口：目录树与单文件读取。
func RegisterSourceRoutes(app *fiber.App, browser SourceBrowser, logger *logrus.Logger) {
	if app == nil || browser == nil || logger == nil {
		return
	}
	h := &sourceHandler{browser: browser, logger: logger}
	app.Get("/projects/:id/"+endpointTree, h.tree)
	app.Get("/projects/:id/"+endpointFile, h.file)
}

type sourceHandler struct {
	browser SourceBrowser
	logger  *logrus.Logger
}

func (h *sourceHandler) tree(c fiber.Ctx) error {
	started := time.Now()
	rawID := c.Params("id")
	id, ok := parseProjectID(rawID)
	if !ok {
		return h.fail(c, rawID, endpointTree, "", false, started, project.ErrNotFound)
	}

	nodes, hit, err := h.browser.Tree(c.Context(), id)
	if err != nil {
		return h.fail(c, rawID, endpointTree, "", hit, started, err)
	}
	h.logResult(c, rawID, endpointTree, "", fiber.StatusOK, hit, started, nil)
	return c.JSON(nodes)
}

func (h *sourceHandler) file(c fiber.Ctx) error {
	started := time.Now()
	rawID := c.Params("id")
	rel := c.Query("path")
	id, ok := parseProjectID(rawID)
	if !ok {
		return h.fail(c, rawID, endpointFile, rel, false, started, project.ErrNotFound)
	}

	content, hit, err := h.browser.File(c.Context(), id, rel)
	if err != nil {
		return h.fail(c, rawID, endpointFile, rel, hit, started, err)
	}
	h.logResult(c, rawID, endpointFile, rel, fiber.StatusOK, hit, started, nil)
	return c.JSON(content)
}

func (h *sourceHandler) fail(c fiber.Ctx, projectID, endpoint, rel string, hit bool, started time.Time, err error) error {
	status, msg := statusFor(err)
	h.logResult(c, projectID, endpoint, rel, status, hit, started, err)
	return server.WriteError(c, status, msg)
}

// statusFor maps a browsing failure onto the HTTP status and the public
// message. Traversal attempts are reported as not found.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		return fiber.StatusNotFound, "project not found"
	case errors.Is(err, source.ErrNoArchive):
		return fiber.StatusNotFound, source.ErrNoArchive.Error()
	case errors.Is(err, source.ErrInvalidPath):
		return fiber.StatusBadRequest, source.ErrInvalidPath.Error()
	case errors.Is(err, source.ErrForbidden), errors.Is(err, source.ErrNotFound):
		return fiber.StatusNotFound, source.ErrNotFound.Error()
	case errors.Is(err, source.ErrExtraction):
		return fiber.StatusInternalServerError, source.ErrExtraction.Error()
	case errors.Is(err, source.ErrRead):
		return fiber.StatusInternalServerError, source.ErrRead.Error()
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}

func (h *sourceHandler) logResult(c fiber.Ctx, projectID, endpoint, rel string, status int, hit bool, started time.Time, err error) {
	fields := logging.RequestFields(projectID, endpoint, rel, hit)
	fields["action"] = "source"
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if reqID := server.RequestID(c); reqID != "" {
		fields["request_id"] = reqID
	}
	if err != nil {
		fields["error"] = err.Error()
		if status >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("source_failed")
			return
		}
		h.logger.WithFields(fields).Warn("source_rejected")
		return
	}
	h.logger.WithFields(fields).Info("source_complete")
}

func parseProjectID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
