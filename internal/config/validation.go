package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(strings.TrimSpace(g.LogLevel)); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if strings.TrimSpace(g.MediaRoot) == "" {
		return newFieldError("Global.MediaRoot", "不能为空")
	}
	if strings.TrimSpace(g.DatabasePath) == "" {
		return newFieldError("Global.DatabasePath", "不能为空")
	}
	if g.MaxArchiveEntries <= 0 {
		return newFieldError("Global.MaxArchiveEntries", "必须大于 0")
	}
	if g.MaxArchiveSize <= 0 {
		return newFieldError("Global.MaxArchiveSize", "必须大于 0")
	}
	if g.ReadTimeout.DurationValue() <= 0 {
		return newFieldError("Global.ReadTimeout", "必须大于 0")
	}
	if g.WriteTimeout.DurationValue() <= 0 {
		return newFieldError("Global.WriteTimeout", "必须大于 0")
	}

	seenIDs := map[int64]struct{}{}
	for i := range c.Projects {
		project := &c.Projects[i]
		id := strconv.FormatInt(project.ID, 10)
		if project.ID <= 0 {
			return newFieldError(projectField(id, "ID"), "必须为正整数")
		}
		if _, exists := seenIDs[project.ID]; exists {
			return newFieldError(projectField(id, "ID"), "重复")
		}
		seenIDs[project.ID] = struct{}{}

		project.Title = strings.TrimSpace(project.Title)
		if project.Title == "" {
			return newFieldError(projectField(id, "Title"), "不能为空")
		}
		if err := validateArchive(project.Archive); err != nil {
			return fmt.Errorf("%s: %w", projectField(id, "Archive"), err)
		}
	}

	return nil
}

func validateArchive(raw string) error {
	archive := strings.TrimSpace(raw)
	if archive == "" {
		return nil
	}
	if !strings.EqualFold(filepath.Ext(archive), ".zip") {
		return fmt.Errorf("仅支持 .zip 压缩包: %s", raw)
	}
	return nil
}
