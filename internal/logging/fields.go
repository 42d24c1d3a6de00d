package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供项目/接口/命中状态字段，供源码浏览请求日志复用。
func RequestFields(projectID, endpoint, requestPath string, cacheHit bool) logrus.Fields {
	fields := logrus.Fields{
		"project_id": projectID,
		"endpoint":   endpoint,
		"cache_hit":  cacheHit,
	}
	if requestPath != "" {
		fields["path"] = requestPath
	}
	return fields
}

// ExtractionFields 描述一次解压的规模，便于排查磁盘占用。
func ExtractionFields(projectID string, entries int, bytes string) logrus.Fields {
	return logrus.Fields{
		"action":     "extract",
		"project_id": projectID,
		"entries":    entries,
		"bytes":      bytes,
	}
}
