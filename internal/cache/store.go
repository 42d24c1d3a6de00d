package cache

import (
	"errors"
	"time"
)

// Store 负责管理项目解压缓存目录。磁盘布局遵循：
//
//	<MediaRoot>/zip_cache/<ProjectID>/...        # 与压缩包内部结构一致
//	<MediaRoot>/zip_cache/.staging-<ProjectID>-* # 解压中的临时目录
//
// 目录存在且非空即视为解压已完成，Store 自身不会主动失效缓存。
type Store interface {
	// Dir 返回项目缓存目录（必要时创建），重复调用没有额外副作用。
	Dir(projectID string) (string, error)

	// Lock 获取项目级互斥锁，返回的函数用于释放。
	Lock(projectID string) func()

	// Stage 在缓存根目录下创建项目专属的临时解压目录。
	Stage(projectID string) (string, error)

	// Commit 用 Stage 目录整体替换项目缓存目录，调用方需持有项目锁。
	Commit(projectID, staging string) error

	// Purge 删除项目缓存目录，下一次访问会重新解压。
	Purge(projectID string) error

	// Entries 列出已有的项目缓存目录，供诊断接口使用。
	Entries() ([]Entry, error)
}

// Entry 描述一个项目缓存目录。
type Entry struct {
	ProjectID string    `json:"project_id"`
	Dir       string    `json:"dir"`
	Populated bool      `json:"populated"`
	ModTime   time.Time `json:"mod_time"`
}

var (
	// ErrInvalidProject 表示项目 ID 不能安全地作为单级目录名。
	ErrInvalidProject = errors.New("invalid project id for cache directory")

	// ErrNotEmpty 表示 Commit 时目标目录已被填充。
	ErrNotEmpty = errors.New("cache directory already populated")
)
