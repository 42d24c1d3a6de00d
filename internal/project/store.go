package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codefolio/codefolio/internal/config"
	"github.com/codefolio/codefolio/internal/project/migrations"
)

const migrationTable = "schema_migrations"

var (
	// ErrNotFound 表示项目不存在。
	ErrNotFound = errors.New("project not found")

	// ErrNoArchive 表示项目没有关联源码压缩包。
	ErrNoArchive = errors.New("project has no source archive")
)

// Project 是内容库中的项目记录，本服务只读取它。
type Project struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ArchivePath string    `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasArchive 表示项目是否关联了源码压缩包。
func (p Project) HasArchive() bool {
	return strings.TrimSpace(p.ArchivePath) != ""
}

// Key 返回项目在缓存目录中的键。
func (p Project) Key() string {
	return strconv.FormatInt(p.ID, 10)
}

// Store provides a SQLite-backed project catalogue.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open 打开 path 处的 SQLite 数据库并执行内嵌迁移。
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, now: time.Now}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get 按 ID 读取项目，不存在时返回 ErrNotFound。
func (s *Store) Get(ctx context.Context, id int64) (Project, error) {
	if err := ctx.Err(); err != nil {
		return Project{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, title, description, archive_path, updated_at FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

// List 按 ID 升序返回全部项目。
func (s *Store) List(ctx context.Context) ([]Project, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, title, description, archive_path, updated_at FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Put 写入或更新项目记录。
func (s *Store) Put(ctx context.Context, p Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID <= 0 {
		return fmt.Errorf("project id must be positive")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("project title is required")
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO projects (id, title, description, archive_path, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    archive_path = excluded.archive_path,
    updated_at = excluded.updated_at`,
		p.ID, p.Title, p.Description, p.ArchivePath, p.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put project %d: %w", p.ID, err)
	}
	return nil
}

// Seed 将配置中声明的项目写入内容库，返回写入数量。
func (s *Store) Seed(ctx context.Context, projects []config.ProjectConfig, mediaRoot string) (int, error) {
	for i, pc := range projects {
		p := Project{
			ID:          pc.ID,
			Title:       pc.Title,
			Description: pc.Description,
			ArchivePath: pc.ArchivePath(mediaRoot),
		}
		if err := s.Put(ctx, p); err != nil {
			return i, err
		}
	}
	return len(projects), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var (
		p         Project
		updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.ArchivePath, &updatedAt); err != nil {
		return Project{}, err
	}
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return p, nil
}

// applyMigrations 按文件名顺序执行尚未记录的迁移，每个文件最多执行一次。
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range sqlFiles {
		var found int
		err := sqlDB.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	const upMarker, downMarker = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, downMarker)
	if downIdx == -1 {
		return content[upIdx+len(upMarker):]
	}
	return content[upIdx+len(upMarker) : downIdx]
}
