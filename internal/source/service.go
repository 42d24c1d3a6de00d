package source

import (
	"context"
	"errors"
	"strings"

	"github.com/codefolio/codefolio/internal/project"
)

// Catalog is the slice of the content store the browsing service reads.
type Catalog interface {
	Get(ctx context.Context, id int64) (project.Project, error)
	OpenArchive(ctx context.Context, p project.Project) (project.Archive, error)
}

// FileContent is the payload of a single file read.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Service 串联内容库、解压器与目录树/文件读取，供 HTTP 层调用。
type Service struct {
	catalog   Catalog
	extractor *Extractor
}

// NewService wires the catalog and the extractor together.
func NewService(catalog Catalog, extractor *Extractor) *Service {
	return &Service{catalog: catalog, extractor: extractor}
}

// Tree 返回项目源码目录树；第二个返回值表示是否命中已有缓存。
// 未知项目返回 project.ErrNotFound。
func (s *Service) Tree(ctx context.Context, id int64) ([]TreeNode, bool, error) {
	p, dir, hit, err := s.prepare(ctx, id)
	if err != nil {
		return nil, false, err
	}
	nodes, err := BuildTree(dir)
	if err != nil {
		return nil, hit, newError(ErrRead, "tree", p.Key(), "", err)
	}
	return nodes, hit, nil
}

// File 返回项目内 rel 指向文件的文本内容。校验顺序：项目存在 → rel 非空 → 压缩包存在。
func (s *Service) File(ctx context.Context, id int64, rel string) (FileContent, bool, error) {
	p, err := s.catalog.Get(ctx, id)
	if err != nil {
		return FileContent{}, false, err
	}
	if strings.TrimSpace(rel) == "" {
		return FileContent{}, false, newError(ErrInvalidPath, "file", p.Key(), "", nil)
	}

	dir, hit, err := s.extract(ctx, p)
	if err != nil {
		return FileContent{}, false, err
	}

	f, err := OpenFile(dir, rel)
	if err != nil {
		return FileContent{}, hit, withProject(err, p.Key())
	}
	defer f.Close()

	content, err := ReadText(f)
	if err != nil {
		return FileContent{}, hit, withProject(err, p.Key())
	}
	return FileContent{Path: rel, Content: content}, hit, nil
}

func (s *Service) prepare(ctx context.Context, id int64) (project.Project, string, bool, error) {
	p, err := s.catalog.Get(ctx, id)
	if err != nil {
		return project.Project{}, "", false, err
	}
	dir, hit, err := s.extract(ctx, p)
	if err != nil {
		return project.Project{}, "", false, err
	}
	return p, dir, hit, nil
}

func (s *Service) extract(ctx context.Context, p project.Project) (string, bool, error) {
	if !p.HasArchive() {
		return "", false, newError(ErrNoArchive, "lookup", p.Key(), "", project.ErrNoArchive)
	}
	dir, extracted, err := s.extractor.EnsureExtracted(ctx, p.Key(), func() (project.Archive, error) {
		return s.catalog.OpenArchive(ctx, p)
	})
	if err != nil {
		return "", false, err
	}
	return dir, !extracted, nil
}

func withProject(err error, projectID string) error {
	var srcErr *Error
	if errors.As(err, &srcErr) && srcErr.Project == "" {
		srcErr.Project = projectID
	}
	return err
}
