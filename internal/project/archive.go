package project

import (
	"context"
	"fmt"
	"os"
)

// Archive 是源码压缩包的随机读取句柄，解压器按需读取，不会整体载入内存。
type Archive interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

type fileArchive struct {
	*os.File
	size int64
}

func (a *fileArchive) Size() int64 {
	return a.size
}

// OpenArchive 打开项目关联的压缩包。项目未关联压缩包时返回 ErrNoArchive；
// 关联了但文件缺失或不可读时返回普通错误，由调用方按解压失败处理。
func (s *Store) OpenArchive(ctx context.Context, p Project) (Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.HasArchive() {
		return nil, ErrNoArchive
	}

	f, err := os.Open(p.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive for project %d: %w", p.ID, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat archive for project %d: %w", p.ID, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("archive for project %d is not a regular file", p.ID)
	}
	return &fileArchive{File: f, size: info.Size()}, nil
}
