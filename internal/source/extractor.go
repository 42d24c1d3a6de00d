package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"

	"github.com/codefolio/codefolio/internal/cache"
	"github.com/codefolio/codefolio/internal/logging"
	"github.com/codefolio/codefolio/internal/project"
)

// Limits bounds a single extraction. Zero disables the corresponding check.
type Limits struct {
	// MaxEntries caps the number of entries in the archive's central directory.
	MaxEntries int
	// MaxTotalSize caps the bytes actually written to disk, measured while
	// decompressing rather than trusted from the entry headers.
	MaxTotalSize int64
}

// OpenFunc opens the archive to extract. It is only called on a cold cache.
type OpenFunc func() (project.Archive, error)

// Extractor populates per-project cache directories from source archives.
type Extractor struct {
	cache  cache.Store
	limits Limits
	logger *logrus.Logger
}

// NewExtractor 构建解压器，store 提供目录与项目锁，logger 为 nil 时丢弃日志。
func NewExtractor(store cache.Store, limits Limits, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Extractor{cache: store, limits: limits, logger: logger}
}

type extractStats struct {
	files   int
	dirs    int
	skipped int
	bytes   int64
}

// EnsureExtracted 返回项目缓存目录；目录为空时在项目锁内完成一次完整解压。
// 第二个返回值表示本次调用是否执行了解压。目录非空即信任缓存，不会与压缩包比对。
func (e *Extractor) EnsureExtracted(ctx context.Context, projectID string, open OpenFunc) (string, bool, error) {
	unlock := e.cache.Lock(projectID)
	defer unlock()

	dir, err := e.cache.Dir(projectID)
	if err != nil {
		return "", false, newError(ErrExtraction, "cache_dir", projectID, "", err)
	}
	empty, err := cache.IsEmpty(dir)
	if err != nil {
		return "", false, newError(ErrExtraction, "cache_dir", projectID, "", err)
	}
	if !empty {
		return dir, false, nil
	}

	archive, err := open()
	if err != nil {
		if errors.Is(err, project.ErrNoArchive) {
			return "", false, newError(ErrNoArchive, "open_archive", projectID, "", err)
		}
		return "", false, newError(ErrExtraction, "open_archive", projectID, "", err)
	}
	defer archive.Close()

	staging, err := e.cache.Stage(projectID)
	if err != nil {
		return "", false, newError(ErrExtraction, "stage", projectID, "", err)
	}

	stats, err := e.extractAll(ctx, archive, staging)
	if err == nil {
		err = e.cache.Commit(projectID, staging)
	}
	if err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			e.logger.WithError(rmErr).WithField("staging", staging).Warn("staging_cleanup_failed")
		}
		return "", false, newError(ErrExtraction, "extract", projectID, "", err)
	}

	fields := logging.ExtractionFields(projectID, stats.files+stats.dirs, humanize.Bytes(uint64(stats.bytes)))
	fields["skipped"] = stats.skipped
	e.logger.WithFields(fields).Info("archive extracted")
	return dir, true, nil
}

func (e *Extractor) extractAll(ctx context.Context, archive project.Archive, dest string) (extractStats, error) {
	var stats extractStats

	// Non-local entry names still yield a usable reader; SecureJoin clamps them below.
	zr, err := zip.NewReader(archive, archive.Size())
	if err != nil && zr == nil {
		return stats, fmt.Errorf("read zip: %w", err)
	}
	if e.limits.MaxEntries > 0 && len(zr.File) > e.limits.MaxEntries {
		return stats, fmt.Errorf("%w: %d entries, limit %d", ErrLimitExceeded, len(zr.File), e.limits.MaxEntries)
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		target, err := securejoin.SecureJoin(dest, f.Name)
		if err != nil {
			return stats, fmt.Errorf("resolve entry %q: %w", f.Name, err)
		}
		if target == dest {
			stats.skipped++
			continue
		}

		mode := f.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			if err := os.MkdirAll(target, 0o755); err != nil {
				return stats, fmt.Errorf("create dir %q: %w", f.Name, err)
			}
			stats.dirs++
		case mode.IsRegular():
			written, err := e.writeEntry(f, target, stats.bytes)
			stats.bytes += written
			if err != nil {
				return stats, err
			}
			stats.files++
		default:
			// symlinks and device entries are not materialised
			stats.skipped++
		}
	}
	return stats, nil
}

func (e *Extractor) writeEntry(f *zip.File, target string, used int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create parent of %q: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create file %q: %w", f.Name, err)
	}

	var src io.Reader = rc
	remaining := int64(-1)
	if e.limits.MaxTotalSize > 0 {
		remaining = e.limits.MaxTotalSize - used
		src = io.LimitReader(rc, remaining+1)
	}

	written, err := io.Copy(out, src)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return written, fmt.Errorf("write file %q: %w", f.Name, err)
	}
	if remaining >= 0 && written > remaining {
		return written, fmt.Errorf("%w: more than %s uncompressed", ErrLimitExceeded, humanize.Bytes(uint64(e.limits.MaxTotalSize)))
	}
	return written, nil
}
