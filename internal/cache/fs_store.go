package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	cacheDirName  = "zip_cache"
	stagingPrefix = ".staging-"
)

// NewStore 以 mediaRoot 为根目录构建解压缓存，整站复用一份实例。
// 启动时会清理上一次进程遗留的临时解压目录。
func NewStore(mediaRoot string) (Store, error) {
	if mediaRoot == "" {
		return nil, errors.New("media root required")
	}

	abs, err := filepath.Abs(mediaRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}

	root := filepath.Join(abs, cacheDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	store := &fileStore{
		root:  root,
		locks: make(map[string]*entryLock),
	}
	if err := store.sweepStaging(); err != nil {
		return nil, fmt.Errorf("sweep staging dirs: %w", err)
	}
	return store, nil
}

// fileStore 通过 entryLock 避免同一项目并发解压，同时复用 root。
type fileStore struct {
	root string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Dir(projectID string) (string, error) {
	dir, err := s.dirPath(projectID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	return dir, nil
}

func (s *fileStore) Lock(projectID string) func() {
	s.mu.Lock()
	lock := s.locks[projectID]
	if lock == nil {
		lock = &entryLock{}
		s.locks[projectID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, projectID)
		}
		s.mu.Unlock()
	}
}

func (s *fileStore) Stage(projectID string) (string, error) {
	if err := validateProjectID(projectID); err != nil {
		return "", err
	}
	staging, err := os.MkdirTemp(s.root, stagingPrefix+projectID+"-")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return staging, nil
}

func (s *fileStore) Commit(projectID, staging string) error {
	target, err := s.dirPath(projectID)
	if err != nil {
		return err
	}
	if filepath.Dir(staging) != s.root || !strings.HasPrefix(filepath.Base(staging), stagingPrefix+projectID+"-") {
		return fmt.Errorf("staging dir %s does not belong to project %s", staging, projectID)
	}

	empty, err := IsEmpty(target)
	switch {
	case err == nil && !empty:
		return ErrNotEmpty
	case err == nil:
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("remove empty cache dir: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return err
	}

	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("commit staging dir: %w", err)
	}
	return nil
}

func (s *fileStore) Purge(projectID string) error {
	target, err := s.dirPath(projectID)
	if err != nil {
		return err
	}
	unlock := s.Lock(projectID)
	defer unlock()

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("purge cache dir: %w", err)
	}
	return nil
}

func (s *fileStore) Entries() ([]Entry, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.root, d.Name())
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		empty, err := IsEmpty(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		entries = append(entries, Entry{
			ProjectID: d.Name(),
			Dir:       dir,
			Populated: !empty,
			ModTime:   info.ModTime(),
		})
	}
	return entries, nil
}

func (s *fileStore) dirPath(projectID string) (string, error) {
	if err := validateProjectID(projectID); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, projectID)
	if filepath.Dir(dir) != s.root {
		return "", ErrInvalidProject
	}
	return dir, nil
}

func (s *fileStore) sweepStaging() error {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	for _, d := range dirents {
		if d.IsDir() && strings.HasPrefix(d.Name(), stagingPrefix) {
			if err := os.RemoveAll(filepath.Join(s.root, d.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsEmpty 判断目录是否没有任何条目，最多只读取一个目录项。
func IsEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func validateProjectID(projectID string) error {
	if projectID == "" || projectID == "." || projectID == ".." {
		return ErrInvalidProject
	}
	if strings.HasPrefix(projectID, ".") || strings.ContainsAny(projectID, `/\`) || strings.ContainsRune(projectID, os.PathSeparator) {
		return ErrInvalidProject
	}
	return nil
}
