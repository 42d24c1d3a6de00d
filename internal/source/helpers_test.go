package source

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/codefolio/codefolio/internal/cache"
	"github.com/codefolio/codefolio/internal/project"
)

type zipEntry struct {
	name string
	body string
	mode fs.FileMode
}

func file(name, body string) zipEntry { return zipEntry{name: name, body: body} }

func dir(name string) zipEntry { return zipEntry{name: name, mode: fs.ModeDir | 0o755} }

func symlink(name, target string) zipEntry {
	return zipEntry{name: name, body: target, mode: fs.ModeSymlink | 0o777}
}

// buildZip renders entries into an in-memory ZIP archive.
func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.mode != 0 {
			hdr.SetMode(e.mode)
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		if e.body != "" {
			_, err = io.WriteString(w, e.body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type memArchive struct {
	*bytes.Reader
}

func (memArchive) Close() error { return nil }

func openBytes(data []byte) OpenFunc {
	return func() (project.Archive, error) {
		return memArchive{bytes.NewReader(data)}, nil
	}
}

// countingOpen wraps an OpenFunc and counts how many times the archive is opened.
func countingOpen(open OpenFunc, calls *int32) OpenFunc {
	return func() (project.Archive, error) {
		atomic.AddInt32(calls, 1)
		return open()
	}
}

func newTestExtractor(t *testing.T, limits Limits) (*Extractor, cache.Store, string) {
	t.Helper()
	mediaRoot := t.TempDir()
	store, err := cache.NewStore(mediaRoot)
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewExtractor(store, limits, logger), store, mediaRoot
}

// fakeCatalog serves projects from memory and counts archive opens.
type fakeCatalog struct {
	projects map[int64]project.Project
	archives map[int64][]byte
	opens    int32
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		projects: map[int64]project.Project{},
		archives: map[int64][]byte{},
	}
}

func (c *fakeCatalog) add(id int64, archive []byte) {
	p := project.Project{ID: id, Title: "project"}
	if archive != nil {
		p.ArchivePath = "memory.zip"
		c.archives[id] = archive
	}
	c.projects[id] = p
}

func (c *fakeCatalog) Get(_ context.Context, id int64) (project.Project, error) {
	p, ok := c.projects[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

func (c *fakeCatalog) OpenArchive(_ context.Context, p project.Project) (project.Archive, error) {
	atomic.AddInt32(&c.opens, 1)
	data, ok := c.archives[p.ID]
	if !ok {
		return nil, project.ErrNoArchive
	}
	return memArchive{bytes.NewReader(data)}, nil
}

func (c *fakeCatalog) openCount() int32 {
	return atomic.LoadInt32(&c.opens)
}
