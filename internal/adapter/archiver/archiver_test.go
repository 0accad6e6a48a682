package archiver

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/strata/internal/domain"
)

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordingLogger) Warnf(template string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, template)
}

func writeFiles(root string, files map[string]string) []string {
	var paths []string
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		So(os.MkdirAll(filepath.Dir(path), 0755), ShouldBeNil)
		So(os.WriteFile(path, []byte(content), 0644), ShouldBeNil)
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func readZip(path string) map[string]string {
	r, err := zip.OpenReader(path)
	So(err, ShouldBeNil)
	defer r.Close()

	entries := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		So(err, ShouldBeNil)
		data, err := io.ReadAll(rc)
		rc.Close()
		So(err, ShouldBeNil)
		entries[f.Name] = string(data)
	}
	return entries
}

func readTarGz(path string) map[string]string {
	f, err := os.Open(path)
	So(err, ShouldBeNil)
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	So(err, ShouldBeNil)
	defer gz.Close()

	entries := map[string]string{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		So(err, ShouldBeNil)
		data, err := io.ReadAll(tr)
		So(err, ShouldBeNil)
		entries[hdr.Name] = string(data)
	}
	return entries
}

func TestNew(t *testing.T) {
	Convey("Given archive formats", t, func() {
		logger := &recordingLogger{}

		Convey("zip is the default", func() {
			a, err := New("", logger)
			So(err, ShouldBeNil)
			So(a.Extension(), ShouldEqual, ".zip")
		})

		Convey("tar.gz is supported", func() {
			a, err := New("tar.gz", logger)
			So(err, ShouldBeNil)
			So(a.Extension(), ShouldEqual, ".tar.gz")
		})

		Convey("Unknown formats are rejected", func() {
			_, err := New("rar", logger)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unsupported archive format")
		})
	})
}

func TestArchiverWrite(t *testing.T) {
	Convey("Given an origin tree", t, func() {
		root, err := os.MkdirTemp("", "strata-archiver-*")
		So(err, ShouldBeNil)
		defer os.RemoveAll(root)

		origin := filepath.Join(root, "origin")
		dest := filepath.Join(root, "dest", "nested")
		files := writeFiles(origin, map[string]string{
			"a.txt":     "alpha",
			"sub/b.txt": "bravo",
		})
		So(os.MkdirAll(filepath.Join(origin, "empty"), 0755), ShouldBeNil)

		logger := &recordingLogger{}
		ctx := context.Background()

		Convey("zip archives hold entries relative to the origin", func() {
			a, _ := New("zip", logger)
			path, err := a.Write(ctx, domain.ArchiveRequest{
				Origin:      origin,
				Destination: dest,
				Name:        "INC_docs_14-10-2026_02-00",
				Files:       files,
			})
			So(err, ShouldBeNil)
			So(path, ShouldEqual, filepath.Join(dest, "INC_docs_14-10-2026_02-00.zip"))

			So(readZip(path), ShouldResemble, map[string]string{
				"a.txt":     "alpha",
				"sub/b.txt": "bravo",
			})
		})

		Convey("Full archives also record empty directories", func() {
			a, _ := New("zip", logger)
			path, err := a.Write(ctx, domain.ArchiveRequest{
				Origin:      origin,
				Destination: dest,
				Name:        "COM_docs",
				Files:       files,
				EmptyDirs:   true,
			})
			So(err, ShouldBeNil)

			entries := readZip(path)
			So(entries, ShouldContainKey, "empty/")
			So(entries, ShouldNotContainKey, "sub/")
		})

		Convey("tar.gz archives round-trip", func() {
			a, _ := New("tar.gz", logger)
			path, err := a.Write(ctx, domain.ArchiveRequest{
				Origin:      origin,
				Destination: dest,
				Name:        "COM_docs",
				Files:       files,
				EmptyDirs:   true,
			})
			So(err, ShouldBeNil)
			So(strings.HasSuffix(path, ".tar.gz"), ShouldBeTrue)

			So(readTarGz(path), ShouldResemble, map[string]string{
				"a.txt":     "alpha",
				"sub/b.txt": "bravo",
				"empty/":    "",
			})
		})

		Convey("A vanished file is skipped with a warning", func() {
			a, _ := New("zip", logger)
			gone := filepath.Join(origin, "gone.txt")
			path, err := a.Write(ctx, domain.ArchiveRequest{
				Origin:      origin,
				Destination: dest,
				Name:        "INC_docs",
				Files:       append([]string{gone}, files...),
			})
			So(err, ShouldBeNil)
			So(readZip(path), ShouldHaveLength, 2)
			So(logger.warnings, ShouldNotBeEmpty)
		})

		Convey("A file outside the origin fails the archive and leaves nothing behind", func() {
			outside := writeFiles(filepath.Join(root, "elsewhere"), map[string]string{"x.txt": "x"})
			a, _ := New("zip", logger)
			_, err := a.Write(ctx, domain.ArchiveRequest{
				Origin:      origin,
				Destination: dest,
				Name:        "INC_docs",
				Files:       append(files, outside...),
			})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "is not under")

			entries, err := os.ReadDir(dest)
			So(err, ShouldBeNil)
			So(entries, ShouldBeEmpty)
		})

		Convey("A cancelled context stops the archive", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			a, _ := New("zip", logger)
			_, err := a.Write(cancelled, domain.ArchiveRequest{
				Origin:      origin,
				Destination: dest,
				Name:        "INC_docs",
				Files:       files,
			})
			So(err, ShouldEqual, context.Canceled)

			_, statErr := os.Stat(filepath.Join(dest, "INC_docs.zip"))
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})
	})
}

func TestTarGzShrinkingFile(t *testing.T) {
	Convey("Given a file that shrinks after its header is written", t, func() {
		root, err := os.MkdirTemp("", "strata-archiver-shrink-*")
		So(err, ShouldBeNil)
		defer os.RemoveAll(root)

		path := filepath.Join(root, "log.txt")
		So(os.WriteFile(path, []byte("0123456789"), 0644), ShouldBeNil)
		info, err := os.Stat(path)
		So(err, ShouldBeNil)

		archive := filepath.Join(root, "out.tar.gz")
		f, err := os.Create(archive)
		So(err, ShouldBeNil)

		w, err := newTarGzWriter(f)
		So(err, ShouldBeNil)
		err = w.AddFile("log.txt", info, strings.NewReader("012"))
		So(w.Close(), ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		Convey("It reports the shrink and keeps a readable, padded entry", func() {
			So(errors.Is(err, errFileShrank), ShouldBeTrue)
			So(readTarGz(archive), ShouldResemble, map[string]string{
				"log.txt": "012\x00\x00\x00\x00\x00\x00\x00",
			})
		})
	})
}
