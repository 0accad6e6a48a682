package archiver

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/pgzip"
)

type tarGzWriter struct {
	gz *pgzip.Writer
	tw *tar.Writer
}

func newTarGzWriter(w io.Writer) (entryWriter, error) {
	gz, err := pgzip.NewWriterLevel(w, pgzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return &tarGzWriter{gz: gz, tw: tar.NewWriter(gz)}, nil
}

func (t *tarGzWriter) AddFile(name string, info fs.FileInfo, r io.Reader) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name

	if err := t.tw.WriteHeader(hdr); err != nil {
		return err
	}
	// The header size is fixed; a file growing meanwhile is cut at it.
	n, err := io.CopyN(t.tw, r, hdr.Size)
	if errors.Is(err, io.EOF) {
		// Shrunk since the header was written. Pad the entry so the
		// archive stays readable.
		if _, err := io.CopyN(t.tw, zeros{}, hdr.Size-n); err != nil {
			return err
		}
		return errFileShrank
	}
	return err
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func (t *tarGzWriter) AddDir(name string, info fs.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name + "/"
	return t.tw.WriteHeader(hdr)
}

func (t *tarGzWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		return err
	}
	return t.gz.Close()
}
