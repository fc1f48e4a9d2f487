// Package archive unpacks an EasyWorship schedule archive (.ewsx, a zip
// containing the schedule database) into a temporary workspace and repacks it
// after the database has been rewritten.
package archive

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DatabaseName is the schedule database file inside the archive.
const DatabaseName = "main.db"

// Workspace is an extracted archive on disk. Close removes it.
type Workspace struct {
	root string
}

// Extract unpacks the archive at inputPath into a fresh temporary directory.
func Extract(ctx context.Context, inputPath string) (*Workspace, error) {
	root, err := os.MkdirTemp("", "ewsub-*")
	if err != nil {
		return nil, errors.Errorf("creating workspace: %w", err)
	}

	ws := &Workspace{root: root}
	if err := ws.unpack(ctx, inputPath); err != nil {
		ws.Close()
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("input", inputPath).
		Str("workspace", root).
		Msg("archive extracted")
	return ws, nil
}

// DatabasePath returns the location of the schedule database in the
// workspace.
func (w *Workspace) DatabasePath() string {
	return filepath.Join(w.root, DatabaseName)
}

// Close removes the workspace directory and everything in it.
func (w *Workspace) Close() error {
	if err := os.RemoveAll(w.root); err != nil {
		return errors.Errorf("removing workspace %s: %w", w.root, err)
	}
	return nil
}

func (w *Workspace) unpack(ctx context.Context, inputPath string) error {
	r, err := zip.OpenReader(inputPath)
	if err != nil {
		return errors.Errorf("opening archive %s: %w", inputPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := w.unpackFile(f); err != nil {
			return errors.Errorf("extracting %s from %s: %w", f.Name, inputPath, err)
		}
	}
	return nil
}

func (w *Workspace) unpackFile(f *zip.File) error {
	// Reject entries that would escape the workspace.
	dest := filepath.Join(w.root, filepath.FromSlash(f.Name))
	if !strings.HasPrefix(dest, w.root+string(os.PathSeparator)) {
		return errors.Errorf("entry path escapes workspace")
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return errors.Errorf("creating directory: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Errorf("creating parent directory: %w", err)
	}

	src, err := f.Open()
	if err != nil {
		return errors.Errorf("opening entry: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return errors.Errorf("creating file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return errors.Errorf("writing file: %w", err)
	}
	return nil
}

// Repack zips the workspace contents into outputPath, preserving relative
// paths, so the result is a valid schedule archive again.
func (w *Workspace) Repack(ctx context.Context, outputPath string) (err error) {
	out, err := os.Create(outputPath)
	if err != nil {
		return errors.Errorf("creating output archive %s: %w", outputPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Errorf("closing output archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(out)
	defer func() {
		if cerr := zw.Close(); cerr != nil && err == nil {
			err = errors.Errorf("finalizing output archive: %w", cerr)
		}
	}()

	err = filepath.WalkDir(w.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == w.root {
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}

		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(entry, src)
		return err
	})
	if err != nil {
		return errors.Errorf("repacking workspace into %s: %w", outputPath, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("output", outputPath).
		Msg("archive repacked")
	return nil
}
