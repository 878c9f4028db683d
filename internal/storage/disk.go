package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/config"
)

// ErrFileNotFound is returned when a stored path does not exist on the disk.
var ErrFileNotFound = errors.New("stored file not found")

// Module provides the public disk to Fx.
var Module = fx.Provide(NewDisk)

// Disk is the public upload area. Callers see slash separated paths relative
// to the disk root, e.g. "proofs/<uuid>_receipt.pdf"; the underlying fs is
// always addressed with a leading slash so http.FileSystem lookups match.
type Disk struct {
	fs        afero.Fs
	publicURL string
}

// NewDisk roots a disk at the configured storage directory on the local
// filesystem, creating it when missing.
func NewDisk(cfg config.Config, logger *zap.Logger) (*Disk, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	logger.Info("public disk ready", zap.String("root", cfg.Storage.Root))
	return NewDiskFromFs(afero.NewBasePathFs(osFs, cfg.Storage.Root), cfg.Storage.PublicURL), nil
}

// NewDiskFromFs wraps an arbitrary afero filesystem, typically a MemMapFs in tests.
func NewDiskFromFs(fsys afero.Fs, publicURL string) *Disk {
	return &Disk{fs: fsys, publicURL: "/" + strings.Trim(publicURL, "/")}
}

// Put stores r under folder using a collision resistant name built from a
// random token and the client supplied file name. It returns the relative path.
func (d *Disk) Put(folder, originalName string, r io.Reader) (string, error) {
	folder = strings.Trim(path.Clean("/"+folder), "/")
	name := uuid.NewString() + "_" + sanitizeName(originalName)
	rel := path.Join(folder, name)

	if err := d.fs.MkdirAll("/"+folder, 0o755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", folder, err)
	}

	f, err := d.fs.OpenFile("/"+rel, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", rel, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = d.fs.Remove("/" + rel)
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", rel, err)
	}
	return rel, nil
}

// Open returns a reader for a stored path.
func (d *Disk) Open(rel string) (io.ReadCloser, error) {
	f, err := d.fs.Open("/" + cleanRel(rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	return f, err
}

// Exists reports whether rel points at a stored file.
func (d *Disk) Exists(rel string) bool {
	ok, err := afero.Exists(d.fs, "/"+cleanRel(rel))
	return err == nil && ok
}

// Delete removes a stored file. Missing files yield ErrFileNotFound.
func (d *Disk) Delete(rel string) error {
	rel = cleanRel(rel)
	if rel == "" {
		return ErrFileNotFound
	}
	err := d.fs.Remove("/" + rel)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrFileNotFound
	}
	return err
}

// URL is the public address a stored path is served from.
func (d *Disk) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return path.Join(d.publicURL, cleanRel(rel))
}

// PublicURL is the prefix files are served under.
func (d *Disk) PublicURL() string {
	return d.publicURL
}

// Handler serves the disk read-only under PublicURL.
func (d *Disk) Handler() http.Handler {
	return http.StripPrefix(d.publicURL, http.FileServer(afero.NewHttpFs(afero.NewReadOnlyFs(d.fs))))
}

func cleanRel(rel string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(rel)), "/")
}

func sanitizeName(name string) string {
	name = path.Base(filepath.ToSlash(strings.TrimSpace(name)))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r < 0x20:
			return -1
		case r == ' ':
			return '_'
		default:
			return r
		}
	}, name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
