// Package logarchive compresses old per-run log directories into
// <run>.tar.zst files.
package logarchive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/klauspost/compress/zstd"

	"modbot/pkg/logx"
)

// Ext is appended to the run directory name.
const Ext = ".tar.zst"

// runDir matches logx.RunDirName output.
var runDir = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z$`)

type options struct {
	current string
	log     *logx.Logger
}

type Option func(*options)

// WithCurrent protects the active run directory regardless of keep.
func WithCurrent(dir string) Option {
	return func(o *options) { o.current = filepath.Clean(dir) }
}

func WithLogger(log *logx.Logger) Option {
	return func(o *options) { o.log = log }
}

// Archive compresses every run directory under baseDir except the newest
// keep (at least one) and removes the originals. It returns the archive
// paths it wrote.
func Archive(baseDir string, keep int, opts ...Option) ([]string, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	keep = max(keep, 1)

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() && runDir.MatchString(e.Name()) {
			runs = append(runs, e.Name())
		}
	}
	// names sort chronologically
	sort.Strings(runs)
	if len(runs) <= keep {
		return nil, nil
	}

	var (
		out  []string
		errs []error
	)
	for _, name := range runs[:len(runs)-keep] {
		dir := filepath.Join(baseDir, name)
		if o.current != "" && filepath.Clean(dir) == o.current {
			continue
		}
		dst := dir + Ext
		if err := compressDir(dir, dst); err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", name, err))
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
		o.log.Info("archived log run "+name, logx.Fields{"archive": dst})
		out = append(out, dst)
	}
	return out, errors.Join(errs...)
}

func compressDir(dir, dst string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".archive-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(enc)
	root := filepath.Base(dir)

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(root, rel))
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		_ = tw.Close()
		_ = enc.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
