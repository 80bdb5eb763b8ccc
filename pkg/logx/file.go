package logx

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	AppLogName   = "app.log"
	ErrorLogName = "error.log"

	defaultLogDir = "logs"
)

// FileTransport persists records as JSON lines under a directory created
// fresh for each run:
//
//	<base>/<run-timestamp>/app.log    every record
//	<base>/<run-timestamp>/error.log  ERROR records only
type FileTransport struct {
	dir string

	ready    chan struct{}
	mkdirErr error

	app  *appendFile
	errs *appendFile
}

type fileOptions struct {
	now      func() time.Time
	fallback func(format string, args ...any)
}

type FileOption func(*fileOptions)

// WithFileClock sets the clock used to name the run directory.
func WithFileClock(now func() time.Time) FileOption {
	return func(o *fileOptions) { o.now = now }
}

// NewFileTransport derives the run directory from baseDir (default "logs",
// relative paths resolve against the working directory) and starts creating
// it in the background. A creation failure is reported on stderr; appends
// will keep failing and be reported by the Logger.
func NewFileTransport(baseDir string, opts ...FileOption) *FileTransport {
	o := fileOptions{
		now: time.Now,
		fallback: func(format string, args ...any) {
			fmt.Fprintf(Stderr(), "logx: "+format+"\n", args...)
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := strings.TrimSpace(baseDir)
	if base == "" {
		base = defaultLogDir
	}
	if !filepath.IsAbs(base) {
		if wd, err := os.Getwd(); err == nil {
			base = filepath.Join(wd, base)
		}
	}
	dir := filepath.Join(base, RunDirName(o.now()))

	t := &FileTransport{
		dir:   dir,
		ready: make(chan struct{}),
		app:   &appendFile{path: filepath.Join(dir, AppLogName)},
		errs:  &appendFile{path: filepath.Join(dir, ErrorLogName)},
	}
	go func() {
		defer close(t.ready)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.mkdirErr = err
			o.fallback("failed to create log directory %q: %v", dir, err)
		}
	}()
	return t
}

// RunDirName turns t into a path-safe directory name: the ISO-8601 UTC
// timestamp with ':' and '.' replaced by '-'.
func RunDirName(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(formatTimestamp(t))
}

// Dir returns the run directory.
func (t *FileTransport) Dir() string { return t.dir }

// Ready is closed once directory creation finished; Err reports its outcome.
func (t *FileTransport) Ready() <-chan struct{} { return t.ready }

func (t *FileTransport) Err() error {
	select {
	case <-t.ready:
		return t.mkdirErr
	default:
		return nil
	}
}

// Log appends rec to app.log and, for ERROR records, to error.log. Both
// appends are attempted; their failures are joined.
func (t *FileTransport) Log(rec Record) error {
	<-t.ready
	line := EncodeRecord(rec)

	var errs []error
	if err := t.app.append(line); err != nil {
		errs = append(errs, fmt.Errorf("write %s: %w", AppLogName, err))
	}
	if rec.Level == LevelError {
		if err := t.errs.append(line); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", ErrorLogName, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases open file handles.
func (t *FileTransport) Close() error {
	<-t.ready
	return errors.Join(t.app.close(), t.errs.close())
}

// EncodeRecord renders rec as a single JSON line (trailing newline included)
// with keys timestamp, level, levelName, message, filePath, meta?, stack?.
func EncodeRecord(rec Record) []byte {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	e := zl.Log().
		Str("timestamp", rec.Timestamp).
		Int("level", int(rec.Level)).
		Str("levelName", rec.LevelName).
		Str("message", rec.Message).
		Str("filePath", rec.FilePath)
	switch m := rec.Meta.(type) {
	case nil:
	case error:
		e = e.AnErr("meta", m)
	default:
		e = e.Interface("meta", m)
	}
	if rec.Stack != "" {
		e = e.Str("stack", rec.Stack)
	}
	e.Send()
	return buf.Bytes()
}

// appendFile serializes appends to one file. The handle is opened lazily in
// append-only mode and dropped after a failed write so the next call
// reopens it.
type appendFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func (a *appendFile) append(p []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		a.f = f
	}
	if _, err := a.f.Write(p); err != nil {
		_ = a.f.Close()
		a.f = nil
		return err
	}
	return nil
}

func (a *appendFile) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}
