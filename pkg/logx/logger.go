package logx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Options configures a Logger. It is read once by New.
type Options struct {
	Level      Level
	Transports []Transport

	// CallerSkip adds frames to skip when resolving the origin file, for
	// callers that wrap the Logger in their own helpers.
	CallerSkip int

	// Fallback receives diagnostics about failed transports. Defaults to stderr.
	Fallback io.Writer

	// Root is stripped from origin file paths. Defaults to the working directory.
	Root string

	// Now is the clock used for record timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Logger emits leveled records to a fixed set of transports.
//
// A Logger is immutable after New and safe for concurrent use. A nil
// *Logger is a valid no-op logger.
type Logger struct {
	level      Level
	transports []Transport
	skip       int
	root       string
	now        func() time.Time
	fallback   zerolog.Logger

	inflight tracker
}

// New builds a Logger. The transports slice is copied.
func New(opts Options) *Logger {
	fb := opts.Fallback
	if fb == nil {
		fb = Stderr()
	}
	root := opts.Root
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ts := make([]Transport, 0, len(opts.Transports))
	for _, t := range opts.Transports {
		if t != nil {
			ts = append(ts, t)
		}
	}
	return &Logger{
		level:      opts.Level,
		transports: ts,
		skip:       defaultCallerSkip + max(0, opts.CallerSkip),
		root:       root,
		now:        now,
		fallback:   zerolog.New(fb).With().Timestamp().Str("comp", "logx").Logger(),
	}
}

// Nop returns a logger that never writes anything.
func Nop() *Logger { return New(Options{Level: LevelError + 1}) }

// Level returns the minimum level this logger emits.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelError + 1
	}
	return l.level
}

// Enabled reports whether the given level would be logged.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.level && len(l.transports) > 0
}

// Debug, Info and Warn attach meta as-is: none leaves it empty, one value
// is used directly, several are attached as a slice.
func (l *Logger) Debug(msg string, meta ...any) { l.log(LevelDebug, msg, "", meta) }
func (l *Logger) Info(msg string, meta ...any)  { l.log(LevelInfo, msg, "", meta) }
func (l *Logger) Warn(msg string, meta ...any)  { l.log(LevelWarn, msg, "", meta) }

// Error logs at error level. v is either a message or an error; for an
// error the record message is err.Error() and the stack is the error's own
// stack (see WithStack) or, if it has none, the stack of this call.
func (l *Logger) Error(v any, meta ...any) {
	switch x := v.(type) {
	case error:
		stack, ok := errorStack(x)
		if !ok {
			stack = stackTrace(3, 0)
		}
		l.log(LevelError, safeText(x, "Error", x.Error), stack, meta)
	case string:
		l.log(LevelError, x, "", meta)
	case fmt.Stringer:
		l.log(LevelError, safeText(x, "String", x.String), "", meta)
	default:
		l.log(LevelError, fmt.Sprint(x), "", meta)
	}
}

// safeText calls an Error or String method the way fmt does: a nil pointer
// receiver that panics renders as "<nil>", any other panic is reported inline.
func safeText(v any, method string, text func() string) (s string) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			s = "<nil>"
			return
		}
		s = fmt.Sprintf("%%!v(PANIC=%s method: %v)", method, r)
	}()
	return text()
}

func (l *Logger) log(level Level, msg, stack string, meta []any) {
	if l == nil || level < l.level || len(l.transports) == 0 {
		return
	}
	rec := Record{
		Timestamp: formatTimestamp(l.now()),
		Level:     level,
		LevelName: level.String(),
		Message:   msg,
		FilePath:  originFile(l.skip, l.root),
		Meta:      collapseMeta(meta),
		Stack:     stack,
	}
	l.dispatch(rec)
}

func collapseMeta(meta []any) any {
	switch len(meta) {
	case 0:
		return nil
	case 1:
		return meta[0]
	default:
		return append([]any(nil), meta...)
	}
}

// dispatch fans rec out without blocking the caller. Delivery is not
// guaranteed; Wait only exists for shutdown draining.
func (l *Logger) dispatch(rec Record) {
	l.inflight.add()
	go func() {
		defer l.inflight.done()
		var g errgroup.Group
		for _, t := range l.transports {
			t := t
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("transport panic: %v", r)
					}
				}()
				return t.Log(rec)
			})
		}
		if err := g.Wait(); err != nil {
			l.fallback.Error().
				Err(err).
				Str("level_name", rec.LevelName).
				Str("record_message", rec.Message).
				Msg("logging to a transport failed")
		}
	}()
}

// Wait blocks until every record dispatched so far has been handled by all
// transports, or ctx is done.
func (l *Logger) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.inflight.wait(ctx)
}

// Close drains in-flight records and closes transports that implement
// io.Closer. The Logger must not be used afterwards.
func (l *Logger) Close(ctx context.Context) error {
	if l == nil {
		return nil
	}
	werr := l.Wait(ctx)
	var errs []error
	if werr != nil {
		errs = append(errs, werr)
	}
	for _, t := range l.transports {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// tracker counts in-flight dispatches. Unlike sync.WaitGroup it tolerates
// add() racing with wait().
type tracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (t *tracker) add() {
	t.mu.Lock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
	t.mu.Unlock()
}

func (t *tracker) done() {
	t.mu.Lock()
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
	t.mu.Unlock()
}

func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.n == 0 {
		t.mu.Unlock()
		return nil
	}
	ch := t.idle
	t.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
