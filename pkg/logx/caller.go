package logx

import (
	"errors"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// defaultCallerSkip is tuned to the frame depth
// originFile <- log <- {Debug,Info,Warn,Error} <- caller.
const defaultCallerSkip = 3

// originFile resolves the source file of the log call, relative to root
// when it lives below it. It never fails; unknown frames yield UnknownFile.
func originFile(skip int, root string) string {
	_, file, _, ok := runtime.Caller(skip)
	if !ok || file == "" {
		return UnknownFile
	}
	file = filepath.ToSlash(file)
	if root != "" {
		prefix := strings.TrimSuffix(filepath.ToSlash(root), "/") + "/"
		file = strings.TrimPrefix(file, prefix)
	}
	return file
}

func stackTrace(skip, maxFrames int) string {
	if maxFrames <= 0 {
		maxFrames = 32
	}
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	i := 0
	for {
		fr, more := frames.Next()
		if fr.File != "" {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fr.Function)
			b.WriteString("\n  ")
			b.WriteString(fr.File)
			b.WriteString(":")
			b.WriteString(strconv.Itoa(fr.Line))
			i++
		}
		if !more || i >= maxFrames {
			break
		}
	}
	return b.String()
}

// StackTracer is implemented by errors that carry the stack of the place
// they were created.
type StackTracer interface {
	StackTrace() string
}

type stackError struct {
	err   error
	stack string
}

func (e *stackError) Error() string      { return e.err.Error() }
func (e *stackError) Unwrap() error      { return e.err }
func (e *stackError) StackTrace() string { return e.stack }

// WithStack annotates err with the current goroutine stack. Errors that
// already carry a stack are returned unchanged.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	var st StackTracer
	if errors.As(err, &st) {
		return err
	}
	return &stackError{err: err, stack: stackTrace(3, 0)}
}

// NewError is errors.New with a captured stack.
func NewError(msg string) error {
	return &stackError{err: errors.New(msg), stack: stackTrace(3, 0)}
}

func errorStack(err error) (stack string, ok bool) {
	defer func() {
		if recover() != nil {
			stack, ok = "", false
		}
	}()
	var st StackTracer
	if errors.As(err, &st) {
		return st.StackTrace(), true
	}
	return "", false
}
