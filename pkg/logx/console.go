package logx

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

func levelColor(l Level) string {
	switch l {
	case LevelDebug:
		return ansiGray
	case LevelInfo:
		return ansiCyan
	case LevelWarn:
		return ansiYellow
	case LevelError:
		return ansiRed
	default:
		return ansiReset
	}
}

// ConsoleTransport renders records as colored, pipe-delimited lines:
//
//	<ts> | <LEVEL> | <file> | <message>
//
// followed by an optional "Meta:" line and an optional stack.
type ConsoleTransport struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

type ConsoleOption func(*ConsoleTransport)

// WithConsoleOutput replaces stdout. Color stays as configured.
func WithConsoleOutput(w io.Writer) ConsoleOption {
	return func(c *ConsoleTransport) { c.out = w }
}

// WithColor forces ANSI colors on or off.
func WithColor(enabled bool) ConsoleOption {
	return func(c *ConsoleTransport) { c.color = enabled }
}

// NewConsoleTransport writes to stdout, colored when stdout is a terminal.
func NewConsoleTransport(opts ...ConsoleOption) *ConsoleTransport {
	fd := os.Stdout.Fd()
	c := &ConsoleTransport{
		out:   colorable.NewColorableStdout(),
		color: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
	for _, o := range opts {
		o(c)
	}
	if c.out == nil {
		c.out = Stdout()
	}
	return c
}

func (c *ConsoleTransport) paint(color, s string) string {
	if !c.color {
		return s
	}
	return color + s + ansiReset
}

// Log never fails; write errors on the console are ignored.
func (c *ConsoleTransport) Log(rec Record) error {
	color := levelColor(rec.Level)

	var b strings.Builder
	b.WriteString(c.paint(ansiGray, rec.Timestamp))
	b.WriteString(" | ")
	b.WriteString(c.paint(color, fmt.Sprintf("%-5s", rec.Level.String())))
	b.WriteString(" | ")
	b.WriteString(c.paint(ansiGreen, rec.FilePath))
	b.WriteString(" | ")
	b.WriteString(c.paint(color, rec.Message))
	b.WriteString("\n")

	if rec.Meta != nil {
		b.WriteString(c.paint(ansiGray, "Meta:"))
		b.WriteString(" ")
		b.WriteString(renderMeta(rec.Meta))
		b.WriteString("\n")
	}
	if rec.Stack != "" {
		b.WriteString(c.paint(ansiRed, rec.Stack))
		b.WriteString("\n")
	}

	c.mu.Lock()
	_, _ = io.WriteString(c.out, b.String())
	c.mu.Unlock()
	return nil
}

func renderMeta(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	j, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(j)
}
