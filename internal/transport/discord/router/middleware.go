package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"modbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

// MWPanicRecover turns a handler panic into an error carrying the panic stack.
func MWPanicRecover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &panicError{value: r, stack: string(debug.Stack())}
				}
			}()
			return next(ctx, req)
		}
	}
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string      { return fmt.Sprintf("panic: %v", e.value) }
func (e *panicError) StackTrace() string { return e.stack }

// MWRequestLog logs every execution with its duration.
func MWRequestLog() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			fields := logx.Fields{
				"request_id": req.ID,
				"command":    req.Command(),
				"user_id":    req.User.ID,
				"guild_id":   req.GuildID(),
				"channel_id": req.ChannelID(),
				"dur":        time.Since(start).String(),
			}
			if err != nil {
				req.Log.Error(logx.WithStack(fmt.Errorf("/%s failed: %w", req.Command(), err)), fields)
				return err
			}
			req.Log.Info(fmt.Sprintf("user %s executed /%s", req.User.Username, req.Command()), fields)
			return nil
		}
	}
}
