package logx

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Discord rejects messages above 2000 characters.
const channelMaxMessage = 1900

// Sender delivers a rendered log line to a chat channel.
type Sender interface {
	SendLog(ctx context.Context, text string) error
}

// ChannelTransport mirrors records at or above a minimum level into a chat
// channel. Delivery happens on a worker goroutine behind a bounded queue;
// when the queue is full or the rate limit is exhausted the record is
// dropped rather than delaying the caller.
type ChannelTransport struct {
	sender   Sender
	minLevel Level
	limiter  *rate.Limiter
	timeout  time.Duration

	queue  chan string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

type ChannelOptions struct {
	MinLevel   Level
	RatePerSec int
	QueueSize  int
	// SendTimeout bounds a single delivery. Defaults to 10s.
	SendTimeout time.Duration
}

func NewChannelTransport(sender Sender, opts ChannelOptions) *ChannelTransport {
	rps := max(1, opts.RatePerSec)
	qs := opts.QueueSize
	if qs <= 0 {
		qs = 256
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &ChannelTransport{
		sender:   sender,
		minLevel: opts.MinLevel,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		timeout:  timeout,
		queue:    make(chan string, qs),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go t.worker(ctx)
	return t
}

func (t *ChannelTransport) Log(rec Record) error {
	if t.sender == nil || rec.Level < t.minLevel {
		return nil
	}
	if !t.limiter.Allow() {
		return nil
	}
	select {
	case t.queue <- formatChannelMessage(rec):
	default:
		// drop
	}
	return nil
}

func (t *ChannelTransport) worker(ctx context.Context) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.queue:
			sctx, cancel := context.WithTimeout(ctx, t.timeout)
			_ = t.sender.SendLog(sctx, msg)
			cancel()
		}
	}
}

// Close stops the worker. Queued messages that were not sent yet are dropped.
func (t *ChannelTransport) Close() error {
	t.once.Do(func() {
		t.cancel()
		<-t.done
	})
	return nil
}

func formatChannelMessage(rec Record) string {
	var b strings.Builder
	b.WriteString("**[")
	b.WriteString(rec.LevelName)
	b.WriteString("]** ")
	b.WriteString(rec.Message)
	b.WriteString("\n`")
	b.WriteString(rec.FilePath)
	b.WriteString("`")
	if rec.Meta != nil {
		b.WriteString("\n")
		b.WriteString(truncate(renderMeta(rec.Meta), 600))
	}
	if rec.Stack != "" {
		b.WriteString("\n```\n")
		b.WriteString(truncate(rec.Stack, 900))
		b.WriteString("\n```")
	}
	return truncate(b.String(), channelMaxMessage)
}
