package logx

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeSender) SendLog(_ context.Context, text string) error {
	f.mu.Lock()
	f.msgs = append(f.msgs, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

func TestChannelTransport_FiltersBelowMinLevel(t *testing.T) {
	s := &fakeSender{}
	ct := NewChannelTransport(s, ChannelOptions{MinLevel: LevelWarn, RatePerSec: 100})
	t.Cleanup(func() { _ = ct.Close() })

	require.NoError(t, ct.Log(Record{Level: LevelInfo, LevelName: "INFO", Message: "quiet"}))
	require.NoError(t, ct.Log(Record{Level: LevelError, LevelName: "ERROR", Message: "loud", FilePath: "a.go"}))

	require.Eventually(t, func() bool { return len(s.sent()) == 1 }, time.Second, 10*time.Millisecond)
	msg := s.sent()[0]
	assert.True(t, strings.HasPrefix(msg, "**[ERROR]** loud"))
	assert.Contains(t, msg, "`a.go`")
}

func TestChannelTransport_RateLimitDrops(t *testing.T) {
	s := &fakeSender{}
	ct := NewChannelTransport(s, ChannelOptions{MinLevel: LevelDebug, RatePerSec: 1})
	t.Cleanup(func() { _ = ct.Close() })

	for i := 0; i < 5; i++ {
		require.NoError(t, ct.Log(Record{Level: LevelError, LevelName: "ERROR", Message: "burst"}))
	}

	require.Eventually(t, func() bool { return len(s.sent()) >= 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, s.sent(), 1)
}

func TestFormatChannelMessage_Truncates(t *testing.T) {
	msg := formatChannelMessage(Record{
		LevelName: "ERROR",
		Message:   strings.Repeat("x", 5000),
	})
	assert.LessOrEqual(t, len(msg), channelMaxMessage)
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestFormatChannelMessage_TruncatesOnRuneBoundary(t *testing.T) {
	msg := formatChannelMessage(Record{
		LevelName: "ERROR",
		Message:   strings.Repeat("ж", 1500),
		Meta:      map[string]string{"detail": strings.Repeat("é", 700)},
	})
	assert.LessOrEqual(t, len(msg), channelMaxMessage)
	assert.True(t, utf8.ValidString(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "жж", truncate("жжж", 5))
	assert.Equal(t, "жжжж...", truncate(strings.Repeat("ж", 10), 12))
	assert.Equal(t, "unbounded", truncate("unbounded", 0))
}

func TestChannelTransport_CloseIsIdempotent(t *testing.T) {
	ct := NewChannelTransport(&fakeSender{}, ChannelOptions{})
	assert.NoError(t, ct.Close())
	assert.NoError(t, ct.Close())
}
