package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FiltersByType(t *testing.T) {
	b := New()
	voice, unsubVoice := b.Subscribe(4, VoiceJoined, VoiceLeft)
	all, unsubAll := b.Subscribe(4)
	defer unsubVoice()
	defer unsubAll()

	b.Publish(Event{Type: MessageCreated, Data: MessageData{UserID: "1"}})
	b.Publish(Event{Type: VoiceJoined, Data: VoiceData{UserID: "1"}})

	require.Len(t, voice, 1)
	ev := <-voice
	assert.Equal(t, VoiceJoined, ev.Type)
	assert.False(t, ev.Time.IsZero())
	assert.Len(t, all, 2)
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: MessageCreated})
	b.Publish(Event{Type: MessageCreated})
	b.Publish(Event{Type: MessageCreated})
	assert.EqualValues(t, 2, b.Dropped())
}

func TestBus_UnsubscribeClosesAndIsIdempotent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, func() { b.Publish(Event{Type: VoiceLeft}) })
}
