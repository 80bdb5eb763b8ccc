package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"modbot/internal/eventbus"
	"modbot/pkg/logx"
)

type ActivityRecorder interface {
	AddMessages(ctx context.Context, discordID, guildID string, n int64) error
	AddVoiceTime(ctx context.Context, discordID, guildID string, seconds int64) error
}

// ActivityService aggregates message and voice activity from the event
// bus and writes it to storage in batches.
type ActivityService struct {
	bus      eventbus.Bus
	store    ActivityRecorder
	log      *logx.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[activityKey]*activityDelta
	voice   map[activityKey]time.Time

	unsubscribe func()
	done        chan struct{}
}

type activityKey struct {
	userID  string
	guildID string
}

type activityDelta struct {
	messages int64
	seconds  int64
}

type ActivityOption func(*ActivityService)

// WithActivityClock sets the clock used to close open voice sessions on
// shutdown.
func WithActivityClock(now func() time.Time) ActivityOption {
	return func(s *ActivityService) { s.now = now }
}

func NewActivityService(bus eventbus.Bus, store ActivityRecorder, interval time.Duration, log *logx.Logger, opts ...ActivityOption) *ActivityService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := &ActivityService{
		bus:      bus,
		store:    store,
		log:      log,
		interval: interval,
		now:      time.Now,
		pending:  map[activityKey]*activityDelta{},
		voice:    map[activityKey]time.Time{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *ActivityService) Name() string { return "activity" }

func (s *ActivityService) Init(context.Context) error {
	if s.done != nil {
		return errors.New("activity service already running")
	}
	ch, unsubscribe := s.bus.Subscribe(256, eventbus.MessageCreated, eventbus.VoiceJoined, eventbus.VoiceLeft)
	s.unsubscribe = unsubscribe
	s.done = make(chan struct{})
	go s.loop(ch, s.done)
	return nil
}

// Shutdown stops consuming, closes open voice sessions and flushes.
func (s *ActivityService) Shutdown(ctx context.Context) error {
	if s.done == nil {
		return nil
	}
	s.unsubscribe()
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.done = nil

	at := s.now()
	s.mu.Lock()
	for k, joined := range s.voice {
		s.addLocked(k, 0, seconds(at.Sub(joined)))
		delete(s.voice, k)
	}
	s.mu.Unlock()
	return s.Flush(ctx)
}

func (s *ActivityService) loop(ch <-chan eventbus.Event, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.handle(e)
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if err := s.Flush(ctx); err != nil {
				s.log.Warn("activity flush failed, will retry", logx.Fields{"err": err.Error()})
			}
			cancel()
		}
	}
}

func (s *ActivityService) handle(e eventbus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch d := e.Data.(type) {
	case eventbus.MessageData:
		if e.Type == eventbus.MessageCreated {
			s.addLocked(activityKey{d.UserID, d.GuildID}, 1, 0)
		}
	case eventbus.VoiceData:
		k := activityKey{d.UserID, d.GuildID}
		switch e.Type {
		case eventbus.VoiceJoined:
			if _, open := s.voice[k]; !open {
				s.voice[k] = e.Time
			}
		case eventbus.VoiceLeft:
			joined, open := s.voice[k]
			if !open {
				return
			}
			delete(s.voice, k)
			s.addLocked(k, 0, seconds(e.Time.Sub(joined)))
		}
	}
}

func (s *ActivityService) addLocked(k activityKey, messages, secs int64) {
	if k.userID == "" || k.guildID == "" || (messages <= 0 && secs <= 0) {
		return
	}
	d := s.pending[k]
	if d == nil {
		d = &activityDelta{}
		s.pending[k] = d
	}
	d.messages += messages
	d.seconds += secs
}

// Flush writes pending counters. Counters that fail to write are kept for
// the next flush.
func (s *ActivityService) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = map[activityKey]*activityDelta{}
	s.mu.Unlock()

	var errs []error
	for k, d := range batch {
		if err := s.write(ctx, k, d); err != nil {
			errs = append(errs, err)
			s.mu.Lock()
			s.addLocked(k, d.messages, d.seconds)
			s.mu.Unlock()
		}
	}
	if len(batch) > 0 {
		s.log.Debug(fmt.Sprintf("flushed activity for %d users", len(batch)-len(errs)))
	}
	return errors.Join(errs...)
}

func (s *ActivityService) write(ctx context.Context, k activityKey, d *activityDelta) error {
	if err := s.store.AddMessages(ctx, k.userID, k.guildID, d.messages); err != nil {
		return err
	}
	if err := s.store.AddVoiceTime(ctx, k.userID, k.guildID, d.seconds); err != nil {
		// messages were stored; only retry the voice time
		d.messages = 0
		return err
	}
	return nil
}

func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}
