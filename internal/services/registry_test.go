package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/pkg/logx"
)

type recordingService struct {
	name    string
	initErr error
	trace   *[]string
	mu      *sync.Mutex
}

func (s recordingService) Name() string { return s.name }

func (s recordingService) Init(context.Context) error {
	s.record("init " + s.name)
	return s.initErr
}

func (s recordingService) Shutdown(context.Context) error {
	s.record("shutdown " + s.name)
	return nil
}

func (s recordingService) record(v string) {
	s.mu.Lock()
	*s.trace = append(*s.trace, v)
	s.mu.Unlock()
}

func TestRegistry_OrderAndFailures(t *testing.T) {
	var (
		trace []string
		mu    sync.Mutex
	)
	svc := func(name string, err error) recordingService {
		return recordingService{name: name, initErr: err, trace: &trace, mu: &mu}
	}

	r := NewRegistry(logx.Nop())
	r.Register(svc("a", nil), svc("b", errors.New("boom")), svc("c", nil))

	assert.Equal(t, 2, r.InitAll(context.Background()))
	r.ShutdownAll(context.Background())
	// second shutdown is a no-op
	r.ShutdownAll(context.Background())

	require.Equal(t, []string{
		"init a", "init b", "init c",
		"shutdown c", "shutdown a",
	}, trace)

	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", got.Name())
	_, ok = r.Get("missing")
	assert.False(t, ok)
}
