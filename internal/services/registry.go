package services

import (
	"context"
	"fmt"
	"sync"

	"modbot/pkg/logx"
)

type Service interface {
	Name() string
	Init(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Registry initializes services in registration order and shuts them down
// in reverse. A failing service is logged and skipped; the rest continue.
type Registry struct {
	log *logx.Logger

	mu       sync.Mutex
	services []Service
	started  []Service
}

func NewRegistry(log *logx.Logger) *Registry {
	return &Registry{log: log}
}

func (r *Registry) Register(s ...Service) {
	r.mu.Lock()
	r.services = append(r.services, s...)
	r.mu.Unlock()
}

// Get finds a service by name.
func (r *Registry) Get(name string) (Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.services {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// InitAll returns the number of services that initialized.
func (r *Registry) InitAll(ctx context.Context) int {
	r.mu.Lock()
	list := append([]Service(nil), r.services...)
	r.mu.Unlock()

	started := make([]Service, 0, len(list))
	for _, s := range list {
		if err := s.Init(ctx); err != nil {
			r.log.Error(fmt.Errorf("init service %s: %w", s.Name(), err), logx.Fields{"service": s.Name()})
			continue
		}
		r.log.Debug("service initialized", logx.Fields{"service": s.Name()})
		started = append(started, s)
	}

	r.mu.Lock()
	r.started = started
	r.mu.Unlock()
	r.log.Info(fmt.Sprintf("initialized %d of %d services", len(started), len(list)))
	return len(started)
}

// ShutdownAll stops the services that initialized, newest first.
func (r *Registry) ShutdownAll(ctx context.Context) {
	r.mu.Lock()
	started := r.started
	r.started = nil
	r.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		s := started[i]
		if err := s.Shutdown(ctx); err != nil {
			r.log.Warn("service shutdown failed", logx.Fields{"service": s.Name(), "err": err.Error()})
		}
	}
}
