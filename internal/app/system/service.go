// Package system provides the lifecycle contract for long-running components
// (the HTTP server, the deadline sweeper) and a manager that starts them in
// registration order and stops them in reverse.
package system

import (
	"context"
	"fmt"
)

// Service represents a lifecycle-managed component.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService satisfies Service for modules without background work.
type NoopService struct {
	ServiceName string
}

func (s NoopService) Name() string                { return s.ServiceName }
func (s NoopService) Start(context.Context) error { return nil }
func (s NoopService) Stop(context.Context) error  { return nil }

// Manager owns a set of services and drives their lifecycle.
type Manager struct {
	services []Service
	byName   map[string]struct{}
	started  bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{byName: make(map[string]struct{})}
}

// Register adds a service. Names must be unique and registration must happen
// before Start.
func (m *Manager) Register(svc Service) error {
	if m.started {
		return fmt.Errorf("cannot register %q: manager already started", svc.Name())
	}
	if _, dup := m.byName[svc.Name()]; dup {
		return fmt.Errorf("service %q already registered", svc.Name())
	}
	m.byName[svc.Name()] = struct{}{}
	m.services = append(m.services, svc)
	return nil
}

// Start starts services in registration order. On failure it stops the
// already-started services in reverse and returns the original error.
func (m *Manager) Start(ctx context.Context) error {
	m.started = true
	for i, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.services[j].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
	}
	return nil
}

// Stop stops services in reverse registration order, returning the first
// error while still attempting every stop.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(m.services) - 1; i >= 0; i-- {
		if err := m.services[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", m.services[i].Name(), err)
		}
	}
	return firstErr
}
