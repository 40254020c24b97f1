// Package shutdown coordinates graceful shutdown of long-running commands
// such as serve: signal handling, ordered cleanup and a drain deadline.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"taskmaster/internal/utils"
)

// CleanupFunc releases one resource. ctx expires when the drain deadline passes.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager runs registered cleanups once shutdown is triggered.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	reason   string

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewManager creates a manager whose Context is cancelled on shutdown.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{ctx: ctx, cancel: cancel}
}

// RegisterCleanup adds a cleanup. Cleanups run last registered first.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// Shutdown triggers shutdown. Only the first call has effect.
func (m *Manager) Shutdown(reason string) {
	m.once.Do(func() {
		m.mu.Lock()
		m.reason = reason
		m.mu.Unlock()
		utils.Debugf("shutdown requested: %s", reason)
		m.cancel()
	})
}

// NotifySignals triggers Shutdown on SIGINT or SIGTERM. The returned
// function stops listening.
func (m *Manager) NotifySignals() func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	stop := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			m.Shutdown(sig.String())
		case <-stop:
		case <-m.ctx.Done():
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(stop)
		})
	}
}

// Wait runs the cleanups and returns their joined errors. If ctx expires
// first, ctx.Err() is returned and the remaining cleanups keep running in
// the background.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			c := cleanups[i]
			if err := c.fn(ctx); err != nil {
				utils.Warnf("cleanup %s failed: %v", c.name, err)
				errs = append(errs, err)
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown reports whether shutdown has been triggered.
func (m *Manager) IsShutdown() bool {
	return m.ctx.Err() != nil
}

// Reason returns what triggered shutdown, or "" if it has not happened.
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Context is cancelled when shutdown is triggered.
func (m *Manager) Context() context.Context {
	return m.ctx
}
