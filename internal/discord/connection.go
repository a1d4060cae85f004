package discord

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopNotSupported is returned when a connection was never opened.
var ErrStopNotSupported = errors.New("discord connection stop not supported")

// ConnectionStatus is a snapshot of the gateway connection.
type ConnectionStatus struct {
	Running   bool
	LastError string
	UpdatedAt time.Time
}

// Connection tracks the gateway link and how to close it.
type Connection struct {
	mu     sync.RWMutex
	status ConnectionStatus
	stop   func(ctx context.Context) error
}

func newConnection() *Connection {
	return &Connection{status: ConnectionStatus{UpdatedAt: time.Now().UTC()}}
}

// Status returns the current connection status.
func (c *Connection) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Running reports whether the gateway is connected.
func (c *Connection) Running() bool {
	return c.Status().Running
}

// Stop closes the gateway connection.
func (c *Connection) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop == nil {
		return ErrStopNotSupported
	}
	c.markRunning(false, nil)
	return stop(ctx)
}

func (c *Connection) setStop(stop func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop = stop
}

func (c *Connection) markRunning(running bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Running = running
	c.status.UpdatedAt = time.Now().UTC()
	if err != nil {
		c.status.LastError = err.Error()
	} else if running {
		c.status.LastError = ""
	}
}
