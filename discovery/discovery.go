// Package discovery keeps ketama rings in sync with a service registry.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gobwas/ketama"
)

// Source resolves the current set of servers.
type Source interface {
	Resolve(ctx context.Context) ([]ketama.Server, error)
}

// SourceFunc is an adapter to allow the use of ordinary functions as Source.
type SourceFunc func(context.Context) ([]ketama.Server, error)

func (fn SourceFunc) Resolve(ctx context.Context) ([]ketama.Server, error) {
	return fn(ctx)
}

type Config struct {
	// Consul agent address. Default is 127.0.0.1:8500.
	ConsulAddr string
	// Service name to resolve.
	Service string
	// Tag to filter service instances by. Empty means no filtering.
	Tag string
	// Interval between two refreshes. Default is 5s.
	Interval time.Duration
	// ResolveTimeout limits a single resolve call. Default is 1s.
	ResolveTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		ConsulAddr:     "127.0.0.1:8500",
		Interval:       5 * time.Second,
		ResolveTimeout: time.Second,
	}
}

// Refresher periodically resolves servers from Source and synchronizes Ring
// with them.
type Refresher struct {
	Source Source
	Ring   *ketama.Ring

	// Interval between two refreshes. If zero, DefaultConfig().Interval is
	// used.
	Interval time.Duration

	// Timeout limits a single resolve call. If zero, there is no limit other
	// than the one of the context.
	Timeout time.Duration

	// Logger is an optional logger. If nil, logrus standard logger is used.
	Logger logrus.FieldLogger
}

// NewRefresher creates a refresher of ring r driven by given config.
func NewRefresher(src Source, r *ketama.Ring, c *Config) *Refresher {
	return &Refresher{
		Source:   src,
		Ring:     r,
		Interval: c.Interval,
		Timeout:  c.ResolveTimeout,
	}
}

// Refresh resolves servers once and synchronizes the ring with them.
// On resolve error the ring is left untouched. An empty set of resolved
// servers empties the ring.
func (r *Refresher) Refresh(ctx context.Context) error {
	logEntry := r.logger().WithFields(logrus.Fields{
		"func_name": "Refresh",
	})
	if t := r.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	servers, err := r.Source.Resolve(ctx)
	if err != nil {
		logEntry.Errorln("resolve error:", err)
		return fmt.Errorf("discovery: resolve: %w", err)
	}
	if servers == nil {
		servers = []ketama.Server{}
	}
	if err := r.Ring.Synchronize(servers); err != nil {
		logEntry.Errorln("synchronize error:", err)
		return fmt.Errorf("discovery: synchronize: %w", err)
	}
	logEntry.WithField("servers", len(servers)).Debugln("ring refreshed")
	return nil
}

// Run refreshes the ring immediately and then every Interval until ctx is
// done. Refresh errors are logged and do not stop the loop.
// It returns ctx.Err().
func (r *Refresher) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	_ = r.Refresh(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = r.Refresh(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Refresher) logger() logrus.FieldLogger {
	if l := r.Logger; l != nil {
		return l
	}
	return logrus.StandardLogger()
}
