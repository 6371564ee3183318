// Package grpclb provides a gRPC load balancer which routes RPCs to backends
// by consistent hashing of a per-call key.
//
// Importing the package registers the balancer under the Name. Clients enable
// it with a service config:
//
//	grpc.WithDefaultServiceConfig(`{"loadBalancingConfig": [{"ketama":{}}]}`)
//
// and route calls with WithKey():
//
//	ctx = grpclb.WithKey(ctx, userID)
//	resp, err := client.Get(ctx, req)
//
// Calls without a key are routed by their full method name.
package grpclb

import (
	"context"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/balancer/base"

	"github.com/gobwas/ketama"
)

// Name is the name of the balancer.
const Name = "ketama"

func init() {
	balancer.Register(NewBuilder())
}

type keyContextKey struct{}

// WithKey returns a copy of ctx carrying the routing key.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyContextKey{}, key)
}

// KeyFromContext returns the routing key carried by ctx.
func KeyFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	key, ok := ctx.Value(keyContextKey{}).(string)
	return key, ok
}

// NewBuilder returns a balancer builder named Name. Options are used to
// configure the ring behind the balancer.
func NewBuilder(opts ...ketama.Option) balancer.Builder {
	return base.NewBalancerBuilder(Name, NewPickerBuilder(opts...), base.Config{
		HealthCheck: true,
	})
}

// PickerBuilder builds ketama pickers over ready SubConns.
//
// Each Build() places the ready SubConns on a new ring. Placement depends on
// server identity only, so a change of the ready set relocates only keys of
// the affected backends. A single PickerBuilder may be shared by any number
// of ClientConns.
type PickerBuilder struct {
	opts []ketama.Option
}

// NewPickerBuilder creates a picker builder building rings configured by
// opts.
func NewPickerBuilder(opts ...ketama.Option) *PickerBuilder {
	return &PickerBuilder{
		opts: opts,
	}
}

func (b *PickerBuilder) Build(info base.PickerBuildInfo) balancer.Picker {
	logEntry := logrus.WithFields(logrus.Fields{
		"func_name": "Build",
	})
	var (
		conns   = make(map[ketama.Server]balancer.SubConn, len(info.ReadySCs))
		servers = make([]ketama.Server, 0, len(info.ReadySCs))
	)
	for sc, sci := range info.ReadySCs {
		s, err := addrServer(sci.Address.Addr)
		if err != nil {
			logEntry.Warnln("skipping subconn:", err)
			continue
		}
		conns[s] = sc
		servers = append(servers, s)
	}
	if len(servers) == 0 {
		return base.NewErrPicker(balancer.ErrNoSubConnAvailable)
	}

	ring := ketama.New(b.opts...)
	if err := ring.Synchronize(servers); err != nil {
		logEntry.Errorln("synchronize error:", err)
		return base.NewErrPicker(err)
	}
	logEntry.Debugln("picker built with subconns:", len(servers))

	return &picker{
		ring:  ring,
		conns: conns,
	}
}

type picker struct {
	ring  *ketama.Ring
	conns map[ketama.Server]balancer.SubConn
}

func (p *picker) Pick(info balancer.PickInfo) (balancer.PickResult, error) {
	key, ok := KeyFromContext(info.Ctx)
	if !ok {
		key = info.FullMethodName
	}
	s, err := p.ring.Lookup(key)
	if err != nil {
		return balancer.PickResult{}, balancer.ErrNoSubConnAvailable
	}
	return balancer.PickResult{
		SubConn: p.conns[s],
	}, nil
}

// addrServer returns a server named by the address.
func addrServer(addr string) (ketama.Server, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return ketama.NewServer(addr, addr, 0)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return ketama.NewServer(addr, addr, 0)
	}
	return ketama.NewServer(addr, host, port)
}
