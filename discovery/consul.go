package discovery

import (
	"context"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/sirupsen/logrus"

	"github.com/gobwas/ketama"
)

// Consul is a Source resolving healthy instances of a Consul service.
//
// Every instance becomes a server named by its service ID. Server host is the
// service address, or the node address when the service has none.
type Consul struct {
	client  *consulapi.Client
	service string
	tag     string
}

func NewConsul(c *Config) (*Consul, error) {
	if c.Service == "" {
		return nil, fmt.Errorf("discovery: empty service name")
	}
	conf := consulapi.DefaultConfig()
	if c.ConsulAddr != "" {
		conf.Address = c.ConsulAddr
	}
	client, err := consulapi.NewClient(conf)
	if err != nil {
		return nil, err
	}
	return &Consul{
		client:  client,
		service: c.Service,
		tag:     c.Tag,
	}, nil
}

func (c *Consul) Resolve(ctx context.Context) ([]ketama.Server, error) {
	logEntry := logrus.WithFields(logrus.Fields{
		"func_name": "Resolve",
		"service":   c.service,
	})
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	entries, _, err := c.client.Health().Service(c.service, c.tag, true, q)
	if err != nil {
		return nil, err
	}
	servers := make([]ketama.Server, 0, len(entries))
	for _, e := range entries {
		if e.Service == nil {
			continue
		}
		host := e.Service.Address
		if host == "" && e.Node != nil {
			host = e.Node.Address
		}
		name := e.Service.ID
		if name == "" {
			name = e.Service.Service
		}
		s, err := ketama.NewServer(name, host, e.Service.Port)
		if err != nil {
			logEntry.Warnln("skipping service instance:", err)
			continue
		}
		servers = append(servers, s)
	}
	logEntry.Debugln("resolved servers:", len(servers))
	return servers, nil
}
