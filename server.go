package ketama

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Server is an immutable identity of a backend placed on the ring.
// Two servers are equal when their names, hosts and ports are equal. Server
// values are comparable and can be used as map keys.
type Server struct {
	name string
	host string
	port int
}

// NewServer returns a server with given logical name and connection address.
// It returns an error wrapping ErrInvalidArgument if name or host is blank.
func NewServer(name, host string, port int) (Server, error) {
	if strings.TrimSpace(name) == "" {
		return Server{}, fmt.Errorf("ketama: server name cannot be blank: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(host) == "" {
		return Server{}, fmt.Errorf("ketama: server %q host cannot be blank: %w", name, ErrInvalidArgument)
	}
	return Server{
		name: name,
		host: host,
		port: port,
	}, nil
}

// MustServer is like NewServer but panics on error.
func MustServer(name, host string, port int) Server {
	s, err := NewServer(name, host, port)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseServer returns a server named name with address parsed from addr in
// the "host:port" form.
func ParseServer(name, addr string) (Server, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return Server{}, fmt.Errorf("ketama: bad server address %q: %v: %w", addr, err, ErrInvalidArgument)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return Server{}, fmt.Errorf("ketama: bad server port %q: %w", p, ErrInvalidArgument)
	}
	return NewServer(name, host, port)
}

func (s Server) Name() string { return s.name }
func (s Server) Host() string { return s.host }
func (s Server) Port() int    { return s.port }

// Addr returns server's address in the "host:port" form.
func (s Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// IsZero reports whether s is a zero (not constructed) Server.
func (s Server) IsZero() bool {
	return s == Server{}
}

func (s Server) String() string {
	return s.name + ": " + s.Addr()
}

func (s Server) valid() error {
	if s.name == "" || s.host == "" {
		return fmt.Errorf("ketama: invalid server %q: %w", s.name, ErrInvalidArgument)
	}
	return nil
}

func compareServers(a, b Server) int {
	if x := strings.Compare(a.name, b.name); x != 0 {
		return x
	}
	if x := strings.Compare(a.host, b.host); x != 0 {
		return x
	}
	return a.port - b.port
}
