// Package serverlist parses textual lists of ketama servers.
//
// A server file has one server per line in the form
//
//	name [host[:port]] [weight]
//
// Fields are separated by whitespace. When host is omitted the name is used
// as host; when port is omitted DefaultPort is used. Blank lines and lines
// not starting with a letter or digit (such as comments) are skipped.
//
// A server string is a comma separated list of items, as accepted by the
// legacy synchronization calls:
//
//	name[:weight]
//	ip:port [weight]
//	name weight
//
// An item with an IP or a dotted host name before the colon, like
// "10.0.0.1:11211", is an address with weight 1, not a name with weight.
// Weight must be a positive integer.
package serverlist

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gobwas/ketama"
)

// DefaultPort is the port given to servers listed without one.
const DefaultPort = 1234

// Entry is a parsed server with its weight.
type Entry struct {
	Server ketama.Server
	Weight int
}

// ParseFile reads server entries from r.
func ParseFile(r io.Reader) ([]Entry, error) {
	var (
		ret []Entry
		sc  = bufio.NewScanner(r)
		n   int
	)
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || !isAlnum(line) {
			continue
		}
		e, err := parseFields(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("serverlist: line %d: %w", n, err)
		}
		ret = append(ret, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("serverlist: read: %w", err)
	}
	return ret, nil
}

// ParseString parses comma separated server items.
func ParseString(s string) ([]Entry, error) {
	var ret []Entry
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		e, err := parseItem(item)
		if err != nil {
			return nil, fmt.Errorf("serverlist: item %q: %w", item, err)
		}
		ret = append(ret, e)
	}
	return ret, nil
}

func parseItem(item string) (Entry, error) {
	var name, weight string
	switch fs := strings.Fields(item); {
	case len(fs) == 2:
		name, weight = fs[0], fs[1]
	case len(fs) != 1:
		return Entry{}, fmt.Errorf("unexpected number of fields: %d: %w", len(fs), ketama.ErrInvalidArgument)
	case isAddr(item):
		name = item
	default:
		name = item
		if i := strings.LastIndexByte(item, ':'); i >= 0 {
			name, weight = item[:i], item[i+1:]
		}
	}
	e, err := parseFields([]string{name})
	if err != nil || weight == "" {
		return e, err
	}
	w, err := strconv.Atoi(weight)
	if err != nil || w <= 0 {
		return Entry{}, fmt.Errorf("bad weight %q: %w", weight, ketama.ErrInvalidArgument)
	}
	e.Weight = w
	return e, nil
}

// isAddr reports whether s is a network address with an IP or a dotted host
// name, such as "10.0.0.1:11211" or "cache.local:11211".
func isAddr(s string) bool {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	if _, err := strconv.Atoi(port); err != nil {
		return false
	}
	return net.ParseIP(host) != nil || strings.Contains(host, ".")
}

// Servers returns servers of given entries.
func Servers(es []Entry) []ketama.Server {
	ret := make([]ketama.Server, len(es))
	for i, e := range es {
		ret[i] = e.Server
	}
	return ret
}

// Weights returns a server to weight mapping suitable for
// ketama.Ring.SynchronizeWeighted. Weights of repeated servers are summed.
func Weights(es []Entry) map[ketama.Server]int {
	ret := make(map[ketama.Server]int, len(es))
	for _, e := range es {
		ret[e.Server] += e.Weight
	}
	return ret
}

func parseFields(fs []string) (e Entry, err error) {
	var (
		name   = fs[0]
		host   = name
		port   = DefaultPort
		weight = 1
	)
	switch len(fs) {
	case 1:
	case 2:
		// "name weight" or "name host".
		if w, err := strconv.Atoi(fs[1]); err == nil {
			weight = w
		} else {
			host = fs[1]
		}
	case 3:
		host = fs[1]
		if weight, err = strconv.Atoi(fs[2]); err != nil {
			return e, fmt.Errorf("bad weight %q: %w", fs[2], ketama.ErrInvalidArgument)
		}
	default:
		return e, fmt.Errorf("unexpected number of fields: %d: %w", len(fs), ketama.ErrInvalidArgument)
	}
	if weight <= 0 {
		return e, fmt.Errorf("weight must be greater than zero: %w", ketama.ErrInvalidArgument)
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		if port, err = strconv.Atoi(p); err != nil {
			return e, fmt.Errorf("bad port %q: %w", p, ketama.ErrInvalidArgument)
		}
		host = h
	}
	s, err := ketama.NewServer(name, host, port)
	if err != nil {
		return e, err
	}
	return Entry{
		Server: s,
		Weight: weight,
	}, nil
}

func isAlnum(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
