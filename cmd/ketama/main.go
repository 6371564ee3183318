// Command ketama builds a ketama ring and inspects or serves it.
//
// It loads servers from a file (lines of "name [host[:port]] [weight]"),
// a comma-separated list or a Consul service, then prints the ring info as
// JSON and optionally maps keys to servers. With -port it serves the ketama
// port protocol on stdin and stdout instead.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/gobwas/ketama"
	"github.com/gobwas/ketama/discovery"
	"github.com/gobwas/ketama/port"
	"github.com/gobwas/ketama/serverlist"
)

func main() {
	var (
		servers  string // Path to servers file.
		sync     string // Comma-separated servers list.
		hashName string
		strategy string
		points   int
		lookup   string // Key to print hash and server of.
		prefix   string // Prefix of generated keys.
		n        int    // Number of generated keys.
		out      string // Path to keys mapping output.
		serve    bool

		consul  string
		service string

		verbose bool
	)
	flag.StringVar(&servers,
		"servers", "",
		"path to servers file",
	)
	flag.StringVar(&sync,
		"sync", "",
		"comma-separated list of name:weight servers to synchronize with",
	)
	flag.StringVar(&hashName,
		"hash", "",
		"key hash function (fnv1a32, native, compat-old, compat-crc32, md5)",
	)
	flag.StringVar(&strategy,
		"strategy", "",
		"server placement strategy (chained, suffix, md5)",
	)
	flag.IntVar(&points,
		"points", ketama.PointsPerServer,
		"number of points per server",
	)
	flag.StringVar(&lookup,
		"lookup", "",
		"key to print hash and server of",
	)
	flag.StringVar(&prefix,
		"keys", "",
		"prefix of keys to map to servers",
	)
	flag.IntVar(&n,
		"n", 100,
		"number of keys to map to servers",
	)
	flag.StringVar(&out,
		"out", "",
		"path to keys mapping output; standard output if empty",
	)
	flag.BoolVar(&serve,
		"port", false,
		"serve port protocol on standard input and output",
	)
	flag.StringVar(&consul,
		"consul", discovery.DefaultConfig().ConsulAddr,
		"consul agent address",
	)
	flag.StringVar(&service,
		"service", "",
		"consul service to take servers from",
	)
	flag.BoolVar(&verbose,
		"v", false,
		"be verbose",
	)
	flag.Parse()

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	keyHash, err := ketama.HashFunctionByName(hashName)
	if err != nil {
		logrus.Fatal(err)
	}
	place, err := ketama.StrategyByName(strategy, keyHash)
	if err != nil {
		logrus.Fatal(err)
	}
	ring := ketama.New(
		ketama.WithKeyHash(keyHash),
		ketama.WithStrategy(place),
		ketama.WithPointsPerServer(points),
		ketama.WithTrace(ketama.LogTrace(logrus.StandardLogger())),
	)

	if servers != "" {
		if err := syncFile(ring, servers); err != nil {
			logrus.Fatal(err)
		}
	}
	if sync != "" {
		es, err := serverlist.ParseString(sync)
		if err != nil {
			logrus.Fatal(err)
		}
		if err := ring.SynchronizeWeighted(serverlist.Weights(es)); err != nil {
			logrus.Fatal(err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var refresher *discovery.Refresher
	if service != "" {
		c := discovery.DefaultConfig()
		c.ConsulAddr = consul
		c.Service = service
		src, err := discovery.NewConsul(c)
		if err != nil {
			logrus.Fatal(err)
		}
		refresher = discovery.NewRefresher(src, ring, c)
		if err := refresher.Refresh(ctx); err != nil {
			logrus.Fatal(err)
		}
	}

	if serve {
		if refresher != nil {
			go refresher.Run(ctx)
		}
		if err := port.Serve(ctx, os.Stdin, os.Stdout, port.RingLookup(ring)); err != nil {
			logrus.Fatal(err)
		}
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ring.Info()); err != nil {
		logrus.Fatal(err)
	}

	if lookup != "" {
		s, err := ring.Lookup(lookup)
		if err != nil {
			logrus.Fatal(err)
		}
		fmt.Printf("hash of %q: %d\n", lookup, keyHash.Hash([]byte(lookup)))
		fmt.Printf("server of %q: %s\n", lookup, s)
	}

	if prefix != "" {
		var err error
		if out == "" {
			err = mapKeys(os.Stdout, ring, keyHash, prefix, n)
		} else {
			err = mapKeysFile(out, ring, keyHash, prefix, n)
		}
		if err != nil {
			logrus.Fatal(err)
		}
	}
}

// mapKeysFile is like mapKeys but writes to the file at path.
func mapKeysFile(path string, r *ketama.Ring, h ketama.HashFunction, prefix string, n int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return mapKeys(f, r, h, prefix, n)
}

func syncFile(r *ketama.Ring, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	es, err := serverlist.ParseFile(f)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"func_name": "syncFile",
		"path":      path,
	}).Debugln("servers parsed:", len(es))

	return r.SynchronizeWeighted(serverlist.Weights(es))
}

// mapKeys writes "key hash server" lines for n keys with given prefix.
func mapKeys(w io.Writer, r *ketama.Ring, h ketama.HashFunction, prefix string, n int) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		key := prefix + strconv.Itoa(i)
		s, err := r.Lookup(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "%s %d %s\n", key, h.Hash([]byte(key)), s.Name())
	}
	return bw.Flush()
}
