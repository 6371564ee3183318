// Command dist studies how evenly ketama rings spread keys across servers for
// different numbers of points per server.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gobwas/avl"
	"github.com/sirupsen/logrus"

	"github.com/gobwas/ketama"
)

func main() {
	var (
		p        int    // Number of goroutines.
		n        int    // Number of keys.
		s        int    // Number of servers on the ring.
		lo       int    // Min points per server.
		hi       int    // Max points per server.
		ps       string // Comma-separated points list.
		csv      bool
		hashName string
		strategy string
		seed     int64

		verbose bool
		silent  bool
	)
	flag.IntVar(&p,
		"parallelism", runtime.NumCPU(),
		"number of concurrent processors",
	)
	flag.IntVar(&n,
		"keys", 1e6,
		"number of keys to spread on ring",
	)
	flag.IntVar(&s,
		"servers", 10,
		"number of servers to place on ring",
	)
	flag.IntVar(&lo,
		"lo", 0,
		"number of points per server to start from",
	)
	flag.IntVar(&hi,
		"hi", 0,
		"number of points per server to end at",
	)
	flag.StringVar(&ps,
		"points", strconv.Itoa(ketama.PointsPerServer),
		"comma-separated list of points per server",
	)
	flag.StringVar(&hashName,
		"hash", "",
		"key hash function (fnv1a32, native, compat-old, compat-crc32, md5)",
	)
	flag.StringVar(&strategy,
		"strategy", "",
		"server placement strategy (chained, suffix, md5)",
	)
	flag.Int64Var(&seed,
		"seed", 1,
		"random seed used to generate server addresses",
	)
	flag.BoolVar(&verbose,
		"v", false,
		"be verbose",
	)
	flag.BoolVar(&silent,
		"s", false,
		"be silent",
	)
	flag.BoolVar(&csv,
		"csv", true,
		"print csv to standard output",
	)

	flag.Parse()

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	printf := func(f string, args ...interface{}) {
		if silent {
			return
		}
		fmt.Fprintf(os.Stderr, f, args...)
	}

	keyHash, err := ketama.HashFunctionByName(hashName)
	if err != nil {
		logrus.Fatal(err)
	}
	place, err := ketama.StrategyByName(strategy, keyHash)
	if err != nil {
		logrus.Fatal(err)
	}

	// Prepare servers to be put on ring(s).
	rnd := rand.New(rand.NewSource(seed))
	servers := make([]ketama.Server, s)
	seenSrv := make(map[string]bool)
	for i := 0; i < s; {
		var b [4]byte
		rnd.Read(b[:])
		ip := net.IPv4(b[0], b[1], b[2], b[3]).String()
		if seenSrv[ip] {
			logrus.Debugf("#%d server duplicated; repeat", i)
			continue
		}
		seenSrv[ip] = true
		servers[i] = ketama.MustServer(ip, ip, 11211)
		i++
	}
	logrus.Debugf("%d servers are ready", len(servers))

	// Keys are derived from their index, so they are unique.
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("%016x", xxhash.Sum64String(strconv.Itoa(i))))
	}
	logrus.Debugf("%d keys are ready", len(keys))

	// Prepare list of points per server. We merge here points range (from
	// `lo` to `hi`) with manually specified values in `ps`.
	// We use tree to autofix duplicates (if any).
	var points avl.Tree
	for _, s := range strings.Split(ps, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		x, err := strconv.Atoi(s)
		if err != nil || x <= 0 {
			logrus.Fatalf("bad number of points: %q", s)
		}
		points, _ = points.Insert(numPoints(x))
	}
	for x := lo; x < hi; x++ {
		if x > 0 {
			points, _ = points.Insert(numPoints(x))
		}
	}
	logrus.Debugf("%d settings are ready", points.Size())

	mean := float64(n) / float64(s)

	var (
		work    = make(chan int)
		stop    = make(chan struct{})
		done    = make(chan struct{}, p)
		results = make(chan result, 1)
	)
	for i := 0; i < p; i++ {
		go func() {
			defer func() {
				done <- struct{}{}
			}()
			distribution := make(map[ketama.Server]int, len(servers))
			for {
				var x int
				select {
				case <-stop:
					return
				case x = <-work:
					// Process below.
				}

				r := ketama.New(
					ketama.WithKeyHash(keyHash),
					ketama.WithStrategy(place),
					ketama.WithPointsPerServer(x),
				)
				start := time.Now()
				if err := r.Add(servers...); err != nil {
					panic(err)
				}
				latency := time.Since(start)

				for _, key := range keys {
					srv, err := r.LookupBytes(key)
					if err != nil {
						panic(err)
					}
					distribution[srv]++
				}
				var (
					variance float64
					maxDiff  int
				)
				for srv, d := range distribution {
					diff := math.Abs(float64(d) - mean)
					variance += diff * diff
					if int(diff) > maxDiff {
						maxDiff = int(diff)
					}
					distribution[srv] = 0
				}
				// Divide by number of servers as for mean.
				variance /= float64(s)
				results <- result{
					points:  x,
					latency: latency,
					stddev:  math.Sqrt(variance),
					maxDiff: maxDiff,
				}
			}
		}()
	}

	go func() {
		points.InOrder(func(x avl.Item) bool {
			select {
			case <-stop:
				return false
			case work <- int(x.(numPoints)):
				return true
			}
		})
		close(stop)
		for i := 0; i < p; i++ {
			<-done
		}
		close(results)
	}()

	var t avl.Tree
	for r := range results {
		t, _ = t.Insert(r)
		printf(".")
		if n := t.Size(); n%80 == 0 {
			x := points.Size()
			printf(
				"%d/%d(%.1f%%)\n",
				n, x,
				float64(n)/float64(x)*100, // Progress percentage.
			)
		}
	}
	printf("\n")

	tw := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	t.InOrder(func(x avl.Item) bool {
		r := x.(result)
		var (
			devPct  = r.stddev / mean * 100
			diffPct = float64(r.maxDiff) / mean * 100
		)
		logrus.WithFields(logrus.Fields{
			"points":  r.points,
			"stddev":  fmt.Sprintf("%.2f(%.2f%%)", r.stddev, devPct),
			"maxdiff": fmt.Sprintf("%d(%.2f%%)", r.maxDiff, diffPct),
			"latency": r.latency,
		}).Debug("ring measured")
		if csv {
			fmt.Fprintf(tw,
				"%d,\t%.4f,\t%.4f,\t%.2f\n",
				r.points, devPct, diffPct,
				r.latency.Seconds()*1000,
			)
		}
		return true
	})
	tw.Flush()

	printf("OK\n")
}

type result struct {
	points  int
	latency time.Duration
	stddev  float64
	maxDiff int
}

func (r result) Compare(x avl.Item) int {
	return r.points - x.(result).points
}

type numPoints int

func (n numPoints) Compare(x avl.Item) int {
	return int(n - x.(numPoints))
}
