// Package port implements the framing of the ketama port protocol, used by
// Erlang port drivers to look keys up through stdio.
//
// A request is a one byte length header followed by the key. A length of 255
// terminates the session. A response is a one byte length header followed
// by the "host:port" address of the server owning the key.
package port

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/gobwas/ketama"
)

// MaxLen is the maximum length of a key or an answer.
const MaxLen = 254

const terminator = 0xff

var (
	// ErrTerminated is returned by ReadKey when peer sent the terminating
	// length header.
	ErrTerminated = errors.New("port: session terminated")

	// ErrTooLong is returned by WriteAnswer when answer does not fit in one
	// byte length header.
	ErrTooLong = errors.New("port: answer is too long")
)

// ReadKey reads one request from r.
// It returns io.EOF if r is exhausted before the length header.
func ReadKey(r io.Reader) ([]byte, error) {
	var h [1]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, err
	}
	if h[0] == terminator {
		return nil, ErrTerminated
	}
	key := make([]byte, h[0])
	if _, err := io.ReadFull(r, key); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return key, nil
}

// WriteAnswer writes one response to w.
func WriteAnswer(w io.Writer, p []byte) error {
	if len(p) > MaxLen {
		return fmt.Errorf("%w: %d bytes", ErrTooLong, len(p))
	}
	buf := make([]byte, 0, len(p)+1)
	buf = append(buf, byte(len(p)))
	buf = append(buf, p...)
	_, err := w.Write(buf)
	return err
}

// LookupFunc returns the answer for given key.
type LookupFunc func(key []byte) ([]byte, error)

// RingLookup returns LookupFunc answering with address of the server which
// owns the key on ring r.
func RingLookup(r *ketama.Ring) LookupFunc {
	return func(key []byte) ([]byte, error) {
		s, err := r.LookupBytes(key)
		if err != nil {
			return nil, err
		}
		return []byte(s.Addr()), nil
	}
}

// Serve reads requests from r and writes answers to w until r is exhausted,
// the session is terminated or ctx is done. Lookup errors are logged and
// answered with an empty address.
//
// Note that ctx is checked between requests only: a blocked read is not
// interrupted.
func Serve(ctx context.Context, r io.Reader, w io.Writer, lookup LookupFunc) error {
	logEntry := logrus.WithFields(logrus.Fields{
		"func_name": "Serve",
	})
	var (
		br = bufio.NewReader(r)
		bw = bufio.NewWriter(w)
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := ReadKey(br)
		switch {
		case err == io.EOF || errors.Is(err, ErrTerminated):
			return nil
		case err != nil:
			return fmt.Errorf("port: read key: %w", err)
		}
		ans, err := lookup(key)
		if err != nil {
			logEntry.WithField("key", string(key)).Warnln("lookup error:", err)
			ans = nil
		}
		if err := WriteAnswer(bw, ans); err != nil {
			return fmt.Errorf("port: write answer: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("port: write answer: %w", err)
		}
	}
}
