package port

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/gobwas/ketama"
)

func request(keys ...string) []byte {
	var buf bytes.Buffer
	for _, key := range keys {
		buf.WriteByte(byte(len(key)))
		buf.WriteString(key)
	}
	return buf.Bytes()
}

func readAnswers(t *testing.T, p []byte) []string {
	t.Helper()
	var (
		ret []string
		r   = bytes.NewReader(p)
	)
	for {
		ans, err := ReadKey(r)
		if err == io.EOF {
			return ret
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ret = append(ret, string(ans))
	}
}

func TestReadKey(t *testing.T) {
	for _, test := range []struct {
		name string
		in   []byte
		exp  string
		err  error
	}{
		{"key", request("foo"), "foo", nil},
		{"empty key", request(""), "", nil},
		{"eof", nil, "", io.EOF},
		{"short", []byte{3, 'f'}, "", io.ErrUnexpectedEOF},
		{"no body", []byte{3}, "", io.ErrUnexpectedEOF},
		{"terminated", []byte{0xff, 'f'}, "", ErrTerminated},
	} {
		t.Run(test.name, func(t *testing.T) {
			key, err := ReadKey(bytes.NewReader(test.in))
			if !errors.Is(err, test.err) {
				t.Fatalf("unexpected error: %v; want %v", err, test.err)
			}
			if string(key) != test.exp {
				t.Fatalf("unexpected key: %q; want %q", key, test.exp)
			}
		})
	}
}

func TestWriteAnswer(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, []byte("10.0.0.1:11211")); err != nil {
		t.Fatal(err)
	}
	if act, exp := buf.Bytes(), append([]byte{14}, "10.0.0.1:11211"...); !bytes.Equal(act, exp) {
		t.Fatalf("unexpected answer: %q; want %q", act, exp)
	}
	err := WriteAnswer(&buf, []byte(strings.Repeat("x", MaxLen+1)))
	if !errors.Is(err, ErrTooLong) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServe(t *testing.T) {
	var ring ketama.Ring
	err := ring.Add(
		ketama.MustServer("serverA", "serverA", 1234),
		ketama.MustServer("serverB", "serverA", 5678),
		ketama.MustServer("serverC", "serverC", 5678),
	)
	if err != nil {
		t.Fatal(err)
	}
	in := request("test0", "test1", "test6")
	in = append(in, 0xff)
	in = append(in, request("ignored")...)

	var out bytes.Buffer
	if err := Serve(context.Background(), bytes.NewReader(in), &out, RingLookup(&ring)); err != nil {
		t.Fatal(err)
	}
	act := readAnswers(t, out.Bytes())
	exp := []string{"serverA:5678", "serverA:1234", "serverC:5678"}
	if len(act) != len(exp) {
		t.Fatalf("unexpected answers: %q; want %q", act, exp)
	}
	for i := range act {
		if act[i] != exp[i] {
			t.Fatalf("unexpected answers: %q; want %q", act, exp)
		}
	}
}

func TestServeEmptyRing(t *testing.T) {
	var (
		ring ketama.Ring
		out  bytes.Buffer
	)
	err := Serve(context.Background(), bytes.NewReader(request("foo")), &out, RingLookup(&ring))
	if err != nil {
		t.Fatal(err)
	}
	if act := out.Bytes(); !bytes.Equal(act, []byte{0}) {
		t.Fatalf("unexpected output: %v", act)
	}
}

func TestServeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := Serve(ctx, bytes.NewReader(request("foo")), &out, func([]byte) ([]byte, error) {
		t.Fatalf("unexpected lookup")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServeBrokenRequest(t *testing.T) {
	var out bytes.Buffer
	err := Serve(context.Background(), bytes.NewReader([]byte{5, 'a'}), &out, func(k []byte) ([]byte, error) {
		return k, nil
	})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("unexpected error: %v", err)
	}
}
