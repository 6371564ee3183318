package ketama

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// HashFunction maps a key to a 32-bit point on the ring.
type HashFunction interface {
	Hash(key []byte) uint32
}

// SeededHashFunction is a HashFunction which can start from an arbitrary
// initial state instead of its own constant one.
type SeededHashFunction interface {
	HashFunction
	HashSeed(key []byte, seed uint32) uint32
}

// HashFunc is an adapter to allow the use of ordinary functions (such as
// crc32.ChecksumIEEE) as HashFunction.
type HashFunc func([]byte) uint32

func (fn HashFunc) Hash(key []byte) uint32 { return fn(key) }

const (
	fnvOffset32 = 0x811c9dc5
	fnvPrime32  = 0x01000193
)

// FNV1a32 is the 32-bit FNV-1a hash function. It is the default hash for both
// keys and servers and is compatible with other ketama clients.
type FNV1a32 struct{}

func (FNV1a32) Hash(key []byte) uint32 {
	return fnv1a(key, fnvOffset32)
}

// HashSeed hashes key starting from the seed instead of the FNV offset basis.
func (FNV1a32) HashSeed(key []byte, seed uint32) uint32 {
	return fnv1a(key, seed)
}

func fnv1a(p []byte, h uint32) uint32 {
	for _, b := range p {
		h ^= uint32(b)
		h *= fnvPrime32
	}
	return h
}

// Native is a fast hash function built on xxhash. Its values are not
// compatible with any other ketama client.
type Native struct{}

func (Native) Hash(key []byte) uint32 {
	return uint32(xxhash.Sum64(key))
}

// CompatOld is the original compatibility hash of the memcached clients:
// hash = hash*33 + c over UTF-16 code units with signed 32-bit overflow.
// It is slow and distributes poorly; it exists for interoperability only.
type CompatOld struct{}

func (CompatOld) Hash(key []byte) uint32 {
	var h int32
	for _, c := range utf16.Encode(decodeRunes(key)) {
		h = h*33 + int32(c)
	}
	return uint32(h)
}

func decodeRunes(p []byte) []rune {
	rs := make([]rune, 0, len(p))
	for len(p) > 0 {
		r, n := utf8.DecodeRune(p)
		rs = append(rs, r)
		p = p[n:]
	}
	return rs
}

// CompatCRC32 is the CRC32 based compatibility hash of the memcached clients.
// Its values lie in [0, 0x7fff].
type CompatCRC32 struct{}

func (CompatCRC32) Hash(key []byte) uint32 {
	crc := int32(crc32.ChecksumIEEE(key))
	return uint32((crc >> 16) & 0x7fff)
}

// MD5 is the libketama key hash: first four bytes of MD5 digest read as a
// little-endian integer.
type MD5 struct{}

func (MD5) Hash(key []byte) uint32 {
	d := md5.Sum(key)
	return binary.LittleEndian.Uint32(d[:4])
}

// HashFunctionByName returns hash function registered under given name.
// Known names are "fnv1a32", "native", "compat-old", "compat-crc32" and "md5".
func HashFunctionByName(name string) (HashFunction, error) {
	switch name {
	case "", "fnv1a32":
		return FNV1a32{}, nil
	case "native":
		return Native{}, nil
	case "compat-old":
		return CompatOld{}, nil
	case "compat-crc32":
		return CompatCRC32{}, nil
	case "md5":
		return MD5{}, nil
	default:
		return nil, fmt.Errorf("ketama: unknown hash function %q: %w", name, ErrInvalidArgument)
	}
}

func hashString(h HashFunction, s string) uint32 {
	return h.Hash([]byte(s))
}
