package dhash

import (
	"bytes"
	"encoding/binary"
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// Hasher supplies the hash function and equivalence relation a Table uses
// for its keys. Equal keys must hash to the same value.
type Hasher[K any] interface {
	Hash(key K) uint64
	Equal(a, b K) bool
}

// StringHasher hashes strings with xxHash64.
type StringHasher struct{}

func (StringHasher) Hash(key string) uint64 { return xxhash.Sum64String(key) }
func (StringHasher) Equal(a, b string) bool { return a == b }

// BytesHasher hashes byte slices with xxHash64 and compares them by content,
// which allows []byte keys even though slices are not comparable.
type BytesHasher struct{}

func (BytesHasher) Hash(key []byte) uint64 { return xxhash.Sum64(key) }
func (BytesHasher) Equal(a, b []byte) bool { return bytes.Equal(a, b) }

// IntegerHasher hashes any integer type through xxHash64 of its 8-byte
// little-endian encoding. Sequential integers would otherwise probe in lock
// step.
type IntegerHasher[T constraints.Integer] struct{}

func (IntegerHasher[T]) Hash(key T) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	return xxhash.Sum64(buf[:])
}

func (IntegerHasher[T]) Equal(a, b T) bool { return a == b }

// ComparableHasher hashes any comparable type with hash/maphash. Hashes are
// stable for the lifetime of the hasher but differ between hashers.
type ComparableHasher[K comparable] struct {
	seed maphash.Seed
}

// NewComparableHasher returns a ComparableHasher with a fresh random seed.
func NewComparableHasher[K comparable]() ComparableHasher[K] {
	return ComparableHasher[K]{seed: maphash.MakeSeed()}
}

func (h ComparableHasher[K]) Hash(key K) uint64 { return maphash.Comparable(h.seed, key) }
func (ComparableHasher[K]) Equal(a, b K) bool   { return a == b }

// HasherFunc adapts a plain hash function to the Hasher interface for
// comparable keys.
type HasherFunc[K comparable] func(key K) uint64

func (f HasherFunc[K]) Hash(key K) uint64 { return f(key) }
func (HasherFunc[K]) Equal(a, b K) bool   { return a == b }
