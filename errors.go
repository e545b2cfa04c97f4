package dhash

import "errors"

var (
	// ErrInvalidCapacity is returned by New when the initial capacity is below 2.
	ErrInvalidCapacity = errors.New("capacity must be at least 2")

	// ErrInvalidLoadFactor is returned by New when the maximum load factor is
	// outside of the open interval (0, 1).
	ErrInvalidLoadFactor = errors.New("max load factor must be in (0, 1)")

	// ErrNilHasher is returned by New when no hasher is given.
	ErrNilHasher = errors.New("hasher must not be nil")

	// ErrTableFull is returned when no slot can be found for a key, even after
	// forcing the table to grow.
	ErrTableFull = errors.New("hash table full")

	// ErrCapacityLimit is returned when growing would exceed the configured
	// maximum capacity.
	ErrCapacityLimit = errors.New("capacity limit reached")
)
