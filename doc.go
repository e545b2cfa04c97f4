/*
Package dhash provides a generic in-memory hash table using open addressing
with double hashing.

Table is a mapping from K to V backed by a slice of slots. Keys are hashed and
compared through a Hasher, so any key type works, including non-comparable
ones such as []byte.

Basic usage:

	import "github.com/theflywheel/dhash"

	// 10 slots, grow when more than 75% are occupied
	tbl, err := dhash.New[string, string](dhash.StringHasher{}, 10, 0.75)
	if err != nil {
		log.Fatal(err)
	}

	// Insert data
	err = tbl.Insert("17", "John Roe")

	// Retrieve data
	if v, ok := tbl.Get("17"); ok {
		fmt.Println("Value:", v)
	}

	// Remove data
	if k, ok := tbl.Remove("17"); ok {
		fmt.Println("Removed:", k)
	}

	// Enumerate
	for k, v := range tbl.Entries() {
		fmt.Println(k, v)
	}

Features:

  - Generic keys and values, hashing supplied by a Hasher
  - xxHash64 hashers for strings, byte slices and integers
  - Double hashing for collision resolution
  - Tombstones on removal, so other keys stay reachable
  - Automatic doubling when the load factor is exceeded
  - Optional capacity ceiling and zap logging of resizes

Implementation Details:

Each slot is empty, occupied or a tombstone. The probe sequence of a key with
hash h in a table of n slots is

	index(i) = (h mod n + i * step) mod n,  step = 1 + h mod (n-1)

so the step is never zero; this is why a table has at least two slots.

Insert walks the sequence until it finds the key (and updates it) or an empty
slot. Tombstones seen along the way are remembered and the first one is
reused. Get and Remove skip tombstones and stop at the first empty slot.

When more than the maximum load factor of the slots are occupied after an
insert, the table doubles its capacity and reinserts every stored pair,
dropping all tombstones. If a key's probe sequence finds no free slot (its
step can share a factor with the capacity), the table grows and retries. When
growing is impossible Insert returns ErrTableFull.

A Table is not safe for concurrent use. Package concurrent provides a locked
wrapper.
*/
package dhash
