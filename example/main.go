package main

import (
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/theflywheel/dhash"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// 10 slots, doubling once more than 75% are in use
	tbl, err := dhash.New[uint64, uint64](dhash.IntegerHasher[uint64]{}, 10, 0.75, dhash.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create table: %v", err)
	}

	fmt.Println("Table created successfully")

	// Insert some data
	for i := uint64(0); i < 10; i++ {
		if err := tbl.Insert(i, i*100); err != nil {
			log.Fatalf("Failed to insert key %d: %v", i, err)
		}
	}

	fmt.Printf("Inserted 10 key-value pairs, capacity is now %d\n", tbl.Cap())

	// Retrieve and display some values
	for i := uint64(0); i < 15; i += 2 {
		if value, found := tbl.Get(i); found {
			fmt.Printf("Key %d => Value %d\n", i, value)
		} else {
			fmt.Printf("Key %d not found\n", i)
		}
	}

	// Update a value
	if err := tbl.Insert(2, 999); err != nil {
		log.Fatalf("Failed to update key: %v", err)
	}
	if value, found := tbl.Get(2); found {
		fmt.Printf("Updated key 2 => Value %d\n", value)
	}

	// Remove a value; the other keys stay reachable
	if key, removed := tbl.Remove(4); removed {
		fmt.Printf("Removed key %d\n", key)
	}
	if _, found := tbl.Get(4); !found {
		fmt.Println("Key 4 not found after removal")
	}

	st := tbl.Stats()
	fmt.Printf("Entries=%d Capacity=%d Tombstones=%d Resizes=%d\n",
		st.Len, st.Capacity, st.Tombstones, st.Resizes)

	fmt.Println("Example completed successfully")
}
