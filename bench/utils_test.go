// Package dhash_test provides scale benchmarks for the dhash table.
package dhash_test

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"runtime"
)

// generateUUID creates a random 16-byte UUID
func generateUUID() []byte {
	uuid := make([]byte, 16)
	_, err := rand.Read(uuid)
	if err != nil {
		panic(err)
	}
	// Set version (4) and variant (RFC4122)
	uuid[6] = (uuid[6] & 0x0F) | 0x40
	uuid[8] = (uuid[8] & 0x3F) | 0x80
	return uuid
}

// generateAlphanumeric creates a random alphanumeric string of given length
func generateAlphanumeric(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			panic(err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// heapAllocMB returns the live heap size in megabytes
func heapAllocMB() float64 {
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc) / (1024 * 1024)
}

func keyName(i int) string {
	return fmt.Sprintf("key-%08d", i)
}
