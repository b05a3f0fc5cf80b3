package scan

import (
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

// HashBytes returns the content digest of b: xxHash64 as 16 lower-case
// hex characters.
func HashBytes(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

// HashFile reads the whole file at path and returns its content digest.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}
