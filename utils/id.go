package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// IDLength is the length of generated paste IDs
const IDLength = 10

// idCharset is the URL-safe nanoid alphabet
const idCharset = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"

// NewID generates a random paste ID of IDLength characters using crypto/rand
func NewID() (string, error) {
	return SecureRandomID(IDLength)
}

// SecureRandomID generates a random ID of the given length over the URL-safe alphabet
func SecureRandomID(length int) (string, error) {
	if length < 3 || length > 64 {
		length = IDLength
	}
	max := big.NewInt(int64(len(idCharset)))
	result := make([]byte, length)
	for i := range result {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = idCharset[idx.Int64()]
	}
	return string(result), nil
}

// IsValidID checks if an ID could have been produced by SecureRandomID.
// Lookups for anything else can be rejected without touching storage.
func IsValidID(id string) bool {
	if len(id) < 3 || len(id) > 64 {
		return false
	}
	for _, char := range id {
		if !strings.ContainsRune(idCharset, char) {
			return false
		}
	}
	return true
}
