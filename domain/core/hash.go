package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex characters, enough to tell runs apart in logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// ConfigHash fingerprints an immutable run configuration
type ConfigHash Hash

func (h ConfigHash) String() string { return Hash(h).String() }

// ComputeConfigHash hashes a flat key/value view of a configuration in key order
func ComputeConfigHash(values map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%v", values[key]))
		data.WriteString(";")
	}
	return ConfigHash(NewHash([]byte(data.String())))
}

// DeriveSeed mixes a base seed with a stable name so independent processes
// working on different units never share a random stream.
func DeriveSeed(baseSeed int64, name string) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(baseSeed))
	h.Write(buf[:])
	h.Write([]byte(name))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
