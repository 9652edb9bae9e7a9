package project

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest - фиксированный 256 битный хеш
type Digest [32]byte

// Sum hashes data.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// Combine строит составной хеш: H( head || part1 || part2 ... ).
// Порядок parts должен быть детерминированным.
func Combine(head Digest, parts ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(head[:])
	for _, d := range parts {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }
