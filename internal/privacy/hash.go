// Package privacy pseudo-anonymizes actor identifiers before transmission.
// The digest is one-way; recovering an identifier requires an out-of-band
// lookup table held by the backend.
package privacy

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"

	"golang.org/x/crypto/sha3"
)

// identitySalt is a fixed application-wide constant, not a secret. It only
// decorrelates Guardian pseudonyms from digests of the same identifiers
// computed elsewhere.
const identitySalt = "guardian-identity-v1"

// digestLength bounds the emitted hex prefix.
const digestLength = 16

// DigestFunc computes a raw digest over the salted identifier.
type DigestFunc func(data []byte) ([]byte, error)

// Hasher turns identifiers into short salted pseudonyms. A nil digest
// function selects SHA3-256; if the configured digest fails, the hasher
// degrades to a weaker deterministic encoding instead of failing.
type Hasher struct {
	digest DigestFunc
}

// NewHasher constructs a Hasher with the supplied digest primitive.
func NewHasher(digest DigestFunc) *Hasher {
	if digest == nil {
		digest = sha3Digest
	}
	return &Hasher{digest: digest}
}

func sha3Digest(data []byte) ([]byte, error) {
	sum := sha3.Sum256(data)
	return sum[:], nil
}

// HashIdentifier returns the truncated hex pseudonym for value. It never
// returns the input unmodified and never fails.
func (h *Hasher) HashIdentifier(value string) string {
	salted := []byte(identitySalt + ":" + value)
	sum, err := h.digest(salted)
	if err != nil || len(sum) == 0 {
		return fallbackDigest(salted)
	}
	enc := hex.EncodeToString(sum)
	if len(enc) > digestLength {
		enc = enc[:digestLength]
	}
	return enc
}

// fallbackDigest is the degraded path used when the primary primitive is
// unavailable: weaker, still deterministic, still not the raw identifier.
func fallbackDigest(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("fnv-%016x", h.Sum64())
}

var defaultHasher = NewHasher(nil)

// HashIdentifier hashes with the package default SHA3-backed hasher.
func HashIdentifier(value string) string {
	return defaultHasher.HashIdentifier(value)
}
