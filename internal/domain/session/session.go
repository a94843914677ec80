// Package session derives the anonymous session identifier: a deterministic
// fingerprint giving unauthenticated requests a stable label for rate
// limiting and moderation correlation. It is not a credential and carries no
// privilege; nothing ever looks it up.
package session

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Identifier is a hex SHA-256 digest over connection-level attributes.
type Identifier string

// Derive fingerprints an anonymous request from its origin address, client
// agent string and timestamp. Pure and one-way: identical inputs always
// yield the same Identifier, and the inputs cannot be recovered from it.
// Inputs are length-prefixed so no concatenation of differing fields can
// collide.
func Derive(sourceAddr, agent string, at time.Time) Identifier {
	h := sha256.New()

	var n [8]byte
	for _, part := range []string{sourceAddr, agent} {
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write([]byte(part))
	}
	binary.BigEndian.PutUint64(n[:], uint64(at.UnixMilli()))
	h.Write(n[:])

	return Identifier(hex.EncodeToString(h.Sum(nil)))
}
