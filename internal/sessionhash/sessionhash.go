// Package sessionhash computes the short session identifier used to key
// attestation entries to prompt records (spec §3.3). It is split out as its
// own leaf package because both internal/authorshiplog (which mints the
// hash while folding checkpoints) and internal/serialize (which documents
// and re-exports it as part of the wire format, §4.10) need it, and having
// serialize depend on authorshiplog would be circular.
package sessionhash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Length is the number of hex digits in a short hash.
const Length = 7

// ShortHash returns the first 7 hex digits of SHA-256("{tool}:{id}"). Two
// checkpoints belong to the same session iff they yield the same short
// hash. Deliberately excludes the model: sessions that change model
// mid-stream collide, which the spec adopts rather than treats as a bug.
func ShortHash(tool, id string) string {
	sum := sha256.Sum256([]byte(tool + ":" + id))
	return hex.EncodeToString(sum[:])[:Length]
}
