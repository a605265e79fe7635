package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// StableID derives a deterministic, content-addressed identifier from an
// ordered list of parts. Used wherever the spec requires the same logical
// entity to always produce the same id — signal id (type, subjectKey,
// window), aggregate key, snapshot hash inputs — as opposed to uuid.New,
// which is reserved for correlation ids on system events and job runs
// (spec §3 Signal invariant: "a signal is uniquely determined by (type,
// subjectKey, window)").
func StableID(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes a pre-sorted, pre-joined representation of a
// snapshot's actor/edge lists into a stable snapshotHash (spec §3
// Snapshot invariant).
func ContentHash(lines []string) string {
	return StableID(strings.Join(lines, "\n"))
}
