package filinghash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSignalID computes a deterministic signal_id using SHA256.
// Formula: SHA256(filing_hash|signal_type|detected_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeSignalID(filingHash, signalType string, detectedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", filingHash, signalType, detectedAtMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
