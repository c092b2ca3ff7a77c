// Package filinghash computes content-addressed identifiers for filings
// and detected signals.
package filinghash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mr-tron/base58"
)

// ContentHash computes the SHA-256 audit-linkage hash of a filing body.
// Returns hex-encoded hash (64 characters). This is the value committed
// into downstream proofs.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// CIDv0 computes the IPFS-compatible content identifier of a filing body:
// base58btc(0x12 0x20 ‖ sha256(content)). Pinning the content under this
// address is the publishing side's concern; the identifier alone gives
// consumers a stable retrieval key.
func CIDv0(content []byte) string {
	hash := sha256.Sum256(content)

	// multihash header: sha2-256 code, 32-byte digest
	mh := make([]byte, 0, 2+sha256.Size)
	mh = append(mh, 0x12, 0x20)
	mh = append(mh, hash[:]...)

	return base58.Encode(mh)
}
