// Package attest signs detected signals so downstream consumers can
// verify a signal really came from this detector instance.
package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"insider-signal-lab/internal/domain"
)

// ErrInvalidKey is returned for keys that are not canonical curve points.
var ErrInvalidKey = errors.New("invalid attestation key")

// Signer holds the detector's attestation keypair.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner generates a fresh keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate attestation key: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// NewSignerFromSeed restores a Signer from a base58-encoded 32-byte seed.
func NewSignerFromSeed(encoded string) (*Signer, error) {
	seed, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// PublicKey returns the base58-encoded verification key.
func (s *Signer) PublicKey() string {
	return base58.Encode(s.pub)
}

// Attestation binds a signature to the signal fields it covers.
type Attestation struct {
	SignalID  string `json:"signal_id"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// digest is the signed message: a hash over the fields that identify
// the detection outcome. Confidence is fixed to two decimals first so
// the wire rounding and the signed value cannot drift apart.
func digest(sig *domain.SignalRecord) []byte {
	msg := sig.SignalID + "|" + sig.FilingHash + "|" +
		strconv.FormatFloat(sig.ThresholdValue, 'f', 2, 64) + "|" +
		strconv.FormatFloat(sig.Confidence, 'f', 2, 64)
	h := sha256.Sum256([]byte(msg))
	return h[:]
}

// Sign attests a signal record.
func (s *Signer) Sign(sig *domain.SignalRecord) *Attestation {
	return &Attestation{
		SignalID:  sig.SignalID,
		PublicKey: s.PublicKey(),
		Signature: base58.Encode(ed25519.Sign(s.priv, digest(sig))),
	}
}

// Verify checks an attestation against a signal record. The public key
// must decode to a canonical point on the curve; non-canonical
// encodings are rejected before any signature math.
func Verify(att *Attestation, sig *domain.SignalRecord) error {
	pub, err := base58.Decode(att.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ErrInvalidKey
	}
	if !isCanonicalPoint(pub) {
		return ErrInvalidKey
	}

	rawSig, err := base58.Decode(att.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	if att.SignalID != sig.SignalID {
		return errors.New("attestation covers a different signal")
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), digest(sig), rawSig) {
		return errors.New("signature verification failed")
	}
	return nil
}

func isCanonicalPoint(pub []byte) bool {
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return false
	}
	var buf [32]byte
	copy(buf[:], pub)
	return p.Bytes() != nil && buf == [32]byte(p.Bytes())
}
