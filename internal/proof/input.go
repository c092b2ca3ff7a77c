// Package proof prepares circuit inputs and drives the external
// groth16 toolchain that proves threshold crossings without revealing
// share counts.
package proof

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// bn254Modulus is the BN254 scalar field modulus. Every circuit input
// must be reduced below it.
var bn254Modulus, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// Input is the witness input handed to the circuit. FilingHash and
// Threshold are public signals; TotalShares, SharesSold and Salt stay
// private.
type Input struct {
	FilingHash  string `json:"filingHash"`
	Threshold   int64  `json:"threshold"`
	TotalShares int64  `json:"totalShares"`
	SharesSold  int64  `json:"sharesSold"`
	Salt        string `json:"salt"`
}

// FilingHashField maps a 256-bit hex filing hash into the scalar field.
// The hash is split into high and low 128-bit halves, recombined with
// keccak256 to match the on-chain verifier, and reduced mod the field
// modulus. No truncation: the full digest feeds the combination.
func FilingHashField(filingHash string) (string, error) {
	hexStr := strings.TrimPrefix(strings.TrimSpace(filingHash), "0x")
	if len(hexStr) != 64 {
		return "", fmt.Errorf("filing hash must be 64 hex chars, got %d", len(hexStr))
	}

	hashInt, ok := new(big.Int).SetString(hexStr, 16)
	if !ok {
		return "", fmt.Errorf("filing hash is not valid hex: %q", filingHash)
	}

	high := new(big.Int).Rsh(hashInt, 128)
	low := new(big.Int).And(hashInt, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)))

	combined := make([]byte, 0, 32)
	combined = append(combined, high.FillBytes(make([]byte, 16))...)
	combined = append(combined, low.FillBytes(make([]byte, 16))...)

	k := sha3.NewLegacyKeccak256()
	k.Write(combined)
	digest := k.Sum(nil)

	field := new(big.Int).SetBytes(digest)
	field.Mod(field, bn254Modulus)
	return field.String(), nil
}

// BuildInput assembles the full circuit input for one proof, deriving
// the filing-hash field element and a fresh random salt.
func BuildInput(filingHash string, threshold, totalShares, sharesSold int64) (*Input, error) {
	if totalShares <= 0 {
		return nil, fmt.Errorf("total shares must be positive, got %d", totalShares)
	}
	if sharesSold < 0 || sharesSold > totalShares {
		return nil, fmt.Errorf("shares sold %d out of range [0, %d]", sharesSold, totalShares)
	}

	field, err := FilingHashField(filingHash)
	if err != nil {
		return nil, err
	}

	salt, err := randomFieldElement()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	return &Input{
		FilingHash:  field,
		Threshold:   threshold,
		TotalShares: totalShares,
		SharesSold:  sharesSold,
		Salt:        salt,
	}, nil
}

func randomFieldElement() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	n := new(big.Int).SetBytes(buf)
	n.Mod(n, bn254Modulus)
	return n.String(), nil
}
