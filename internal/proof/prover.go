package proof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// DefaultCircuitDir is where the compiled circuit artifacts live.
const DefaultCircuitDir = "circuits/build"

// ErrPublicSignalMismatch is returned when the prover's public signals
// do not echo the inputs we supplied. Treat it as a broken toolchain,
// never as a usable proof.
var ErrPublicSignalMismatch = errors.New("public signals do not match inputs")

// Prover shells out to the circom/snarkjs toolchain to produce groth16
// proofs. It expects a compiled circuit at:
//
//	<circuitDir>/insider_selling_js/generate_witness.js
//	<circuitDir>/insider_selling_js/insider_selling.wasm
//	<circuitDir>/insider_selling_final.zkey
type Prover struct {
	circuitDir string
	nodeBin    string
	snarkjsBin string
	logger     *log.Logger
}

// ProverOption configures Prover.
type ProverOption func(*Prover)

// WithCircuitDir overrides the circuit artifacts directory.
func WithCircuitDir(dir string) ProverOption {
	return func(p *Prover) {
		p.circuitDir = dir
	}
}

// WithLogger sets the prover logger.
func WithLogger(l *log.Logger) ProverOption {
	return func(p *Prover) {
		p.logger = l
	}
}

// WithBinaries overrides the node and snarkjs executables (used by tests).
func WithBinaries(node, snarkjs string) ProverOption {
	return func(p *Prover) {
		p.nodeBin = node
		p.snarkjsBin = snarkjs
	}
}

// NewProver creates a Prover with default paths.
func NewProver(opts ...ProverOption) *Prover {
	p := &Prover{
		circuitDir: DefaultCircuitDir,
		nodeBin:    "node",
		snarkjsBin: "snarkjs",
		logger:     log.New(os.Stderr, "[proof] ", log.LstdFlags|log.Lmsgprefix),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Proof is one generated proof with its public signals.
type Proof struct {
	// ProofJSON is the raw snarkjs proof document.
	ProofJSON []byte
	// PublicSignals holds the circuit's public outputs as decimal strings;
	// index 0 is the filing-hash field element, index 1 the threshold.
	PublicSignals []string
}

// Generate runs witness generation and proving for the given input.
// It verifies the returned public signals echo the filing hash and
// threshold before handing the proof back.
func (p *Prover) Generate(ctx context.Context, in *Input) (*Proof, error) {
	workDir, err := os.MkdirTemp("", "proofgen-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputFile := filepath.Join(workDir, "input.json")
	witnessFile := filepath.Join(workDir, "witness.wtns")
	proofFile := filepath.Join(workDir, "proof.json")
	publicFile := filepath.Join(workDir, "public.json")

	inputJSON, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}
	if err := os.WriteFile(inputFile, inputJSON, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	witnessCmd := exec.CommandContext(ctx, p.nodeBin,
		filepath.Join(p.circuitDir, "insider_selling_js", "generate_witness.js"),
		filepath.Join(p.circuitDir, "insider_selling_js", "insider_selling.wasm"),
		inputFile,
		witnessFile,
	)
	if out, err := witnessCmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("generate witness: %w: %s", err, out)
	}

	proveCmd := exec.CommandContext(ctx, p.snarkjsBin, "groth16", "prove",
		filepath.Join(p.circuitDir, "insider_selling_final.zkey"),
		witnessFile,
		proofFile,
		publicFile,
	)
	if out, err := proveCmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("groth16 prove: %w: %s", err, out)
	}

	proofJSON, err := os.ReadFile(proofFile)
	if err != nil {
		return nil, fmt.Errorf("read proof: %w", err)
	}

	publicJSON, err := os.ReadFile(publicFile)
	if err != nil {
		return nil, fmt.Errorf("read public signals: %w", err)
	}
	var signals []string
	if err := json.Unmarshal(publicJSON, &signals); err != nil {
		return nil, fmt.Errorf("parse public signals: %w", err)
	}

	if len(signals) < 2 || signals[0] != in.FilingHash || signals[1] != strconv.FormatInt(in.Threshold, 10) {
		return nil, ErrPublicSignalMismatch
	}

	p.logger.Printf("proof generated: %d bytes, %d public signals", len(proofJSON), len(signals))
	return &Proof{ProofJSON: proofJSON, PublicSignals: signals}, nil
}
