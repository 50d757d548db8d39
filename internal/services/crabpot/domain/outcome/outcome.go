// Package outcome decides play results from keyed, auditable draws.
//
// Each draw mixes a fresh nonce with the player identity and play sequence
// under an HMAC key derived from the service secret. The first eight bytes
// of the MAC, read big-endian, are compared against a threshold derived from
// the win probability. Publishing the nonce and proof lets an auditor holding
// the secret recompute any decision.
package outcome

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"

	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
)

const (
	// DefaultWinProbability is the chance a play wins.
	DefaultWinProbability = 0.5
	// SecretSize is the length of generated secrets in bytes.
	SecretSize = 32
	// MinSecretSize is the shortest accepted secret.
	MinSecretSize = 16
	nonceSize     = 16
	drawLabel     = "crabpot:outcome"
)

// Decision is the result of one draw plus its audit material.
type Decision struct {
	Outcome play.Outcome
	Nonce   string
	Proof   string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEntropy replaces the nonce source. Tests use it for deterministic draws.
func WithEntropy(r io.Reader) Option {
	return func(e *Engine) {
		if r != nil {
			e.entropy = r
		}
	}
}

// Engine draws outcomes.
type Engine struct {
	key         []byte
	probability float64
	threshold   uint64
	always      bool
	entropy     io.Reader
}

// NewSecret returns a fresh random secret.
func NewSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("generate outcome secret: %w", err)
	}
	return secret, nil
}

// NewEngine builds an engine for the given secret and win probability.
func NewEngine(secret []byte, probability float64, opts ...Option) (*Engine, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("outcome secret must be at least %d bytes", MinSecretSize)
	}
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return nil, fmt.Errorf("win probability %v must be within [0, 1]", probability)
	}
	key, err := hkdf.Key(sha256.New, secret, nil, drawLabel, 32)
	if err != nil {
		return nil, fmt.Errorf("derive outcome key: %w", err)
	}
	e := &Engine{
		key:         key,
		probability: probability,
		entropy:     rand.Reader,
	}
	if probability == 1 {
		e.always = true
	} else {
		e.threshold = uint64(probability * math.Exp2(64))
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Probability returns the configured win probability.
func (e *Engine) Probability() float64 {
	if e == nil {
		return 0
	}
	return e.probability
}

// Decide draws the outcome for the play id is about to record at seq.
func (e *Engine) Decide(id identity.Key, seq uint64) (Decision, error) {
	if e == nil {
		return Decision{}, fmt.Errorf("outcome engine is not configured")
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(e.entropy, nonce); err != nil {
		return Decision{}, fmt.Errorf("read nonce: %w", err)
	}
	mac := e.sum(id, seq, nonce)
	return Decision{
		Outcome: e.judge(mac),
		Nonce:   hex.EncodeToString(nonce),
		Proof:   hex.EncodeToString(mac),
	}, nil
}

// Verify recomputes a recorded decision and checks that the proof and
// outcome match.
func (e *Engine) Verify(id identity.Key, seq uint64, d Decision) error {
	if e == nil {
		return fmt.Errorf("outcome engine is not configured")
	}
	nonce, err := hex.DecodeString(d.Nonce)
	if err != nil || len(nonce) != nonceSize {
		return fmt.Errorf("nonce is malformed")
	}
	proof, err := hex.DecodeString(d.Proof)
	if err != nil {
		return fmt.Errorf("proof is malformed")
	}
	mac := e.sum(id, seq, nonce)
	if !hmac.Equal(mac, proof) {
		return fmt.Errorf("proof mismatch")
	}
	if got := e.judge(mac); got != d.Outcome {
		return fmt.Errorf("outcome %s does not match draw %s", d.Outcome, got)
	}
	return nil
}

func (e *Engine) sum(id identity.Key, seq uint64, nonce []byte) []byte {
	mac := hmac.New(sha256.New, e.key)
	_, _ = mac.Write([]byte(drawLabel))
	_, _ = mac.Write(id[:])
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	_, _ = mac.Write(seqBytes[:])
	_, _ = mac.Write(nonce)
	return mac.Sum(nil)
}

func (e *Engine) judge(mac []byte) play.Outcome {
	if e.always || binary.BigEndian.Uint64(mac[:8]) < e.threshold {
		return play.OutcomeWon
	}
	return play.OutcomeLost
}
