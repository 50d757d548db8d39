// Package play defines the play (wave) record and message validation.
package play

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxMessageRunes caps message length in code points.
const DefaultMaxMessageRunes = 280

var (
	// ErrMessageEmpty indicates a message with no visible content.
	ErrMessageEmpty = errors.New("message is empty")
	// ErrMessageTooLong indicates a message above the configured cap.
	ErrMessageTooLong = errors.New("message is too long")
	// ErrMessageEncoding indicates invalid UTF-8 or disallowed control characters.
	ErrMessageEncoding = errors.New("message encoding is invalid")
)

// Outcome is the decided result of a play.
type Outcome int

const (
	// OutcomePending is the in-memory state before a decision; it is never persisted.
	OutcomePending Outcome = iota
	OutcomeWon
	OutcomeLost
	// OutcomeBlocked marks an attempt rejected because the identity is blocked.
	OutcomeBlocked
)

// String returns the wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "PENDING"
	case OutcomeWon:
		return "WON"
	case OutcomeLost:
		return "LOST"
	case OutcomeBlocked:
		return "BLOCKED"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Final reports whether the outcome may be stored on a record.
func (o Outcome) Final() bool {
	return o == OutcomeWon || o == OutcomeLost
}

// ParseOutcome parses a wire name, case-insensitively.
func ParseOutcome(raw string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING":
		return OutcomePending, nil
	case "WON":
		return OutcomeWon, nil
	case "LOST":
		return OutcomeLost, nil
	case "BLOCKED":
		return OutcomeBlocked, nil
	default:
		return OutcomePending, fmt.Errorf("unknown outcome %q", raw)
	}
}

// Record is one accepted play. It is written once and never revised.
type Record struct {
	Sequence  uint64
	Identity  identity.Key
	Timestamp time.Time
	Message   string
	Outcome   Outcome
	// Payout is the amount transferred to the identity; zero unless won.
	Payout uint64
	// Nonce and Proof are the hex-encoded outcome audit material.
	Nonce string
	Proof string
}

// Won reports whether the play won a payout.
func (r Record) Won() bool {
	return r.Outcome == OutcomeWon
}

// ValidateMessage normalizes message to NFC, trims surrounding whitespace, and
// enforces the encoding and length rules. It returns the normalized message.
func ValidateMessage(message string, maxRunes int) (string, error) {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxMessageRunes
	}
	if !utf8.ValidString(message) {
		return "", ErrMessageEncoding
	}
	normalized := strings.TrimSpace(norm.NFC.String(message))
	if normalized == "" {
		return "", ErrMessageEmpty
	}
	for _, r := range normalized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return "", fmt.Errorf("%w: control character %U", ErrMessageEncoding, r)
		}
	}
	if count := utf8.RuneCountInString(normalized); count > maxRunes {
		return "", fmt.Errorf("%w: %d code points exceeds %d", ErrMessageTooLong, count, maxRunes)
	}
	return normalized, nil
}
