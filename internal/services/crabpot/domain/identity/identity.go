// Package identity defines the participant address used as the ledger's
// primary key.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Size is the byte length of an identity key.
const Size = 20

var (
	// ErrInvalid indicates a malformed identity.
	ErrInvalid = errors.New("invalid identity")
	// ErrZero indicates the zero address, which can never participate.
	ErrZero = errors.New("zero identity")
)

// Key is a fixed-length participant address. Equality is byte equality.
type Key [Size]byte

// Parse reads a hex address with an optional 0x prefix. Mixed case is
// accepted; the zero address is rejected.
func Parse(raw string) (Key, error) {
	value := strings.TrimSpace(raw)
	if len(value) >= 2 && value[0] == '0' && (value[1] == 'x' || value[1] == 'X') {
		value = value[2:]
	}
	if len(value) != hex.EncodedLen(Size) {
		return Key{}, fmt.Errorf("%w: expected %d hex digits, got %d", ErrInvalid, hex.EncodedLen(Size), len(value))
	}
	var key Key
	if _, err := hex.Decode(key[:], []byte(value)); err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if key.IsZero() {
		return Key{}, ErrZero
	}
	return key, nil
}

// MustParse is Parse for fixtures; it panics on error.
func MustParse(raw string) Key {
	key, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return key
}

// FromBytes copies a raw 20-byte address.
func FromBytes(raw []byte) (Key, error) {
	if len(raw) != Size {
		return Key{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalid, Size, len(raw))
	}
	var key Key
	copy(key[:], raw)
	if key.IsZero() {
		return Key{}, ErrZero
	}
	return key, nil
}

// String renders the canonical lowercase 0x-prefixed form.
func (k Key) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// Bytes returns a copy of the raw address.
func (k Key) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, k[:])
	return out
}

// IsZero reports whether k is the zero address.
func (k Key) IsZero() bool {
	return k == Key{}
}
