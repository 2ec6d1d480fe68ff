// Package addr validates base58 ed25519 account addresses used for the
// authorized migrator and migration recipients.
package addr

import (
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

var (
	// ErrInvalidAddress is returned for addresses that do not decode to
	// 32 base58 bytes.
	ErrInvalidAddress = errors.New("invalid base58 address")

	// ErrOffCurve is returned for well-formed addresses that are not
	// valid ed25519 curve points (program-derived addresses).
	ErrOffCurve = errors.New("address not on ed25519 curve")
)

// Decode decodes a base58 address into its 32 raw bytes.
func Decode(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidAddress
	}
	return raw, nil
}

// Validate checks that address is a well-formed on-curve account address.
func Validate(address string) error {
	raw, err := Decode(address)
	if err != nil {
		return err
	}
	if !isOnCurve(raw) {
		return ErrOffCurve
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
