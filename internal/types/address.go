package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the width of an account address in bytes.
const AddressLength = 32

// Address is an account address that scopes module names.
type Address [AddressLength]byte

var (
	// AddressZero is 0x0.
	AddressZero Address
	// AddressOne is 0x1, home of the standard library.
	AddressOne = Address{AddressLength - 1: 1}
)

// ParseAddress accepts 0x-prefixed hex with 1 to 64 digits.
// Short forms are left-padded with zeros.
func ParseAddress(s string) (Address, error) {
	var addr Address
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return addr, fmt.Errorf("address %q: missing 0x prefix", s)
	}
	if digits == "" || len(digits) > 2*AddressLength {
		return addr, fmt.Errorf("address %q: expected 1..%d hex digits, got %d", s, 2*AddressLength, len(digits))
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return addr, fmt.Errorf("address %q: %w", s, err)
	}
	copy(addr[AddressLength-len(raw):], raw)
	return addr, nil
}

// MustParseAddress panics when s is not a valid address.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String returns the short form without leading zeros, e.g. 0x1.
func (a Address) String() string {
	full := hex.EncodeToString(a[:])
	trimmed := strings.TrimLeft(full, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return "0x" + trimmed
}

// Hex returns all 64 digits with the 0x prefix.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Compare orders addresses bytewise.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}
