package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const AddressLength = 32

// ClockObjectID is the shared system clock.
const ClockObjectID = "0x6"

// ParseAddress decodes a 0x-prefixed hex address or object id, left-padding
// short forms such as "0x6".
func ParseAddress(s string) ([AddressLength]byte, error) {
	var out [AddressLength]byte

	h := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if h == "" || len(h) > 2*AddressLength {
		return out, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return out, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	copy(out[AddressLength-len(b):], b)
	return out, nil
}

// NormalizeAddress returns the canonical 0x + 64 hex form.
func NormalizeAddress(s string) (string, error) {
	a, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return FormatAddress(a), nil
}

func FormatAddress(a [AddressLength]byte) string {
	return "0x" + hex.EncodeToString(a[:])
}

// SameAddress compares two addresses in any accepted form.
func SameAddress(a, b string) bool {
	x, err1 := ParseAddress(a)
	y, err2 := ParseAddress(b)
	return err1 == nil && err2 == nil && x == y
}

// AddressFromPublicKey derives the account address of an ed25519 key.
func AddressFromPublicKey(flag byte, pub []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{flag})
	h.Write(pub)
	var a [AddressLength]byte
	copy(a[:], h.Sum(nil))
	return FormatAddress(a)
}
