package domain

import (
	"encoding/hex"
	"strings"

	dErrors "selfid/pkg/domain-errors"
)

// Address identifies a principal: a 20-byte account address rendered as a
// 0x-prefixed lowercase hex string.
//
// Invariant: an Address is either the zero value or 42 characters of valid
// hex. Construct via ParseAddress at trust boundaries; direct casting
// bypasses validation.
type Address string

const addressHexLen = 40

// ZeroAddress is the null address. It is never a valid principal.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress constructs an Address from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or not
// 20 bytes of hex; no other errors are expected.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	body, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must have 0x prefix")
	}
	if len(body) != addressHexLen {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "address must be %d hex characters", addressHexLen)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address contains non-hex characters")
	}
	return Address("0x" + body), nil
}

func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is absent or the null address.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}
