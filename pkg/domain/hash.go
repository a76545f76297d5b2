package domain

import (
	"encoding/hex"
	"strings"

	dErrors "selfid/pkg/domain-errors"
)

// Hash is the content-addressing digest of an off-chain document or
// credential payload: a 32-byte value rendered as 0x-prefixed lowercase hex.
// The registry records and compares hashes; it never validates what they
// represent.
type Hash string

const hashHexLen = 64

// ZeroHash is the all-zero digest. Records never carry it.
const ZeroHash Hash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// ParseHash constructs a Hash from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or not
// 32 bytes of hex.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "hash cannot be empty")
	}
	body, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "hash must have 0x prefix")
	}
	if len(body) != hashHexLen {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "hash must be %d hex characters", hashHexLen)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "hash contains non-hex characters")
	}
	return Hash("0x" + body), nil
}

func (h Hash) String() string {
	return string(h)
}

// IsZero reports whether the hash is absent or the all-zero digest.
func (h Hash) IsZero() bool {
	return h == "" || h == ZeroHash
}
