package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Digest is a 256-bit content digest. The raw value is layout-compatible
// with a Solidity bytes32, which is how it travels in validation requests.
type Digest [32]byte

// Hash computes the digest of the canonical JSON representation of v.
func Hash(v interface{}) (Digest, error) {
	b, err := JCS(v)
	if err != nil {
		return Digest{}, err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 digest of raw bytes.
func HashBytes(data []byte) Digest {
	return sha256.Sum256(data)
}

// ParseDigest parses a hex digest, with or without the "sha256:" prefix.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimPrefix(s, "sha256:")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest hex: %w", err)
	}
	if len(raw) != 32 {
		return Digest{}, fmt.Errorf("invalid digest length: %d", len(raw))
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}

// Hex returns the bare hex form of the digest.
func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

// String returns the prefixed form, e.g. "sha256:a3f5...".
func (d Digest) String() string { return "sha256:" + d.Hex() }

// Bytes returns the digest as a byte slice.
func (d Digest) Bytes() []byte { return d[:] }

// Bytes32 returns the digest as a fixed array for ABI arguments.
func (d Digest) Bytes32() [32]byte { return d }

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool { return d == Digest{} }

// MarshalText implements encoding.TextMarshaler so digests survive JSON
// round-trips of workflow state.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Digest{}
		return nil
	}
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
