// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// compliant serialization and content digests for triad artifacts.
//
// Two logically identical artifacts must always hash to the same digest
// regardless of how their maps were constructed, so every artifact is run
// through JCS before hashing.
package canonicalize

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// v is first marshaled with encoding/json so struct tags are respected, then
// the intermediate form is transformed into canonical shape (sorted keys,
// ES6 number formatting, no HTML escaping).
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}

	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return out, nil
}

// JCSString returns the JCS canonical form as a string.
func JCSString(v interface{}) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
