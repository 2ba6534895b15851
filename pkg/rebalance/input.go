package rebalance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Default allocation bounds, in percent.
const (
	DefaultMinAllocationPct = "10"
	DefaultMaxAllocationPct = "40"
)

// Request is the operator-supplied portfolio input.
type Request struct {
	OldBalances      []string `json:"old_balances" yaml:"old_balances"`
	NewBalances      []string `json:"new_balances" yaml:"new_balances"`
	Prices           []string `json:"prices" yaml:"prices"`
	MinAllocationPct string   `json:"min_allocation_pct,omitempty" yaml:"min_allocation_pct"`
	MaxAllocationPct string   `json:"max_allocation_pct,omitempty" yaml:"max_allocation_pct"`
}

const requestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "old_balances": {"type": "array", "minItems": 1, "items": {"type": "string", "pattern": "^[0-9]+$"}},
    "new_balances": {"type": "array", "minItems": 1, "items": {"type": "string", "pattern": "^[0-9]+$"}},
    "prices":       {"type": "array", "minItems": 1, "items": {"type": "string", "pattern": "^[0-9]+$"}},
    "min_allocation_pct": {"type": "string", "pattern": "^[0-9]+$"},
    "max_allocation_pct": {"type": "string", "pattern": "^[0-9]+$"}
  },
  "required": ["old_balances", "new_balances", "prices"],
  "additionalProperties": false
}`

var compiledRequestSchema = jsonschema.MustCompileString("request.json", requestSchema)

// LoadRequest reads and validates a portfolio input file. The format
// follows the extension: .yaml/.yml or .json.
func LoadRequest(path string) (*Request, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return ParseRequest(raw, filepath.Ext(path))
}

// ParseRequest validates raw input bytes in the given format extension.
func ParseRequest(raw []byte, ext string) (*Request, error) {
	var decoded interface{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("parse yaml input: %w", err)
		}
		// Normalize through JSON so schema validation sees JSON types.
		buf, err := json.Marshal(decoded)
		if err != nil {
			return nil, fmt.Errorf("normalize yaml input: %w", err)
		}
		raw = buf
		fallthrough
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return nil, fmt.Errorf("parse json input: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported input format %q", ext)
	}

	if err := compiledRequestSchema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("invalid portfolio input: %w", err)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if req.MinAllocationPct == "" {
		req.MinAllocationPct = DefaultMinAllocationPct
	}
	if req.MaxAllocationPct == "" {
		req.MaxAllocationPct = DefaultMaxAllocationPct
	}
	return &req, nil
}
