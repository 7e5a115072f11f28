package observation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrScalerMismatch is returned when a vector's length differs from the
// dimensionality the scaler was fitted on.
var ErrScalerMismatch = errors.New("observation: scaler dimensionality mismatch")

const scalerSchema = `{
	"type": "object",
	"required": ["mean", "scale"],
	"properties": {
		"mean":  {"type": "array", "items": {"type": "number"}, "minItems": 1},
		"scale": {"type": "array", "items": {"type": "number"}, "minItems": 1}
	}
}`

var compiledScalerSchema = jsonschema.MustCompileString("scaler.json", scalerSchema)

// Scaler is a fitted standard scaler: transform(x) = (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LoadScaler reads and validates a fitted scaler from a JSON file.
func LoadScaler(path string) (*Scaler, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler file failed: %w", err)
	}
	var doc any
	if err := json.NewDecoder(strings.NewReader(string(raw))).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse scaler file failed: %w", err)
	}
	if err := compiledScalerSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("scaler file %s rejected: %w", path, err)
	}

	var s Scaler
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode scaler file failed: %w", err)
	}
	if len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("scaler file %s: mean has %d entries, scale has %d", path, len(s.Mean), len(s.Scale))
	}
	return &s, nil
}

// Dim returns the dimensionality the scaler was fitted on.
func (s *Scaler) Dim() int {
	return len(s.Mean)
}

// Transform normalizes vec without mutating it. A zero scale entry leaves
// that feature unscaled, matching the fitting library's handling of
// constant features.
func (s *Scaler) Transform(vec []float64) ([]float64, error) {
	if len(vec) != len(s.Mean) {
		return nil, fmt.Errorf("%w: vector has %d features, scaler expects %d", ErrScalerMismatch, len(vec), len(s.Mean))
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}
