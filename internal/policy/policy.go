// Package policy wraps the pretrained per-group decision models. A model
// maps one observation vector to a discrete action class and a continuous
// position-size scalar.
package policy

import "fmt"

// Output is the raw model result before action decoding.
type Output struct {
	Action int
	Size   float64
}

// Policy is one loaded decision model.
type Policy interface {
	Predict(obs []float64) (Output, error)
	Close()
}

func validateDim(obs []float64, want int) error {
	if len(obs) != want {
		return fmt.Errorf("policy: observation has %d features, model expects %d", len(obs), want)
	}
	return nil
}
