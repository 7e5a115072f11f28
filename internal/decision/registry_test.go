package decision

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"alphadesk/internal/policy"
)

type stubPolicy struct {
	out policy.Output
	err error
}

func (s *stubPolicy) Predict(obs []float64) (policy.Output, error) { return s.out, s.err }
func (s *stubPolicy) Close()                                       {}

func writeManifest(t *testing.T, dir string, withScaler bool) string {
	t.Helper()
	scalerPath := filepath.Join(dir, "tech_scaler.json")
	if withScaler {
		require.NoError(t, os.WriteFile(scalerPath,
			[]byte(`{"mean":[0,0,0],"scale":[1,1,1]}`), 0o644))
	}
	manifest := filepath.Join(dir, "models.yaml")
	doc := map[string]any{
		"groups": map[string]any{
			"tech": map[string]any{
				"tickers": []string{"AAPL", "MSFT", "aapl"},
				"model":   filepath.Join(dir, "tech.onnx"),
				"scaler":  scalerPath,
			},
		},
	}
	content, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(manifest, content, 0o644))
	return manifest
}

func newTestRegistry(t *testing.T, withScaler bool, pol policy.Policy) *Registry {
	t.Helper()
	manifest := writeManifest(t, t.TempDir(), withScaler)
	r, err := NewRegistryWithLoader(manifest, func(string, int) (policy.Policy, error) {
		return pol, nil
	})
	require.NoError(t, err)
	return r
}

func TestRegistry_Load(t *testing.T) {
	t.Run("Ready Group", func(t *testing.T) {
		r := newTestRegistry(t, true, &stubPolicy{})
		assert.True(t, r.Ready("tech"))
		assert.Equal(t, []string{"AAPL", "MSFT"}, r.Tickers("tech"))
		assert.Equal(t, []string{"AAPL", "MSFT"}, r.Universe())

		info := r.Info()
		require.Len(t, info, 1)
		assert.True(t, info[0].Loaded)
	})

	t.Run("Missing Scaler Skips Group", func(t *testing.T) {
		r := newTestRegistry(t, false, &stubPolicy{})
		assert.False(t, r.Ready("tech"))
		// group is still listed for the control surface
		require.Len(t, r.Info(), 1)
		assert.False(t, r.Info()[0].Loaded)
	})

	t.Run("Missing Manifest Fails", func(t *testing.T) {
		_, err := NewRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestRegistry_Decide(t *testing.T) {
	t.Run("Decodes Buy", func(t *testing.T) {
		r := newTestRegistry(t, true, &stubPolicy{out: policy.Output{Action: 1, Size: 0.25}})
		intent, err := r.Decide("tech", "aapl", []float64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, ActionBuy, intent.Action)
		assert.Equal(t, "AAPL", intent.Symbol)
		assert.Equal(t, "tech", intent.Group)
		assert.Equal(t, 0.25, intent.Size)
		assert.Equal(t, 0.25, intent.Confidence)
	})

	t.Run("Clamps Size", func(t *testing.T) {
		r := newTestRegistry(t, true, &stubPolicy{out: policy.Output{Action: 2, Size: 1.7}})
		intent, err := r.Decide("tech", "MSFT", nil)
		require.NoError(t, err)
		assert.Equal(t, ActionSell, intent.Action)
		assert.Equal(t, 1.0, intent.Size)

		r = newTestRegistry(t, true, &stubPolicy{out: policy.Output{Action: 0, Size: -0.3}})
		intent, err = r.Decide("tech", "MSFT", nil)
		require.NoError(t, err)
		assert.Equal(t, ActionHold, intent.Action)
		assert.Equal(t, 0.0, intent.Size)
	})

	t.Run("Unknown Group", func(t *testing.T) {
		r := newTestRegistry(t, true, &stubPolicy{})
		_, err := r.Decide("energy", "XOM", nil)
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("Model Error", func(t *testing.T) {
		r := newTestRegistry(t, true, &stubPolicy{err: errors.New("boom")})
		_, err := r.Decide("tech", "AAPL", nil)
		assert.ErrorIs(t, err, ErrDecisionFailed)
	})

	t.Run("Bad Action Class", func(t *testing.T) {
		r := newTestRegistry(t, true, &stubPolicy{out: policy.Output{Action: 5, Size: 0.5}})
		_, err := r.Decide("tech", "AAPL", nil)
		assert.ErrorIs(t, err, ErrDecisionFailed)
	})

	t.Run("Non-Finite Size", func(t *testing.T) {
		r := newTestRegistry(t, true, &stubPolicy{out: policy.Output{Action: 1, Size: math.NaN()}})
		_, err := r.Decide("tech", "AAPL", nil)
		assert.ErrorIs(t, err, ErrDecisionFailed)
	})
}
