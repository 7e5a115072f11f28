package observation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphadesk/internal/indicator"
)

func writeScalerFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scaler.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScaler(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		path := writeScalerFile(t, `{"mean":[1,2,3],"scale":[0.5,1,2]}`)
		s, err := LoadScaler(path)
		require.NoError(t, err)
		assert.Equal(t, 3, s.Dim())
	})

	t.Run("Missing Scale Rejected", func(t *testing.T) {
		path := writeScalerFile(t, `{"mean":[1,2,3]}`)
		_, err := LoadScaler(path)
		assert.Error(t, err)
	})

	t.Run("Non-Numeric Rejected", func(t *testing.T) {
		path := writeScalerFile(t, `{"mean":["a"],"scale":[1]}`)
		_, err := LoadScaler(path)
		assert.Error(t, err)
	})

	t.Run("Length Mismatch Rejected", func(t *testing.T) {
		path := writeScalerFile(t, `{"mean":[1,2],"scale":[1]}`)
		_, err := LoadScaler(path)
		assert.Error(t, err)
	})
}

func TestScaler_Transform(t *testing.T) {
	s := &Scaler{Mean: []float64{10, 20}, Scale: []float64{2, 0}}

	t.Run("Standardizes", func(t *testing.T) {
		out, err := s.Transform([]float64{14, 25})
		require.NoError(t, err)
		assert.InDelta(t, 2.0, out[0], 1e-12)
		// zero scale leaves the feature centered but unscaled
		assert.InDelta(t, 5.0, out[1], 1e-12)
	})

	t.Run("Dimensionality Mismatch", func(t *testing.T) {
		_, err := s.Transform([]float64{1, 2, 3})
		assert.ErrorIs(t, err, ErrScalerMismatch)
	})
}

func TestBuild_Layout(t *testing.T) {
	row := indicator.Row{
		Open: 1, High: 2, Low: 3, Close: 4, Volume: 5,
		SMA20: 6, SMA50: 7, EMA12: 8, EMA26: 9,
		RSI: 10, MACD: 11, MACDSignal: 12, MACDHist: 13,
		BBUpper: 14, BBMiddle: 15, BBLower: 16, Returns: 17,
	}
	vec := Build(row)
	require.Len(t, vec, VectorSize)
	assert.Equal(t, []float64{4, 1, 2, 3, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17}, vec)
}
