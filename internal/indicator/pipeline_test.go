package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphadesk/internal/market"
)

func barsFromCloses(closes []float64) []market.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func rampCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

func TestCompute_MalformedInput(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := Compute(nil)
		assert.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("NaN Close", func(t *testing.T) {
		bars := barsFromCloses(rampCloses(10))
		bars[3].Close = math.NaN()
		_, err := Compute(bars)
		assert.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("Zero Date", func(t *testing.T) {
		bars := barsFromCloses(rampCloses(10))
		bars[0].Date = time.Time{}
		_, err := Compute(bars)
		assert.ErrorIs(t, err, ErrMalformedInput)
	})
}

func TestCompute_WarmupDrop(t *testing.T) {
	t.Run("Long History Drops SMA50 Warmup", func(t *testing.T) {
		rows, err := Compute(barsFromCloses(rampCloses(60)))
		require.NoError(t, err)
		assert.Len(t, rows, 60-(smaLongWindow-1))
	})

	t.Run("Short History Drops SMA20 Warmup", func(t *testing.T) {
		rows, err := Compute(barsFromCloses(rampCloses(30)))
		require.NoError(t, err)
		assert.Len(t, rows, 30-(smaShortWindow-1))
	})
}

func TestCompute_SMA(t *testing.T) {
	closes := rampCloses(60)
	rows, err := Compute(barsFromCloses(closes))
	require.NoError(t, err)

	// first emitted row sits at source index 49
	var sum20, sum50 float64
	for _, c := range closes[30:50] {
		sum20 += c
	}
	for _, c := range closes[:50] {
		sum50 += c
	}
	assert.InDelta(t, sum20/20, rows[0].SMA20, 1e-9)
	assert.InDelta(t, sum50/50, rows[0].SMA50, 1e-9)
}

func TestCompute_EMARecurrence(t *testing.T) {
	closes := []float64{100, 102, 101, 105, 103, 108, 110, 107, 109, 112, 111, 115, 114, 118, 117, 120}
	rows, err := Compute(barsFromCloses(closes))
	require.NoError(t, err)

	ema12 := closes[0]
	alpha := 2.0 / float64(emaFastWindow+1)
	for _, c := range closes[1:] {
		ema12 = alpha*c + (1-alpha)*ema12
	}
	assert.InDelta(t, ema12, rows[len(rows)-1].EMA12, 1e-9)
}

func TestCompute_RSI(t *testing.T) {
	t.Run("Always In Range", func(t *testing.T) {
		closes := []float64{100, 98, 103, 101, 99, 104, 102, 106, 103, 108, 105, 110, 107, 112, 109, 114, 111, 116, 113, 118, 115, 120, 117, 122, 119}
		rows, err := Compute(barsFromCloses(closes))
		require.NoError(t, err)
		for _, row := range rows {
			assert.GreaterOrEqual(t, row.RSI, 0.0)
			assert.LessOrEqual(t, row.RSI, 100.0)
		}
	})

	t.Run("All Gains Is Neutral", func(t *testing.T) {
		// monotonically rising closes give zero rolling loss
		rows, err := Compute(barsFromCloses(rampCloses(60)))
		require.NoError(t, err)
		for _, row := range rows {
			assert.Equal(t, NeutralRSI, row.RSI)
		}
	})

	t.Run("Flat Series Is Neutral", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = 100
		}
		rows, err := Compute(barsFromCloses(closes))
		require.NoError(t, err)
		for _, row := range rows {
			assert.Equal(t, NeutralRSI, row.RSI)
		}
	})
}

func TestCompute_Bollinger(t *testing.T) {
	t.Run("Bands Bracket Middle", func(t *testing.T) {
		closes := []float64{100, 98, 103, 101, 99, 104, 102, 106, 103, 108, 105, 110, 107, 112, 109, 114, 111, 116, 113, 118, 115, 120, 117, 122, 119}
		rows, err := Compute(barsFromCloses(closes))
		require.NoError(t, err)
		for _, row := range rows {
			assert.GreaterOrEqual(t, row.BBUpper, row.BBMiddle)
			assert.LessOrEqual(t, row.BBLower, row.BBMiddle)
		}
	})

	t.Run("Sample Std", func(t *testing.T) {
		closes := rampCloses(20)
		rows, err := Compute(barsFromCloses(closes))
		require.NoError(t, err)
		require.Len(t, rows, 1)

		mean := 0.0
		for _, c := range closes {
			mean += c
		}
		mean /= 20
		variance := 0.0
		for _, c := range closes {
			variance += (c - mean) * (c - mean)
		}
		std := math.Sqrt(variance / 19)
		assert.InDelta(t, mean+2*std, rows[0].BBUpper, 1e-9)
		assert.InDelta(t, mean-2*std, rows[0].BBLower, 1e-9)
	})
}

func TestCompute_Returns(t *testing.T) {
	closes := []float64{100, 110, 99}
	rows, err := Compute(barsFromCloses(closes))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 0.0, rows[0].Returns)
	assert.InDelta(t, 0.10, rows[1].Returns, 1e-9)
	assert.InDelta(t, -0.10, rows[2].Returns, 1e-9)
}

func TestCompute_MACDStart(t *testing.T) {
	rows, err := Compute(barsFromCloses([]float64{100, 101, 102}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, rows[0].MACD)
	assert.Equal(t, 0.0, rows[0].MACDSignal)
	assert.Equal(t, 0.0, rows[0].MACDHist)
}

func TestLatest(t *testing.T) {
	rows, err := Compute(barsFromCloses(rampCloses(60)))
	require.NoError(t, err)

	last, err := Latest(barsFromCloses(rampCloses(60)))
	require.NoError(t, err)
	assert.Equal(t, rows[len(rows)-1], last)
}

func TestWindow_Incremental(t *testing.T) {
	w := newWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.push(v)
	}
	assert.InDelta(t, 4.0, w.mean(), 1e-12)
	assert.InDelta(t, 1.0, w.sampleStd(), 1e-12)
	assert.True(t, w.full())
}
