package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"alphadesk/internal/market"
)

// SnapshotValue is the latest reading of one supplemental indicator.
type SnapshotValue struct {
	Latest float64 `json:"latest"`
	State  string  `json:"state,omitempty"`
}

// Snapshot carries the supplemental market-state indicators attached to the
// daily report. These go beyond the model's feature set and exist for human
// readers only.
type Snapshot struct {
	Symbol string                   `json:"symbol"`
	Count  int                      `json:"count"`
	Values map[string]SnapshotValue `json:"values"`
}

// ComputeSnapshot derives the supplemental indicators from raw bars.
// Short histories simply produce fewer values.
func ComputeSnapshot(symbol string, bars []market.Bar) Snapshot {
	snap := Snapshot{
		Symbol: symbol,
		Count:  len(bars),
		Values: make(map[string]SnapshotValue),
	}
	if len(bars) == 0 {
		return snap
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	if atr := lastValid(talib.Atr(highs, lows, closes, 14)); atr > 0 {
		snap.Values["atr"] = SnapshotValue{Latest: atr, State: "volatility"}
	}

	k, d := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	if kv := lastValid(k); kv != 0 || lastValid(d) != 0 {
		snap.Values["stoch_k"] = SnapshotValue{Latest: kv, State: stochasticState(kv)}
		snap.Values["stoch_d"] = SnapshotValue{Latest: lastValid(d)}
	}

	if wr := lastValid(talib.WillR(highs, lows, closes, 14)); wr != 0 {
		snap.Values["williams_r"] = SnapshotValue{Latest: wr, State: stochasticState(-wr)}
	}

	roc := lastValid(talib.Roc(closes, 9))
	snap.Values["roc"] = SnapshotValue{Latest: roc, State: polarityState(roc)}

	obv := lastValid(talib.Obv(closes, volumes))
	snap.Values["obv"] = SnapshotValue{Latest: obv, State: polarityState(roc)}

	return snap
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func polarityState(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "flat"
	}
}

func stochasticState(v float64) string {
	switch {
	case v >= 80:
		return "overbought"
	case v <= 20:
		return "oversold"
	default:
		return "neutral"
	}
}
