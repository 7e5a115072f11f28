// Package observation assembles the fixed-order feature vector the decision
// models consume. The field order is frozen with the scaler/model pair it was
// fitted against and must never be reordered.
package observation

import (
	"alphadesk/internal/indicator"
)

// VectorSize is the model input dimensionality.
const VectorSize = 17

// FieldNames lists the vector layout, index-aligned with Build's output.
var FieldNames = [VectorSize]string{
	"close", "open", "high", "low", "volume",
	"sma_20", "sma_50", "ema_12", "ema_26",
	"rsi", "macd", "macd_signal", "macd_hist",
	"bb_upper", "bb_middle", "bb_lower", "returns",
}

// Build assembles the raw observation vector from the latest indicator row.
func Build(row indicator.Row) []float64 {
	return []float64{
		row.Close, row.Open, row.High, row.Low, row.Volume,
		row.SMA20, row.SMA50, row.EMA12, row.EMA26,
		row.RSI, row.MACD, row.MACDSignal, row.MACDHist,
		row.BBUpper, row.BBMiddle, row.BBLower, row.Returns,
	}
}
