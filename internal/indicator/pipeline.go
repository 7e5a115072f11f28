// Package indicator derives technical-indicator rows from raw OHLCV bars.
// Each indicator is computed independently over the close series and carries
// its own neutral default where the window cannot be satisfied, so one short
// column never poisons the rest of the row.
package indicator

import (
	"errors"
	"math"
	"time"

	"alphadesk/internal/market"
)

// ErrMalformedInput is returned when the bar sequence is empty or carries
// non-finite prices.
var ErrMalformedInput = errors.New("indicator: malformed input")

// Fixed windows, matching the configuration the models were trained against.
const (
	smaShortWindow  = 20
	smaLongWindow   = 50
	emaFastWindow   = 12
	emaSlowWindow   = 26
	macdSignalSpan  = 9
	rsiWindow       = 14
	bollingerWindow = 20
	bollingerK      = 2.0

	// NeutralRSI replaces the oscillator wherever it is undefined.
	NeutralRSI = 50.0
)

// Row is one bar augmented with its derived indicators.
type Row struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	SMA20      float64 `json:"sma_20"`
	SMA50      float64 `json:"sma_50"`
	EMA12      float64 `json:"ema_12"`
	EMA26      float64 `json:"ema_26"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
	Returns    float64 `json:"returns"`
}

// Compute turns an ascending bar sequence into indicator rows, dropping the
// leading warm-up rows of the largest window the history can satisfy.
// Indicators whose window the full history cannot satisfy at all fall back to
// their neutral defaults instead of shrinking the output further.
func Compute(bars []market.Bar) ([]Row, error) {
	if len(bars) == 0 {
		return nil, ErrMalformedInput
	}
	for _, bar := range bars {
		if bar.Date.IsZero() || !finiteBar(bar) {
			return nil, ErrMalformedInput
		}
	}

	n := len(bars)
	rows := make([]Row, n)

	smaShort := newWindow(smaShortWindow)
	smaLong := newWindow(smaLongWindow)
	boll := newWindow(bollingerWindow)
	gains := newWindow(rsiWindow)
	losses := newWindow(rsiWindow)

	var emaFast, emaSlow, signal float64
	for i, bar := range bars {
		row := Row{
			Date:   bar.Date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
		close := bar.Close

		smaShort.push(close)
		smaLong.push(close)
		boll.push(close)
		if smaShort.full() {
			row.SMA20 = smaShort.mean()
		} else {
			row.SMA20 = close
		}
		if smaLong.full() {
			row.SMA50 = smaLong.mean()
		} else {
			row.SMA50 = close
		}

		if i == 0 {
			emaFast = close
			emaSlow = close
		} else {
			emaFast = ema(close, emaFast, emaFastWindow)
			emaSlow = ema(close, emaSlow, emaSlowWindow)
		}
		row.EMA12 = emaFast
		row.EMA26 = emaSlow

		row.MACD = emaFast - emaSlow
		if i == 0 {
			signal = row.MACD
		} else {
			signal = ema(row.MACD, signal, macdSignalSpan)
		}
		row.MACDSignal = signal
		row.MACDHist = row.MACD - signal

		if i > 0 {
			delta := close - bars[i-1].Close
			gains.push(math.Max(delta, 0))
			losses.push(math.Max(-delta, 0))
		}
		row.RSI = NeutralRSI
		if gains.full() {
			gain, loss := gains.mean(), losses.mean()
			if loss > 0 {
				rs := gain / loss
				row.RSI = 100 - 100/(1+rs)
			}
		}

		if boll.full() {
			band := bollingerK * boll.sampleStd()
			row.BBMiddle = boll.mean()
			row.BBUpper = row.BBMiddle + band
			row.BBLower = row.BBMiddle - band
		} else {
			row.BBMiddle = close
			row.BBUpper = close
			row.BBLower = close
		}

		if i > 0 && bars[i-1].Close != 0 {
			row.Returns = close/bars[i-1].Close - 1
		}

		rows[i] = row
	}

	return rows[warmup(n):], nil
}

// Latest computes the indicator series and returns its final row.
func Latest(bars []market.Bar) (Row, error) {
	rows, err := Compute(bars)
	if err != nil {
		return Row{}, err
	}
	if len(rows) == 0 {
		return Row{}, ErrMalformedInput
	}
	return rows[len(rows)-1], nil
}

func ema(value, prev float64, span int) float64 {
	alpha := 2.0 / float64(span+1)
	return alpha*value + (1-alpha)*prev
}

// warmup picks the drop boundary of the largest fully-satisfiable window:
// SMA(50) when history allows it, otherwise the 20-bar windows, otherwise the
// RSI delta window.
func warmup(n int) int {
	switch {
	case n >= smaLongWindow:
		return smaLongWindow - 1
	case n >= smaShortWindow:
		return smaShortWindow - 1
	case n > rsiWindow:
		return rsiWindow
	default:
		return 0
	}
}

func finiteBar(bar market.Bar) bool {
	for _, v := range []float64{bar.Open, bar.High, bar.Low, bar.Close, bar.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return bar.Close > 0
}
