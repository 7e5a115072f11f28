package market

import "time"

// Bar is one daily OHLCV observation for a single instrument.
// Bars are immutable once produced and always ordered ascending by date.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes extracts the close series from a bar slice.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SortedByDate reports whether bars are in ascending date order.
func SortedByDate(bars []Bar) bool {
	for i := 1; i < len(bars); i++ {
		if bars[i].Date.Before(bars[i-1].Date) {
			return false
		}
	}
	return true
}
