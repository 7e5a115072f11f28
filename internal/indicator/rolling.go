package indicator

import "math"

// window is a fixed-size circular buffer tracking sum and sum-of-squares
// incrementally, so rolling mean and standard deviation are O(1) per push.
type window struct {
	buf   []float64
	head  int
	count int
	sum   float64
	sumsq float64
}

func newWindow(size int) *window {
	return &window{buf: make([]float64, size)}
}

func (w *window) push(v float64) {
	if w.count == len(w.buf) {
		old := w.buf[w.head]
		w.sum -= old
		w.sumsq -= old * old
	} else {
		w.count++
	}
	w.buf[w.head] = v
	w.sum += v
	w.sumsq += v * v
	w.head = (w.head + 1) % len(w.buf)
}

func (w *window) full() bool {
	return w.count == len(w.buf)
}

func (w *window) mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// sampleStd returns the sample standard deviation (n-1 denominator) of the
// values currently in the window.
func (w *window) sampleStd() float64 {
	if w.count < 2 {
		return 0
	}
	n := float64(w.count)
	variance := (w.sumsq - w.sum*w.sum/n) / (n - 1)
	if variance < 0 {
		// incremental accumulation can drift a hair below zero
		variance = 0
	}
	return math.Sqrt(variance)
}
