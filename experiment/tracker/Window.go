package tracker

import "gonum.org/v1/gonum/floats"

// Window keeps the most recent values of a series, up to a fixed size
type Window struct {
	size   int
	values []float64
}

// NewWindow returns a new Window holding at most size values
func NewWindow(size int) *Window {
	return &Window{size: size, values: make([]float64, 0, size)}
}

// Add adds a value to the window, evicting the oldest value if the
// window is full
func (w *Window) Add(value float64) {
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, value)
}

// Len returns the number of values in the window
func (w *Window) Len() int {
	return len(w.values)
}

// Full returns whether the window holds its maximum number of values
func (w *Window) Full() bool {
	return len(w.values) == w.size
}

// Values returns a copy of the values in the window, oldest first
func (w *Window) Values() []float64 {
	return append([]float64{}, w.values...)
}

// Mean returns the mean of the values in the window, or 0 if the
// window is empty
func (w *Window) Mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return floats.Sum(w.values) / float64(len(w.values))
}

// Min returns the minimum value in the window, or 0 if the window is
// empty
func (w *Window) Min() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return floats.Min(w.values)
}

// Max returns the maximum value in the window, or 0 if the window is
// empty
func (w *Window) Max() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return floats.Max(w.values)
}
