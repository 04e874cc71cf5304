// Package scan models STM scan frames and bias sweeps. A sweep expands a
// base frame into a series of frames at evenly spaced bias voltages, and the
// package estimates how long a series will take to acquire.
package scan

import (
	"fmt"
	"math"
	"time"
)

// LineCounts are the frame resolutions the controller accepts.
var LineCounts = []int{8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// DefaultLines is used when a frame does not specify a resolution.
const DefaultLines = 256

// Frame describes a single STM image acquisition.
type Frame struct {
	// Lines per frame, one of LineCounts.
	Lines int `yaml:"lines"`

	// Size is the edge length of the scanned area in meters.
	Size float64 `yaml:"size"`

	// XOffset and YOffset displace the scan area center, in meters.
	XOffset float64 `yaml:"x_offset"`
	YOffset float64 `yaml:"y_offset"`

	// LineTime is the acquisition time per line in seconds.
	LineTime float64 `yaml:"line_time"`

	// Bias is the tip-sample bias voltage.
	Bias float64 `yaml:"bias"`
}

// Duration returns the acquisition time of one frame.
func (f Frame) Duration() time.Duration {
	lines := f.Lines
	if lines == 0 {
		lines = DefaultLines
	}
	return time.Duration(float64(lines) * f.LineTime * float64(time.Second))
}

// ValidLines reports whether n is an accepted lines-per-frame value.
func ValidLines(n int) bool {
	for _, v := range LineCounts {
		if v == n {
			return true
		}
	}
	return false
}

// Sweep describes a bias voltage sweep in volts.
type Sweep struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// Count returns the number of frames the sweep produces. A zero step yields
// zero frames.
func (s Sweep) Count() int {
	if s.Step == 0 {
		return 0
	}
	return int(math.Abs((s.Start - s.Stop) / s.Step))
}

// Frames expands the sweep into one copy of base per bias point, spaced
// evenly from Start to Stop inclusive.
func (s Sweep) Frames(base Frame) []Frame {
	n := s.Count()
	if n == 0 {
		return nil
	}

	frames := make([]Frame, 0, n)
	for _, bias := range linspace(s.Start, s.Stop, n) {
		f := base
		f.Bias = bias
		frames = append(frames, f)
	}
	return frames
}

// linspace returns n evenly spaced values from start to stop inclusive.
func linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}

	step := (stop - start) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	// Avoid accumulated drift on the final point.
	out[n-1] = stop
	return out
}

// EstimateDuration returns the total acquisition time of a frame series.
func EstimateDuration(frames []Frame) time.Duration {
	var total time.Duration
	for _, f := range frames {
		total += f.Duration()
	}
	return total
}

// FormatDuration renders d as dd:hh:mm:ss, dropping the day field when it
// would be zero.
func FormatDuration(d time.Duration) string {
	secs := int64(d.Seconds())

	days := secs / (60 * 60 * 24)
	secs -= days * 60 * 60 * 24

	hrs := secs / (60 * 60)
	secs -= hrs * 60 * 60

	mins := secs / 60
	secs -= mins * 60

	if days > 0 {
		return fmt.Sprintf("%02d:%02d:%02d:%02d", days, hrs, mins, secs)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hrs, mins, secs)
}
