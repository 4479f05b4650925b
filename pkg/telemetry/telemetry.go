// Package telemetry records per-frame engine statistics as CSV.
package telemetry

import (
	"fmt"
	"io"
	"log"
	"math"
	"sort"

	"github.com/gocarina/gocsv"

	"github.com/decker502/aloparticles/pkg/engine"
)

// FrameStats is one row of the statistics file.
type FrameStats struct {
	Frame     int     `csv:"frame"`
	Time      float64 `csv:"time"`
	Instances int     `csv:"instances"`
	Emitters  int     `csv:"emitters"`
	Particles int     `csv:"particles"`
	Delta     int     `csv:"delta"` // Change in particles since the previous frame
}

// Summary aggregates a whole run.
type Summary struct {
	Frames        int
	PeakParticles int
	PeakEmitters  int
	MeanParticles float64
	P50Particles  float64
	P90Particles  float64
}

// Recorder samples an engine once per frame and writes the rows to w. A nil
// *Recorder records nothing.
type Recorder struct {
	w             io.Writer
	headerWritten bool
	frame         int
	last          int
	particles     []float64
	peakEmitters  int
}

// NewRecorder creates a recorder writing to w. It returns nil if w is nil,
// which disables recording.
func NewRecorder(w io.Writer) *Recorder {
	if w == nil {
		return nil
	}
	return &Recorder{w: w}
}

// Sample records the state of e after an update.
func (r *Recorder) Sample(e *engine.Engine) error {
	if r == nil {
		return nil
	}
	stats := FrameStats{
		Frame:     r.frame,
		Time:      e.Now(),
		Instances: len(e.Instances()),
		Emitters:  e.NumEmitters(),
		Particles: e.NumParticles(),
		Delta:     e.NumParticles() - r.last,
	}
	r.frame++
	r.last = stats.Particles
	r.particles = append(r.particles, float64(stats.Particles))
	r.peakEmitters = max(r.peakEmitters, stats.Emitters)
	return r.Write(stats)
}

// Write appends a row, writing the header before the first one.
func (r *Recorder) Write(stats FrameStats) error {
	if r == nil {
		return nil
	}
	records := []FrameStats{stats}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.w); err != nil {
			return fmt.Errorf("writing frame stats: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.w); err != nil {
		return fmt.Errorf("writing frame stats: %w", err)
	}
	return nil
}

// Summary returns the aggregate of every sampled frame.
func (r *Recorder) Summary() Summary {
	if r == nil || len(r.particles) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), r.particles...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return Summary{
		Frames:        len(sorted),
		PeakParticles: int(sorted[len(sorted)-1]),
		PeakEmitters:  r.peakEmitters,
		MeanParticles: sum / float64(len(sorted)),
		P50Particles:  Percentile(sorted, 0.5),
		P90Particles:  Percentile(sorted, 0.9),
	}
}

// Log prints the summary.
func (s Summary) Log() {
	log.Printf("[Telemetry] %d frames, peak %d particles / %d emitters, mean %.1f, p50 %.0f, p90 %.0f",
		s.Frames, s.PeakParticles, s.PeakEmitters, s.MeanParticles, s.P50Particles, s.P90Particles)
}

// Percentile returns the p-th percentile (0..1) of sorted values using
// linear interpolation.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = min(max(p, 0), 1)
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
