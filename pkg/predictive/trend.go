// Package predictive estimates signal trends from recorded quality samples
// so the evaluator can anticipate a threshold crossing before it happens.
package predictive

import (
	"fmt"
	"time"

	"github.com/sajari/regression"

	"github.com/telcoware/qns/pkg/telem"
)

// MinSamples is the minimum history needed for a trend fit.
const MinSamples = 3

// Trend is a linear fit of a measurement over time.
type Trend struct {
	// SlopePerSec is the fitted change per second (dB or dBm units).
	SlopePerSec float64
	// Intercept is the fitted value at the reference time.
	Intercept float64
	// Confidence is the fit's R² in [0, 1].
	Confidence float64

	ref time.Time
}

// AnalyzeTrend fits a least-squares line through the samples. Samples must
// be in chronological order, as returned by telem.Store.Since.
func AnalyzeTrend(samples []telem.Sample) (*Trend, error) {
	if len(samples) < MinSamples {
		return nil, fmt.Errorf("need at least %d samples, got %d", MinSamples, len(samples))
	}

	ref := samples[0].Timestamp
	r := new(regression.Regression)
	r.SetObserved("value")
	r.SetVar(0, "elapsed_s")
	for _, s := range samples {
		r.Train(regression.DataPoint(float64(s.Value), []float64{s.Timestamp.Sub(ref).Seconds()}))
	}
	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("trend fit failed: %w", err)
	}

	return &Trend{
		SlopePerSec: r.Coeff(1),
		Intercept:   r.Coeff(0),
		Confidence:  r.R2,
		ref:         ref,
	}, nil
}

// At returns the fitted value at time t.
func (t *Trend) At(at time.Time) float64 {
	return t.Intercept + t.SlopePerSec*at.Sub(t.ref).Seconds()
}

// TimeToCross estimates when the fitted line reaches the threshold value,
// relative to now. ok is false when the trend is flat or moving away from
// the threshold, or when the crossing already passed.
func (t *Trend) TimeToCross(threshold int, now time.Time) (time.Duration, bool) {
	if t.SlopePerSec == 0 {
		return 0, false
	}
	current := t.At(now)
	remaining := (float64(threshold) - current) / t.SlopePerSec
	if remaining <= 0 {
		return 0, false
	}
	return time.Duration(remaining * float64(time.Second)), true
}
