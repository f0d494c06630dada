// Package history decides which readings are worth keeping as history.
package history

import (
	"math"

	"github.com/lukman83/pricewatch/internal/models"
)

// DefaultThreshold is the minimum relative move recorded as history.
const DefaultThreshold = 0.05

// epsilon absorbs float error so that a move of exactly the threshold
// (100.00 -> 105.00) is recorded.
const epsilon = 1e-9

// Decision is the detector's verdict for one reading.
type Decision struct {
	// Record means a history entry should be appended.
	Record bool
	// Changed marks the reading as eligible for notification.
	Changed bool
	// Bootstrap is set when no prior entry existed for the pair.
	Bootstrap bool
	// RelativeChange is abs(new-last)/last, zero on bootstrap.
	RelativeChange float64
}

// Detector is a hysteresis filter over consecutive prices of one pair.
type Detector struct {
	Threshold float64
}

func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold}
}

// Evaluate compares r with the most recent history entry for its pair.
// last is nil when the pair has no history yet.
func (d *Detector) Evaluate(r models.Reading, last *models.HistoryEntry) Decision {
	if !r.HasPrice() {
		return Decision{}
	}
	if last == nil {
		return Decision{Record: true, Changed: true, Bootstrap: true}
	}
	if last.Price <= 0 {
		return Decision{Record: true, Changed: true, RelativeChange: math.Inf(1)}
	}

	rel := math.Abs(*r.Price-last.Price) / last.Price
	if rel+epsilon >= d.threshold() {
		return Decision{Record: true, Changed: true, RelativeChange: rel}
	}
	return Decision{RelativeChange: rel}
}

func (d *Detector) threshold() float64 {
	if d == nil || d.Threshold <= 0 {
		return DefaultThreshold
	}
	return d.Threshold
}
