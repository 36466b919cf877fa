// Package dosage holds the rule that turns a new INR reading into a suggested dose.
// The rule is a threshold nudge, not a validated clinical algorithm.
package dosage

import (
	"fmt"
	"math"
)

// Suggester computes a suggested dose from the last confirmed dose and a new metric value.
type Suggester interface {
	Suggest(lastConfirmedDose, newMetricValue float64) float64
	DefaultDose() float64
}

// Policy is the threshold-nudge rule: above High lower the dose by Step, below Low
// raise it by Step, otherwise keep it. Values exactly on a threshold are in range.
type Policy struct {
	Default float64 // dose assumed when nothing was ever confirmed
	High    float64
	Low     float64
	Step    float64
	Floor   float64
}

// DefaultPolicy returns the stock thresholds: high 1.8, low 1.5, step 0.25, default dose 1.
func DefaultPolicy() Policy {
	return Policy{Default: 1, High: 1.8, Low: 1.5, Step: 0.25, Floor: 0}
}

// Validate rejects parameter sets that would make the rule meaningless.
func (p Policy) Validate() error {
	for name, v := range map[string]float64{"default": p.Default, "high": p.High, "low": p.Low, "step": p.Step, "floor": p.Floor} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("dosage policy: %s must be finite", name)
		}
	}
	if p.Default <= 0 {
		return fmt.Errorf("dosage policy: default dose must be positive, got %v", p.Default)
	}
	if p.Low > p.High {
		return fmt.Errorf("dosage policy: low threshold %v above high threshold %v", p.Low, p.High)
	}
	if p.Step < 0 {
		return fmt.Errorf("dosage policy: step must not be negative, got %v", p.Step)
	}
	if p.Floor < 0 {
		return fmt.Errorf("dosage policy: floor must not be negative, got %v", p.Floor)
	}
	return nil
}

// DefaultDose is the fallback for patients without a confirmed dose.
func (p Policy) DefaultDose() float64 {
	return p.Default
}

// Suggest applies the nudge. The result never drops below Floor.
func (p Policy) Suggest(lastConfirmedDose, newMetricValue float64) float64 {
	dose := lastConfirmedDose
	if newMetricValue > p.High {
		dose -= p.Step
	} else if newMetricValue < p.Low {
		dose += p.Step
	}
	return math.Max(p.Floor, dose)
}
