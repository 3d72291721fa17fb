package ledger

import (
	"fmt"
	"strings"
)

// WeightPolicy maps a voter's reputation to the magnitude of their vote.
// Implementations must return a positive value and be non-decreasing in
// reputation.
type WeightPolicy interface {
	Weight(reputation int64) int64
}

// StepWeight grants one unit of weight per Divisor points of reputation,
// clamped to [Min, Max]. Max <= 0 means unbounded.
type StepWeight struct {
	Divisor int64
	Min     int64
	Max     int64
}

// Weight implements WeightPolicy.
func (p StepWeight) Weight(reputation int64) int64 {
	div := p.Divisor
	if div <= 0 {
		div = 100
	}
	lo := p.Min
	if lo < 1 {
		lo = 1
	}
	w := reputation / div
	if w < lo {
		w = lo
	}
	if p.Max > 0 && w > p.Max {
		w = max(p.Max, lo)
	}
	return w
}

// ConstantWeight gives every vote the same weight, i.e. one account one vote.
type ConstantWeight int64

// Weight implements WeightPolicy.
func (c ConstantWeight) Weight(int64) int64 {
	if c < 1 {
		return 1
	}
	return int64(c)
}

// DefaultWeightPolicy is one weight unit per 100 reputation, at least 1.
func DefaultWeightPolicy() WeightPolicy {
	return StepWeight{Divisor: 100, Min: 1}
}

// NewWeightPolicy builds a policy by name. Known names are "step" and "constant".
func NewWeightPolicy(name string, divisor, minWeight, maxWeight int64) (WeightPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "step":
		return StepWeight{Divisor: divisor, Min: minWeight, Max: maxWeight}, nil
	case "constant":
		return ConstantWeight(minWeight), nil
	default:
		return nil, fmt.Errorf("unknown weight policy %q", name)
	}
}
