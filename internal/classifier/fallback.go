// Package classifier implements the local threshold-based fire scorer used
// when the model server is unreachable. It computes a handful of energy and
// spectral statistics over the feature vector and combines five weighted
// component votes into a fire score.
package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/embersense/api/internal/audio"
	"github.com/embersense/api/internal/model"
)

// DecisionThreshold is the post-boost score above which a clip is labeled
// fire. Lower values make the scorer more sensitive.
const DecisionThreshold = 0.45

// strongVoteQuorum is the number of full-threshold component votes needed
// for a verdict to be reported as strong.
const strongVoteQuorum = 3

// ComponentVote records the outcome of one scoring component
type ComponentVote struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Passed       bool    `json:"passed"` // full threshold met
	Contribution float64 `json:"contribution"`
}

// Verdict is the result of scoring one feature vector
type Verdict struct {
	Label       model.Label     `json:"label"`
	Confidence  float64         `json:"confidence"`
	Votes       []ComponentVote `json:"votes"`
	StrongVotes int             `json:"strongVotes"`
	Strong      bool            `json:"strong"` // quorum of full votes reached
}

// Score runs the heuristic over a feature vector produced by
// audio.ExtractVector. Fire acoustics drive the component design: crackling
// concentrates in the upper coefficients, energy fluctuates rapidly, and the
// spectrum stays broadband and non-stationary.
func Score(features []float64) (*Verdict, error) {
	if len(features) != audio.FeatureVectorLen {
		return nil, fmt.Errorf("expected %d features, got %d", audio.FeatureVectorLen, len(features))
	}

	std := math.Sqrt(popVariance(features))
	max := floats.Max(features)
	min := floats.Min(features)

	mid := meanAbs(features[4:7])
	high := meanAbs(features[7:10])
	ultraHigh := meanAbs(features[10:])

	var totalEnergy float64
	for _, v := range features {
		totalEnergy += math.Abs(v)
	}
	energyVariance := popVariance(features)
	freqRange := max - min

	var score float64
	votes := make([]ComponentVote, 0, 5)

	// 1. High frequency dominance: crackling lives above the mid bands
	highFreqRatio := (high + ultraHigh) / (mid + 0.001)
	v := ComponentVote{Name: "high_freq_dominance", Weight: 0.25}
	if highFreqRatio > 0.5 {
		v.Passed = true
		v.Contribution = 0.25 * math.Min(highFreqRatio/2.0, 1.0)
	} else {
		v.Contribution = -0.1
	}
	score += v.Contribution
	votes = append(votes, v)

	// 2. Spectral deviation: fire has irregular patterns
	v = ComponentVote{Name: "spectral_deviation", Weight: 0.25}
	switch {
	case std > 0.8:
		v.Passed = true
		v.Contribution = 0.25 * math.Min(std/2.5, 1.0)
	case std > 0.5:
		v.Contribution = 0.15
	default:
		v.Contribution = -0.05
	}
	score += v.Contribution
	votes = append(votes, v)

	// 3. Energy variance: fluctuating, non-stationary energy
	v = ComponentVote{Name: "energy_variance", Weight: 0.20}
	switch {
	case energyVariance > 0.5:
		v.Passed = true
		v.Contribution = 0.20 * math.Min(energyVariance/2.0, 1.0)
	case energyVariance > 0.2:
		v.Contribution = 0.10
	}
	score += v.Contribution
	votes = append(votes, v)

	// 4. Frequency spread: fire covers a wide spectrum
	v = ComponentVote{Name: "frequency_spread", Weight: 0.15}
	switch {
	case freqRange > 1.5:
		v.Passed = true
		v.Contribution = 0.15 * math.Min(freqRange/4.0, 1.0)
	case freqRange > 1.0:
		v.Contribution = 0.08
	}
	score += v.Contribution
	votes = append(votes, v)

	// 5. Energy profile window: not background hiss, not a loud transient
	v = ComponentVote{Name: "energy_profile", Weight: 0.15}
	switch {
	case totalEnergy > 0.5 && totalEnergy < 50:
		v.Passed = true
		v.Contribution = 0.15
	case totalEnergy > 0.3 && totalEnergy < 100:
		v.Contribution = 0.08
	}
	score += v.Contribution
	votes = append(votes, v)

	confidence := clamp(score, 0, 1)

	// Boost strong signals, dampen weak ones
	switch {
	case confidence > 0.65:
		confidence = math.Min(confidence*1.1, 1.0)
	case confidence > 0.45:
		confidence = math.Min(confidence*1.05, 1.0)
	case confidence < 0.35:
		confidence = confidence * 0.8
	}

	strongVotes := 0
	for _, vote := range votes {
		if vote.Passed {
			strongVotes++
		}
	}

	label := model.LabelNonFire
	if confidence > DecisionThreshold {
		label = model.LabelFire
	}

	return &Verdict{
		Label:       label,
		Confidence:  confidence,
		Votes:       votes,
		StrongVotes: strongVotes,
		Strong:      strongVotes >= strongVoteQuorum,
	}, nil
}

// PredictionText renders the label the way the dashboard shows it.
func (v *Verdict) PredictionText() string {
	if v.Label == model.LabelFire {
		return "FIRE DETECTED"
	}
	return "NO FIRE"
}

func meanAbs(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += math.Abs(v)
	}
	return sum / float64(len(vals))
}

// popVariance is the population variance (matches the training pipeline,
// which does not apply Bessel's correction).
func popVariance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := floats.Sum(vals) / float64(len(vals))
	var sum float64
	for _, v := range vals {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(vals))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
