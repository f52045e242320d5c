// Package score maps unbounded anomaly model output to the bounded 0-1000
// credit score range and groups scores into reporting bands.
package score

import "strconv"

// MaxScore is the top of the credit score range.
const MaxScore = 1000

// Rescale linearly maps raw decision-function values onto [0, MaxScore] and
// clips. The mapping is affine, so any constant offset in the raw values
// cancels out; only relative ordering and spread matter.
//
// When every raw value is identical (a single wallet, or fully degenerate
// input) there is no spread to map, and every wallet gets the neutral
// midpoint instead of a division by zero.
func Rescale(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}

	lo, hi := raw[0], raw[0]
	for _, v := range raw {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]float64, len(raw))
	if hi == lo {
		for i := range out {
			out[i] = MaxScore / 2
		}
		return out
	}

	for i, v := range raw {
		s := MaxScore * (v - lo) / (hi - lo)
		if s < 0 {
			s = 0
		}
		if s > MaxScore {
			s = MaxScore
		}
		out[i] = s
	}
	return out
}

// Band is one 100-wide score bucket for distribution reporting.
type Band struct {
	Lo    int `json:"lo"`
	Hi    int `json:"hi"`
	Count int `json:"count"`
}

// Label renders the band range, e.g. "400-499" (the top band is "900-1000").
func (b Band) Label() string {
	return strconv.Itoa(b.Lo) + "-" + strconv.Itoa(b.Hi)
}

// Bands buckets scores into ten fixed 100-wide ranges. A score of exactly
// 1000 lands in the top band.
func Bands(scores []float64) []Band {
	bands := make([]Band, 10)
	for i := range bands {
		bands[i].Lo = i * 100
		bands[i].Hi = i*100 + 99
	}
	bands[9].Hi = MaxScore

	for _, s := range scores {
		i := int(s / 100)
		if i > 9 {
			i = 9
		}
		if i < 0 {
			i = 0
		}
		bands[i].Count++
	}
	return bands
}

// Tier is the human interpretation bucket for a score.
type Tier string

const (
	TierHighRisk Tier = "high_risk"
	TierModerate Tier = "moderate"
	TierReliable Tier = "reliable"
	TierIdeal    Tier = "ideal"
)

// TierFor maps a score to its interpretation tier.
func TierFor(s float64) Tier {
	switch {
	case s < 400:
		return TierHighRisk
	case s < 700:
		return TierModerate
	case s < 900:
		return TierReliable
	default:
		return TierIdeal
	}
}

// Describe returns the report wording for a tier.
func (t Tier) Describe() string {
	switch t {
	case TierHighRisk:
		return "High risk: potential bots or exploit patterns"
	case TierModerate:
		return "Moderate risk: occasional liquidations"
	case TierReliable:
		return "Reliable users: healthy financial ratios"
	case TierIdeal:
		return "Ideal borrowers: consistent deposits, low liquidation risk"
	default:
		return "Unknown"
	}
}
