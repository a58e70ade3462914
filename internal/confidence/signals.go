package confidence

import (
	"math"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/retraction"
)

// Neutral is the value of a signal that cannot be computed.
const Neutral = 0.5

const daysPerYear = 365.25

// frequencySignal is the fraction of the population whose frequency is at
// most the target's.
func frequencySignal(target *retraction.Chain, population []*retraction.Chain) float64 {
	if target.Frequency == nil {
		return Neutral
	}
	freqs := make([]float64, 0, len(population))
	for _, c := range population {
		if c.Frequency != nil {
			freqs = append(freqs, *c.Frequency)
		}
	}
	return rankFraction(*target.Frequency, freqs)
}

// citationSignal ranks the target's citation count within the population
// chains that carry one.
func citationSignal(target *retraction.Chain, population []*retraction.Chain) float64 {
	want, ok := retraction.AttrFloat(target.Attributes, retraction.AttrCitationCount)
	if !ok {
		return Neutral
	}
	counts := make([]float64, 0, len(population))
	for _, c := range population {
		if v, ok := retraction.AttrFloat(c.Attributes, retraction.AttrCitationCount); ok {
			counts = append(counts, v)
		}
	}
	return rankFraction(want, counts)
}

// rankFraction returns count(v <= target)/n. An empty or all-zero
// population carries no information and yields Neutral.
func rankFraction(target float64, values []float64) float64 {
	if len(values) == 0 {
		return Neutral
	}
	var maxVal float64
	var atOrBelow int
	for _, v := range values {
		maxVal = math.Max(maxVal, v)
		if v <= target {
			atOrBelow++
		}
	}
	if maxVal == 0 {
		return Neutral
	}
	return clamp01(float64(atOrBelow) / float64(len(values)))
}

// scaledAttrSignal reads an attribute in [0,1] or on a 1-10 scale.
func scaledAttrSignal(chain *retraction.Chain, key string) float64 {
	v, ok := retraction.AttrFloat(chain.Attributes, key)
	if !ok || math.IsNaN(v) {
		return Neutral
	}
	if v > 1 && v <= 10 {
		v /= 10
	}
	return clamp01(v)
}

// temporalSignal decays exponentially with publication age.
func temporalSignal(chain *retraction.Chain, now time.Time, halfLifeYears float64) float64 {
	published, ok := retraction.AttrTime(chain.Attributes, retraction.AttrPublicationDate)
	if !ok || halfLifeYears <= 0 {
		return Neutral
	}
	ageYears := now.Sub(published).Hours() / 24 / daysPerYear
	if ageYears < 0 {
		ageYears = 0
	}
	return clamp01(math.Exp(-math.Ln2 * ageYears / halfLifeYears))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
