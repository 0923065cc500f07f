// Package scoring implements the potential-score engine: a weighted
// normalization of a user's rating quality, transaction volume, and recency
// of activity into a single ranking value.
//
// The engine is pure and total: it performs no I/O, never errors, and treats
// absent inputs as zero contribution.
package scoring

import (
	"math"
	"time"
)

// Normalization ceilings for the three input metrics.
const (
	// MaxRating is the upper bound of the rating scale.
	MaxRating = 5.0

	// MaxRents is the rent count at which the volume factor saturates.
	MaxRents = 100.0

	// MaxAge is the activity age at which the recency factor decays to zero.
	MaxAge = 30 * 24 * time.Hour
)

// Factor weights. They must sum to 1.0 for the score to stay in [0,1];
// see TestWeightsSumToOne.
const (
	WeightRating  = 0.5
	WeightRents   = 0.3
	WeightRecency = 0.2
)

// Metrics are the raw inputs to the score. Nil means the metric is absent
// and contributes zero.
type Metrics struct {
	// Rating is the running weighted rating average in [0,5].
	Rating *float64

	// Rents is the count of rating events.
	Rents *int64

	// LastActiveAt is the epoch-millisecond timestamp of the last
	// activity touch.
	LastActiveAt *int64
}

// Breakdown is the per-factor detail behind a score, served alongside user
// payloads for reference.
type Breakdown struct {
	Rating         float64 `json:"rating"`
	Rents          int64   `json:"rents"`
	RecentlyActive *string `json:"recentlyActive"`
	Score          float64 `json:"score"`
}

// Compute maps metrics to a potential score in [0,1] at the given time.
//
// Each factor is normalized to [0,1] and weighted:
//
//	ratingScore  = rating / MaxRating
//	rentsScore   = min(rents / MaxRents, 1)
//	recencyScore = max(0, 1 - age/MaxAge)   (linear decay, clamped at zero)
//
// The result is monotonic in every input: raising the rating, the rent
// count, or the recency of activity never lowers the score.
func Compute(m Metrics, now time.Time) float64 {
	var ratingScore float64
	if m.Rating != nil {
		ratingScore = *m.Rating / MaxRating
	}

	var rentsScore float64
	if m.Rents != nil {
		rentsScore = math.Min(float64(*m.Rents)/MaxRents, 1)
	}

	var recencyScore float64
	if m.LastActiveAt != nil {
		age := float64(now.UnixMilli() - *m.LastActiveAt)
		recencyScore = math.Max(0, 1-age/float64(MaxAge.Milliseconds()))
	}

	return WeightRating*ratingScore + WeightRents*rentsScore + WeightRecency*recencyScore
}

// Explain computes the score together with its per-factor breakdown.
func Explain(m Metrics, now time.Time) Breakdown {
	b := Breakdown{
		Score: Compute(m, now),
	}
	if m.Rating != nil {
		b.Rating = *m.Rating
	}
	if m.Rents != nil {
		b.Rents = *m.Rents
	}
	if m.LastActiveAt != nil {
		iso := time.UnixMilli(*m.LastActiveAt).UTC().Format(time.RFC3339Nano)
		b.RecentlyActive = &iso
	}
	return b
}

// RoundRating rounds a rating average to one decimal place, the precision
// the running average is stored with.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}
