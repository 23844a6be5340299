package domain

import "math"

// ─── Elo Rating ─────────────────────────────────────────────────────────────

// DefaultKFactor is the rating volatility used when the config does not
// override it.
const DefaultKFactor = 32

// BaselineRating is assigned to unrated players (including non-roster
// opponents) before their first rated match.
const BaselineRating = 1200

// EloUpdate computes the post-match ratings for a two-player match.
// The returned delta is the signed adjustment applied to white; black
// receives its exact negation, so the rating sum is conserved. Ratings are
// not clamped and may go negative.
func EloUpdate(whiteRating, blackRating int, result MatchResult, k int) (newWhite, newBlack, delta int) {
	expected := 1 / (1 + math.Pow(10, float64(blackRating-whiteRating)/400))

	var actual float64
	switch result {
	case ResultWhite:
		actual = 1
	case ResultBlack:
		actual = 0
	default:
		actual = 0.5
	}

	delta = int(math.Round(float64(k) * (actual - expected)))
	return whiteRating + delta, blackRating - delta, delta
}
