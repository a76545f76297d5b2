// Package reputation holds the pure scoring arithmetic. No storage, no
// authorization: (current score, delta) in, bounded score out.
package reputation

import "selfid/internal/registry/models"

// ApplyDelta returns the new score after applying a non-negative delta,
// saturating at the maximum. The sum is computed in int64 so the clamp
// happens before any overflow regardless of host integer width.
func ApplyDelta(score, delta int) int {
	if delta < 0 {
		delta = 0
	}
	sum := int64(score) + int64(delta)
	if sum > models.ReputationMax {
		return models.ReputationMax
	}
	if sum < models.ReputationMin {
		return models.ReputationMin
	}
	return int(sum)
}
