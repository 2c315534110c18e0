package session

import (
	"math"
	"time"
)

// ExpiryThreshold is the remaining lifetime, in seconds, at or below which a token counts as expired.
const ExpiryThreshold = 120

// TokenExpired reports whether a token expiring at expiresAt (unix ms) has ExpiryThreshold seconds or less left at now.
func TokenExpired(expiresAt int64, now time.Time) bool {
	remaining := math.Floor(float64(expiresAt-now.UnixMilli()) / 1000)
	return remaining <= ExpiryThreshold
}
