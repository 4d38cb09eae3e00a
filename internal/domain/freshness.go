package domain

import "time"

// OfflineAfter is how far the newest observed frame may lag before the feed
// is considered offline.
const OfflineAfter = 15 * time.Minute

// IsOffline reports whether the newest observed frame is older than
// OfflineAfter at now. Without an observed frame or a parseable timestamp
// there is nothing to judge staleness by and the feed is not flagged.
func IsOffline(set ImageSet, now time.Time) bool {
	latest, ok := set.LatestObserved()
	if !ok {
		return false
	}
	t, ok := latest.Time()
	if !ok {
		return false
	}
	return now.Sub(t) > OfflineAfter
}
