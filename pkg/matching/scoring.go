package matching

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/dates"
)

// anyDateWithinWindow reports whether any claim date falls within the policy
// window of any order date. Returns early on the first hit.
func anyDateWithinWindow(claimDates, orderDates []time.Time) bool {
	for _, cd := range claimDates {
		for _, od := range orderDates {
			if dates.WithinWindow(cd, od, DateWindowDays) {
				return true
			}
		}
	}
	return false
}

// cptOverlap counts the procedure codes the claim and order share.
func cptOverlap(claimCodes map[string]struct{}, orderCodes map[string]struct{}) int {
	if len(claimCodes) == 0 || len(orderCodes) == 0 {
		return 0
	}

	// iterate the smaller set
	small, large := claimCodes, orderCodes
	if len(large) < len(small) {
		small, large = large, small
	}

	overlap := 0
	for code := range small {
		if _, ok := large[code]; ok {
			overlap++
		}
	}
	return overlap
}
