package tracker

import "github.com/warp/timetracker/generic"

// ShouldNotifyPendingOvertime reports whether a balance warrants a pending
// overtime notice: the truncated balance must be strictly positive. There is
// no magnitude threshold, so 0.9 hours does not qualify.
func ShouldNotifyPendingOvertime(balance generic.Amount) bool {
	return balance.Int() > 0
}

