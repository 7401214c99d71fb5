package purchasing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// numberScanWindow caps how many recent numbers the fallback generator
// inspects when the store-side sequence is unavailable.
const numberScanWindow = 100

// nextFallbackNumber derives the next PO number from recently issued ones.
// Numbers carry the shape PO-<yyyymmdd>-<seq>; older data may still hold
// legacy PO-<timestamp> values. The trailing numeric segment of every
// scanned number is parsed, the maximum incremented, and the result
// formatted with a five digit zero padded sequence for the given day.
func nextFallbackNumber(existing []string, day time.Time) string {
	var max int64
	for _, number := range existing {
		seq, ok := trailingSequence(number)
		if !ok {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return fmt.Sprintf("PO-%s-%05d", day.Format("20060102"), max+1)
}

func trailingSequence(number string) (int64, bool) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, false
	}
	seq, err := strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
