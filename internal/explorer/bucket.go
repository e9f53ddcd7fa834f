package explorer

import "strconv"

// Bucket is a histogram bin width. Monthly bins are calendar months and
// carry Plotly's "M1" period syntax instead of a fixed millisecond width.
type Bucket int

const (
	BucketMonthly Bucket = iota
	BucketWeekly
	BucketDaily
)

const (
	weekMillis = 7 * dayMillis
)

// Millis returns the fixed bin width in milliseconds, or 0 for calendar
// months.
func (b Bucket) Millis() int64 {
	switch b {
	case BucketWeekly:
		return weekMillis
	case BucketDaily:
		return dayMillis
	default:
		return 0
	}
}

// String names the bucket for logs.
func (b Bucket) String() string {
	switch b {
	case BucketMonthly:
		return "monthly"
	case BucketWeekly:
		return "weekly"
	case BucketDaily:
		return "daily"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the value Plotly expects as an xbins size: the string
// "M1" for monthly, otherwise the width in milliseconds.
func (b Bucket) MarshalJSON() ([]byte, error) {
	if b == BucketMonthly {
		return []byte(`"M1"`), nil
	}
	return []byte(strconv.FormatInt(b.Millis(), 10)), nil
}
