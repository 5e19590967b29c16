package worklog

import (
	"errors"
	"time"
)

// DefaultRetentionDays is applied when no retention policy is configured.
const DefaultRetentionDays = 30

// ErrInvalidRetention signals a retention window outside [1, 365] days.
var ErrInvalidRetention = errors.New("worklog: retention days must be between 1 and 365")

// RetentionPolicy decides how far back workflow runs and audit entries are kept.
type RetentionPolicy struct {
	Days int
}

// NewRetentionPolicy validates the configured window; zero falls back to the
// default.
func NewRetentionPolicy(days int) (RetentionPolicy, error) {
	if days == 0 {
		return RetentionPolicy{Days: DefaultRetentionDays}, nil
	}
	if days < 1 || days > 365 {
		return RetentionPolicy{}, ErrInvalidRetention
	}
	return RetentionPolicy{Days: days}, nil
}

// Cutoff returns the timestamp before which records are pruned.
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	days := p.Days
	if days == 0 {
		days = DefaultRetentionDays
	}
	return now.AddDate(0, 0, -days)
}
