package recurrence

import (
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
)

// Day is the fixed length of one recurrence day. Offsets are wall-clock
// durations, so DST transitions do not shift them.
const Day = 24 * time.Hour

// Params defines the offsets applied to a due date for each recurrence pattern.
type Params struct {
	Offsets map[domain.RecurrencePattern]time.Duration
}

// NewDefaultParams returns the standard offsets: daily is one day, weekly is
// seven days and monthly is a fixed thirty days. Calendar-month arithmetic is
// intentionally not used.
func NewDefaultParams() *Params {
	return &Params{
		Offsets: map[domain.RecurrencePattern]time.Duration{
			domain.RecurrenceDaily:   1 * Day,
			domain.RecurrenceWeekly:  7 * Day,
			domain.RecurrenceMonthly: 30 * Day,
		},
	}
}
