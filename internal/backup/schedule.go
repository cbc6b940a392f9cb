package backup

import (
	"fmt"
	"time"

	"github.com/andresuchdata/s3master/internal/domain"
)

// Schedule names.
const (
	ScheduleImmediate = "immediate"
	ScheduleHourly    = "hourly"
	ScheduleSixHours  = "6_hours"
	ScheduleDaily     = "daily"
	ScheduleWeekly    = "weekly"
	ScheduleMonthly   = "monthly"
	ScheduleCustom    = "custom"
)

var scheduleIntervals = map[string]time.Duration{
	ScheduleHourly:   time.Hour,
	ScheduleSixHours: 6 * time.Hour,
	ScheduleDaily:    24 * time.Hour,
	ScheduleWeekly:   7 * 24 * time.Hour,
	ScheduleMonthly:  30 * 24 * time.Hour,
}

// Interval returns how long a schedule waits between runs. Immediate has no
// interval; custom uses customHours.
func Interval(schedule string, customHours int) (time.Duration, error) {
	switch schedule {
	case ScheduleImmediate:
		return 0, nil
	case ScheduleCustom:
		if customHours < 1 {
			return 0, fmt.Errorf("custom schedule needs at least 1 hour, got %d", customHours)
		}
		return time.Duration(customHours) * time.Hour, nil
	}
	d, ok := scheduleIntervals[schedule]
	if !ok {
		return 0, fmt.Errorf("unknown backup schedule %q", schedule)
	}
	return d, nil
}

// ValidateSettings rejects schedules Interval cannot resolve.
func ValidateSettings(bs domain.BackupSettings) error {
	_, err := Interval(bs.Schedule, bs.CustomHours)
	return err
}

// IsDue reports whether a scheduled run should start at now. Immediate and
// invalid schedules are never due; a zero last run always is.
func IsDue(bs domain.BackupSettings, last, now time.Time) bool {
	if !bs.AutoBackup || bs.Schedule == ScheduleImmediate {
		return false
	}
	interval, err := Interval(bs.Schedule, bs.CustomHours)
	if err != nil {
		return false
	}
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= interval
}
