package utils

import (
	"fmt"
	"regexp"
	"time"
)

// Booking window rules
const (
	ServiceOpenHour  = 8
	ServiceCloseHour = 20
	MaxDaysAhead     = 30
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	phonePattern   = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

// ScheduleError describes why a requested service slot was rejected
type ScheduleError struct {
	Field   string
	Message string
}

func (e *ScheduleError) Error() string {
	return e.Message
}

// ParseServiceSlot combines a YYYY-MM-DD date and HH:MM time in loc
func ParseServiceSlot(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, &ScheduleError{Field: "date", Message: "date must be in YYYY-MM-DD format"}
	}
	tod, err := time.Parse(timeLayout, clock)
	if err != nil || len(clock) != len(timeLayout) {
		return time.Time{}, &ScheduleError{Field: "time", Message: "time must be in HH:MM format"}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, loc), nil
}

// ValidateServiceSlot checks that slot is in the future, inside the daily
// service window, no more than MaxDaysAhead away and at least minLead ahead.
// slot must already be in the service timezone.
func ValidateServiceSlot(slot, now time.Time, minLead time.Duration) error {
	minutes := slot.Hour()*60 + slot.Minute()
	if minutes < ServiceOpenHour*60 || minutes > ServiceCloseHour*60 {
		return &ScheduleError{
			Field:   "time",
			Message: fmt.Sprintf("time must be between %02d:00 and %02d:00", ServiceOpenHour, ServiceCloseHour),
		}
	}
	if !slot.After(now) {
		return &ScheduleError{Field: "date", Message: "service slot must be in the future"}
	}
	if slot.After(now.AddDate(0, 0, MaxDaysAhead)) {
		return &ScheduleError{Field: "date", Message: fmt.Sprintf("service slot cannot be more than %d days ahead", MaxDaysAhead)}
	}
	if slot.Sub(now) < minLead {
		return &ScheduleError{
			Field:   "time",
			Message: fmt.Sprintf("this service must be booked at least %s in advance", formatHours(minLead)),
		}
	}
	return nil
}

// ValidatePincode reports whether p is a six digit postal code not starting with 0
func ValidatePincode(p string) bool {
	return pincodePattern.MatchString(p)
}

// ValidatePhone reports whether p is a ten digit mobile number
func ValidatePhone(p string) bool {
	return phonePattern.MatchString(p)
}

func formatHours(d time.Duration) string {
	hours := int(d / time.Hour)
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
