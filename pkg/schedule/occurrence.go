package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/arthur-debert/appsweep/pkg/errors"
)

var weekdayNames = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// Occurrence is one weekly run slot. Weekday is 0 (Sunday) to 6.
type Occurrence struct {
	ID      string `yaml:"id"`
	Weekday int    `yaml:"weekday"`
	Hour    int    `yaml:"hour"`
	Minute  int    `yaml:"minute"`
	Enabled bool   `yaml:"enabled"`
}

// NewOccurrence validates the slot and assigns a fresh id. New slots are
// enabled.
func NewOccurrence(weekday, hour, minute int) (Occurrence, error) {
	o := Occurrence{ID: uuid.NewString(), Weekday: weekday, Hour: hour, Minute: minute, Enabled: true}
	if err := o.Validate(); err != nil {
		return Occurrence{}, err
	}
	return o, nil
}

// Validate checks the field ranges.
func (o Occurrence) Validate() error {
	switch {
	case o.Weekday < 0 || o.Weekday > 6:
		return errors.Newf(errors.ErrScheduleInvalid, "weekday %d out of range 0-6", o.Weekday)
	case o.Hour < 0 || o.Hour > 23:
		return errors.Newf(errors.ErrScheduleInvalid, "hour %d out of range 0-23", o.Hour)
	case o.Minute < 0 || o.Minute > 59:
		return errors.Newf(errors.ErrScheduleInvalid, "minute %d out of range 0-59", o.Minute)
	}
	return nil
}

// String renders "Mon 09:30".
func (o Occurrence) String() string {
	day := "?"
	if o.Weekday >= 0 && o.Weekday < len(weekdayNames) {
		day = strings.ToUpper(weekdayNames[o.Weekday][:1]) + weekdayNames[o.Weekday][1:]
	}
	return fmt.Sprintf("%s %02d:%02d", day, o.Hour, o.Minute)
}

// ParseWeekday accepts a day number or an English day name, abbreviated
// to at least three letters.
func ParseWeekday(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n == 7 {
			n = 0
		}
		if n < 0 || n > 6 {
			return 0, errors.Newf(errors.ErrScheduleInvalid, "weekday %d out of range 0-6", n)
		}
		return n, nil
	}
	if len(s) >= 3 {
		for i, name := range weekdayNames {
			if strings.HasPrefix(s, name) {
				return i, nil
			}
		}
	}
	return 0, errors.Newf(errors.ErrScheduleInvalid, "unknown weekday %q", s)
}

// ParseClock reads "HH:MM" in 24-hour time.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, errors.Newf(errors.ErrScheduleInvalid, "time %q is not HH:MM", s)
	}
	hour, herr := strconv.Atoi(h)
	minute, merr := strconv.Atoi(m)
	if herr != nil || merr != nil || len(m) != 2 {
		return 0, 0, errors.Newf(errors.ErrScheduleInvalid, "time %q is not HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, errors.Newf(errors.ErrScheduleInvalid, "time %q out of range", s)
	}
	return hour, minute, nil
}
