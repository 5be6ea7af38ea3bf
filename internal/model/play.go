package model

import (
	"errors"
	"fmt"
)

// ErrInvalidPlay is wrapped by every Play validation failure.
var ErrInvalidPlay = errors.New("invalid play")

// PatternType enumerates the supported schedule patterns.
type PatternType string

const (
	PatternDaily         PatternType = "daily"
	PatternDailyExcept   PatternType = "daily-except"
	PatternEveryOtherDay PatternType = "every-other-day"
	PatternSpecificDays  PatternType = "specific-days"
)

// SchedulePattern describes on which festival days a play is performed.
// Weekdays use 0 = Sunday ... 6 = Saturday.
type SchedulePattern struct {
	Type PatternType `yaml:"type" json:"type"`

	// ExceptDay is used by daily-except.
	ExceptDay int `yaml:"exceptDay,omitempty" json:"exceptDay,omitempty"`
	// StartOffset (0 or 1) selects the day parity for every-other-day.
	StartOffset int `yaml:"startOffset,omitempty" json:"startOffset,omitempty"`
	// Days is used by specific-days.
	Days []int `yaml:"days,omitempty" json:"days,omitempty"`
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int `yaml:"hour" json:"hour"`
	Minute int `yaml:"minute" json:"minute"`
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Play is a recurring show definition; its representations are the
// candidate intervals of group Play.ID.
type Play struct {
	ID              string          `yaml:"id" json:"id"`
	Title           string          `yaml:"title" json:"title"`
	DurationMinutes int             `yaml:"duration" json:"duration"`
	StartTime       ClockTime       `yaml:"startTime" json:"startTime"`
	Schedule        SchedulePattern `yaml:"schedule" json:"schedule"`
}

func (p Play) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPlay)
	}
	if p.DurationMinutes < 1 || p.DurationMinutes >= 24*60 {
		return fmt.Errorf("%w: %s: duration %d out of [1, 1440)", ErrInvalidPlay, p.ID, p.DurationMinutes)
	}
	if p.StartTime.Hour < 0 || p.StartTime.Hour > 23 || p.StartTime.Minute < 0 || p.StartTime.Minute > 59 {
		return fmt.Errorf("%w: %s: start time %s out of range", ErrInvalidPlay, p.ID, p.StartTime)
	}
	return p.Schedule.validate(p.ID)
}

func (s SchedulePattern) validate(playID string) error {
	switch s.Type {
	case PatternDaily:
		return nil
	case PatternDailyExcept:
		if !validWeekday(s.ExceptDay) {
			return fmt.Errorf("%w: %s: exceptDay %d", ErrInvalidPlay, playID, s.ExceptDay)
		}
	case PatternEveryOtherDay:
		if s.StartOffset != 0 && s.StartOffset != 1 {
			return fmt.Errorf("%w: %s: startOffset %d", ErrInvalidPlay, playID, s.StartOffset)
		}
	case PatternSpecificDays:
		for _, d := range s.Days {
			if !validWeekday(d) {
				return fmt.Errorf("%w: %s: weekday %d", ErrInvalidPlay, playID, d)
			}
		}
	default:
		return fmt.Errorf("%w: %s: unknown schedule type %q", ErrInvalidPlay, playID, s.Type)
	}
	return nil
}

func validWeekday(d int) bool {
	return d >= 0 && d <= 6
}
