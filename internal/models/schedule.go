package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Schedule is the singleton rest-window configuration. Encoding is gated to
// the window when enabled. Weekdays use 0=Monday .. 6=Sunday.
type Schedule struct {
	BaseModel

	// Enabled gates the scheduler tick.
	Enabled bool `gorm:"default:false" json:"enabled"`

	// DaysOfWeek is a comma-separated set of weekday numbers, e.g. "0,1,2,3,4,5,6".
	DaysOfWeek string `gorm:"size:20;default:'0,1,2,3,4,5,6'" json:"days_of_week"`

	// StartTime and EndTime bound the window in "HH:MM" local time.
	// EndTime at or before StartTime means the window spans midnight.
	StartTime string `gorm:"size:5;default:'22:00'" json:"start_time"`
	EndTime   string `gorm:"size:5;default:'06:00'" json:"end_time"`

	// Timezone is the IANA zone name the window is evaluated in.
	Timezone string `gorm:"size:64;default:'UTC'" json:"timezone"`

	// UseHostRestHours derives the window from the host's active-hours
	// metadata when available, overriding StartTime/EndTime.
	UseHostRestHours bool `gorm:"default:false" json:"use_host_rest_hours"`

	// MaxConcurrentJobs bounds the encoder pool while the window is open.
	MaxConcurrentJobs int `gorm:"default:1" json:"max_concurrent_jobs"`
}

// TableName returns the table name for Schedule.
func (Schedule) TableName() string {
	return "schedule"
}

// DefaultSchedule returns the row created on first startup: disabled, every
// day, 22:00-06:00.
func DefaultSchedule() *Schedule {
	return &Schedule{
		Enabled:           false,
		DaysOfWeek:        "0,1,2,3,4,5,6",
		StartTime:         "22:00",
		EndTime:           "06:00",
		Timezone:          "UTC",
		MaxConcurrentJobs: 1,
	}
}

// Days parses DaysOfWeek into a sorted set of weekday numbers.
func (s *Schedule) Days() ([]int, error) {
	if strings.TrimSpace(s.DaysOfWeek) == "" {
		return nil, ErrInvalidDaysOfWeek
	}
	seen := map[int]bool{}
	for _, part := range strings.Split(s.DaysOfWeek, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			return nil, ErrInvalidDaysOfWeek
		}
		seen[n] = true
	}
	days := make([]int, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Ints(days)
	return days, nil
}

// ParseTimeOfDay parses an "HH:MM" string into hour and minute.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, ErrInvalidTimeOfDay
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, ErrInvalidTimeOfDay
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidTimeOfDay
	}
	return hour, minute, nil
}

// Weekday converts a time.Weekday to the schedule numbering (0=Monday).
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Validate performs basic validation on the schedule.
func (s *Schedule) Validate() error {
	if _, err := s.Days(); err != nil {
		return err
	}
	if _, _, err := ParseTimeOfDay(s.StartTime); err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	if _, _, err := ParseTimeOfDay(s.EndTime); err != nil {
		return fmt.Errorf("end_time: %w", err)
	}
	if s.MaxConcurrentJobs < 1 {
		return ErrValidation{Field: "max_concurrent_jobs", Message: "must be at least 1"}
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the schedule and generates a ULID.
func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate()
}

// BeforeUpdate is a GORM hook that validates the schedule before update.
func (s *Schedule) BeforeUpdate(tx *gorm.DB) error {
	return s.Validate()
}
