package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// MealType identifies a configured meal period.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealLateNight MealType = "lateNight"
)

// AllMealTypes returns every meal type in serving order.
func AllMealTypes() []MealType {
	return []MealType{MealBreakfast, MealLunch, MealDinner, MealLateNight}
}

// Valid returns true when the meal type is supported.
func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealLateNight:
		return true
	default:
		return false
	}
}

const minutesPerDay = 24 * 60

// ClockTime is a wall-clock time of day expressed as minutes since midnight.
type ClockTime int

// ParseClockTime parses a strict "HH:MM" value between 00:00 and 23:59.
func ParseClockTime(raw string) (ClockTime, error) {
	if len(raw) != 5 || raw[2] != ':' || !isDigits(raw[:2]) || !isDigits(raw[3:]) {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	hours, err := strconv.Atoi(raw[:2])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(raw[3:])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return ClockTime(hours*60 + minutes), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustClockTime parses raw and panics on malformed input. Intended for constants.
func MustClockTime(raw string) ClockTime {
	c, err := ParseClockTime(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockTimeOf truncates t to the minute within its own location.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// Hour returns the hour component.
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return int(c) % 60 }

// Minus subtracts d, wrapping around midnight.
func (c ClockTime) Minus(d time.Duration) ClockTime {
	shifted := (int(c) - int(d/time.Minute)) % minutesPerDay
	if shifted < 0 {
		shifted += minutesPerDay
	}
	return ClockTime(shifted)
}

// String formats as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalJSON encodes the time as "HH:MM".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes an "HH:MM" string.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value stores the time as an "HH:MM" text column.
func (c ClockTime) Value() (driver.Value, error) {
	return c.String(), nil
}

// Scan reads an "HH:MM" text column.
func (c *ClockTime) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan clock time: unsupported type %T", src)
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MealWindow is the configured daily admission range for one meal type.
// BeforeWindowMinutes and AfterWindowMinutes are stored but not applied to admission.
type MealWindow struct {
	MealType            MealType  `db:"meal_type" json:"mealType"`
	StartTime           ClockTime `db:"start_time" json:"startTime"`
	EndTime             ClockTime `db:"end_time" json:"endTime"`
	Enabled             bool      `db:"enabled" json:"enabled"`
	BeforeWindowMinutes int       `db:"before_window_minutes" json:"-"`
	AfterWindowMinutes  int       `db:"after_window_minutes" json:"-"`
	UpdatedAt           time.Time `db:"updated_at" json:"updatedAt"`
}

// Contains reports whether at falls inside the inclusive [start, end] range.
// Ranges crossing midnight never match.
func (w MealWindow) Contains(at ClockTime) bool {
	return w.StartTime <= at && at <= w.EndTime
}

// Wraps reports whether the window ends before it starts.
func (w MealWindow) Wraps() bool {
	return w.EndTime < w.StartTime
}

// DefaultMealWindows returns the bootstrap configuration used when the store is empty.
func DefaultMealWindows() []MealWindow {
	return []MealWindow{
		{MealType: MealBreakfast, StartTime: MustClockTime("06:00"), EndTime: MustClockTime("09:00"), Enabled: true},
		{MealType: MealLunch, StartTime: MustClockTime("12:00"), EndTime: MustClockTime("14:00"), Enabled: true},
		{MealType: MealDinner, StartTime: MustClockTime("17:00"), EndTime: MustClockTime("20:00"), Enabled: true},
		{MealType: MealLateNight, StartTime: MustClockTime("22:00"), EndTime: MustClockTime("23:30"), Enabled: false},
	}
}

// SortMealWindows orders windows lexically by meal type, the tie-break used when windows overlap.
func SortMealWindows(windows []MealWindow) {
	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].MealType < windows[j].MealType
	})
}

// ResetJobSpec is a derived, daily reset trigger.
// An empty MealType means every meal is wiped.
type ResetJobSpec struct {
	MealType MealType
	Trigger  ClockTime
}

// CronSpec renders the trigger as a five-field daily cron expression.
func (s ResetJobSpec) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", s.Trigger.Minute(), s.Trigger.Hour())
}
