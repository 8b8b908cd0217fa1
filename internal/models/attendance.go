package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date bucket in the meal timezone, stored as a DATE column.
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

// DayOf returns the calendar day of t once converted into loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Date: d}
}

// String formats as YYYY-MM-DD.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Date)
}

// MarshalJSON encodes the day as "YYYY-MM-DD".
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// Value stores the day as a date literal so the session timezone cannot shift it.
func (d Day) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan reads DATE columns returned either as time.Time or text.
func (d *Day) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		y, m, day := v.Date()
		*d = Day{Year: y, Month: m, Date: day}
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("scan day: unsupported type %T", src)
	}
}

func (d *Day) parse(raw string) error {
	if len(raw) > len(dayLayout) {
		raw = raw[:len(dayLayout)]
	}
	t, err := time.Parse(dayLayout, raw)
	if err != nil {
		return fmt.Errorf("scan day: %w", err)
	}
	*d = DayOf(t, nil)
	return nil
}

// AttendanceRecord is one admission in the ledger. Unique on (student_id, meal_type, day).
type AttendanceRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"studentId"`
	MealType  MealType  `db:"meal_type" json:"mealType"`
	Day       Day       `db:"day" json:"day"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// CheckInStatus is the outcome kind of an admission attempt.
type CheckInStatus string

const (
	CheckInInvalid     CheckInStatus = "invalid"
	CheckInBlocked     CheckInStatus = "blocked"
	CheckInAlreadyUsed CheckInStatus = "already_used"
	CheckInAllowed     CheckInStatus = "allowed"
	CheckInError       CheckInStatus = "error"
)
