package dto

import "github.com/noah-isme/meal-gate-api/internal/models"

// CheckInRequest is the payload sent by a scanning station.
type CheckInRequest struct {
	StudentID string `json:"studentId" validate:"required,max=64"`
}

// StudentSummary is the roster data echoed back to the scanning station.
type StudentSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	PhotoURL   string `json:"photoUrl,omitempty"`
}

// NewStudentSummary projects a roster row for responses.
func NewStudentSummary(s *models.Student) *StudentSummary {
	if s == nil {
		return nil
	}
	return &StudentSummary{ID: s.ID, Name: s.Name, Department: s.Department, PhotoURL: s.PhotoURL}
}

// CheckInResult is the typed outcome of an admission attempt. Callers dispatch on Status.
type CheckInResult struct {
	Status      models.CheckInStatus `json:"status"`
	Message     string               `json:"message,omitempty"`
	MealType    models.MealType      `json:"mealType,omitempty"`
	WindowStart string               `json:"windowStart,omitempty"`
	WindowEnd   string               `json:"windowEnd,omitempty"`
	Student     *StudentSummary      `json:"student,omitempty"`
}

// AttendanceCount reports admissions recorded for one meal on one day.
type AttendanceCount struct {
	MealType models.MealType `json:"mealType"`
	Day      models.Day      `json:"day"`
	Count    int             `json:"count"`
}
