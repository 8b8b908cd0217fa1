package dto

import "github.com/noah-isme/meal-gate-api/internal/models"

// MealWindowInput is one meal's configuration in an update payload.
type MealWindowInput struct {
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
	Enabled   *bool  `json:"enabled" validate:"required"`
}

// MealWindowSet requires every meal type to be present.
type MealWindowSet struct {
	Breakfast *MealWindowInput `json:"breakfast" validate:"required"`
	Lunch     *MealWindowInput `json:"lunch" validate:"required"`
	Dinner    *MealWindowInput `json:"dinner" validate:"required"`
	LateNight *MealWindowInput `json:"lateNight" validate:"required"`
}

// Entries maps the set by meal type.
func (s MealWindowSet) Entries() map[models.MealType]*MealWindowInput {
	return map[models.MealType]*MealWindowInput{
		models.MealBreakfast: s.Breakfast,
		models.MealLunch:     s.Lunch,
		models.MealDinner:    s.Dinner,
		models.MealLateNight: s.LateNight,
	}
}

// MealWindowsPayload is the configuration document exchanged with the configuration collaborator.
type MealWindowsPayload struct {
	MealWindows MealWindowSet `json:"mealWindows" validate:"required"`
}

// MealWindowView is one meal's configuration in responses.
type MealWindowView struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Enabled   bool   `json:"enabled"`
}

// MealWindowsView mirrors MealWindowsPayload for reads.
type MealWindowsView struct {
	MealWindows map[models.MealType]MealWindowView `json:"mealWindows"`
}

// NewMealWindowsView renders stored windows.
func NewMealWindowsView(windows []models.MealWindow) MealWindowsView {
	view := MealWindowsView{MealWindows: make(map[models.MealType]MealWindowView, len(windows))}
	for _, w := range windows {
		view.MealWindows[w.MealType] = MealWindowView{
			StartTime: w.StartTime.String(),
			EndTime:   w.EndTime.String(),
			Enabled:   w.Enabled,
		}
	}
	return view
}

// ResetResult reports a manual reset.
type ResetResult struct {
	MealType models.MealType `json:"mealType,omitempty"`
	Deleted  int64           `json:"deleted"`
}
