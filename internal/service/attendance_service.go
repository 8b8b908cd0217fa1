package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/meal-gate-api/internal/dto"
	"github.com/noah-isme/meal-gate-api/internal/models"
	"github.com/noah-isme/meal-gate-api/pkg/clock"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
)

type attendanceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type mealWindowRegistry interface {
	CurrentMealType(ctx context.Context, now time.Time) (models.MealType, bool, error)
	Get(ctx context.Context, mealType models.MealType) (*models.MealWindow, error)
}

type attendanceLedger interface {
	InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error)
	CountByMealAndDay(ctx context.Context, mealType models.MealType, day models.Day) (int, error)
}

type admissionPublisher interface {
	PublishAdmitted(record models.AttendanceRecord) error
}

const checkInErrorMessage = "unable to process check-in, please try again"

// AttendanceServiceConfig tunes the gate.
type AttendanceServiceConfig struct {
	// Location buckets admissions into calendar days.
	Location *time.Location
	Clock    clock.Clock
}

// AttendanceService decides and records meal admissions.
type AttendanceService struct {
	students  attendanceStudentReader
	windows   mealWindowRegistry
	ledger    attendanceLedger
	events    admissionPublisher
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	location  *time.Location
	clock     clock.Clock
}

// NewAttendanceService constructs the gate. events may be nil.
func NewAttendanceService(students attendanceStudentReader, windows mealWindowRegistry, ledger attendanceLedger, events admissionPublisher, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg AttendanceServiceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &AttendanceService{
		students:  students,
		windows:   windows,
		ledger:    ledger,
		events:    events,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		location:  cfg.Location,
		clock:     cfg.Clock,
	}
}

// Admit validates a scanning station request and checks the student in at the current time.
func (s *AttendanceService) Admit(ctx context.Context, req dto.CheckInRequest) (dto.CheckInResult, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return dto.CheckInResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}
	return s.CheckIn(ctx, req.StudentID, s.clock.Now()), nil
}

// CheckIn decides whether studentID may take the meal active at now and records the admission.
// Every outcome, failures included, is reported through the result status.
func (s *AttendanceService) CheckIn(ctx context.Context, studentID string, now time.Time) dto.CheckInResult {
	result := s.checkIn(ctx, studentID, now)
	s.metrics.RecordCheckIn(result.Status, result.MealType)
	return result
}

func (s *AttendanceService) checkIn(ctx context.Context, studentID string, now time.Time) dto.CheckInResult {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dto.CheckInResult{Status: models.CheckInInvalid}
		}
		return s.failure("lookup student", studentID, "", err)
	}
	summary := dto.NewStudentSummary(student)

	mealType, ok, err := s.windows.CurrentMealType(ctx, now)
	if err != nil {
		return s.failure("resolve meal window", studentID, "", err)
	}
	if !ok {
		return dto.CheckInResult{Status: models.CheckInBlocked, Message: "no active meal window", Student: summary}
	}

	window, err := s.windows.Get(ctx, mealType)
	if err != nil {
		return s.failure("load meal window", studentID, mealType, err)
	}
	if !window.Enabled {
		return dto.CheckInResult{
			Status:   models.CheckInBlocked,
			Message:  fmt.Sprintf("%s disabled", mealType),
			MealType: mealType,
			Student:  summary,
		}
	}

	local := now.In(s.location)
	if window.Wraps() || !window.Contains(models.ClockTimeOf(local)) {
		return dto.CheckInResult{
			Status:      models.CheckInBlocked,
			Message:     fmt.Sprintf("%s window closed", mealType),
			MealType:    mealType,
			WindowStart: window.StartTime.String(),
			WindowEnd:   window.EndTime.String(),
			Student:     summary,
		}
	}

	record := models.AttendanceRecord{
		StudentID: student.ID,
		MealType:  mealType,
		Day:       models.DayOf(local, s.location),
		CreatedAt: now.UTC(),
	}
	inserted, err := s.ledger.InsertIfAbsent(ctx, &record)
	if err != nil {
		return s.failure("record admission", studentID, mealType, err)
	}
	if !inserted {
		return dto.CheckInResult{Status: models.CheckInAlreadyUsed, MealType: mealType, Student: summary}
	}

	if s.events != nil {
		if err := s.events.PublishAdmitted(record); err != nil {
			s.logger.Debug("admission event not published", zap.String("student_id", record.StudentID), zap.Error(err))
		}
	}
	return dto.CheckInResult{Status: models.CheckInAllowed, MealType: mealType, Student: summary}
}

func (s *AttendanceService) failure(step, studentID string, mealType models.MealType, err error) dto.CheckInResult {
	s.logger.Error("check-in failed",
		zap.String("step", step),
		zap.String("student_id", studentID),
		zap.String("meal_type", string(mealType)),
		zap.Error(err),
	)
	return dto.CheckInResult{Status: models.CheckInError, Message: checkInErrorMessage}
}

// Count reports today's admissions for a meal.
func (s *AttendanceService) Count(ctx context.Context, mealType models.MealType) (*dto.AttendanceCount, error) {
	if !mealType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown meal type %q", mealType))
	}
	day := models.DayOf(s.clock.Now(), s.location)
	total, err := s.ledger.CountByMealAndDay(ctx, mealType, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count admissions")
	}
	return &dto.AttendanceCount{MealType: mealType, Day: day, Count: total}, nil
}
