package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/meal-gate-api/internal/models"
)

type memMealWindowRepo struct {
	mu         sync.Mutex
	windows    map[models.MealType]models.MealWindow
	listCalls  int
	listErr    error
	replaceErr error
	replaced   [][]models.MealWindow
}

func newMemMealWindowRepo(windows ...models.MealWindow) *memMealWindowRepo {
	repo := &memMealWindowRepo{windows: make(map[models.MealType]models.MealWindow)}
	for _, w := range windows {
		repo.windows[w.MealType] = w
	}
	return repo
}

func (r *memMealWindowRepo) List(ctx context.Context) ([]models.MealWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.MealWindow, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w)
	}
	models.SortMealWindows(out)
	return out, nil
}

func (r *memMealWindowRepo) Get(ctx context.Context, mealType models.MealType) (*models.MealWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[mealType]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &w, nil
}

func (r *memMealWindowRepo) InsertMissing(ctx context.Context, windows []models.MealWindow) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, w := range windows {
		if _, ok := r.windows[w.MealType]; ok {
			continue
		}
		r.windows[w.MealType] = w
		n++
	}
	return n, nil
}

func (r *memMealWindowRepo) ReplaceAll(ctx context.Context, windows []models.MealWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	for _, w := range windows {
		r.windows[w.MealType] = w
	}
	r.replaced = append(r.replaced, append([]models.MealWindow(nil), windows...))
	return nil
}

func (r *memMealWindowRepo) history() [][]models.MealWindow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]models.MealWindow(nil), r.replaced...)
}

func (r *memMealWindowRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

type ledgerKey struct {
	student string
	meal    models.MealType
	day     models.Day
}

// memLedger enforces the (student, meal, day) uniqueness atomically like the database does.
type memLedger struct {
	mu        sync.Mutex
	records   map[ledgerKey]models.AttendanceRecord
	insertErr error
	deleteErr error
	// context seen by the last delete
	deleteCtxErr   error
	deleteDeadline time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[ledgerKey]models.AttendanceRecord)}
}

func (l *memLedger) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.insertErr != nil {
		return false, l.insertErr
	}
	key := ledgerKey{record.StudentID, record.MealType, record.Day}
	if _, exists := l.records[key]; exists {
		return false, nil
	}
	l.records[key] = *record
	return true, nil
}

func (l *memLedger) CountByMealAndDay(ctx context.Context, mealType models.MealType, day models.Day) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for key := range l.records {
		if key.meal == mealType && key.day == day {
			total++
		}
	}
	return total, nil
}

func (l *memLedger) DeleteByMeal(ctx context.Context, mealType models.MealType) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observe(ctx)
	if l.deleteErr != nil {
		return 0, l.deleteErr
	}
	var n int64
	for key := range l.records {
		if key.meal == mealType {
			delete(l.records, key)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) DeleteAll(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observe(ctx)
	if l.deleteErr != nil {
		return 0, l.deleteErr
	}
	n := int64(len(l.records))
	l.records = make(map[ledgerKey]models.AttendanceRecord)
	return n, nil
}

func (l *memLedger) observe(ctx context.Context) {
	l.deleteCtxErr = ctx.Err()
	l.deleteDeadline, _ = ctx.Deadline()
}

func (l *memLedger) lastDelete() (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deleteDeadline, l.deleteCtxErr
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

type memStudents struct {
	mu        sync.Mutex
	students  map[string]models.Student
	findErr   error
	upsertErr map[string]error
	deleted   []string
}

func newMemStudents(ids ...string) *memStudents {
	s := &memStudents{students: make(map[string]models.Student), upsertErr: make(map[string]error)}
	for _, id := range ids {
		s.students[id] = models.Student{ID: id, Name: "Student " + id}
	}
	return s
}

func (s *memStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	st, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (s *memStudents) Upsert(ctx context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upsertErr[student.ID]; err != nil {
		return err
	}
	student.SyncedAt = time.Now().UTC()
	s.students[student.ID] = *student
	return nil
}

func (s *memStudents) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idsLocked(), nil
}

func (s *memStudents) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.students[id]; ok {
			delete(s.students, id)
			s.deleted = append(s.deleted, id)
			n++
		}
	}
	return n, nil
}

func (s *memStudents) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idsLocked()
}

func (s *memStudents) idsLocked() []string {
	ids := make([]string, 0, len(s.students))
	for id := range s.students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type recordedEvent struct {
	kind    string
	meal    models.MealType
	student string
	deleted int64
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishAdmitted(record models.AttendanceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind: "admitted", meal: record.MealType, student: record.StudentID})
	return nil
}

func (p *recordingPublisher) PublishReset(mealType models.MealType, deleted int64, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind: "reset", meal: mealType, deleted: deleted})
	return nil
}

func (p *recordingPublisher) snapshot() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

func window(meal models.MealType, start, end string, enabled bool) models.MealWindow {
	return models.MealWindow{
		MealType:  meal,
		StartTime: models.MustClockTime(start),
		EndTime:   models.MustClockTime(end),
		Enabled:   enabled,
	}
}

func at(hhmm string) time.Time {
	c := models.MustClockTime(hhmm)
	return time.Date(2024, time.March, 1, c.Hour(), c.Minute(), 0, 0, time.UTC)
}
