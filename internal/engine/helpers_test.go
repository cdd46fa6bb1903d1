package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/falsumairi/ielts-sub001/internal/model"
)

// ─── Fake providers ─────────────────────────────────────────────────

type fakeTestProvider struct {
	test      *model.Test
	passages  []model.Passage
	questions []model.Question
	err       error
}

func (f *fakeTestProvider) FetchTest(_ context.Context, _ uuid.UUID) (*model.Test, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.test, nil
}

func (f *fakeTestProvider) FetchPassages(_ context.Context, _ uuid.UUID) ([]model.Passage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

func (f *fakeTestProvider) FetchQuestions(_ context.Context, _ uuid.UUID) ([]model.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

type fakeAttemptProvider struct {
	mu        sync.Mutex
	existing  *model.Attempt // returned by CreateOrResume when set
	createErr error

	created   int
	pauses    int
	resumes   int
	completes int
	abandons  int
	remaining []int
}

func (f *fakeAttemptProvider) CreateOrResume(_ context.Context, testID uuid.UUID, userID int) (*model.Attempt, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, false, f.createErr
	}
	if f.existing != nil {
		return f.existing, true, nil
	}
	f.created++
	return &model.Attempt{
		ID:        uuid.New(),
		TestID:    testID,
		UserID:    userID,
		Status:    model.AttemptStatusInProgress,
		StartedAt: time.Now(),
	}, false, nil
}

func (f *fakeAttemptProvider) Pause(_ context.Context, _ uuid.UUID, remaining int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	f.remaining = append(f.remaining, remaining)
	return nil
}

func (f *fakeAttemptProvider) Resume(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return nil
}

func (f *fakeAttemptProvider) Complete(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes++
	return nil
}

func (f *fakeAttemptProvider) Abandon(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandons++
	return nil
}

func (f *fakeAttemptProvider) SaveRemaining(_ context.Context, _ uuid.UUID, remaining int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = append(f.remaining, remaining)
	return nil
}

type submission struct {
	questionID uuid.UUID
	value      string
}

type fakeAnswerProvider struct {
	mu       sync.Mutex
	subs     []submission
	existing map[uuid.UUID]string
	// failNext makes the next n Submit calls fail.
	failNext int
}

var errPersist = errors.New("backend unavailable")

func (f *fakeAnswerProvider) Submit(_ context.Context, _ uuid.UUID, questionID uuid.UUID, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errPersist
	}
	f.subs = append(f.subs, submission{questionID: questionID, value: value})
	return nil
}

func (f *fakeAnswerProvider) FetchExisting(_ context.Context, _ uuid.UUID) (map[uuid.UUID]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing, nil
}

func (f *fakeAnswerProvider) submissions() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]submission, len(f.subs))
	copy(out, f.subs)
	return out
}

// ─── Recording sink ─────────────────────────────────────────────────

type recordingSink struct {
	mu       sync.Mutex
	ticks    []int
	warnings []Warning
	timeEnds int
	states   []model.AttemptStatus
	persists []error
}

func (r *recordingSink) Tick(remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *recordingSink) Warning(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

func (r *recordingSink) TimeEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeEnds++
}

func (r *recordingSink) StateChange(st model.AttemptStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *recordingSink) PersistWarning(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persists = append(r.persists, err)
}

func (r *recordingSink) snapshot() recordingSink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recordingSink{
		ticks:    append([]int(nil), r.ticks...),
		warnings: append([]Warning(nil), r.warnings...),
		timeEnds: r.timeEnds,
		states:   append([]model.AttemptStatus(nil), r.states...),
		persists: append([]error(nil), r.persists...),
	}
}

// ─── Fixtures ───────────────────────────────────────────────────────

func fixtureTest(durationMinutes int) (*model.Test, []model.Passage, []model.Question) {
	testID := uuid.New()
	test := &model.Test{
		ID:              testID,
		Title:           "Academic Reading Practice 1",
		Module:          model.TestModuleReading,
		DurationMinutes: durationMinutes,
		Status:          model.TestStatusPublished,
	}

	var passages []model.Passage
	var questions []model.Question
	for p := 1; p <= 3; p++ {
		passage := model.Passage{
			ID:           uuid.New(),
			TestID:       testID,
			PassageIndex: p,
			Title:        "Passage",
		}
		passages = append(passages, passage)
		for n := 0; n < 4; n++ {
			questions = append(questions, model.Question{
				ID:        uuid.New(),
				TestID:    testID,
				PassageID: passage.ID,
				Number:    (p-1)*4 + n + 1,
				Type:      model.QuestionTypeMultipleChoice,
			})
		}
	}
	return test, passages, questions
}
