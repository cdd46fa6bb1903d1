package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/falsumairi/ielts-sub001/internal/config"
	"github.com/falsumairi/ielts-sub001/internal/engine"
	"github.com/falsumairi/ielts-sub001/internal/model"
	"github.com/falsumairi/ielts-sub001/internal/repository"
)

var (
	// ErrNotOwner means the attempt belongs to a different user.
	ErrNotOwner = errors.New("attempt belongs to another user")
	// ErrNoOpenAttempt means no in-progress or paused attempt exists.
	ErrNoOpenAttempt = errors.New("no open attempt")
	// ErrAttemptFinished means the attempt is terminal.
	ErrAttemptFinished = errors.New("attempt already finished")
)

// liveSession pairs a running engine session with its event fanout so
// observers (websocket streams) can attach and detach while it runs.
type liveSession struct {
	sess   *engine.Session
	fanout *engine.FanoutSink
	userID int
}

// SessionService owns every live timed session in this process. One engine
// session exists per open attempt; REST and WebSocket surfaces both route
// through here.
type SessionService struct {
	cfg         *config.Config
	testService *TestService
	testRepo    *repository.TestRepository
	attemptRepo *repository.AttemptRepository
	answerRepo  *repository.AnswerRepository
	rdb         *redis.Client
	log         zerolog.Logger

	mu       sync.Mutex
	live     map[uuid.UUID]*liveSession
	starting map[startKey]chan struct{}
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	cfg *config.Config,
	testService *TestService,
	testRepo *repository.TestRepository,
	attemptRepo *repository.AttemptRepository,
	answerRepo *repository.AnswerRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:         cfg,
		testService: testService,
		testRepo:    testRepo,
		attemptRepo: attemptRepo,
		answerRepo:  answerRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "session_service").Logger(),
		live:        make(map[uuid.UUID]*liveSession),
		starting:    make(map[startKey]chan struct{}),
	}
}

// startKey identifies one user's start of one test for in-flight locking.
type startKey struct {
	testID uuid.UUID
	userID int
}

// lockStart serializes Start calls per (test, user). Without it two
// concurrent starts (double click, second tab) could both pass the
// open-attempt check, build two clocks for the same attempt and leave the
// overwritten one ticking forever. Returns the release function.
func (s *SessionService) lockStart(ctx context.Context, key startKey) (func(), error) {
	for {
		s.mu.Lock()
		ch, inFlight := s.starting[key]
		if !inFlight {
			done := make(chan struct{})
			s.starting[key] = done
			s.mu.Unlock()
			return func() {
				s.mu.Lock()
				delete(s.starting, key)
				s.mu.Unlock()
				close(done)
			}, nil
		}
		s.mu.Unlock()

		select {
		case <-ch:
			// The holder finished; re-check so this caller sees its session.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Start begins a test for a user, resuming their open attempt if one
// exists. Returns the attempt either way.
func (s *SessionService) Start(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, error) {
	unlock, err := s.lockStart(ctx, startKey{testID: testID, userID: userID})
	if err != nil {
		return nil, err
	}
	defer unlock()

	// If this process already runs a session for the user's open attempt
	// (second tab), hand the same attempt back instead of double-ticking.
	if existing, err := s.attemptRepo.GetOpen(ctx, testID, userID); err == nil {
		s.mu.Lock()
		if ls, ok := s.live[existing.ID]; ok {
			s.mu.Unlock()
			return ls.sess.Attempt(), nil
		}
		s.mu.Unlock()
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, &engine.SessionInitError{Reason: "check open attempt", Err: err}
	}

	fanout := engine.NewFanoutSink()
	sess := engine.NewSession(
		engine.Config{
			DebounceQuiet:     s.cfg.AnswerDebounce,
			WarningThresholds: s.cfg.WarningThresholdsSeconds,
		},
		&testProvider{testRepo: s.testRepo},
		&attemptProvider{attemptRepo: s.attemptRepo, tests: s.testService, rdb: s.rdb},
		&answerProvider{answerRepo: s.answerRepo, rdb: s.rdb},
		fanout,
		s.log,
	)

	if err := sess.Start(ctx, testID, userID); err != nil {
		return nil, err
	}

	attempt := sess.Attempt()
	ls := &liveSession{sess: sess, fanout: fanout, userID: userID}

	// Unregister once the session reaches a terminal state, whichever path
	// gets it there (manual, time end, abandonment).
	fanout.Attach(&terminalWatcher{service: s, attemptID: attempt.ID})

	s.mu.Lock()
	s.live[attempt.ID] = ls
	s.mu.Unlock()

	return attempt, nil
}

// Pause pauses a live session. Falls back to a repository-level status
// update when no session runs in this process.
func (s *SessionService) Pause(ctx context.Context, attemptID uuid.UUID, userID int) error {
	if ls, err := s.owned(attemptID, userID); err != nil {
		return err
	} else if ls != nil {
		return ls.sess.Pause(ctx)
	}
	return s.offlineTransition(ctx, attemptID, userID, model.AttemptStatusPaused)
}

// Resume resumes a paused session.
func (s *SessionService) Resume(ctx context.Context, attemptID uuid.UUID, userID int) error {
	if ls, err := s.owned(attemptID, userID); err != nil {
		return err
	} else if ls != nil {
		return ls.sess.Resume(ctx)
	}
	return s.offlineTransition(ctx, attemptID, userID, model.AttemptStatusInProgress)
}

// Complete submits the attempt, flushing every pending answer first.
func (s *SessionService) Complete(ctx context.Context, attemptID uuid.UUID, userID int) error {
	if ls, err := s.owned(attemptID, userID); err != nil {
		return err
	} else if ls != nil {
		return ls.sess.Complete(ctx)
	}
	return s.offlineFinish(ctx, attemptID, userID, model.AttemptStatusCompleted)
}

// Abandon records an externally observed abandonment (navigation away,
// monitor decision). Not a taker-facing submit.
func (s *SessionService) Abandon(ctx context.Context, attemptID uuid.UUID, userID int) error {
	if ls, err := s.owned(attemptID, userID); err != nil {
		return err
	} else if ls != nil {
		return ls.sess.MarkAbandoned(ctx)
	}
	return s.offlineFinish(ctx, attemptID, userID, model.AttemptStatusAbandoned)
}

// SubmitAnswer upserts one answer. Live sessions go through the debounced
// store; otherwise the value is persisted directly (still last write wins).
func (s *SessionService) SubmitAnswer(ctx context.Context, attemptID uuid.UUID, userID int, questionID uuid.UUID, value string) error {
	if ls, err := s.owned(attemptID, userID); err != nil {
		return err
	} else if ls != nil {
		ls.sess.Answers().Set(questionID, value)
		return nil
	}

	attempt, err := s.authorize(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if attempt.Status.Terminal() {
		return ErrAttemptFinished
	}
	ap := &answerProvider{answerRepo: s.answerRepo, rdb: s.rdb}
	return ap.Submit(ctx, attemptID, questionID, value)
}

// GetState returns the reload payload: answers so far plus the countdown.
func (s *SessionService) GetState(ctx context.Context, attemptID uuid.UUID, userID int) (*model.AttemptState, error) {
	if ls, err := s.owned(attemptID, userID); err != nil {
		return nil, err
	} else if ls != nil {
		snapshot := ls.sess.Answers().Snapshot()
		answers := make(map[string]string, len(snapshot))
		for q, v := range snapshot {
			answers[q.String()] = v
		}
		attempt := ls.sess.Attempt()
		return &model.AttemptState{
			AttemptID:     attempt.ID,
			TestID:        attempt.TestID,
			Status:        attempt.Status,
			Answers:       answers,
			TimeRemaining: ls.sess.Remaining(),
		}, nil
	}

	attempt, err := s.authorize(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	ap := &answerProvider{answerRepo: s.answerRepo, rdb: s.rdb}
	existing, err := ap.FetchExisting(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("fetch answers: %w", err)
	}
	answers := make(map[string]string, len(existing))
	for q, v := range existing {
		answers[q.String()] = v
	}

	remaining := attempt.TimeRemaining
	if val, err := s.rdb.Get(ctx, config.CacheKey.AttemptRemainingKey(attemptID.String())).Result(); err == nil {
		if n, convErr := strconv.Atoi(val); convErr == nil {
			remaining = n
		}
	}

	return &model.AttemptState{
		AttemptID:     attempt.ID,
		TestID:        attempt.TestID,
		Status:        attempt.Status,
		Answers:       answers,
		TimeRemaining: remaining,
	}, nil
}

// Progress derives the completion breakdown for an attempt.
func (s *SessionService) Progress(ctx context.Context, attemptID uuid.UUID, userID int) (*engine.Progress, error) {
	if ls, err := s.owned(attemptID, userID); err != nil {
		return nil, err
	} else if ls != nil {
		p := ls.sess.Progress()
		return &p, nil
	}

	attempt, err := s.authorize(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	passages, err := s.testRepo.ListPassages(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("list passages: %w", err)
	}
	questions, err := s.testRepo.ListQuestions(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	ap := &answerProvider{answerRepo: s.answerRepo, rdb: s.rdb}
	answers, err := ap.FetchExisting(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("fetch answers: %w", err)
	}

	p := engine.ComputeProgress(passages, questions, answers)
	return &p, nil
}

// History lists every attempt of a user, newest first. Open attempts of
// live sessions report the in-memory countdown instead of the last sync.
func (s *SessionService) History(ctx context.Context, userID int) ([]model.Attempt, error) {
	attempts, err := s.attemptRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	s.mu.Lock()
	for i := range attempts {
		if ls, ok := s.live[attempts[i].ID]; ok && ls.userID == userID {
			attempts[i].TimeRemaining = ls.sess.Remaining()
		}
	}
	s.mu.Unlock()

	return attempts, nil
}

// Attach subscribes an event sink to a live session. Returns the detach
// function, or an error when the session does not run in this process.
func (s *SessionService) Attach(attemptID uuid.UUID, userID int, sink engine.EventSink) (func(), error) {
	ls, err := s.owned(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if ls == nil {
		return nil, ErrNoOpenAttempt
	}
	return ls.fanout.Attach(sink), nil
}

// VerifyOpenAttempt checks that the user owns an open attempt with this id.
func (s *SessionService) VerifyOpenAttempt(ctx context.Context, attemptID uuid.UUID, userID int) error {
	if ls, err := s.owned(attemptID, userID); err != nil {
		return err
	} else if ls != nil {
		if ls.sess.State().Terminal() {
			return ErrAttemptFinished
		}
		return nil
	}

	attempt, err := s.authorize(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if attempt.Status.Terminal() {
		return ErrAttemptFinished
	}
	return nil
}

// owned returns the live session for the attempt if this process runs one,
// after checking ownership. (nil, nil) means "not live here".
func (s *SessionService) owned(attemptID uuid.UUID, userID int) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.live[attemptID]
	if !ok {
		return nil, nil
	}
	if ls.userID != userID {
		return nil, ErrNotOwner
	}
	return ls, nil
}

// authorize loads the attempt and checks ownership.
func (s *SessionService) authorize(ctx context.Context, attemptID uuid.UUID, userID int) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenAttempt
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.UserID != userID {
		return nil, ErrNotOwner
	}
	return attempt, nil
}

// offlineTransition applies pause/resume when no live session exists
// (typically after a process restart). The repository updates are
// idempotent and never reopen terminal rows.
func (s *SessionService) offlineTransition(ctx context.Context, attemptID uuid.UUID, userID int, status model.AttemptStatus) error {
	attempt, err := s.authorize(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if attempt.Status.Terminal() {
		s.log.Debug().Str("attempt_id", attemptID.String()).Msg("Transition on finished attempt ignored")
		return nil
	}
	return s.attemptRepo.SetStatus(ctx, attemptID, status)
}

func (s *SessionService) offlineFinish(ctx context.Context, attemptID uuid.UUID, userID int, status model.AttemptStatus) error {
	attempt, err := s.authorize(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if attempt.Status.Terminal() {
		return nil
	}
	ap := &attemptProvider{attemptRepo: s.attemptRepo, tests: s.testService, rdb: s.rdb}
	if status == model.AttemptStatusAbandoned {
		return ap.Abandon(ctx, attemptID)
	}
	return ap.Complete(ctx, attemptID)
}

// unregister drops a finished session from the registry.
func (s *SessionService) unregister(attemptID uuid.UUID) {
	s.mu.Lock()
	delete(s.live, attemptID)
	s.mu.Unlock()
}

// Shutdown pauses every live session so countdowns survive a restart.
func (s *SessionService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sessions := make([]*liveSession, 0, len(s.live))
	for _, ls := range s.live {
		sessions = append(sessions, ls)
	}
	s.mu.Unlock()

	for _, ls := range sessions {
		if err := ls.sess.Pause(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Pause on shutdown failed")
		}
	}
	s.log.Info().Int("count", len(sessions)).Msg("Live sessions paused for shutdown")
}

// terminalWatcher unregisters the session when it reaches a terminal state.
type terminalWatcher struct {
	engine.NopSink
	service   *SessionService
	attemptID uuid.UUID
}

func (w *terminalWatcher) StateChange(status model.AttemptStatus) {
	if status.Terminal() {
		w.service.unregister(w.attemptID)
	}
}
