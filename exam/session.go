// Package exam runs a START triage exam: it sequences generated patients,
// times each question, applies interventions and grades the examinee's
// answers.
package exam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/liamcoop/startrescue/internal/logger"
	"github.com/liamcoop/startrescue/patient"
	"github.com/liamcoop/startrescue/random"
	"github.com/liamcoop/startrescue/rules"
)

const (
	TotalQuestions   = 20
	QuestionTime     = 10 // seconds per question
	HemorrhageTarget = 3

	// NoAnswerLabel is recorded as the chosen label when time runs out.
	NoAnswerLabel   = "NO ANSWER"
	CorrectFeedback = "Correct!"
)

// Phase is the state of a Session.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseAwaitingAnswer
	PhaseShowingFeedback
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseShowingFeedback:
		return "showing_feedback"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Classifier grades a patient.
type Classifier interface {
	Classify(p patient.Patient, tourniquetApplied bool) rules.Classification
}

// CaseGenerator produces the next patient for the given quotas.
type CaseGenerator interface {
	Generate(q patient.Quotas) patient.Patient
}

// Option configures a Session.
type Option func(*Session)

// WithRandom sets the random source used for quotas, generation and airway
// resolution.
func WithRandom(src random.Source) Option {
	return func(s *Session) { s.src = src }
}

// WithGenerator replaces the default patient generator.
func WithGenerator(g CaseGenerator) Option {
	return func(s *Session) { s.generator = g }
}

// WithTickInterval sets the countdown period. Zero disables the background
// countdown; callers then drive time with Tick.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) { s.tickInterval = d }
}

// Session is one examinee's attempt. All methods are safe to call from the
// owning caller and the session's own countdown goroutine; every transition
// that is invalid for the current phase is a no-op returning false.
type Session struct {
	mu sync.Mutex

	classifier   Classifier
	generator    CaseGenerator
	src          random.Source
	tickInterval time.Duration

	examinee          Examinee
	phase             Phase
	questionIndex     int
	secondsRemaining  int
	current           *patient.Patient
	tourniquetApplied bool
	airwayApplied     bool
	feedback          string

	pregnancyShown  int
	pregnancyTarget int
	hemorrhageCases int

	history []AnswerRecord

	cancelTimer context.CancelFunc
	timerGen    uint64
}

// NewSession creates a session that has not started yet.
func NewSession(classifier Classifier, opts ...Option) (*Session, error) {
	s := &Session{
		classifier:   classifier,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.src == nil {
		src, err := random.New()
		if err != nil {
			return nil, fmt.Errorf("create random source: %w", err)
		}
		s.src = src
	}
	if s.generator == nil {
		s.generator = patient.NewGenerator(s.src)
	}
	return s, nil
}

// Start resets the session for a new attempt and presents question 1.
func (s *Session) Start(name, sector, registration string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.examinee = newExaminee(name, sector, registration)
	s.startLocked()
}

// Restart begins a new attempt with the same examinee, discarding history.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startLocked()
}

// SetEmail records the optional examinee email.
func (s *Session) SetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.examinee.Email = email
}

func (s *Session) startLocked() {
	s.stopTimerLocked()

	s.history = nil
	s.questionIndex = 1
	s.pregnancyShown = 0
	s.pregnancyTarget = s.src.IntRange(2, 3)
	s.hemorrhageCases = 0

	logger.Info("exam started",
		"examinee", s.examinee.Name,
		"sector", s.examinee.Sector,
		"pregnancyTarget", s.pregnancyTarget,
	)
	s.beginQuestionLocked()
}

func (s *Session) beginQuestionLocked() {
	s.tourniquetApplied = false
	s.airwayApplied = false
	s.feedback = ""

	p := s.generator.Generate(s.quotasLocked()).WithAbsentRefill()
	s.current = &p
	s.phase = PhaseAwaitingAnswer
	s.startTimerLocked()

	logger.Debug("question presented", "question", s.questionIndex, "patient", p.ID)
}

func (s *Session) quotasLocked() patient.Quotas {
	return patient.Quotas{
		PregnancySoFar:      s.pregnancyShown,
		PregnancyCap:        s.pregnancyTarget,
		HemorrhageRemaining: max(0, HemorrhageTarget-s.hemorrhageCases),
		QuestionsRemaining:  TotalQuestions - (s.questionIndex - 1),
	}
}

// Tick advances the countdown by one second and times the question out when
// it reaches zero. Outside AwaitingAnswer it does nothing.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tickLocked()
}

func (s *Session) tickLocked() bool {
	if s.phase != PhaseAwaitingAnswer {
		return false
	}
	if s.secondsRemaining > 0 {
		s.secondsRemaining--
	}
	if s.secondsRemaining == 0 {
		s.timeoutLocked()
	}
	return true
}

// ApplyTourniquet marks hemorrhage control as done for this question.
func (s *Session) ApplyTourniquet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAwaitingAnswer || s.current == nil || s.tourniquetApplied {
		return false
	}
	s.tourniquetApplied = true
	return true
}

// ApplyAirway opens the airway of a patient who was not breathing. It can be
// used once per question.
func (s *Session) ApplyAirway() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAwaitingAnswer || s.current == nil || s.airwayApplied {
		return false
	}
	updated, applied := patient.ApplyAirway(*s.current, s.src)
	if !applied {
		return false
	}

	s.current = &updated
	s.airwayApplied = true
	logger.Debug("airway opened",
		"question", s.questionIndex,
		"breathingRestored", updated.BreathingAfterAirway,
	)
	return true
}

// PickColor grades the examinee's triage color for the current patient.
func (s *Session) PickColor(c rules.Color) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAwaitingAnswer || s.current == nil || !c.Valid() {
		return false
	}
	s.gradeLocked(c.Label(), func(correct rules.Classification) (bool, string, string) {
		if c == correct.Color {
			return true, correct.Rationale, CorrectFeedback
		}
		return false, correct.Rationale, correct.Rationale
	})
	return true
}

// Timeout grades the current question as unanswered.
func (s *Session) Timeout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAwaitingAnswer || s.current == nil {
		return false
	}
	s.timeoutLocked()
	return true
}

func (s *Session) timeoutLocked() {
	s.gradeLocked(NoAnswerLabel, func(correct rules.Classification) (bool, string, string) {
		text := fmt.Sprintf("Time is up. Correct answer: %s. %s", correct.Color.Label(), correct.Rationale)
		return false, text, text
	})
}

// gradeLocked records the answer for the current question. judge decides the
// match flag, the recorded rationale and the feedback text.
func (s *Session) gradeLocked(chosen string, judge func(rules.Classification) (match bool, rationale, feedback string)) {
	s.stopTimerLocked()

	p := *s.current
	correct := s.classifier.Classify(p, s.tourniquetApplied)
	match, rationale, feedback := judge(correct)

	s.history = append(s.history, AnswerRecord{
		Index:             s.questionIndex,
		Patient:           p,
		TourniquetApplied: s.tourniquetApplied,
		AirwayApplied:     s.airwayApplied,
		Chosen:            chosen,
		Correct:           correct.Color.Label(),
		Match:             match,
		Rationale:         rationale,
		RuleID:            correct.RuleID,
		SecondsTaken:      QuestionTime - s.secondsRemaining,
	})

	if p.Hemorrhage {
		s.hemorrhageCases++
	}
	if p.Pregnant34Weeks {
		s.pregnancyShown++
	}

	s.feedback = feedback
	s.phase = PhaseShowingFeedback

	logger.Debug("question graded",
		"question", s.questionIndex,
		"chosen", chosen,
		"correct", correct.Color.Label(),
		"rule", correct.RuleID,
		"match", match,
	)
}

// NextQuestion moves past the feedback screen, finishing the exam after the
// last question.
func (s *Session) NextQuestion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseShowingFeedback {
		return false
	}

	if s.questionIndex >= TotalQuestions {
		s.stopTimerLocked()
		s.phase = PhaseFinished
		s.current = nil
		s.feedback = ""

		sum := summarize(s.history)
		logger.Info("exam finished",
			"examinee", s.examinee.Name,
			"score", sum.Score,
			"accuracy", sum.Accuracy,
		)
		return true
	}

	s.questionIndex++
	s.beginQuestionLocked()
	return true
}

// Stop cancels the countdown without changing the phase. Used when the
// session is being discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
}

// startTimerLocked resets the countdown and, unless disabled, launches the
// ticking goroutine. Any previous countdown is cancelled first.
func (s *Session) startTimerLocked() {
	s.stopTimerLocked()
	s.secondsRemaining = QuestionTime

	if s.tickInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTimer = cancel
	go s.runTimer(ctx, s.timerGen, s.tickInterval)
}

// stopTimerLocked cancels the live countdown. Bumping the generation makes
// a tick that already fired drop itself.
func (s *Session) stopTimerLocked() {
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
	s.timerGen++
}

func (s *Session) runTimer(ctx context.Context, gen uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if gen != s.timerGen {
				s.mu.Unlock()
				return
			}
			s.tickLocked()
			s.mu.Unlock()
		}
	}
}
