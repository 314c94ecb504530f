package exam

import "github.com/liamcoop/startrescue/patient"

// Snapshot is a read-only view of a session for renderers.
type Snapshot struct {
	Examinee          Examinee         `json:"examinee"`
	Phase             Phase            `json:"phase"`
	QuestionIndex     int              `json:"questionIndex"`
	TotalQuestions    int              `json:"totalQuestions"`
	SecondsRemaining  int              `json:"secondsRemaining"`
	Patient           *patient.Patient `json:"patient,omitempty"`
	TourniquetApplied bool             `json:"tourniquetApplied"`
	AirwayApplied     bool             `json:"airwayApplied"`
	// ColorsEnabled is advisory: color buttons stay disabled until the
	// patient is known to breathe or the airway has been opened.
	ColorsEnabled bool   `json:"colorsEnabled"`
	Feedback      string `json:"feedback,omitempty"`
	Score         int    `json:"score"`
	Answered      int    `json:"answered"`
}

// QuotaStatus reports the rare-condition counters of the running attempt.
type QuotaStatus struct {
	PregnancyShown   int `json:"pregnancyShown"`
	PregnancyTarget  int `json:"pregnancyTarget"`
	HemorrhageCases  int `json:"hemorrhageCases"`
	HemorrhageTarget int `json:"hemorrhageTarget"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := summarize(s.history)
	snap := Snapshot{
		Examinee:          s.examinee,
		Phase:             s.phase,
		QuestionIndex:     s.questionIndex,
		TotalQuestions:    TotalQuestions,
		SecondsRemaining:  s.secondsRemaining,
		TourniquetApplied: s.tourniquetApplied,
		AirwayApplied:     s.airwayApplied,
		Score:             sum.Score,
		Answered:          sum.Answered,
	}
	if s.current != nil {
		p := *s.current
		snap.Patient = &p
		snap.ColorsEnabled = s.phase == PhaseAwaitingAnswer && (p.BreathingInitially || s.airwayApplied)
	}
	if s.phase == PhaseShowingFeedback {
		snap.Feedback = s.feedback
	}
	return snap
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

// CurrentPatient returns the patient on screen, if any.
func (s *Session) CurrentPatient() (patient.Patient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return patient.Patient{}, false
	}
	return *s.current, true
}

func (s *Session) Examinee() Examinee {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.examinee
}

// History returns a copy of the answer records in question order.
func (s *Session) History() []AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AnswerRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Score is the number of matched answers.
func (s *Session) Score() int {
	return s.Summary().Score
}

// Accuracy is Score*100/answered, or 0 before any answer.
func (s *Session) Accuracy() int {
	return s.Summary().Accuracy
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return summarize(s.history)
}

func (s *Session) Quotas() QuotaStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return QuotaStatus{
		PregnancyShown:   s.pregnancyShown,
		PregnancyTarget:  s.pregnancyTarget,
		HemorrhageCases:  s.hemorrhageCases,
		HemorrhageTarget: HemorrhageTarget,
	}
}
