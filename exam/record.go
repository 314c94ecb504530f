package exam

import (
	"strings"

	"github.com/liamcoop/startrescue/patient"
)

// Examinee identifies the person taking the exam. The core passes these
// fields through untouched apart from trimming whitespace.
type Examinee struct {
	Name         string `json:"name"`
	Sector       string `json:"sector"`
	Registration string `json:"registration"`
	Email        string `json:"email,omitempty"`
}

func newExaminee(name, sector, registration string) Examinee {
	return Examinee{
		Name:         strings.TrimSpace(name),
		Sector:       strings.TrimSpace(sector),
		Registration: strings.TrimSpace(registration),
	}
}

// AnswerRecord is the graded outcome of one question. Records are appended
// once and never modified; exporters consume them verbatim.
type AnswerRecord struct {
	Index             int             `json:"index"`
	Patient           patient.Patient `json:"patient"`
	TourniquetApplied bool            `json:"tourniquetApplied"`
	AirwayApplied     bool            `json:"airwayApplied"`
	Chosen            string          `json:"chosen"`
	Correct           string          `json:"correct"`
	Match             bool            `json:"match"`
	Rationale         string          `json:"rationale"`
	RuleID            string          `json:"ruleId"`
	SecondsTaken      int             `json:"secondsTaken"`
}

// Summary is the score over the answered questions.
type Summary struct {
	Score    int `json:"score"`
	Answered int `json:"answered"`
	Accuracy int `json:"accuracy"`
}

func summarize(history []AnswerRecord) Summary {
	sum := Summary{Answered: len(history)}
	for _, r := range history {
		if r.Match {
			sum.Score++
		}
	}
	if sum.Answered > 0 {
		sum.Accuracy = sum.Score * 100 / sum.Answered
	}
	return sum
}
