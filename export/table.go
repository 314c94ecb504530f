// Package export renders graded exam results as CSV or as a PDF table.
package export

import (
	"fmt"
	"strconv"

	"github.com/liamcoop/startrescue/exam"
)

const (
	yes   = "YES"
	no    = "NO"
	blank = "-"
)

// column describes one field of the results table. weight sets the relative
// PDF width; wrap marks free-text columns that may span several lines.
type column struct {
	title  string
	weight float64
	wrap   bool
	value  func(r exam.AnswerRecord) string
}

var columns = []column{
	{title: "Q", weight: 0.6, value: func(r exam.AnswerRecord) string { return strconv.Itoa(r.Index) }},
	{title: "Age", weight: 0.8, value: func(r exam.AnswerRecord) string { return strconv.Itoa(r.Patient.AgeYears) }},
	{title: "Sex", weight: 0.6, value: func(r exam.AnswerRecord) string { return r.Patient.Sex.Short() }},
	{title: "Hemorrhage", weight: 1.1, value: func(r exam.AnswerRecord) string { return yesNo(r.Patient.Hemorrhage) }},
	{title: "TQ", weight: 0.7, value: func(r exam.AnswerRecord) string { return yesNo(r.TourniquetApplied) }},
	{title: "Walks", weight: 0.8, value: func(r exam.AnswerRecord) string { return yesNo(r.Patient.Ambulatory) }},
	{title: "Breathing", weight: 1.0, value: func(r exam.AnswerRecord) string { return yesNo(r.Patient.BreathingInitially) }},
	{title: "After airway", weight: 1.1, value: afterAirway},
	{title: "RR", weight: 0.6, value: respiratoryRate},
	{title: "Refill", weight: 0.8, value: capillaryRefill},
	{title: "Obeys", weight: 0.8, value: func(r exam.AnswerRecord) string { return yesNo(r.Patient.ObeysCommands) }},
	{title: "Pregnant", weight: 0.9, value: func(r exam.AnswerRecord) string { return yesNo(r.Patient.Pregnant34Weeks) }},
	{title: "Injuries", weight: 2.6, wrap: true, value: func(r exam.AnswerRecord) string { return r.Patient.Injuries }},
	{title: "Chosen", weight: 1.3, wrap: true, value: func(r exam.AnswerRecord) string { return r.Chosen }},
	{title: "Correct", weight: 1.2, wrap: true, value: func(r exam.AnswerRecord) string { return r.Correct }},
	{title: "Match", weight: 0.8, value: func(r exam.AnswerRecord) string { return yesNo(r.Match) }},
	{title: "Rationale", weight: 3.4, wrap: true, value: func(r exam.AnswerRecord) string { return r.Rationale }},
}

func yesNo(b bool) string {
	if b {
		return yes
	}
	return no
}

// afterAirway is blank for patients who were breathing on arrival.
func afterAirway(r exam.AnswerRecord) string {
	if r.Patient.BreathingInitially || !r.Patient.AirwayAttempted {
		return blank
	}
	return yesNo(r.Patient.BreathingAfterAirway)
}

func respiratoryRate(r exam.AnswerRecord) string {
	if r.Patient.RespiratoryRate <= 0 {
		return blank
	}
	return strconv.Itoa(r.Patient.RespiratoryRate)
}

func capillaryRefill(r exam.AnswerRecord) string {
	s, ok := r.Patient.CapillaryRefill.Seconds()
	if !ok {
		return blank
	}
	return fmt.Sprintf("%.1f", s)
}

func headerRow() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.title
	}
	return out
}

func recordRow(r exam.AnswerRecord) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.value(r)
	}
	return out
}

func orBlank(s string) string {
	if s == "" {
		return blank
	}
	return s
}
