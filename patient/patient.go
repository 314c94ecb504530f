// Package patient models the synthetic casualties presented during a START
// triage exam and the generator that produces them.
package patient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/liamcoop/startrescue/random"
)

// Sex of a generated patient.
type Sex int

const (
	Male Sex = iota
	Female
)

func (s Sex) String() string {
	switch s {
	case Male:
		return "male"
	case Female:
		return "female"
	default:
		return "unknown"
	}
}

// Short returns the one-letter code used in result tables.
func (s Sex) Short() string {
	if s == Female {
		return "F"
	}
	return "M"
}

func (s Sex) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Sex) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "male", "m":
		*s = Male
	case "female", "f":
		*s = Female
	default:
		return fmt.Errorf("unknown sex %q", text)
	}
	return nil
}

// NoVisibleInjuries is the injury text for an uninjured patient.
const NoVisibleInjuries = "no visible injuries"

// Patient is an immutable casualty snapshot. Interventions never modify a
// Patient in place; they return a new value.
type Patient struct {
	ID                   string          `json:"id"`
	AgeYears             int             `json:"ageYears"`
	Sex                  Sex             `json:"sex"`
	Ambulatory           bool            `json:"ambulatory"`
	BreathingInitially   bool            `json:"breathingInitially"`
	Hemorrhage           bool            `json:"exsanguinatingHemorrhage"`
	RespiratoryRate      int             `json:"respiratoryRate"`
	CapillaryRefill      CapillaryRefill `json:"capillaryRefillSeconds"`
	ObeysCommands        bool            `json:"obeysCommands"`
	Pregnant34Weeks      bool            `json:"pregnant34Weeks"`
	Injuries             string          `json:"injuryDescription"`
	AirwayAttempted      bool            `json:"airwayAttempted"`
	BreathingAfterAirway bool            `json:"breathingAfterAirwayManeuver"`
}

// WithAbsentRefill returns p with its capillary refill replaced by Absent when
// the patient is not breathing. Breathing patients are returned unchanged.
func (p Patient) WithAbsentRefill() Patient {
	if !p.BreathingInitially {
		p.CapillaryRefill = AbsentRefill()
	}
	return p
}

// CapillaryRefill is either a finite refill time in seconds or Absent.
// Absent compares as worse than every finite value.
type CapillaryRefill struct {
	seconds float64
	absent  bool
}

// RefillSeconds returns a finite refill rounded to one decimal place.
func RefillSeconds(seconds float64) CapillaryRefill {
	return CapillaryRefill{seconds: random.RoundTenths(seconds)}
}

// AbsentRefill returns the Absent refill value.
func AbsentRefill() CapillaryRefill {
	return CapillaryRefill{absent: true}
}

func (c CapillaryRefill) Absent() bool {
	return c.absent
}

// Seconds returns the finite value and true, or 0 and false when Absent.
func (c CapillaryRefill) Seconds() (float64, bool) {
	if c.absent {
		return 0, false
	}
	return c.seconds, true
}

// Exceeds reports whether the refill is slower than threshold seconds.
func (c CapillaryRefill) Exceeds(threshold float64) bool {
	return c.absent || c.seconds > threshold
}

func (c CapillaryRefill) String() string {
	if c.absent {
		return "absent"
	}
	return fmt.Sprintf("%.1fs", c.seconds)
}

// MarshalJSON encodes Absent as null and finite values as a number.
func (c CapillaryRefill) MarshalJSON() ([]byte, error) {
	if c.absent {
		return []byte("null"), nil
	}
	return json.Marshal(c.seconds)
}

func (c *CapillaryRefill) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = AbsentRefill()
		return nil
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("capillary refill: %w", err)
	}
	*c = RefillSeconds(seconds)
	return nil
}
