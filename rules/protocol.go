package rules

import (
	"fmt"

	"github.com/liamcoop/startrescue/patient"
)

// Thresholds of the START decision tree.
const (
	MaxRespiratoryRate   = 30
	MaxCapillaryRefill   = 2.0
	protocolFallbackRule = "delayed"
)

// startProtocol is the START decision tree. Order encodes clinical
// precedence: uncontrolled hemorrhage outranks everything, then walking, then
// airway, respiration, perfusion and mental status.
func startProtocol() []Rule {
	return []Rule{
		{
			ID:         "hemorrhage-control",
			Name:       "Exsanguinating hemorrhage without tourniquet",
			Expression: `patient.hemorrhage && !tourniquet`,
			Color:      Red,
			rationale: func(patient.Patient) string {
				return "Exsanguinating hemorrhage: apply a tourniquet first. RED."
			},
		},
		{
			ID:         "ambulatory",
			Name:       "Walks on command",
			Expression: `patient.ambulatory`,
			Color:      Green,
			rationale: func(patient.Patient) string {
				return "Walks on command: GREEN."
			},
		},
		{
			ID:         "airway-restored",
			Name:       "Breathing after airway opening",
			Expression: `!patient.breathing && patient.breathingAfterAirway`,
			Color:      Red,
			rationale: func(p patient.Patient) string {
				return fmt.Sprintf("Started breathing after airway opening (respiratory rate %d/min): RED.", p.RespiratoryRate)
			},
		},
		{
			ID:         "apneic",
			Name:       "Not breathing after airway opening",
			Expression: `!patient.breathing`,
			Color:      Black,
			rationale: func(patient.Patient) string {
				return "Not breathing even with the airway open (capillary refill absent): BLACK (deceased)."
			},
		},
		{
			ID:         "tachypnea",
			Name:       "Respiratory rate above 30",
			Expression: fmt.Sprintf(`patient.respiratoryRate > %d`, MaxRespiratoryRate),
			Color:      Red,
			rationale: func(p patient.Patient) string {
				return fmt.Sprintf("Respiratory rate %d/min (> %d): RED.", p.RespiratoryRate, MaxRespiratoryRate)
			},
		},
		{
			ID:         "perfusion",
			Name:       "Capillary refill above 2 seconds",
			Expression: fmt.Sprintf(`patient.refillAbsent || patient.refillSeconds > %.1f`, MaxCapillaryRefill),
			Color:      Red,
			rationale: func(p patient.Patient) string {
				return fmt.Sprintf("Capillary refill %s (> %.0fs): RED.", p.CapillaryRefill, MaxCapillaryRefill)
			},
		},
		{
			ID:         "mental-status",
			Name:       "Does not obey commands",
			Expression: `!patient.obeysCommands`,
			Color:      Red,
			rationale: func(patient.Patient) string {
				return "Does not obey commands: RED."
			},
		},
		{
			ID:         protocolFallbackRule,
			Name:       "Adequate parameters, not walking",
			Expression: `true`,
			Color:      Yellow,
			rationale: func(p patient.Patient) string {
				return fmt.Sprintf("Adequate parameters (rate %d/min, refill %s, obeys commands) but not walking: YELLOW.",
					p.RespiratoryRate, p.CapillaryRefill)
			},
		},
	}
}

// facts flattens a patient into the variables the protocol expressions read.
func facts(p patient.Patient, tourniquet bool) map[string]any {
	seconds, finite := p.CapillaryRefill.Seconds()
	return map[string]any{
		"patient": map[string]any{
			"ambulatory":           p.Ambulatory,
			"breathing":            p.BreathingInitially,
			"breathingAfterAirway": p.BreathingAfterAirway,
			"hemorrhage":           p.Hemorrhage,
			"respiratoryRate":      int64(p.RespiratoryRate),
			"refillAbsent":         !finite,
			"refillSeconds":        seconds,
			"obeysCommands":        p.ObeysCommands,
		},
		"tourniquet": tourniquet,
	}
}
