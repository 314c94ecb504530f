package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/liamcoop/startrescue/patient"
	"github.com/liamcoop/startrescue/random"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	return engine
}

// yellowPatient is a breathing, non-walking patient with every parameter in
// range; each test case perturbs one field.
func yellowPatient() patient.Patient {
	return patient.Patient{
		ID:                 "case",
		AgeYears:           35,
		Sex:                patient.Male,
		BreathingInitially: true,
		RespiratoryRate:    20,
		CapillaryRefill:    patient.RefillSeconds(1.5),
		ObeysCommands:      true,
		Injuries:           patient.NoVisibleInjuries,
	}
}

// TestNewEngineCompilesProtocol verifies every protocol row compiles and the
// table ends with an unconditional row.
func TestNewEngineCompilesProtocol(t *testing.T) {
	engine := newTestEngine(t)

	protocol := engine.Protocol()
	if len(protocol) != 8 {
		t.Fatalf("expected 8 protocol rows, got %d", len(protocol))
	}
	for _, rule := range protocol {
		if _, ok := engine.programs[rule.ID]; !ok {
			t.Errorf("rule %s not compiled", rule.ID)
		}
	}
	if last := protocol[len(protocol)-1]; last.Expression != "true" || last.Color != Yellow {
		t.Errorf("last row should be the unconditional YELLOW row, got %+v", last)
	}
}

func TestCompileRuleRejectsNonBoolean(t *testing.T) {
	engine := newTestEngine(t)

	testCases := []struct {
		name       string
		expression string
	}{
		{"Syntax error", `patient.ambulatory &&`},
		{"Undefined variable", `casualty.ambulatory`},
		{"Non-boolean", `patient.respiratoryRate + 1`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.compileRule(Rule{ID: "bad", Expression: tc.expression})
			if err == nil {
				t.Errorf("compileRule(%q) should fail", tc.expression)
			}
		})
	}
}

func TestClassifyDecisionTree(t *testing.T) {
	engine := newTestEngine(t)

	testCases := []struct {
		name       string
		mutate     func(p *patient.Patient)
		tourniquet bool
		wantColor  Color
		wantRule   string
	}{
		{"Adequate parameters", func(p *patient.Patient) {}, false, Yellow, "delayed"},
		{"Hemorrhage without tourniquet", func(p *patient.Patient) { p.Hemorrhage = true }, false, Red, "hemorrhage-control"},
		{"Hemorrhage with tourniquet falls through", func(p *patient.Patient) { p.Hemorrhage = true }, true, Yellow, "delayed"},
		{"Ambulatory", func(p *patient.Patient) { p.Ambulatory = true }, false, Green, "ambulatory"},
		{"Apneic without airway attempt", func(p *patient.Patient) {
			p.BreathingInitially = false
			p.RespiratoryRate = 0
			p.CapillaryRefill = patient.AbsentRefill()
		}, false, Black, "apneic"},
		{"Apneic after failed airway", func(p *patient.Patient) {
			p.BreathingInitially = false
			p.AirwayAttempted = true
			p.RespiratoryRate = 0
			p.CapillaryRefill = patient.AbsentRefill()
		}, false, Black, "apneic"},
		{"Breathing restored by airway", func(p *patient.Patient) {
			p.BreathingInitially = false
			p.AirwayAttempted = true
			p.BreathingAfterAirway = true
			p.RespiratoryRate = 14
			p.CapillaryRefill = patient.RefillSeconds(1.2)
		}, false, Red, "airway-restored"},
		{"Rate exactly 30", func(p *patient.Patient) { p.RespiratoryRate = 30 }, false, Yellow, "delayed"},
		{"Rate above 30", func(p *patient.Patient) { p.RespiratoryRate = 31 }, false, Red, "tachypnea"},
		{"Refill exactly 2.0", func(p *patient.Patient) { p.CapillaryRefill = patient.RefillSeconds(2.0) }, false, Yellow, "delayed"},
		{"Refill above 2.0", func(p *patient.Patient) { p.CapillaryRefill = patient.RefillSeconds(2.1) }, false, Red, "perfusion"},
		{"Refill absent", func(p *patient.Patient) { p.CapillaryRefill = patient.AbsentRefill() }, false, Red, "perfusion"},
		{"Does not obey", func(p *patient.Patient) { p.ObeysCommands = false }, false, Red, "mental-status"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := yellowPatient()
			tc.mutate(&p)

			got := engine.Classify(p, tc.tourniquet)
			if got.Color != tc.wantColor {
				t.Errorf("color = %s, want %s (%s)", got.Color, tc.wantColor, got.Rationale)
			}
			if got.RuleID != tc.wantRule {
				t.Errorf("rule = %s, want %s", got.RuleID, tc.wantRule)
			}
			if !strings.Contains(got.Rationale, tc.wantColor.Label()) {
				t.Errorf("rationale %q should name %s", got.Rationale, tc.wantColor.Label())
			}
		})
	}
}

func TestClassifyRationaleNamesMeasuredValue(t *testing.T) {
	engine := newTestEngine(t)

	fast := yellowPatient()
	fast.RespiratoryRate = 34
	if got := engine.Classify(fast, false).Rationale; !strings.Contains(got, "34/min") {
		t.Errorf("rationale %q should name the measured rate", got)
	}

	slow := yellowPatient()
	slow.CapillaryRefill = patient.RefillSeconds(2.7)
	if got := engine.Classify(slow, false).Rationale; !strings.Contains(got, "2.7s") {
		t.Errorf("rationale %q should name the measured refill", got)
	}
}

// TestHemorrhagePrecedence checks that uncontrolled hemorrhage is RED whatever
// the other fields say.
func TestHemorrhagePrecedence(t *testing.T) {
	engine := newTestEngine(t)
	gen := patient.NewGenerator(random.NewSeeded(17))

	for i := 0; i < 2000; i++ {
		p := gen.Generate(patient.Quotas{PregnancyCap: 3, HemorrhageRemaining: 3})
		p.Hemorrhage = true
		if got := engine.Classify(p, false); got.Color != Red || got.RuleID != "hemorrhage-control" {
			t.Fatalf("hemorrhage without tourniquet classified %s via %s: %+v", got.Color, got.RuleID, p)
		}
	}
}

// TestAmbulatoryShortcut checks walking patients are GREEN even with red
// flags elsewhere, as long as no hemorrhage is uncontrolled.
func TestAmbulatoryShortcut(t *testing.T) {
	engine := newTestEngine(t)

	p := yellowPatient()
	p.Ambulatory = true
	p.RespiratoryRate = 40
	p.CapillaryRefill = patient.RefillSeconds(3.5)
	p.ObeysCommands = false

	if got := engine.Classify(p, false); got.Color != Green {
		t.Errorf("ambulatory patient classified %s", got.Color)
	}

	p.Hemorrhage = true
	if got := engine.Classify(p, true); got.Color != Green {
		t.Errorf("ambulatory patient with controlled hemorrhage classified %s", got.Color)
	}
	if got := engine.Classify(p, false); got.Color != Red {
		t.Errorf("uncontrolled hemorrhage should override walking, got %s", got.Color)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	gen := patient.NewGenerator(random.NewSeeded(31))

	for i := 0; i < 1000; i++ {
		p := gen.Generate(patient.Quotas{PregnancyCap: 3, HemorrhageRemaining: 3})
		tq := i%2 == 0
		first := engine.Classify(p, tq)
		for j := 0; j < 3; j++ {
			if again := engine.Classify(p, tq); again != first {
				t.Fatalf("classification changed: %+v vs %+v", first, again)
			}
		}
	}
}

// TestGeneratedPatientsNeverContradictProtocol checks that fresh patients
// from the generator only reach rows consistent with their shape.
func TestGeneratedPatientsNeverContradictProtocol(t *testing.T) {
	engine := newTestEngine(t)
	gen := patient.NewGenerator(random.NewSeeded(2))

	for i := 0; i < 5000; i++ {
		p := gen.Generate(patient.Quotas{PregnancyCap: 3, HemorrhageRemaining: 3}).WithAbsentRefill()
		got := engine.Classify(p, true)

		switch {
		case p.Ambulatory && got.Color != Green:
			t.Fatalf("walking patient graded %s", got.Color)
		case !p.BreathingInitially && got.Color != Black:
			t.Fatalf("apneic patient graded %s", got.Color)
		}
	}
}

func TestParseColor(t *testing.T) {
	for _, c := range Colors {
		parsed, err := ParseColor(strings.ToLower(c.Label()))
		if err != nil {
			t.Fatalf("ParseColor(%q) failed: %v", c.Label(), err)
		}
		if parsed != c {
			t.Errorf("ParseColor(%q) = %s", c.Label(), parsed)
		}
	}

	if _, err := ParseColor("purple"); !errors.Is(err, ErrUnknownColor) {
		t.Errorf("expected ErrUnknownColor, got %v", err)
	}
}
