package patient

import (
	"strings"

	"github.com/google/uuid"

	"github.com/liamcoop/startrescue/random"
)

// Draw probabilities and physiological ranges used by the generator.
const (
	pBreathing     = 0.85
	pObeys         = 0.70
	pAmbulatory    = 0.60
	pHemorrhage    = 0.12
	pPregnant      = 0.15
	pNoInjuries    = 0.40
	pregnantMinAge = 12
	pregnantMaxAge = 55
)

// InjuryPool holds the injury descriptions a case may carry.
var InjuryPool = []string{
	"multiple abrasions",
	"superficial forearm laceration",
	"closed radius fracture",
	"mild chest contusion",
	"ankle swelling",
	"lacerated hand wound",
}

// Quotas carries the session's running rare-condition counts into a draw.
// The generator only reads them; bookkeeping belongs to the caller.
type Quotas struct {
	PregnancySoFar      int
	PregnancyCap        int
	HemorrhageRemaining int
	QuestionsRemaining  int
}

// Generator draws START-consistent patients from a random source.
type Generator struct {
	src random.Source
}

// NewGenerator returns a Generator drawing from src.
func NewGenerator(src random.Source) *Generator {
	return &Generator{src: src}
}

// Generate draws a patient. Later steps override earlier draws so that the
// result always satisfies the START consistency rules:
//
//   - not breathing: rate 0, no commands obeyed, not walking, refill 3.0-4.0s
//   - walking: breathing, obeys, rate 12-30, refill 0.6-1.9s, no hemorrhage
//   - hemorrhage: not walking
//   - pregnant: female aged 12-55, and only while under the pregnancy cap
//
// The same source state always yields the same patient.
func (g *Generator) Generate(q Quotas) Patient {
	src := g.src
	id := uuid.Must(uuid.NewRandomFromReader(random.Reader(src)))

	p := Patient{
		ID:       id.String(),
		AgeYears: src.IntRange(1, 90),
		Sex:      Male,
	}
	if random.Chance(src, 0.5) {
		p.Sex = Female
	}

	p.BreathingInitially = random.Chance(src, pBreathing)
	if p.BreathingInitially {
		p.RespiratoryRate = src.IntRange(8, 40)
	}

	p.ObeysCommands = random.Chance(src, pObeys)
	p.Ambulatory = random.Chance(src, pAmbulatory)
	p.Hemorrhage = random.Chance(src, pHemorrhage)
	p.CapillaryRefill = RefillSeconds(random.Uniform(src, 0.5, 4.0))

	if !p.BreathingInitially {
		p.RespiratoryRate = 0
		p.ObeysCommands = false
		p.Ambulatory = false
		p.CapillaryRefill = RefillSeconds(random.Uniform(src, 3.0, 4.0))
	}

	if p.Ambulatory {
		p.BreathingInitially = true
		p.ObeysCommands = true
		p.RespiratoryRate = src.IntRange(12, 30)
		p.CapillaryRefill = RefillSeconds(random.Uniform(src, 0.6, 1.9))
		p.Hemorrhage = false
	}

	if p.Hemorrhage {
		p.Ambulatory = false
	}
	if q.HemorrhageRemaining <= 0 {
		p.Hemorrhage = false
	}

	if pregnancyEligible(p, q) {
		p.Pregnant34Weeks = random.Chance(src, pPregnant)
	}

	p.Injuries = g.injuries()
	return p
}

func pregnancyEligible(p Patient, q Quotas) bool {
	return p.Sex == Female &&
		p.AgeYears >= pregnantMinAge && p.AgeYears <= pregnantMaxAge &&
		q.PregnancySoFar < q.PregnancyCap
}

// injuries picks one or two distinct pool entries, or none at all.
func (g *Generator) injuries() string {
	if random.Chance(g.src, pNoInjuries) {
		return NoVisibleInjuries
	}

	pool := make([]string, len(InjuryPool))
	copy(pool, InjuryPool)
	n := g.src.IntRange(1, 2)

	picked := make([]string, 0, n)
	for i := 0; i < n; i++ {
		j := g.src.IntRange(i, len(pool)-1)
		pool[i], pool[j] = pool[j], pool[i]
		picked = append(picked, pool[i])
	}
	return strings.Join(picked, ", ")
}
