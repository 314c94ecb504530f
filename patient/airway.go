package patient

import "github.com/liamcoop/startrescue/random"

const (
	pAirwayRestores = 0.5
	pNormalRefill   = 0.6
)

// ApplyAirway resolves an airway-opening manoeuvre on a patient who was not
// breathing. It returns the updated patient and true, or p unchanged and false
// when the patient was breathing or the manoeuvre was already attempted.
// Nothing is drawn from src on the no-op path.
func ApplyAirway(p Patient, src random.Source) (Patient, bool) {
	if p.BreathingInitially || p.AirwayAttempted {
		return p, false
	}

	p.AirwayAttempted = true
	p.BreathingAfterAirway = random.Chance(src, pAirwayRestores)
	if !p.BreathingAfterAirway {
		p.RespiratoryRate = 0
		p.CapillaryRefill = AbsentRefill()
		return p, true
	}

	p.RespiratoryRate = src.IntRange(10, 30)
	if random.Chance(src, pNormalRefill) {
		p.CapillaryRefill = RefillSeconds(random.Uniform(src, 1.0, 2.0))
	} else {
		p.CapillaryRefill = RefillSeconds(random.Uniform(src, 2.1, 4.0))
	}
	return p, true
}
