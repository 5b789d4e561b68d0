package service

import (
	"github.com/gdmt-engine/internal/domain"
)

// betaBlockerRecommender titrates toward the guideline dose while blood pressure, heart rate
// and dizziness allow.
type betaBlockerRecommender struct{}

func (betaBlockerRecommender) name() string { return "beta_blockers" }

func (betaBlockerRecommender) compute(e *evaluation) []domain.RecommendationOutput {
	g := gates{systolic: true, heartRate: true, dizziness: true}

	requests := e.requests(domain.BetaBlockers)
	if len(requests) == 0 {
		return e.startRecommendation(domain.BetaBlockers)
	}
	return e.titrationRecommendation(g, requests, nil)
}

// rasiRecommender covers ACE inhibitors, ARBs and ARNIs as one axis. Patients on an ACE
// inhibitor or ARB are offered the switch to sacubitril/valsartan when they tolerate it.
type rasiRecommender struct{}

var rasiClasses = []domain.MedicationClass{
	domain.AngiotensinReceptorNeprilysinInhibitors,
	domain.AngiotensinConvertingEnzymeInhibitors,
	domain.AngiotensinReceptorBlockers,
}

func (rasiRecommender) name() string { return "renin_angiotensin_system_inhibitors" }

func (rasiRecommender) compute(e *evaluation) []domain.RecommendationOutput {
	g := gates{systolic: true, potassium: true, egfrFloor: e.thresholds.RASIEGFRFloor}

	requests := e.requests(rasiClasses...)
	if len(requests) == 0 {
		return e.startRecommendation(rasiClasses...)
	}

	return e.titrationRecommendation(g, requests, func(primary domain.MedicationRequestContext) (domain.RecommendationOutput, bool) {
		if e.classOf(primary) == domain.AngiotensinReceptorNeprilysinInhibitors {
			return domain.RecommendationOutput{}, false
		}
		if e.checker.CheckMedicationClass(e.input.Contraindications, domain.AngiotensinReceptorNeprilysinInhibitors) != domain.ContraindicationNone {
			return domain.RecommendationOutput{}, false
		}
		arni := e.catalog.MedicationsInClass(domain.AngiotensinReceptorNeprilysinInhibitors)
		if len(arni) == 0 {
			return domain.RecommendationOutput{}, false
		}
		return domain.RecommendationOutput{
			Class:             e.classOf(primary),
			Category:          domain.ImprovementAvailableMoreEffectiveMed,
			CurrentMedication: primary.Medication,
			TargetMedication:  arni[0].Reference,
		}, true
	})
}

// mraRecommender is gated on potassium and renal function.
type mraRecommender struct{}

func (mraRecommender) name() string { return "mineralocorticoid_receptor_antagonists" }

func (mraRecommender) compute(e *evaluation) []domain.RecommendationOutput {
	g := gates{potassium: true, egfrFloor: e.thresholds.MRAEGFRFloor}

	requests := e.requests(domain.MineralocorticoidReceptorAntagonists)
	if len(requests) == 0 {
		return e.startRecommendation(domain.MineralocorticoidReceptorAntagonists)
	}
	return e.titrationRecommendation(g, requests, nil)
}

// sglt2Recommender is gated on blood pressure and renal function.
type sglt2Recommender struct{}

func (sglt2Recommender) name() string { return "sglt2_inhibitors" }

func (sglt2Recommender) compute(e *evaluation) []domain.RecommendationOutput {
	g := gates{systolic: true, egfrFloor: e.thresholds.SGLT2EGFRFloor}

	requests := e.requests(domain.SGLT2Inhibitors)
	if len(requests) == 0 {
		return e.startRecommendation(domain.SGLT2Inhibitors)
	}
	return e.titrationRecommendation(g, requests, nil)
}

// diureticRecommender never proposes a start or an increase: diuretics are dosed to symptoms.
type diureticRecommender struct{}

func (diureticRecommender) name() string { return "diuretics" }

func (diureticRecommender) compute(e *evaluation) []domain.RecommendationOutput {
	requests := e.requests(domain.Diuretics)
	if len(requests) == 0 {
		return []domain.RecommendationOutput{}
	}
	return []domain.RecommendationOutput{{
		Class:             domain.Diuretics,
		Category:          domain.PersonalTargetDoseReached,
		CurrentMedication: requests[0].Medication,
	}}
}
