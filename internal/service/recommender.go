package service

import (
	"time"

	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/pkg/egfr"
	"github.com/gdmt-engine/pkg/stats"
)

// recommender produces the recommendations of one therapeutic axis.
type recommender interface {
	name() string
	compute(e *evaluation) []domain.RecommendationOutput
}

// evaluation carries one compute call's input and collaborators. It is never shared between calls.
type evaluation struct {
	input      domain.RecommendationInput
	now        time.Time
	thresholds domain.Thresholds
	catalog    domain.MedicationCatalog
	checker    domain.ContraindicationChecker
}

// gates lists the safety checks a class needs before its dose may change.
type gates struct {
	systolic  bool
	heartRate bool
	dizziness bool
	potassium bool
	egfrFloor float64 // zero disables the eGFR check
}

func (g gates) needsLabs() bool {
	return g.potassium || g.egfrFloor > 0
}

// requests returns the active requests of the given classes, ordered by class priority
// and then by input order.
func (e *evaluation) requests(classes ...domain.MedicationClass) []domain.MedicationRequestContext {
	var out []domain.MedicationRequestContext
	for _, class := range classes {
		for _, request := range e.input.Requests {
			if e.classOf(request) == class {
				out = append(out, request)
			}
		}
	}
	return out
}

// classOf trusts the catalog over the request when the medication is known.
func (e *evaluation) classOf(request domain.MedicationRequestContext) domain.MedicationClass {
	if med, ok := e.catalog.Medication(request.Medication); ok {
		return med.Class
	}
	return request.MedicationClass
}

// targetReached sums the daily dose of the primary medication across all of its requests and
// compares it per ingredient with the guideline target. Unknown targets are never reached.
func (e *evaluation) targetReached(primary domain.MedicationRequestContext, requests []domain.MedicationRequestContext) bool {
	target := primary.TargetDailyDose
	if len(target) == 0 {
		if med, ok := e.catalog.Medication(primary.Medication); ok {
			target = med.TargetDailyDose
		}
	}
	if len(target) == 0 {
		return false
	}

	var total []float64
	for _, request := range requests {
		if request.Medication != primary.Medication {
			continue
		}
		for i, dose := range request.DailyDose() {
			for len(total) <= i {
				total = append(total, 0)
			}
			total[i] += dose
		}
	}

	if len(total) < len(target) {
		return false
	}
	for i, want := range target {
		if total[i] < want {
			return false
		}
	}
	return true
}

// recentValues returns the values observed within the recent vitals window.
func (e *evaluation) recentValues(observations []domain.Observation) []float64 {
	cutoff := e.now.Add(-e.thresholds.RecentVitalsWindow)
	var values []float64
	for _, observation := range observations {
		if observation.Date.Before(cutoff) || observation.Date.After(e.now) {
			continue
		}
		values = append(values, observation.Value)
	}
	return values
}

// freshLab returns the observation if it is no older than the lab age limit.
func (e *evaluation) freshLab(observation *domain.Observation) (float64, bool) {
	if observation == nil || observation.Date.After(e.now) {
		return 0, false
	}
	if e.now.Sub(observation.Date) > e.thresholds.LabMaxAge {
		return 0, false
	}
	return observation.Value, true
}

// estimatedGFR prefers a recorded eGFR and otherwise derives one from a fresh creatinine
// and the patient's demographics.
func (e *evaluation) estimatedGFR() (float64, bool) {
	if value, ok := e.freshLab(e.input.Vitals.EstimatedGFR); ok {
		return value, true
	}

	creatinine, ok := e.freshLab(e.input.Vitals.Creatinine)
	patient := e.input.Patient
	if !ok || patient == nil || patient.DateOfBirth.IsZero() {
		return 0, false
	}

	result, err := egfr.Calculate(egfr.Input{
		Sex:        patient.Sex,
		Age:        egfr.AgeAt(patient.DateOfBirth, e.input.Vitals.Creatinine.Date),
		Creatinine: creatinine,
	})
	if err != nil {
		return 0, false
	}
	return result.Value, true
}

// titrationBlock returns the category to emit when the gates do not allow a dose change.
func (e *evaluation) titrationBlock(g gates) (domain.RecommendationCategory, bool) {
	t := e.thresholds

	systolic := e.recentValues(e.input.Vitals.SystolicBloodPressure)
	heartRate := e.recentValues(e.input.Vitals.HeartRate)

	if g.systolic && len(systolic) < t.MinimumRecentVitals {
		return domain.MorePatientObservationsRequired, true
	}
	if g.heartRate && len(heartRate) < t.MinimumRecentVitals {
		return domain.MorePatientObservationsRequired, true
	}

	if g.systolic {
		median, _ := stats.Median(systolic)
		hypotensive, _ := stats.Percentage(systolic, func(v float64) bool { return v < t.HypotensionFloor })
		if median < t.SystolicFloor || hypotensive > t.HypotensionShareLimit {
			return domain.PersonalTargetDoseReached, true
		}
	}
	if g.heartRate {
		if median, _ := stats.Median(heartRate); median < t.HeartRateFloor {
			return domain.PersonalTargetDoseReached, true
		}
	}
	if g.dizziness && e.input.SymptomScore != nil && e.input.SymptomScore.Dizziness >= t.DizzinessLimit {
		return domain.PersonalTargetDoseReached, true
	}

	if !g.needsLabs() {
		return "", false
	}

	potassium, potassiumOK := e.freshLab(e.input.Vitals.Potassium)
	gfr, gfrOK := e.estimatedGFR()
	if (g.potassium && !potassiumOK) || (g.egfrFloor > 0 && !gfrOK) {
		return domain.MoreLabObservationsRequired, true
	}
	if g.potassium && potassium > t.PotassiumCeiling {
		return domain.PersonalTargetDoseReached, true
	}
	if g.egfrFloor > 0 && gfr < g.egfrFloor {
		return domain.PersonalTargetDoseReached, true
	}

	return "", false
}

// startRecommendation walks the classes in priority order and proposes a member of the first
// class that is not severely contraindicated. Members without any contraindication are
// preferred; otherwise the first-line member of the first startable class is named.
func (e *evaluation) startRecommendation(classes ...domain.MedicationClass) []domain.RecommendationOutput {
	var startable, clinicianListed []domain.MedicationClass
	for _, class := range classes {
		switch e.checker.CheckMedicationClass(e.input.Contraindications, class) {
		case domain.ContraindicationSevereAllergyIntolerance:
		case domain.ContraindicationClinicianListed:
			clinicianListed = append(clinicianListed, class)
		default:
			startable = append(startable, class)
		}
	}

	for _, class := range startable {
		for _, med := range e.catalog.MedicationsInClass(class) {
			if e.checker.CheckMedication(e.input.Contraindications, med.Reference) == domain.ContraindicationNone {
				return []domain.RecommendationOutput{notStarted(class, med.Reference)}
			}
		}
	}
	for _, class := range startable {
		if members := e.catalog.MedicationsInClass(class); len(members) > 0 {
			return []domain.RecommendationOutput{notStarted(class, members[0].Reference)}
		}
	}

	if len(clinicianListed) > 0 {
		return []domain.RecommendationOutput{{
			Class:    clinicianListed[0],
			Category: domain.NoActionRequired,
		}}
	}
	return []domain.RecommendationOutput{}
}

func notStarted(class domain.MedicationClass, ref domain.MedicationReference) domain.RecommendationOutput {
	return domain.RecommendationOutput{
		Class:            class,
		Category:         domain.NotStarted,
		TargetMedication: ref,
	}
}

// titrationRecommendation applies the shared titration skeleton to the primary request.
// moreEffective, when set, is consulted once the gates allow a change.
func (e *evaluation) titrationRecommendation(g gates, requests []domain.MedicationRequestContext, moreEffective func(primary domain.MedicationRequestContext) (domain.RecommendationOutput, bool)) []domain.RecommendationOutput {
	primary := requests[0]
	output := domain.RecommendationOutput{
		Class:             e.classOf(primary),
		CurrentMedication: primary.Medication,
	}

	switch {
	case e.targetReached(primary, requests):
		output.Category = domain.TargetDoseReached
	case e.checker.CheckMedication(e.input.Contraindications, primary.Medication) == domain.ContraindicationSevereAllergyIntolerance:
		output.Category = domain.PersonalTargetDoseReached
	default:
		if category, blocked := e.titrationBlock(g); blocked {
			output.Category = category
			break
		}
		if moreEffective != nil {
			if switched, ok := moreEffective(primary); ok {
				return []domain.RecommendationOutput{switched}
			}
		}
		output.Category = domain.ImprovementAvailableIncreasing
	}

	return []domain.RecommendationOutput{output}
}
