// Package domain contains the value types of the guideline-directed medical therapy (GDMT)
// recommendation engine for heart failure with reduced ejection fraction.
//
// Reference: Heidenreich et al. (2022) AHA/ACC/HFSA Guideline for the Management of Heart Failure.
// Circulation. 145(18):e895-e1032. doi: 10.1161/CIR.0000000000001063
package domain

import (
	"fmt"
	"strings"
	"time"
)

// MedicationClass identifies one of the GDMT drug classes.
type MedicationClass string

const (
	BetaBlockers                            MedicationClass = "betaBlockers"
	AngiotensinConvertingEnzymeInhibitors   MedicationClass = "angiotensinConvertingEnzymeInhibitors"
	AngiotensinReceptorBlockers             MedicationClass = "angiotensinReceptorBlockers"
	AngiotensinReceptorNeprilysinInhibitors MedicationClass = "angiotensinReceptorNeprilysinInhibitors"
	MineralocorticoidReceptorAntagonists    MedicationClass = "mineralocorticoidReceptorAntagonists"
	SGLT2Inhibitors                         MedicationClass = "sglt2inhibitors"
	Diuretics                               MedicationClass = "diuretics"
)

// AllMedicationClasses lists every class in display order.
var AllMedicationClasses = []MedicationClass{
	BetaBlockers,
	AngiotensinReceptorNeprilysinInhibitors,
	AngiotensinConvertingEnzymeInhibitors,
	AngiotensinReceptorBlockers,
	MineralocorticoidReceptorAntagonists,
	SGLT2Inhibitors,
	Diuretics,
}

// IsValid reports whether c is a known medication class.
func (c MedicationClass) IsValid() bool {
	for _, known := range AllMedicationClasses {
		if c == known {
			return true
		}
	}
	return false
}

// IsRASI reports whether c belongs to the renin-angiotensin system axis.
func (c MedicationClass) IsRASI() bool {
	switch c {
	case AngiotensinConvertingEnzymeInhibitors, AngiotensinReceptorBlockers, AngiotensinReceptorNeprilysinInhibitors:
		return true
	}
	return false
}

// MedicationReference is the RxNorm code of a medication product, e.g. "20352".
type MedicationReference string

// Sex is the administrative sex used by the eGFR equation.
type Sex string

const (
	Female Sex = "female"
	Male   Sex = "male"
)

// ParseSex accepts "female"/"male" in any case, plus "f"/"m".
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "female", "f":
		return Female, nil
	case "male", "m":
		return Male, nil
	}
	return "", NewInvalidInputError("sex", "must be female or male", s)
}

// ContraindicationCategory is a totally ordered severity; higher values block more.
type ContraindicationCategory int

const (
	ContraindicationNone ContraindicationCategory = iota
	ContraindicationClinicianListed
	ContraindicationAllergyIntolerance
	ContraindicationSevereAllergyIntolerance
)

var contraindicationNames = [...]string{
	ContraindicationNone:                     "none",
	ContraindicationClinicianListed:          "clinicianListed",
	ContraindicationAllergyIntolerance:       "allergyIntolerance",
	ContraindicationSevereAllergyIntolerance: "severeAllergyIntolerance",
}

func (c ContraindicationCategory) String() string {
	if c < 0 || int(c) >= len(contraindicationNames) {
		return fmt.Sprintf("ContraindicationCategory(%d)", int(c))
	}
	return contraindicationNames[c]
}

// MarshalText encodes the category by name.
func (c ContraindicationCategory) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(contraindicationNames) {
		return nil, fmt.Errorf("unknown contraindication category %d", int(c))
	}
	return []byte(contraindicationNames[c]), nil
}

// UnmarshalText decodes a category name.
func (c *ContraindicationCategory) UnmarshalText(text []byte) error {
	for i, name := range contraindicationNames {
		if name == string(text) {
			*c = ContraindicationCategory(i)
			return nil
		}
	}
	return NewInvalidInputError("contraindication", "unknown category", string(text))
}

// AllergyIntoleranceType is the recorded kind of an allergy/intolerance entry.
type AllergyIntoleranceType string

const (
	AllergyType     AllergyIntoleranceType = "allergy"
	IntoleranceType AllergyIntoleranceType = "intolerance"
	FinancialType   AllergyIntoleranceType = "financial"
	PreferenceType  AllergyIntoleranceType = "preference"
)

// Criticality is the potential clinical harm of a reaction.
type Criticality string

const (
	CriticalityLow            Criticality = "low"
	CriticalityHigh           Criticality = "high"
	CriticalityUnableToAssess Criticality = "unable-to-assess"
)

// Terminology systems recognized in allergy codings.
const (
	RxNormSystem = "http://www.nlm.nih.gov/research/umls/rxnorm"
	ATCSystem    = "http://www.whocc.no/atc"
)

// Coding is one terminology code.
type Coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a set of codings plus free text.
type CodeableConcept struct {
	Text   string   `json:"text,omitempty"`
	Coding []Coding `json:"coding,omitempty"`
}

// AllergyIntolerance is a decoded allergy/intolerance record.
type AllergyIntolerance struct {
	Type        AllergyIntoleranceType `json:"type,omitempty"`
	Criticality Criticality            `json:"criticality,omitempty"`
	Code        CodeableConcept        `json:"code"`
}

// Observation is a single measured value.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Unit  string    `json:"unit"`
}

// VitalsSnapshot holds the vital-sign series and latest labs for one patient.
// Series may be in any order.
type VitalsSnapshot struct {
	SystolicBloodPressure  []Observation `json:"systolicBloodPressure,omitempty"`
	DiastolicBloodPressure []Observation `json:"diastolicBloodPressure,omitempty"`
	HeartRate              []Observation `json:"heartRate,omitempty"`
	Creatinine             *Observation  `json:"creatinine,omitempty"`
	EstimatedGFR           *Observation  `json:"estimatedGlomerularFiltrationRate,omitempty"`
	Potassium              *Observation  `json:"potassium,omitempty"`
}

// DoseSchedule is Frequency administrations per day of Quantity mg per ingredient.
type DoseSchedule struct {
	Frequency float64   `json:"frequency"`
	Quantity  []float64 `json:"quantity"`
}

// MedicationRequestContext is a currently active prescription.
type MedicationRequestContext struct {
	Medication      MedicationReference `json:"medication"`
	MedicationClass MedicationClass     `json:"medicationClass"`
	Schedules       []DoseSchedule      `json:"schedules,omitempty"`
	// TargetDailyDose overrides the catalog guideline target, in mg per ingredient.
	TargetDailyDose []float64 `json:"targetDailyDose,omitempty"`
}

// DailyDose sums frequency times quantity per ingredient across the schedules.
func (r MedicationRequestContext) DailyDose() []float64 {
	var total []float64
	for _, schedule := range r.Schedules {
		for i, quantity := range schedule.Quantity {
			for len(total) <= i {
				total = append(total, 0)
			}
			total[i] += schedule.Frequency * quantity
		}
	}
	return total
}

// SymptomScore is the KCCQ-12 result for one questionnaire response.
// Physical and social limits are nil when too few of their items were answered.
type SymptomScore struct {
	Overall          float64   `json:"overallScore"`
	PhysicalLimits   *float64  `json:"physicalLimitsScore,omitempty"`
	SocialLimits     *float64  `json:"socialLimitsScore,omitempty"`
	QualityOfLife    float64   `json:"qualityOfLifeScore"`
	SymptomFrequency float64   `json:"symptomFrequencyScore"`
	Dizziness        float64   `json:"dizzinessScore"`
	Date             time.Time `json:"date,omitempty"`
}

// PatientDemographics allows deriving eGFR from creatinine when no eGFR is recorded.
type PatientDemographics struct {
	Sex         Sex       `json:"sex,omitempty"`
	DateOfBirth time.Time `json:"dateOfBirth,omitempty"`
}

// RecommendationInput is everything the engine needs for one patient.
type RecommendationInput struct {
	Requests          []MedicationRequestContext `json:"requests"`
	Contraindications []AllergyIntolerance       `json:"contraindications"`
	Vitals            VitalsSnapshot             `json:"vitals"`
	SymptomScore      *SymptomScore              `json:"symptomScore,omitempty"`
	Patient           *PatientDemographics       `json:"patient,omitempty"`
	// Date is the evaluation instant; zero means now.
	Date time.Time `json:"date,omitempty"`
}

// RecommendationCategory is the decision for one class.
type RecommendationCategory string

const (
	NotStarted                           RecommendationCategory = "notStarted"
	ImprovementAvailableIncreasing       RecommendationCategory = "improvementAvailableIncreasing"
	ImprovementAvailableMoreEffectiveMed RecommendationCategory = "improvementAvailableMoreEffectiveMed"
	MoreLabObservationsRequired          RecommendationCategory = "moreLabObservationsRequired"
	MorePatientObservationsRequired      RecommendationCategory = "morePatientObservationsRequired"
	PersonalTargetDoseReached            RecommendationCategory = "personalTargetDoseReached"
	TargetDoseReached                    RecommendationCategory = "targetDoseReached"
	NoActionRequired                     RecommendationCategory = "noActionRequired"
)

// RecommendationOutput is one decision produced by a recommender.
type RecommendationOutput struct {
	Class             MedicationClass        `json:"class"`
	Category          RecommendationCategory `json:"category"`
	CurrentMedication MedicationReference    `json:"currentMedication,omitempty"`
	TargetMedication  MedicationReference    `json:"targetMedication,omitempty"`
}
