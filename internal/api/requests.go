package api

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/gdmt-engine/internal/domain"
)

// recommendationRequest is the body of POST /recommendations.
type recommendationRequest domain.RecommendationInput

// Validate checks the request shape; clinical ranges are left to the engine.
func (r recommendationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Requests, validation.Each(validation.By(validateMedicationRequest))),
	)
}

func validateMedicationRequest(value interface{}) error {
	req, ok := value.(domain.MedicationRequestContext)
	if !ok {
		return errors.New("must be a medication request")
	}
	return validation.ValidateStruct(&req,
		validation.Field(&req.Medication, validation.Required),
		validation.Field(&req.MedicationClass, validation.By(optionalClass)),
		validation.Field(&req.Schedules, validation.Each(validation.By(validateSchedule))),
		validation.Field(&req.TargetDailyDose, validation.Each(validation.Min(0.0))),
	)
}

func validateSchedule(value interface{}) error {
	schedule, ok := value.(domain.DoseSchedule)
	if !ok {
		return errors.New("must be a dose schedule")
	}
	return validation.ValidateStruct(&schedule,
		validation.Field(&schedule.Frequency, validation.Min(0.0)),
		validation.Field(&schedule.Quantity, validation.Each(validation.Min(0.0))),
	)
}

func optionalClass(value interface{}) error {
	class, _ := value.(domain.MedicationClass)
	if class == "" || class.IsValid() {
		return nil
	}
	return errors.New("unknown medication class")
}

func requiredClass(value interface{}) error {
	class, _ := value.(domain.MedicationClass)
	if !class.IsValid() {
		return errors.New("unknown medication class")
	}
	return nil
}

// egfrRequest is the body of POST /egfr.
type egfrRequest struct {
	Sex        string  `json:"sex"`
	Age        float64 `json:"age"`
	Creatinine float64 `json:"creatinine"` // mg/dL
}

func (r egfrRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Sex, validation.Required),
		validation.Field(&r.Age, validation.Min(0.0), validation.Max(130.0)),
	)
}

// symptomScoreRequest is the body of POST /symptom-score.
type symptomScoreRequest struct {
	Answers []int      `json:"answers"`
	Date    *time.Time `json:"date,omitempty"`
}

func (r symptomScoreRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Answers, validation.Required),
	)
}

// medicationContraindicationRequest is the body of POST /contraindications/medication.
type medicationContraindicationRequest struct {
	Allergies  []domain.AllergyIntolerance `json:"allergies"`
	Medication domain.MedicationReference  `json:"medication"`
}

func (r medicationContraindicationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Medication, validation.Required),
	)
}

// classContraindicationRequest is the body of POST /contraindications/class.
type classContraindicationRequest struct {
	Allergies []domain.AllergyIntolerance `json:"allergies"`
	Class     domain.MedicationClass      `json:"class"`
}

func (r classContraindicationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Class, validation.Required, validation.By(requiredClass)),
	)
}

// contraindicationResponse is returned by both contraindication endpoints.
type contraindicationResponse struct {
	Medication domain.MedicationReference      `json:"medication,omitempty"`
	Class      domain.MedicationClass          `json:"class,omitempty"`
	Category   domain.ContraindicationCategory `json:"category"`
}
