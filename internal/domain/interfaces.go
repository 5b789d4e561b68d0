package domain

import (
	"context"
)

// Medication is one catalog entry.
type Medication struct {
	Reference MedicationReference `json:"reference"`
	Display   string              `json:"display"`
	Class     MedicationClass     `json:"class"`
	// Ingredients lists the RxNorm ingredient codes, in the same order as TargetDailyDose.
	Ingredients     []Ingredient `json:"ingredients"`
	TargetDailyDose []float64    `json:"targetDailyDose,omitempty"` // mg per ingredient; empty when no guideline target
	ATCCode         string       `json:"atcCode,omitempty"`
}

// Ingredient is an active substance of a medication.
type Ingredient struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

// MedicationCatalog resolves medications and classes to their reference data.
type MedicationCatalog interface {
	Medication(ref MedicationReference) (Medication, bool)
	// MedicationsInClass returns the class members in first-line order.
	MedicationsInClass(class MedicationClass) []Medication
	// ClassCodes returns the ATC codes that identify the class as a whole.
	ClassCodes(class MedicationClass) []string
	Medications() []Medication
}

// ContraindicationChecker evaluates allergy records against medications.
type ContraindicationChecker interface {
	CheckMedication(intolerances []AllergyIntolerance, ref MedicationReference) ContraindicationCategory
	CheckMedicationClass(intolerances []AllergyIntolerance, class MedicationClass) ContraindicationCategory
}

// RecommendationService computes recommendations for one patient.
type RecommendationService interface {
	ComputeRecommendations(ctx context.Context, input RecommendationInput) ([]RecommendationOutput, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
