// Package egfr implements the race-free CKD-EPI 2021 creatinine equation.
//
// Reference: Inker et al. (2021) New Creatinine- and Cystatin C-Based Equations to Estimate GFR
// without Race. N Engl J Med. 385:1737-1749. doi: 10.1056/NEJMoa2102953
package egfr

import (
	"math"
	"time"

	"github.com/gdmt-engine/internal/domain"
)

// Unit is the unit of every result.
const Unit = "mL/min/1.73m2"

// Input is a unit-normalized request; Creatinine is serum creatinine in mg/dL.
type Input struct {
	Sex        domain.Sex `json:"sex"`
	Age        float64    `json:"age"`
	Creatinine float64    `json:"creatinine"`
}

// Result is the estimated GFR.
type Result struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type sexParameters struct {
	kappa      float64
	alpha      float64
	multiplier float64
}

var parameters = map[domain.Sex]sexParameters{
	domain.Female: {kappa: 0.7, alpha: -0.241, multiplier: 1.012},
	domain.Male:   {kappa: 0.9, alpha: -0.302, multiplier: 1.0},
}

// Calculate returns eGFR = 142 × min(Scr/κ,1)^α × max(Scr/κ,1)^-1.200 × 0.9938^age × (1.012 if female).
func Calculate(in Input) (Result, error) {
	params, ok := parameters[in.Sex]
	if !ok {
		return Result{}, domain.NewInvalidInputError("sex", "must be female or male", string(in.Sex))
	}
	if math.IsNaN(in.Age) || math.IsInf(in.Age, 0) || in.Age < 0 {
		return Result{}, domain.NewInvalidInputError("age", "must be a non-negative number", in.Age)
	}
	if math.IsNaN(in.Creatinine) || math.IsInf(in.Creatinine, 0) || in.Creatinine <= 0 {
		return Result{}, domain.NewInvalidInputError("creatinine", "must be a positive number", in.Creatinine)
	}

	ratio := in.Creatinine / params.kappa
	value := 142 *
		math.Pow(math.Min(ratio, 1), params.alpha) *
		math.Pow(math.Max(ratio, 1), -1.200) *
		math.Pow(0.9938, in.Age) *
		params.multiplier

	return Result{Value: value, Unit: Unit}, nil
}

// AgeAt returns the age in fractional years at the given instant.
func AgeAt(dateOfBirth, at time.Time) float64 {
	years := at.Year() - dateOfBirth.Year()
	anniversary := dateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
		anniversary = dateOfBirth.AddDate(years, 0, 0)
	}
	next := dateOfBirth.AddDate(years+1, 0, 0)
	return float64(years) + at.Sub(anniversary).Hours()/next.Sub(anniversary).Hours()
}
