package egfr

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdmt-engine/internal/domain"
)

func TestCalculateReferenceValues(t *testing.T) {
	tests := []struct {
		name     string
		input    Input
		expected float64
	}{
		{"male 50 scr 1.0", Input{Sex: domain.Male, Age: 50, Creatinine: 1.0}, 91.6915},
		{"female 60 scr 0.8", Input{Sex: domain.Female, Age: 60, Creatinine: 0.8}, 84.2982},
		{"female 40 scr 0.5", Input{Sex: domain.Female, Age: 40, Creatinine: 0.5}, 121.5193},
		{"male 70 scr 2.0", Input{Sex: domain.Male, Age: 70, Creatinine: 2.0}, 35.2430},
		{"male 30 scr 0.7", Input{Sex: domain.Male, Age: 30, Creatinine: 0.7}, 127.1217},
		{"female 80 scr 1.5", Input{Sex: domain.Female, Age: 80, Creatinine: 1.5}, 35.0103},
		{"male 65 scr 1.3", Input{Sex: domain.Male, Age: 65, Creatinine: 1.3}, 60.9652},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Calculate(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, result.Value, 0.001)
			assert.Equal(t, Unit, result.Unit)
			assert.Equal(t, math.Round(tt.expected), math.Round(result.Value))
		})
	}
}

func TestCalculateStrictlyDecreasingAboveKappa(t *testing.T) {
	for _, sex := range []domain.Sex{domain.Female, domain.Male} {
		kappa := parameters[sex].kappa
		previous := math.Inf(1)
		for scr := kappa + 0.05; scr < 8; scr += 0.05 {
			result, err := Calculate(Input{Sex: sex, Age: 55, Creatinine: scr})
			require.NoError(t, err)
			assert.Less(t, result.Value, previous, "sex=%s creatinine=%.2f", sex, scr)
			previous = result.Value
		}
	}
}

func TestCalculateInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		field string
	}{
		{"zero creatinine", Input{Sex: domain.Male, Age: 50, Creatinine: 0}, "creatinine"},
		{"negative creatinine", Input{Sex: domain.Female, Age: 50, Creatinine: -1}, "creatinine"},
		{"NaN creatinine", Input{Sex: domain.Female, Age: 50, Creatinine: math.NaN()}, "creatinine"},
		{"negative age", Input{Sex: domain.Male, Age: -1, Creatinine: 1}, "age"},
		{"infinite age", Input{Sex: domain.Male, Age: math.Inf(1), Creatinine: 1}, "age"},
		{"unknown sex", Input{Sex: "unknown", Age: 50, Creatinine: 1}, "sex"},
		{"missing sex", Input{Age: 50, Creatinine: 1}, "sex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.input)
			require.Error(t, err)

			var invalid *domain.InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
		})
	}
}

func TestCalculateAgeZeroAllowed(t *testing.T) {
	result, err := Calculate(Input{Sex: domain.Female, Age: 0, Creatinine: 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 142*1.012, result.Value, 1e-9)
}

func TestAgeAt(t *testing.T) {
	dob := time.Date(1960, time.March, 1, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 60.0, AgeAt(dob, time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)), 1e-9)
	assert.InDelta(t, 59.5, AgeAt(dob, time.Date(2019, time.September, 1, 0, 0, 0, 0, time.UTC)), 0.01)
	assert.Less(t, AgeAt(dob, time.Date(2020, time.February, 28, 0, 0, 0, 0, time.UTC)), 60.0)
}
