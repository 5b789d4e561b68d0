package service

import (
	"strings"

	"github.com/gdmt-engine/internal/domain"
)

// minimumATCPrefix keeps top-level ATC groups such as "C" from matching every cardiovascular drug.
const minimumATCPrefix = 3

// ContraindicationChecker matches allergy/intolerance records against medications.
// It holds only the read-only catalog and is safe for concurrent use.
type ContraindicationChecker struct {
	catalog domain.MedicationCatalog
}

// NewContraindicationChecker creates a checker resolving codes through catalog.
func NewContraindicationChecker(catalog domain.MedicationCatalog) *ContraindicationChecker {
	return &ContraindicationChecker{catalog: catalog}
}

// identifiers are the codes and names a record may refer to.
type identifiers struct {
	rxnorm map[string]bool
	atc    []string
	names  map[string]bool
}

func newIdentifiers() identifiers {
	return identifiers{rxnorm: make(map[string]bool), names: make(map[string]bool)}
}

func (ids identifiers) addMedication(med domain.Medication) {
	ids.rxnorm[string(med.Reference)] = true
	ids.names[strings.ToLower(med.Display)] = true
	for _, ingredient := range med.Ingredients {
		ids.rxnorm[ingredient.Code] = true
		ids.names[strings.ToLower(ingredient.Display)] = true
	}
}

// CheckMedication returns the most severe category among records matching the medication.
func (c *ContraindicationChecker) CheckMedication(intolerances []domain.AllergyIntolerance, ref domain.MedicationReference) domain.ContraindicationCategory {
	ids := newIdentifiers()
	ids.rxnorm[string(ref)] = true
	if med, ok := c.catalog.Medication(ref); ok {
		ids.addMedication(med)
		if med.ATCCode != "" {
			ids.atc = append(ids.atc, med.ATCCode)
		}
	}
	return check(intolerances, ids)
}

// CheckMedicationClass returns the most severe category among records matching any
// member of the class or the class itself.
func (c *ContraindicationChecker) CheckMedicationClass(intolerances []domain.AllergyIntolerance, class domain.MedicationClass) domain.ContraindicationCategory {
	ids := newIdentifiers()
	for _, med := range c.catalog.MedicationsInClass(class) {
		ids.addMedication(med)
		if med.ATCCode != "" {
			ids.atc = append(ids.atc, med.ATCCode)
		}
	}
	ids.atc = append(ids.atc, c.catalog.ClassCodes(class)...)
	return check(intolerances, ids)
}

func check(intolerances []domain.AllergyIntolerance, ids identifiers) domain.ContraindicationCategory {
	result := domain.ContraindicationNone
	for _, record := range intolerances {
		if category := categorize(record, ids); category > result {
			result = category
		}
	}
	return result
}

func categorize(record domain.AllergyIntolerance, ids identifiers) domain.ContraindicationCategory {
	coded := false
	matched := false
	for _, coding := range record.Code.Coding {
		switch coding.System {
		case domain.RxNormSystem:
			coded = true
			matched = matched || ids.rxnorm[coding.Code]
		case domain.ATCSystem:
			coded = true
			matched = matched || matchesATC(coding.Code, ids.atc)
		}
	}

	if !coded {
		if mentionsByName(record, ids) {
			return domain.ContraindicationClinicianListed
		}
		return domain.ContraindicationNone
	}
	if !matched {
		return domain.ContraindicationNone
	}

	switch record.Type {
	case domain.AllergyType, domain.IntoleranceType, "":
		if record.Criticality == domain.CriticalityHigh {
			return domain.ContraindicationSevereAllergyIntolerance
		}
		return domain.ContraindicationAllergyIntolerance
	case domain.FinancialType, domain.PreferenceType:
		return domain.ContraindicationClinicianListed
	default:
		return domain.ContraindicationNone
	}
}

// matchesATC reports whether code names one of the ATC codes or a group containing it.
func matchesATC(code string, atc []string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < minimumATCPrefix {
		return false
	}
	for _, candidate := range atc {
		if strings.HasPrefix(candidate, code) {
			return true
		}
	}
	return false
}

func mentionsByName(record domain.AllergyIntolerance, ids identifiers) bool {
	if text := strings.ToLower(strings.TrimSpace(record.Code.Text)); text != "" && ids.names[text] {
		return true
	}
	for _, coding := range record.Code.Coding {
		if display := strings.ToLower(strings.TrimSpace(coding.Display)); display != "" && ids.names[display] {
			return true
		}
	}
	return false
}
