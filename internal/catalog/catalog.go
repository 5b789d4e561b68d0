// Package catalog holds the read-only GDMT medication reference data: RxNorm codes,
// class membership, guideline target doses and ATC class codes.
//
// Target doses follow Table 15 of the 2022 AHA/ACC/HFSA heart failure guideline.
package catalog

import (
	"sort"

	"github.com/gdmt-engine/internal/domain"
)

// Medication product references (RxNorm).
const (
	Carvedilol          domain.MedicationReference = "20352"
	MetoprololSuccinate domain.MedicationReference = "6918"
	Bisoprolol          domain.MedicationReference = "19484"
	SacubitrilValsartan domain.MedicationReference = "1656339"
	Lisinopril          domain.MedicationReference = "29046"
	Enalapril           domain.MedicationReference = "3827"
	Ramipril            domain.MedicationReference = "35296"
	Captopril           domain.MedicationReference = "1998"
	Losartan            domain.MedicationReference = "52175"
	Valsartan           domain.MedicationReference = "69749"
	Candesartan         domain.MedicationReference = "214354"
	Spironolactone      domain.MedicationReference = "9997"
	Eplerenone          domain.MedicationReference = "298869"
	Empagliflozin       domain.MedicationReference = "1545653"
	Dapagliflozin       domain.MedicationReference = "1488564"
	Sotagliflozin       domain.MedicationReference = "2638675"
	Furosemide          domain.MedicationReference = "4603"
	Bumetanide          domain.MedicationReference = "1808"
	Torsemide           domain.MedicationReference = "38413"
	Hydrochlorothiazide domain.MedicationReference = "5487"
)

// Catalog is an immutable index over the medication table.
type Catalog struct {
	byReference map[domain.MedicationReference]domain.Medication
	byClass     map[domain.MedicationClass][]domain.Medication
	classCodes  map[domain.MedicationClass][]string
	all         []domain.Medication
}

var defaultCatalog = New(medications, classCodes)

// Default returns the process-wide catalog.
func Default() *Catalog {
	return defaultCatalog
}

// New indexes medications. Within a class, input order is first-line order.
func New(meds []domain.Medication, codes map[domain.MedicationClass][]string) *Catalog {
	c := &Catalog{
		byReference: make(map[domain.MedicationReference]domain.Medication, len(meds)),
		byClass:     make(map[domain.MedicationClass][]domain.Medication),
		classCodes:  make(map[domain.MedicationClass][]string, len(codes)),
		all:         make([]domain.Medication, 0, len(meds)),
	}
	for _, med := range meds {
		c.byReference[med.Reference] = med
		c.byClass[med.Class] = append(c.byClass[med.Class], med)
		c.all = append(c.all, med)
	}
	for class, list := range codes {
		c.classCodes[class] = append([]string(nil), list...)
	}
	return c
}

// Medication looks up a product by reference.
func (c *Catalog) Medication(ref domain.MedicationReference) (domain.Medication, bool) {
	med, ok := c.byReference[ref]
	return med, ok
}

// MedicationsInClass returns a copy of the class members in first-line order.
func (c *Catalog) MedicationsInClass(class domain.MedicationClass) []domain.Medication {
	return append([]domain.Medication(nil), c.byClass[class]...)
}

// ClassCodes returns the ATC codes of the class.
func (c *Catalog) ClassCodes(class domain.MedicationClass) []string {
	return append([]string(nil), c.classCodes[class]...)
}

// Medications returns every medication ordered by class then first-line order.
func (c *Catalog) Medications() []domain.Medication {
	rank := make(map[domain.MedicationClass]int, len(domain.AllMedicationClasses))
	for i, class := range domain.AllMedicationClasses {
		rank[class] = i
	}
	out := append([]domain.Medication(nil), c.all...)
	sort.SliceStable(out, func(i, j int) bool {
		return rank[out[i].Class] < rank[out[j].Class]
	})
	return out
}
