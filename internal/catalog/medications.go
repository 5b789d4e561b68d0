package catalog

import "github.com/gdmt-engine/internal/domain"

func single(ref domain.MedicationReference, display, atc string, class domain.MedicationClass, target ...float64) domain.Medication {
	return domain.Medication{
		Reference:       ref,
		Display:         display,
		Class:           class,
		Ingredients:     []domain.Ingredient{{Code: string(ref), Display: display}},
		TargetDailyDose: target,
		ATCCode:         atc,
	}
}

var medications = []domain.Medication{
	single(Carvedilol, "Carvedilol", "C07AG02", domain.BetaBlockers, 50),
	single(MetoprololSuccinate, "Metoprolol succinate", "C07AB02", domain.BetaBlockers, 200),
	single(Bisoprolol, "Bisoprolol", "C07AB07", domain.BetaBlockers, 10),

	{
		Reference: SacubitrilValsartan,
		Display:   "Sacubitril/Valsartan",
		Class:     domain.AngiotensinReceptorNeprilysinInhibitors,
		Ingredients: []domain.Ingredient{
			{Code: "1656328", Display: "Sacubitril"},
			{Code: string(Valsartan), Display: "Valsartan"},
		},
		TargetDailyDose: []float64{194, 206},
		ATCCode:         "C09DX04",
	},

	single(Lisinopril, "Lisinopril", "C09AA03", domain.AngiotensinConvertingEnzymeInhibitors, 40),
	single(Enalapril, "Enalapril", "C09AA02", domain.AngiotensinConvertingEnzymeInhibitors, 40),
	single(Ramipril, "Ramipril", "C09AA05", domain.AngiotensinConvertingEnzymeInhibitors, 10),
	single(Captopril, "Captopril", "C09AA01", domain.AngiotensinConvertingEnzymeInhibitors, 150),

	single(Losartan, "Losartan", "C09CA01", domain.AngiotensinReceptorBlockers, 150),
	single(Valsartan, "Valsartan", "C09CA03", domain.AngiotensinReceptorBlockers, 320),
	single(Candesartan, "Candesartan", "C09CA06", domain.AngiotensinReceptorBlockers, 32),

	single(Spironolactone, "Spironolactone", "C03DA01", domain.MineralocorticoidReceptorAntagonists, 25),
	single(Eplerenone, "Eplerenone", "C03DA04", domain.MineralocorticoidReceptorAntagonists, 50),

	single(Empagliflozin, "Empagliflozin", "A10BK03", domain.SGLT2Inhibitors, 10),
	single(Dapagliflozin, "Dapagliflozin", "A10BK01", domain.SGLT2Inhibitors, 10),
	single(Sotagliflozin, "Sotagliflozin", "A10BK06", domain.SGLT2Inhibitors, 400),

	// Loop and thiazide diuretics are titrated to symptoms; no guideline target.
	single(Furosemide, "Furosemide", "C03CA01", domain.Diuretics),
	single(Bumetanide, "Bumetanide", "C03CA02", domain.Diuretics),
	single(Torsemide, "Torsemide", "C03CA04", domain.Diuretics),
	single(Hydrochlorothiazide, "Hydrochlorothiazide", "C03AA03", domain.Diuretics),
}

var classCodes = map[domain.MedicationClass][]string{
	domain.BetaBlockers:                            {"C07AB", "C07AG"},
	domain.AngiotensinConvertingEnzymeInhibitors:   {"C09AA"},
	domain.AngiotensinReceptorBlockers:             {"C09CA"},
	domain.AngiotensinReceptorNeprilysinInhibitors: {"C09DX04"},
	domain.MineralocorticoidReceptorAntagonists:    {"C03DA"},
	domain.SGLT2Inhibitors:                         {"A10BK"},
	domain.Diuretics:                               {"C03CA", "C03AA"},
}
