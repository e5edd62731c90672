package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/scenario"
)

// Input files are YAML with money as decimal strings, converted here into
// the model types. The raw layer keeps yaml.v3 away from decimal.Decimal.

type inputFile struct {
	Profile rawProfile  `yaml:"profile"`
	Sources []rawSource `yaml:"sources"`
}

type rawProfile struct {
	TaxYear                int            `yaml:"tax_year"`
	FilingStatus           string         `yaml:"filing_status"`
	BirthDate              string         `yaml:"birth_date"` // YYYY-MM-DD
	Dependents             []rawDependent `yaml:"dependents"`
	SpouseDeathYear        int            `yaml:"spouse_death_year"`
	ItemizedDeduction      string         `yaml:"itemized_deduction"`
	RetirementContribution string         `yaml:"retirement_contribution"`
}

type rawDependent struct {
	Name               string `yaml:"name"`
	Relationship       string `yaml:"relationship"`
	QualifyingChild    bool   `yaml:"qualifying_child"`
	QualifyingRelative bool   `yaml:"qualifying_relative"`
}

type rawSource struct {
	Kind        string          `yaml:"kind"`
	Wage        *rawWage        `yaml:"wage"`
	ScheduleC   *rawScheduleC   `yaml:"schedule_c"`
	K1          *rawK1          `yaml:"k1"`
	CapitalGain *rawCapitalGain `yaml:"capital_gain"`
	Rental      *rawRental      `yaml:"rental"`
}

type rawWage struct {
	Employer           string `yaml:"employer"`
	Wages              string `yaml:"wages"`
	FederalWithholding string `yaml:"federal_withholding"`
	MedicareWages      string `yaml:"medicare_wages"`
}

type rawScheduleC struct {
	Name            string `yaml:"name"`
	NAICSCode       string `yaml:"naics_code"`
	Description     string `yaml:"description"`
	GrossReceipts   string `yaml:"gross_receipts"`
	Expenses        string `yaml:"expenses"`
	QBI             string `yaml:"qbi"`
	SSTBOverride    *bool  `yaml:"sstb_override"`
	SSTBReceipts    string `yaml:"sstb_receipts"`
	NonSSTBReceipts string `yaml:"non_sstb_receipts"`
	W2WagesPaid     string `yaml:"w2_wages_paid"`
	UBIA            string `yaml:"ubia"`
}

type rawK1 struct {
	EntityName             string `yaml:"entity_name"`
	EntityEIN              string `yaml:"entity_ein"`
	OrdinaryIncome         string `yaml:"ordinary_income"`
	GuaranteedPayments     string `yaml:"guaranteed_payments"`
	QBI                    string `yaml:"qbi"`
	SelfEmploymentEarnings string `yaml:"self_employment_earnings"`
}

type rawCapitalGain struct {
	Description    string `yaml:"description"`
	DateAcquired   string `yaml:"date_acquired"`
	DateSold       string `yaml:"date_sold"`
	Proceeds       string `yaml:"proceeds"`
	Basis          string `yaml:"basis"`
	AdjustmentCode string `yaml:"adjustment_code"`
}

type rawRental struct {
	Address       string `yaml:"address"`
	RentsReceived string `yaml:"rents_received"`
	Expenses      string `yaml:"expenses"`
	Depreciation  string `yaml:"depreciation"`
}

type rawScenarioFile struct {
	Scenarios []rawScenario `yaml:"scenarios"`
}

type rawScenario struct {
	Name                   string    `yaml:"name"`
	RetirementContribution string    `yaml:"retirement_contribution"`
	MaximizeRetirement     bool      `yaml:"maximize_retirement"`
	WageAdjustment         string    `yaml:"wage_adjustment"`
	SCorp                  *rawSCorp `yaml:"s_corp"`
}

type rawSCorp struct {
	BusinessName     string `yaml:"business_name"`
	ReasonableSalary string `yaml:"reasonable_salary"`
}

// loadInput reads a taxpayer input file and converts it to model types.
func loadInput(path string) (*model.TaxpayerProfile, []model.IncomeSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "read input %s", path)
	}

	var in inputFile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, nil, eris.Wrapf(err, "parse input %s", path)
	}

	profile, err := in.Profile.toModel()
	if err != nil {
		return nil, nil, err
	}

	sources := make([]model.IncomeSource, 0, len(in.Sources))
	for i, raw := range in.Sources {
		s, err := raw.toModel()
		if err != nil {
			return nil, nil, eris.Wrapf(err, "source %d", i)
		}
		sources = append(sources, s)
	}
	return profile, sources, nil
}

// loadScenarios reads a scenario definitions file.
func loadScenarios(path string) ([]scenario.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read scenarios %s", path)
	}

	var in rawScenarioFile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, eris.Wrapf(err, "parse scenarios %s", path)
	}

	defs := make([]scenario.Definition, 0, len(in.Scenarios))
	for i, raw := range in.Scenarios {
		if raw.Name == "" {
			return nil, eris.Errorf("scenario %d has no name", i)
		}
		def := scenario.Definition{
			Name:                   raw.Name,
			RetirementContribution: raw.RetirementContribution,
			MaximizeRetirement:     raw.MaximizeRetirement,
			WageAdjustment:         raw.WageAdjustment,
		}
		if raw.SCorp != nil {
			salary, err := parseAmount(raw.SCorp.ReasonableSalary, "reasonable_salary")
			if err != nil {
				return nil, eris.Wrapf(err, "scenario %s", raw.Name)
			}
			def.SCorp = &scenario.SCorpOption{
				BusinessName:     raw.SCorp.BusinessName,
				ReasonableSalary: salary,
			}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (p *rawProfile) toModel() (*model.TaxpayerProfile, error) {
	out := &model.TaxpayerProfile{
		TaxYear:                p.TaxYear,
		FilingStatus:           model.FilingStatus(p.FilingStatus),
		SpouseDeathYear:        p.SpouseDeathYear,
		ItemizedDeduction:      p.ItemizedDeduction,
		RetirementContribution: p.RetirementContribution,
	}
	if p.BirthDate != "" {
		t, err := time.Parse("2006-01-02", p.BirthDate)
		if err != nil {
			return nil, eris.Wrapf(err, "birth_date %q", p.BirthDate)
		}
		out.BirthDate = t
	}
	for _, d := range p.Dependents {
		out.Dependents = append(out.Dependents, model.Dependent{
			Name:               d.Name,
			Relationship:       model.Relationship(d.Relationship),
			QualifyingChild:    d.QualifyingChild,
			QualifyingRelative: d.QualifyingRelative,
		})
	}
	return out, nil
}

func (s *rawSource) toModel() (model.IncomeSource, error) {
	switch {
	case s.Wage != nil:
		wages, err := parseAmount(s.Wage.Wages, "wages")
		if err != nil {
			return model.IncomeSource{}, err
		}
		withholding, err := parseOptionalAmount(s.Wage.FederalWithholding, "federal_withholding")
		if err != nil {
			return model.IncomeSource{}, err
		}
		medicare, err := parseOptionalAmount(s.Wage.MedicareWages, "medicare_wages")
		if err != nil {
			return model.IncomeSource{}, err
		}
		return model.NewWageSource(model.WageIncome{
			Employer:           s.Wage.Employer,
			Wages:              wages,
			FederalWithholding: withholding,
			MedicareWages:      medicare,
		}), nil

	case s.ScheduleC != nil:
		return s.ScheduleC.toModel()

	case s.K1 != nil:
		k := model.PartnershipK1{EntityName: s.K1.EntityName, EntityEIN: s.K1.EntityEIN}
		var err error
		if k.OrdinaryIncome, err = parseOptionalAmount(s.K1.OrdinaryIncome, "ordinary_income"); err != nil {
			return model.IncomeSource{}, err
		}
		if k.GuaranteedPayments, err = parseOptionalAmount(s.K1.GuaranteedPayments, "guaranteed_payments"); err != nil {
			return model.IncomeSource{}, err
		}
		if k.QBI, err = parseOptionalAmount(s.K1.QBI, "qbi"); err != nil {
			return model.IncomeSource{}, err
		}
		if k.SelfEmploymentEarnings, err = parseOptionalAmount(s.K1.SelfEmploymentEarnings, "self_employment_earnings"); err != nil {
			return model.IncomeSource{}, err
		}
		return model.NewK1Source(k), nil

	case s.CapitalGain != nil:
		c := model.CapitalGainTransaction{
			Description:    s.CapitalGain.Description,
			AdjustmentCode: s.CapitalGain.AdjustmentCode,
		}
		var err error
		if c.Proceeds, err = parseAmount(s.CapitalGain.Proceeds, "proceeds"); err != nil {
			return model.IncomeSource{}, err
		}
		if c.Basis, err = parseAmount(s.CapitalGain.Basis, "basis"); err != nil {
			return model.IncomeSource{}, err
		}
		if c.DateAcquired, err = parseDate(s.CapitalGain.DateAcquired, "date_acquired"); err != nil {
			return model.IncomeSource{}, err
		}
		if c.DateSold, err = parseDate(s.CapitalGain.DateSold, "date_sold"); err != nil {
			return model.IncomeSource{}, err
		}
		return model.NewCapitalGainSource(c), nil

	case s.Rental != nil:
		r := model.RentalProperty{Address: s.Rental.Address}
		var err error
		if r.RentsReceived, err = parseAmount(s.Rental.RentsReceived, "rents_received"); err != nil {
			return model.IncomeSource{}, err
		}
		if r.Expenses, err = parseOptionalAmount(s.Rental.Expenses, "expenses"); err != nil {
			return model.IncomeSource{}, err
		}
		if r.Depreciation, err = parseOptionalAmount(s.Rental.Depreciation, "depreciation"); err != nil {
			return model.IncomeSource{}, err
		}
		return model.NewRentalSource(r), nil
	}
	return model.IncomeSource{}, eris.Errorf("income source %q has no variant body", s.Kind)
}

func (b *rawScheduleC) toModel() (model.IncomeSource, error) {
	out := model.ScheduleCBusiness{
		Name:         b.Name,
		NAICSCode:    b.NAICSCode,
		Description:  b.Description,
		SSTBOverride: b.SSTBOverride,
	}
	var err error
	if out.GrossReceipts, err = parseAmount(b.GrossReceipts, "gross_receipts"); err != nil {
		return model.IncomeSource{}, err
	}
	if out.Expenses, err = parseOptionalAmount(b.Expenses, "expenses"); err != nil {
		return model.IncomeSource{}, err
	}
	if out.QBI, err = parseOptionalAmount(b.QBI, "qbi"); err != nil {
		return model.IncomeSource{}, err
	}
	if out.W2WagesPaid, err = parseOptionalAmount(b.W2WagesPaid, "w2_wages_paid"); err != nil {
		return model.IncomeSource{}, err
	}
	if out.UBIA, err = parseOptionalAmount(b.UBIA, "ubia"); err != nil {
		return model.IncomeSource{}, err
	}
	if b.SSTBReceipts != "" {
		d, err := parseAmount(b.SSTBReceipts, "sstb_receipts")
		if err != nil {
			return model.IncomeSource{}, err
		}
		out.SSTBReceipts = &d
	}
	if b.NonSSTBReceipts != "" {
		d, err := parseAmount(b.NonSSTBReceipts, "non_sstb_receipts")
		if err != nil {
			return model.IncomeSource{}, err
		}
		out.NonSSTBReceipts = &d
	}
	return model.NewScheduleCSource(out), nil
}

func parseAmount(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, eris.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "%s %q", field, s)
	}
	return d, nil
}

func parseOptionalAmount(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return parseAmount(s, field)
}

func parseDate(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, eris.Errorf("%s is required", field)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "%s %q", field, s)
	}
	return t, nil
}
