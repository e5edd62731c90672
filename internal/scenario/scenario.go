// Package scenario runs what-if comparisons, entity structure analysis,
// and multi-year projections on top of the calculation engine. Scenarios
// are structured diffs against a baseline; each recomputation is an
// independent pure pass, so scenarios run concurrently and one failure
// never aborts the rest.
package scenario

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/money"
)

// SCorpOption elects S-corp treatment for a named Schedule C business: the
// reasonable salary becomes W-2 wages subject to payroll tax and the
// remainder flows through as a distribution free of SE tax.
type SCorpOption struct {
	BusinessName     string          `yaml:"business_name" json:"business_name"`
	ReasonableSalary decimal.Decimal `yaml:"reasonable_salary" json:"reasonable_salary"`
}

// Definition is one named diff against the baseline profile.
type Definition struct {
	Name string `yaml:"name" json:"name"`

	// RetirementContribution sets the pre-tax deferral (decimal string).
	// MaximizeRetirement overrides it with the year's limit.
	RetirementContribution string `yaml:"retirement_contribution,omitempty" json:"retirement_contribution,omitempty"`
	MaximizeRetirement     bool   `yaml:"maximize_retirement,omitempty" json:"maximize_retirement,omitempty"`

	// SCorp elects S-corp treatment for one business.
	SCorp *SCorpOption `yaml:"s_corp,omitempty" json:"s_corp,omitempty"`

	// WageAdjustment shifts total W-2 wages by a signed decimal amount,
	// e.g. modeling a raise or a deferral change.
	WageAdjustment string `yaml:"wage_adjustment,omitempty" json:"wage_adjustment,omitempty"`
}

// apply clones the baseline and applies the diff. The baseline is never
// mutated.
func (d *Definition) apply(profile *model.TaxpayerProfile, sources []model.IncomeSource) (*model.TaxpayerProfile, []model.IncomeSource, error) {
	p := *profile
	p.Dependents = append([]model.Dependent(nil), profile.Dependents...)

	out := cloneSources(sources)

	if d.MaximizeRetirement {
		// The engine caps the deferral at the table limit; an amount larger
		// than any plausible limit selects the maximum.
		p.RetirementContribution = "999999999"
	} else if d.RetirementContribution != "" {
		p.RetirementContribution = d.RetirementContribution
	}

	if d.WageAdjustment != "" {
		delta, err := decimal.NewFromString(d.WageAdjustment)
		if err != nil {
			return nil, nil, eris.Wrapf(model.ErrValidation, "scenario %s: wage adjustment is not a decimal", d.Name)
		}
		adjusted, err := adjustWages(out, delta)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "scenario %s", d.Name)
		}
		out = adjusted
	}

	if d.SCorp != nil {
		converted, err := electSCorp(out, d.SCorp)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "scenario %s", d.Name)
		}
		out = converted
	}

	return &p, out, nil
}

func cloneSources(sources []model.IncomeSource) []model.IncomeSource {
	out := make([]model.IncomeSource, len(sources))
	for i, s := range sources {
		out[i] = s
		switch {
		case s.Wage != nil:
			w := *s.Wage
			out[i].Wage = &w
		case s.ScheduleC != nil:
			b := *s.ScheduleC
			out[i].ScheduleC = &b
		case s.K1 != nil:
			k := *s.K1
			out[i].K1 = &k
		case s.CapitalGain != nil:
			c := *s.CapitalGain
			out[i].CapitalGain = &c
		case s.Rental != nil:
			r := *s.Rental
			out[i].Rental = &r
		}
	}
	return out
}

// adjustWages applies the delta to the first wage source, or appends a new
// one for a positive delta when none exists. Wages never go negative.
func adjustWages(sources []model.IncomeSource, delta decimal.Decimal) ([]model.IncomeSource, error) {
	for i := range sources {
		if sources[i].Kind == model.IncomeWage {
			sources[i].Wage.Wages = money.NonNegative(sources[i].Wage.Wages.Add(delta))
			sources[i].Wage.MedicareWages = decimal.Zero
			return sources, nil
		}
	}
	if delta.Sign() <= 0 {
		return nil, eris.Wrap(model.ErrValidation, "no wage income to reduce")
	}
	return append(sources, model.NewWageSource(model.WageIncome{
		Employer: "additional wages",
		Wages:    delta,
	})), nil
}

// electSCorp rewrites the named Schedule C business into a salary wage
// source plus a K-1 distribution. Salary is capped at the business's net
// profit; the distribution carries the remaining profit as QBI and owes no
// SE tax.
func electSCorp(sources []model.IncomeSource, opt *SCorpOption) ([]model.IncomeSource, error) {
	for i := range sources {
		if sources[i].Kind != model.IncomeScheduleC || sources[i].ScheduleC.Name != opt.BusinessName {
			continue
		}
		b := sources[i].ScheduleC
		profit := b.NetProfit()
		if profit.Sign() <= 0 {
			return nil, eris.Wrapf(model.ErrValidation, "business %s has no profit to split", opt.BusinessName)
		}
		if opt.ReasonableSalary.Sign() <= 0 {
			return nil, eris.Wrap(model.ErrValidation, "reasonable salary must be positive")
		}
		salary := money.Min(opt.ReasonableSalary, profit)
		distribution := profit.Sub(salary)

		out := make([]model.IncomeSource, 0, len(sources)+1)
		out = append(out, sources[:i]...)
		out = append(out,
			model.NewWageSource(model.WageIncome{
				Employer: b.Name + " (S-corp)",
				Wages:    salary,
			}),
			model.NewK1Source(model.PartnershipK1{
				EntityName:     b.Name,
				OrdinaryIncome: distribution,
				QBI:            distribution,
			}),
		)
		out = append(out, sources[i+1:]...)
		return out, nil
	}
	return nil, eris.Wrapf(model.ErrValidation, "no Schedule C business named %s", opt.BusinessName)
}
