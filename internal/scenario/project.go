package scenario

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tax-engine/internal/engine"
	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/money"
)

// Assumptions are the compounding rates for a projection.
type Assumptions struct {
	WageGrowth decimal.Decimal `yaml:"wage_growth" json:"wage_growth"`
	Inflation  decimal.Decimal `yaml:"inflation" json:"inflation"`
}

// ProjectionYear is one entry of a projection: the year's grown inputs run
// through the full pipeline. Index 0 is the baseline year; entry i is
// derived purely from entry i−1's inputs and the assumptions, never from
// mutable shared state.
type ProjectionYear struct {
	Index        int                       `json:"index"` // years from baseline
	Year         int                       `json:"year"`
	Result       *engine.CalculationResult `json:"result"`
	RealTotalTax decimal.Decimal           `json:"real_total_tax"` // deflated to baseline-year dollars
}

// Project runs the pipeline for the baseline year plus `years` future
// years, compounding wage growth on incomes. Future-year dollar thresholds
// (brackets, deductions, wage base, QBI bands) are indexed by the
// compounded inflation factor from the baseline-year table, and the real
// (inflation-deflated) tax is reported alongside each nominal result.
func (r *Runner) Project(profile *model.TaxpayerProfile, sources []model.IncomeSource, years int, a Assumptions) ([]ProjectionYear, error) {
	if years < 0 {
		return nil, eris.Wrap(model.ErrValidation, "scenario: projection years must be non-negative")
	}
	if a.WageGrowth.LessThanOrEqual(decimal.NewFromInt(-1)) || a.Inflation.LessThanOrEqual(decimal.NewFromInt(-1)) {
		return nil, eris.Wrap(model.ErrValidation, "scenario: growth rates must exceed -100%")
	}

	baseTable, err := r.engine.Registry().ForYear(profile.TaxYear)
	if err != nil {
		return nil, err
	}

	out := make([]ProjectionYear, 0, years+1)
	current := cloneSources(sources)
	growthFactor := money.One.Add(a.WageGrowth)
	deflator := money.One

	for i := 0; i <= years; i++ {
		table := baseTable
		if i > 0 {
			current = grow(current, growthFactor)
			deflator = deflator.Mul(money.One.Add(a.Inflation))
			table = baseTable.Indexed(deflator)
		}

		res, err := r.engine.CalculateWithTable(table, profile, current)
		if err != nil {
			return nil, eris.Wrapf(err, "scenario: projection year %d", i)
		}

		real, err := money.Div(res.TotalTax, deflator)
		if err != nil {
			return nil, err
		}

		out = append(out, ProjectionYear{
			Index:        i,
			Year:         profile.TaxYear + i,
			Result:       res,
			RealTotalTax: money.RoundMoney(real),
		})
	}
	return out, nil
}

// grow returns a fresh copy of the sources with every income figure scaled
// by the factor. The input slice is left untouched.
func grow(sources []model.IncomeSource, factor decimal.Decimal) []model.IncomeSource {
	out := cloneSources(sources)
	for i := range out {
		switch s := &out[i]; s.Kind {
		case model.IncomeWage:
			s.Wage.Wages = money.RoundMoney(s.Wage.Wages.Mul(factor))
			s.Wage.MedicareWages = money.RoundMoney(s.Wage.MedicareWages.Mul(factor))
			s.Wage.FederalWithholding = money.RoundMoney(s.Wage.FederalWithholding.Mul(factor))
		case model.IncomeScheduleC:
			s.ScheduleC.GrossReceipts = money.RoundMoney(s.ScheduleC.GrossReceipts.Mul(factor))
			s.ScheduleC.Expenses = money.RoundMoney(s.ScheduleC.Expenses.Mul(factor))
			s.ScheduleC.QBI = money.RoundMoney(s.ScheduleC.QBI.Mul(factor))
		case model.IncomeK1:
			s.K1.OrdinaryIncome = money.RoundMoney(s.K1.OrdinaryIncome.Mul(factor))
			s.K1.GuaranteedPayments = money.RoundMoney(s.K1.GuaranteedPayments.Mul(factor))
			s.K1.QBI = money.RoundMoney(s.K1.QBI.Mul(factor))
			s.K1.SelfEmploymentEarnings = money.RoundMoney(s.K1.SelfEmploymentEarnings.Mul(factor))
		case model.IncomeRental:
			s.Rental.RentsReceived = money.RoundMoney(s.Rental.RentsReceived.Mul(factor))
			s.Rental.Expenses = money.RoundMoney(s.Rental.Expenses.Mul(factor))
			s.Rental.Depreciation = money.RoundMoney(s.Rental.Depreciation.Mul(factor))
		case model.IncomeCapitalGain:
			// One-off dispositions do not recur; they stay in year 0 only.
			out[i] = model.IncomeSource{}
		}
	}
	return compact(out)
}

func compact(sources []model.IncomeSource) []model.IncomeSource {
	out := sources[:0]
	for _, s := range sources {
		if s.Kind != "" {
			out = append(out, s)
		}
	}
	return out
}
