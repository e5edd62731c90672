package scenario

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tax-engine/internal/engine"
	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/money"
)

// EntityStructure names a business structure under comparison.
type EntityStructure string

const (
	EntitySoleProprietor EntityStructure = "sole_proprietor"
	EntitySCorp          EntityStructure = "s_corp"
	EntityPartnership    EntityStructure = "partnership"
)

// EntityResult is one structure's outcome.
type EntityResult struct {
	Structure      EntityStructure           `json:"structure"`
	Result         *engine.CalculationResult `json:"result"`
	EmploymentTax  decimal.Decimal           `json:"employment_tax"` // SE tax or payroll-equivalent on salary
	TotalTax       decimal.Decimal           `json:"total_tax"`
	DeltaVsCurrent decimal.Decimal           `json:"delta_vs_current"`
}

// EntityComparison holds the three structures side by side, ordered
// sole proprietor, S-corp, partnership.
type EntityComparison struct {
	BusinessName string         `json:"business_name"`
	Results      []EntityResult `json:"results"`
}

// CompareEntities reruns the pipeline with the named Schedule C business
// restructured as a sole proprietorship (as filed), an S-corp with the
// given reasonable salary, and a partnership. The S-corp salary owes
// payroll tax for both the employer and employee shares, which the owner
// bears economically, while the distribution escapes employment tax. The
// partnership treats the full profit as self-employment earnings, matching
// a general partner's K-1.
func (r *Runner) CompareEntities(profile *model.TaxpayerProfile, sources []model.IncomeSource, businessName string, reasonableSalary decimal.Decimal) (*EntityComparison, error) {
	business := findBusiness(sources, businessName)
	if business == nil {
		return nil, eris.Wrapf(model.ErrValidation, "scenario: no Schedule C business named %s", businessName)
	}

	// Sole proprietor is the baseline as filed.
	sole, err := r.engine.Calculate(profile, sources)
	if err != nil {
		return nil, eris.Wrap(err, "scenario: sole proprietor pass")
	}

	// S-corp: salary as wages plus distribution K-1.
	def := Definition{Name: "s-corp", SCorp: &SCorpOption{BusinessName: businessName, ReasonableSalary: reasonableSalary}}
	sp, sSources, err := def.apply(profile, sources)
	if err != nil {
		return nil, err
	}
	scorp, err := r.engine.Calculate(sp, sSources)
	if err != nil {
		return nil, eris.Wrap(err, "scenario: s-corp pass")
	}
	// The engine sees S-corp salary as ordinary wages; add back the
	// combined FICA the owner funds through the corporation.
	salary := money.Min(reasonableSalary, business.NetProfit())
	payroll, err := r.payrollTax(profile.TaxYear, salary)
	if err != nil {
		return nil, err
	}
	scorpTotal := scorp.TotalTax.Add(payroll)

	// Partnership: the full profit arrives as general-partner SE earnings.
	pSources := cloneSources(sources)
	for i := range pSources {
		if pSources[i].Kind == model.IncomeScheduleC && pSources[i].ScheduleC.Name == businessName {
			b := pSources[i].ScheduleC
			pSources[i] = model.NewK1Source(model.PartnershipK1{
				EntityName:             b.Name,
				OrdinaryIncome:         b.NetProfit(),
				QBI:                    b.QBI,
				SelfEmploymentEarnings: b.NetProfit(),
			})
		}
	}
	pp := *profile
	partnership, err := r.engine.Calculate(&pp, pSources)
	if err != nil {
		return nil, eris.Wrap(err, "scenario: partnership pass")
	}

	return &EntityComparison{
		BusinessName: businessName,
		Results: []EntityResult{
			{
				Structure:     EntitySoleProprietor,
				Result:        sole,
				EmploymentTax: sole.SelfEmployment.Total,
				TotalTax:      sole.TotalTax,
			},
			{
				Structure:      EntitySCorp,
				Result:         scorp,
				EmploymentTax:  payroll,
				TotalTax:       scorpTotal,
				DeltaVsCurrent: scorpTotal.Sub(sole.TotalTax),
			},
			{
				Structure:      EntityPartnership,
				Result:         partnership,
				EmploymentTax:  partnership.SelfEmployment.Total,
				TotalTax:       partnership.TotalTax,
				DeltaVsCurrent: partnership.TotalTax.Sub(sole.TotalTax),
			},
		},
	}, nil
}

// payrollTax is the combined employer and employee FICA on a salary:
// 12.4% Social Security up to the wage base plus 2.9% Medicare throughout.
func (r *Runner) payrollTax(taxYear int, salary decimal.Decimal) (decimal.Decimal, error) {
	table, err := r.engine.Registry().ForYear(taxYear)
	if err != nil {
		return decimal.Zero, err
	}
	p := table.SelfEmployment

	ss, err := money.ApplyRate(money.Min(salary, p.SocialSecurityWageBase), p.SocialSecurityRate)
	if err != nil {
		return decimal.Zero, err
	}
	medicare, err := money.ApplyRate(salary, p.MedicareRate)
	if err != nil {
		return decimal.Zero, err
	}
	return ss.Add(medicare), nil
}

func findBusiness(sources []model.IncomeSource, name string) *model.ScheduleCBusiness {
	for i := range sources {
		if sources[i].Kind == model.IncomeScheduleC && sources[i].ScheduleC.Name == name {
			return sources[i].ScheduleC
		}
	}
	return nil
}
