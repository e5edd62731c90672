package scenario

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tax-engine/internal/engine"
	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/money"
)

// Comparison is the outcome of one scenario against the baseline. A failed
// recomputation carries its error string and a nil result; other scenarios
// are unaffected.
type Comparison struct {
	Name          string                    `json:"name"`
	Result        *engine.CalculationResult `json:"result,omitempty"`
	TotalTax      decimal.Decimal           `json:"total_tax"`
	Delta         decimal.Decimal           `json:"delta"` // scenario total tax minus baseline
	EffectiveRate decimal.Decimal           `json:"effective_rate"`
	Error         string                    `json:"error,omitempty"`
}

// ComparisonSet is the baseline result plus every scenario, ordered by
// definition order regardless of completion order.
type ComparisonSet struct {
	Baseline  *engine.CalculationResult `json:"baseline"`
	Scenarios []Comparison              `json:"scenarios"`
}

// Runner evaluates scenarios against an engine.
type Runner struct {
	engine *engine.Engine
}

// NewRunner creates a scenario runner.
func NewRunner(e *engine.Engine) *Runner {
	return &Runner{engine: e}
}

// Compare computes the baseline once, then recomputes each scenario
// concurrently. The result list is deterministically ordered by definition
// order; a scenario failure is reported in its slot, never propagated.
func (r *Runner) Compare(ctx context.Context, profile *model.TaxpayerProfile, sources []model.IncomeSource, defs []Definition) (*ComparisonSet, error) {
	baseline, err := r.engine.Calculate(profile, sources)
	if err != nil {
		return nil, err
	}

	set := &ComparisonSet{
		Baseline:  baseline,
		Scenarios: make([]Comparison, len(defs)),
	}

	g, _ := errgroup.WithContext(ctx)
	for i := range defs {
		g.Go(func() error {
			set.Scenarios[i] = r.runOne(&defs[i], profile, sources, baseline)
			return nil
		})
	}
	// Scenario errors are captured per slot; Wait only joins the goroutines.
	_ = g.Wait()

	return set, nil
}

func (r *Runner) runOne(def *Definition, profile *model.TaxpayerProfile, sources []model.IncomeSource, baseline *engine.CalculationResult) Comparison {
	cmp := Comparison{Name: def.Name}

	p, srcs, err := def.apply(profile, sources)
	if err != nil {
		cmp.Error = err.Error()
		return cmp
	}

	res, err := r.engine.Calculate(p, srcs)
	if err != nil {
		cmp.Error = err.Error()
		return cmp
	}

	cmp.Result = res
	cmp.TotalTax = res.TotalTax
	cmp.EffectiveRate = res.EffectiveRate

	// An S-corp election swaps SE tax for payroll tax on the salary. The
	// engine sees the salary as ordinary wages, so add back the combined
	// FICA the owner funds through the corporation, as the entity
	// comparison does.
	if def.SCorp != nil {
		business := findBusiness(sources, def.SCorp.BusinessName)
		salary := money.Min(def.SCorp.ReasonableSalary, business.NetProfit())
		payroll, err := r.payrollTax(p.TaxYear, salary)
		if err != nil {
			cmp.Error = err.Error()
			return cmp
		}
		cmp.TotalTax = cmp.TotalTax.Add(payroll)
		if res.GrossIncome.Sign() > 0 {
			rate, derr := money.Div(cmp.TotalTax, res.GrossIncome)
			if derr != nil {
				cmp.Error = derr.Error()
				return cmp
			}
			cmp.EffectiveRate = rate.Round(4)
		}
	}

	cmp.Delta = cmp.TotalTax.Sub(baseline.TotalTax)
	return cmp
}
