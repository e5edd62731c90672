package scenario

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tax-engine/internal/engine"
	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/taxyear"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := taxyear.NewRegistry()
	require.NoError(t, err)
	return NewRunner(engine.New(r))
}

func wageProfile(wages int64) (*model.TaxpayerProfile, []model.IncomeSource) {
	profile := &model.TaxpayerProfile{TaxYear: 2025, FilingStatus: model.FilingSingle}
	sources := []model.IncomeSource{
		model.NewWageSource(model.WageIncome{Employer: "Acme", Wages: decimal.NewFromInt(wages)}),
	}
	return profile, sources
}

func TestCompare_OrderedAndIndependent(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(120000)

	defs := []Definition{
		{Name: "max retirement", MaximizeRetirement: true},
		{Name: "broken", WageAdjustment: "not-a-number"},
		{Name: "raise", WageAdjustment: "20000"},
	}

	set, err := r.Compare(context.Background(), profile, sources, defs)
	require.NoError(t, err)
	require.NotNil(t, set.Baseline)
	require.Len(t, set.Scenarios, 3)

	// Results keep definition order regardless of completion order.
	assert.Equal(t, "max retirement", set.Scenarios[0].Name)
	assert.Equal(t, "broken", set.Scenarios[1].Name)
	assert.Equal(t, "raise", set.Scenarios[2].Name)

	// Retirement deferral lowers the bill; the delta is negative.
	require.Empty(t, set.Scenarios[0].Error)
	assert.True(t, set.Scenarios[0].Delta.IsNegative(), "delta %s", set.Scenarios[0].Delta)

	// A failed scenario reports its error in place without affecting others.
	assert.NotEmpty(t, set.Scenarios[1].Error)
	assert.Nil(t, set.Scenarios[1].Result)

	require.Empty(t, set.Scenarios[2].Error)
	assert.True(t, set.Scenarios[2].Delta.IsPositive(), "a raise increases tax")
}

func TestCompare_BaselineNotMutated(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(120000)

	defs := []Definition{
		{Name: "raise", WageAdjustment: "50000"},
		{Name: "max retirement", MaximizeRetirement: true},
	}

	_, err := r.Compare(context.Background(), profile, sources, defs)
	require.NoError(t, err)

	assert.True(t, sources[0].Wage.Wages.Equal(decimal.NewFromInt(120000)), "baseline sources must not change")
	assert.Empty(t, profile.RetirementContribution)
}

func TestCompare_Deterministic(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(180000)
	defs := []Definition{
		{Name: "a", WageAdjustment: "10000"},
		{Name: "b", WageAdjustment: "-10000"},
		{Name: "c", MaximizeRetirement: true},
	}

	first, err := r.Compare(context.Background(), profile, sources, defs)
	require.NoError(t, err)
	second, err := r.Compare(context.Background(), profile, sources, defs)
	require.NoError(t, err)

	aj, err := json.Marshal(first)
	require.NoError(t, err)
	bj, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, aj, bj)
}

func TestDefinition_MaxRetirementCapsAtLimit(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(150000)

	set, err := r.Compare(context.Background(), profile, sources,
		[]Definition{{Name: "max", MaximizeRetirement: true}})
	require.NoError(t, err)

	res := set.Scenarios[0].Result
	require.NotNil(t, res)
	// 2025 elective limit, no catch-up without a birth date.
	assert.True(t, res.RetirementAdjustment.Equal(decimal.NewFromInt(23500)), "adjustment %s", res.RetirementAdjustment)
}

func TestSCorpElection_SplitsProfit(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile := &model.TaxpayerProfile{TaxYear: 2025, FilingStatus: model.FilingSingle}
	sources := []model.IncomeSource{
		model.NewScheduleCSource(model.ScheduleCBusiness{
			Name:          "Hilltop Landscaping",
			GrossReceipts: decimal.NewFromInt(260000),
			Expenses:      decimal.NewFromInt(60000),
			QBI:           decimal.NewFromInt(180000),
		}),
	}

	def := Definition{
		Name:  "s-corp",
		SCorp: &SCorpOption{BusinessName: "Hilltop Landscaping", ReasonableSalary: decimal.NewFromInt(80000)},
	}
	set, err := r.Compare(context.Background(), profile, sources, []Definition{def})
	require.NoError(t, err)

	res := set.Scenarios[0].Result
	require.NotNil(t, res, set.Scenarios[0].Error)
	// Salary replaces SE income: no SE tax inside the engine pass, wages of
	// 80k and a 120k distribution.
	assert.True(t, res.SelfEmployment.Total.IsZero(), "se tax %s", res.SelfEmployment.Total)
	assert.True(t, res.GrossIncome.Equal(decimal.NewFromInt(200000)), "gross %s", res.GrossIncome)
}

func TestCompare_WageAdjustmentAppendsWhenNoWageSource(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile := &model.TaxpayerProfile{TaxYear: 2025, FilingStatus: model.FilingSingle}
	sources := []model.IncomeSource{
		model.NewScheduleCSource(model.ScheduleCBusiness{
			Name:          "Hilltop Landscaping",
			GrossReceipts: decimal.NewFromInt(80000),
			Expenses:      decimal.NewFromInt(20000),
		}),
	}

	defs := []Definition{
		{Name: "new W-2 job", WageAdjustment: "50000"},
		{Name: "pay cut", WageAdjustment: "-10000"},
	}
	set, err := r.Compare(context.Background(), profile, sources, defs)
	require.NoError(t, err)

	// A positive adjustment with no wage source appends one.
	raise := set.Scenarios[0]
	require.NotNil(t, raise.Result, raise.Error)
	assert.True(t, raise.Result.GrossIncome.Equal(decimal.NewFromInt(110000)),
		"gross %s", raise.Result.GrossIncome)

	// A negative adjustment has nothing to reduce.
	assert.Contains(t, set.Scenarios[1].Error, "no wage income to reduce")
}

func TestCompare_SCorpIncludesPayrollTax(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile := &model.TaxpayerProfile{TaxYear: 2025, FilingStatus: model.FilingSingle}
	sources := []model.IncomeSource{
		model.NewScheduleCSource(model.ScheduleCBusiness{
			Name:          "Hilltop Landscaping",
			GrossReceipts: decimal.NewFromInt(260000),
			Expenses:      decimal.NewFromInt(60000),
			QBI:           decimal.NewFromInt(180000),
		}),
	}
	salary := decimal.NewFromInt(80000)

	def := Definition{
		Name:  "s-corp",
		SCorp: &SCorpOption{BusinessName: "Hilltop Landscaping", ReasonableSalary: salary},
	}
	set, err := r.Compare(context.Background(), profile, sources, []Definition{def})
	require.NoError(t, err)
	sc := set.Scenarios[0]
	require.NotNil(t, sc.Result, sc.Error)

	// The engine pass prices the salary as ordinary wages; the scenario
	// total must carry the FICA on it on top.
	payroll, err := r.payrollTax(2025, salary)
	require.NoError(t, err)
	assert.True(t, sc.TotalTax.Equal(sc.Result.TotalTax.Add(payroll)),
		"total %s, engine %s, payroll %s", sc.TotalTax, sc.Result.TotalTax, payroll)
	assert.True(t, sc.Delta.Equal(sc.TotalTax.Sub(set.Baseline.TotalTax)))

	// The same election through the entity comparison prices identically.
	cmp, err := r.CompareEntities(profile, sources, "Hilltop Landscaping", salary)
	require.NoError(t, err)
	assert.True(t, sc.TotalTax.Equal(cmp.Results[1].TotalTax),
		"scenario %s vs entity %s", sc.TotalTax, cmp.Results[1].TotalTax)
}

func TestCompareEntities(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile := &model.TaxpayerProfile{TaxYear: 2025, FilingStatus: model.FilingSingle}
	sources := []model.IncomeSource{
		model.NewScheduleCSource(model.ScheduleCBusiness{
			Name:          "Hilltop Landscaping",
			GrossReceipts: decimal.NewFromInt(260000),
			Expenses:      decimal.NewFromInt(60000),
			QBI:           decimal.NewFromInt(180000),
		}),
	}

	cmp, err := r.CompareEntities(profile, sources, "Hilltop Landscaping", decimal.NewFromInt(80000))
	require.NoError(t, err)
	require.Len(t, cmp.Results, 3)

	assert.Equal(t, EntitySoleProprietor, cmp.Results[0].Structure)
	assert.Equal(t, EntitySCorp, cmp.Results[1].Structure)
	assert.Equal(t, EntityPartnership, cmp.Results[2].Structure)

	// Sole proprietor owes SE tax on the full 200k profit; the S-corp only
	// funds FICA on the 80k salary, so its employment tax is lower.
	assert.True(t, cmp.Results[1].EmploymentTax.LessThan(cmp.Results[0].EmploymentTax),
		"s-corp payroll %s vs sole SE %s", cmp.Results[1].EmploymentTax, cmp.Results[0].EmploymentTax)

	// The delta reports the net benefit of electing.
	assert.True(t, cmp.Results[1].DeltaVsCurrent.IsNegative(), "delta %s", cmp.Results[1].DeltaVsCurrent)

	// Partnership mirrors sole-proprietor SE exposure on the same profit.
	assert.True(t, cmp.Results[2].EmploymentTax.Equal(cmp.Results[0].EmploymentTax))
}

func TestCompareEntities_UnknownBusiness(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(100000)
	_, err := r.CompareEntities(profile, sources, "Nope LLC", decimal.NewFromInt(50000))
	assert.Error(t, err)
}

func TestProject_CompoundingAndLength(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(100000)

	a := Assumptions{
		WageGrowth: decimal.RequireFromString("0.03"),
		Inflation:  decimal.RequireFromString("0.02"),
	}
	years, err := r.Project(profile, sources, 3, a)
	require.NoError(t, err)
	require.Len(t, years, 4, "N+1 entries: current year plus N")

	assert.Equal(t, 0, years[0].Index)
	assert.Equal(t, 2025, years[0].Year)
	assert.Equal(t, 2028, years[3].Year)

	// Wages compound: year 1 gross is 103,000, year 2 is 106,090.
	assert.True(t, years[1].Result.GrossIncome.Equal(decimal.NewFromInt(103000)), "y1 gross %s", years[1].Result.GrossIncome)
	assert.True(t, years[2].Result.GrossIncome.Equal(decimal.RequireFromString("106090")), "y2 gross %s", years[2].Result.GrossIncome)

	// Nominal tax grows with income; real tax is deflated below nominal.
	assert.True(t, years[1].Result.TotalTax.GreaterThan(years[0].Result.TotalTax))
	assert.True(t, years[1].RealTotalTax.LessThan(years[1].Result.TotalTax))
}

func TestProject_IndexedThresholdsReduceBracketCreep(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(100000)
	growth := decimal.RequireFromString("0.03")

	indexed, err := r.Project(profile, sources, 3, Assumptions{
		WageGrowth: growth, Inflation: decimal.RequireFromString("0.04"),
	})
	require.NoError(t, err)
	held, err := r.Project(profile, sources, 3, Assumptions{
		WageGrowth: growth, Inflation: decimal.Zero,
	})
	require.NoError(t, err)

	// The baseline year runs on the year's own table either way.
	assert.True(t, indexed[0].Result.TotalTax.Equal(held[0].Result.TotalTax))

	// Indexing lifts brackets and deductions with inflation, so the same
	// nominal income owes less in future years than against frozen tables.
	for i := 1; i <= 3; i++ {
		assert.True(t, indexed[i].Result.TotalTax.LessThan(held[i].Result.TotalTax),
			"year %d: indexed %s vs held %s", i, indexed[i].Result.TotalTax, held[i].Result.TotalTax)
	}
}

func TestProject_Deterministic(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(100000)
	a := Assumptions{
		WageGrowth: decimal.RequireFromString("0.03"),
		Inflation:  decimal.RequireFromString("0.02"),
	}

	first, err := r.Project(profile, sources, 5, a)
	require.NoError(t, err)
	second, err := r.Project(profile, sources, 5, a)
	require.NoError(t, err)

	aj, err := json.Marshal(first)
	require.NoError(t, err)
	bj, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, aj, bj)
}

func TestProject_CapitalGainsDoNotRecur(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(100000)
	sources = append(sources, model.NewCapitalGainSource(model.CapitalGainTransaction{
		Description: "one-off sale",
		Proceeds:    decimal.NewFromInt(30000),
		Basis:       decimal.NewFromInt(10000),
	}))

	years, err := r.Project(profile, sources, 1, Assumptions{
		WageGrowth: decimal.Zero, Inflation: decimal.Zero,
	})
	require.NoError(t, err)

	assert.True(t, years[0].Result.GrossIncome.Equal(decimal.NewFromInt(120000)))
	assert.True(t, years[1].Result.GrossIncome.Equal(decimal.NewFromInt(100000)), "disposition must not repeat")
}

func TestProject_NegativeYears(t *testing.T) {
	t.Parallel()

	r := newRunner(t)
	profile, sources := wageProfile(100000)
	_, err := r.Project(profile, sources, -1, Assumptions{})
	assert.Error(t, err)
}
