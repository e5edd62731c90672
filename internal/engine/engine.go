// Package engine composes the liability calculator, the SSTB classifier,
// and the QBI engine into one deterministic calculation pass over a
// taxpayer profile and its income sources. The pass is a pure function of
// its inputs with no I/O or clock reads, so identical inputs produce
// byte-identical results.
package engine

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tax-engine/internal/classifier"
	"github.com/sells-group/tax-engine/internal/liability"
	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/money"
	"github.com/sells-group/tax-engine/internal/qbi"
	"github.com/sells-group/tax-engine/internal/taxyear"
)

// capitalLossLimit is the annual cap on net capital losses deducted
// against ordinary income.
var capitalLossLimit = decimal.NewFromInt(3000)

// CalculationResult is the full outcome of one pass, exposed as plain data
// for reporting layers. The engine performs no formatting.
type CalculationResult struct {
	TaxYear      int                `json:"tax_year"`
	FilingStatus model.FilingStatus `json:"filing_status"`

	GrossIncome          decimal.Decimal `json:"gross_income"`
	RetirementAdjustment decimal.Decimal `json:"retirement_adjustment"`
	AdjustedGross        decimal.Decimal `json:"adjusted_gross_income"`
	DeductionUsed     decimal.Decimal `json:"deduction_used"`
	ItemizedUsed      bool            `json:"itemized_used"`
	QBIDeduction      decimal.Decimal `json:"qbi_deduction"`
	TaxableIncome     decimal.Decimal `json:"taxable_income"`
	NetCapitalGain    decimal.Decimal `json:"net_capital_gain"`

	OrdinaryTax        decimal.Decimal       `json:"ordinary_tax"`
	SelfEmployment     liability.SETaxResult `json:"self_employment"`
	AdditionalMedicare decimal.Decimal       `json:"additional_medicare"`
	TotalTax           decimal.Decimal       `json:"total_tax"`

	Withholding decimal.Decimal `json:"withholding"`
	BalanceDue  decimal.Decimal `json:"balance_due"`

	EffectiveRate decimal.Decimal `json:"effective_rate"`
	MarginalRate  decimal.Decimal `json:"marginal_rate"`

	QBI *qbi.Breakdown `json:"qbi,omitempty"`

	// RequiresManualReview is set when any business classification landed
	// on the reputation/skill catch-all; the result must be confirmed by a
	// human before being treated as final.
	RequiresManualReview bool `json:"requires_manual_review"`
}

// Engine runs calculation passes against a table registry. It is stateless
// and safe for concurrent use.
type Engine struct {
	registry *taxyear.Registry
}

// New creates an engine over a loaded registry.
func New(registry *taxyear.Registry) *Engine {
	return &Engine{registry: registry}
}

// Registry exposes the engine's parameter tables for callers that need
// year data outside a calculation pass, such as the scenario engine's
// payroll math.
func (e *Engine) Registry() *taxyear.Registry {
	return e.registry
}

// Calculate runs one full pass. Input is validated first; semantic errors
// surface as model.ErrValidation and a missing tax-year table as
// taxyear.ErrMissingConfiguration.
func (e *Engine) Calculate(profile *model.TaxpayerProfile, sources []model.IncomeSource) (*CalculationResult, error) {
	if err := validateInputs(profile, sources); err != nil {
		return nil, err
	}

	table, err := e.registry.ForYear(profile.TaxYear)
	if err != nil {
		return nil, err
	}
	return e.calculate(table, profile, sources)
}

// CalculateWithTable runs one full pass against an explicit parameter
// table instead of the registry's table for the profile's year. Used by
// projections that index future-year thresholds.
func (e *Engine) CalculateWithTable(table *taxyear.Table, profile *model.TaxpayerProfile, sources []model.IncomeSource) (*CalculationResult, error) {
	if err := validateInputs(profile, sources); err != nil {
		return nil, err
	}
	return e.calculate(table, profile, sources)
}

func validateInputs(profile *model.TaxpayerProfile, sources []model.IncomeSource) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	for i := range sources {
		if err := sources[i].Validate(); err != nil {
			return eris.Wrapf(err, "engine: income source %d", i)
		}
	}
	return nil
}

func (e *Engine) calculate(table *taxyear.Table, profile *model.TaxpayerProfile, sources []model.IncomeSource) (*CalculationResult, error) {
	agg := aggregate(sources)

	seResult, err := liability.SelfEmploymentTax(table.SelfEmployment, agg.seIncome, agg.wages)
	if err != nil {
		return nil, err
	}

	gross := agg.wages.
		Add(agg.businessProfit).
		Add(agg.k1Ordinary).
		Add(agg.rentalNet).
		Add(agg.allowedCapital)

	retirement, err := e.retirementAdjustment(table, profile)
	if err != nil {
		return nil, err
	}

	adjustedGross := gross.Sub(seResult.HalfDeduction).Sub(retirement)

	deduction, itemized, err := e.deduction(table, profile)
	if err != nil {
		return nil, err
	}

	// Taxable income before the QBI deduction drives both the SSTB
	// de-minimis test and the phase-in ratio.
	preQBITaxable := money.NonNegative(adjustedGross.Sub(deduction))

	breakdown, err := e.computeQBI(table, profile.FilingStatus, agg, preQBITaxable)
	if err != nil {
		return nil, err
	}

	qbiDeduction := decimal.Zero
	if breakdown != nil {
		qbiDeduction = breakdown.Deduction
	}
	taxable := money.NonNegative(preQBITaxable.Sub(qbiDeduction))

	brackets, err := table.BracketsFor(profile.FilingStatus)
	if err != nil {
		return nil, err
	}
	ordinaryTax, err := liability.OrdinaryTax(brackets, taxable)
	if err != nil {
		return nil, err
	}

	medicareThreshold, err := table.MedicareThresholdFor(profile.FilingStatus)
	if err != nil {
		return nil, err
	}
	additionalMedicare, err := liability.AdditionalMedicareTax(
		table.AdditionalMedicare, medicareThreshold, agg.medicareWages, seResult.NetEarnings)
	if err != nil {
		return nil, err
	}

	total := ordinaryTax.Add(seResult.Total).Add(additionalMedicare)

	result := &CalculationResult{
		TaxYear:            profile.TaxYear,
		FilingStatus:       profile.FilingStatus,
		GrossIncome:          money.RoundMoney(gross),
		RetirementAdjustment: retirement,
		AdjustedGross:      money.RoundMoney(adjustedGross),
		DeductionUsed:      deduction,
		ItemizedUsed:       itemized,
		QBIDeduction:       qbiDeduction,
		TaxableIncome:      taxable,
		NetCapitalGain:     agg.netCapitalGain,
		OrdinaryTax:        ordinaryTax,
		SelfEmployment:     seResult,
		AdditionalMedicare: additionalMedicare,
		TotalTax:           money.RoundMoney(total),
		Withholding:        agg.withholding,
		BalanceDue:         money.RoundMoney(total.Sub(agg.withholding)),
		MarginalRate:       liability.MarginalRate(brackets, taxable),
		QBI:                breakdown,
	}
	if breakdown != nil {
		result.RequiresManualReview = breakdown.RequiresManualReview
	}

	if gross.Sign() > 0 {
		rate, derr := money.Div(total, gross)
		if derr != nil {
			return nil, derr
		}
		result.EffectiveRate = rate.Round(4)
	}

	return result, nil
}

// aggregation is the flattened view of the income source union for one pass.
type aggregation struct {
	wages          decimal.Decimal
	medicareWages  decimal.Decimal
	withholding    decimal.Decimal
	businessProfit decimal.Decimal
	k1Ordinary     decimal.Decimal
	seIncome       decimal.Decimal
	rentalNet      decimal.Decimal
	netCapitalGain decimal.Decimal // net long-term gain, floored at zero, for the QBI cap
	allowedCapital decimal.Decimal // net gain/loss after the annual loss limit
	businesses     []*model.ScheduleCBusiness
	k1s            []*model.PartnershipK1
}

func aggregate(sources []model.IncomeSource) aggregation {
	var agg aggregation
	netCapital := decimal.Zero
	netLongTerm := decimal.Zero

	for i := range sources {
		switch s := &sources[i]; s.Kind {
		case model.IncomeWage:
			agg.wages = agg.wages.Add(s.Wage.Wages)
			medicare := s.Wage.MedicareWages
			if medicare.IsZero() {
				medicare = s.Wage.Wages
			}
			agg.medicareWages = agg.medicareWages.Add(medicare)
			agg.withholding = agg.withholding.Add(s.Wage.FederalWithholding)
		case model.IncomeScheduleC:
			profit := s.ScheduleC.NetProfit()
			agg.businessProfit = agg.businessProfit.Add(profit)
			agg.seIncome = agg.seIncome.Add(profit)
			agg.businesses = append(agg.businesses, s.ScheduleC)
		case model.IncomeK1:
			agg.k1Ordinary = agg.k1Ordinary.Add(s.K1.OrdinaryIncome).Add(s.K1.GuaranteedPayments)
			agg.seIncome = agg.seIncome.Add(s.K1.SelfEmploymentEarnings)
			agg.k1s = append(agg.k1s, s.K1)
		case model.IncomeCapitalGain:
			gain := s.CapitalGain.Gain()
			netCapital = netCapital.Add(gain)
			if s.CapitalGain.LongTerm() {
				netLongTerm = netLongTerm.Add(gain)
			}
		case model.IncomeRental:
			agg.rentalNet = agg.rentalNet.Add(s.Rental.NetIncome())
		}
	}

	agg.netCapitalGain = money.NonNegative(money.Min(netCapital, netLongTerm))
	agg.allowedCapital = money.Max(netCapital, capitalLossLimit.Neg())
	return agg
}

// retirementAdjustment caps the profile's pre-tax deferral at the year's
// elective limit, plus catch-up from age 50.
func (e *Engine) retirementAdjustment(table *taxyear.Table, profile *model.TaxpayerProfile) (decimal.Decimal, error) {
	if profile.RetirementContribution == "" {
		return decimal.Zero, nil
	}
	contribution, err := decimal.NewFromString(profile.RetirementContribution)
	if err != nil {
		return decimal.Zero, eris.Wrap(model.ErrValidation, "engine: retirement contribution is not a decimal")
	}
	if contribution.IsNegative() {
		return decimal.Zero, eris.Wrap(model.ErrValidation, "engine: retirement contribution is negative")
	}
	limit := table.Contributions.Elective401k
	if profile.Age() >= 50 {
		limit = limit.Add(table.Contributions.CatchUp401k)
	}
	return money.Min(contribution, limit), nil
}

// deduction picks the larger of the standard deduction and any itemized
// amount on the profile.
func (e *Engine) deduction(table *taxyear.Table, profile *model.TaxpayerProfile) (decimal.Decimal, bool, error) {
	standard, err := table.StandardDeductionFor(profile.FilingStatus)
	if err != nil {
		return decimal.Zero, false, err
	}
	if profile.ItemizedDeduction == "" {
		return standard, false, nil
	}
	itemized, err := decimal.NewFromString(profile.ItemizedDeduction)
	if err != nil {
		return decimal.Zero, false, eris.Wrap(model.ErrValidation, "engine: itemized deduction is not a decimal")
	}
	if itemized.GreaterThan(standard) {
		return itemized, true, nil
	}
	return standard, false, nil
}

// computeQBI classifies each pass-through business and runs the deduction
// engine. Returns nil when the profile has no QBI-bearing income.
func (e *Engine) computeQBI(table *taxyear.Table, fs model.FilingStatus, agg aggregation, preQBITaxable decimal.Decimal) (*qbi.Breakdown, error) {
	if len(agg.businesses) == 0 && len(agg.k1s) == 0 {
		return nil, nil
	}

	cls := classifier.New(table)
	var businesses []qbi.Business

	for _, b := range agg.businesses {
		verdict, err := cls.Classify(b, preQBITaxable)
		if err != nil {
			return nil, err
		}
		businesses = append(businesses, qbi.Business{
			Name:            b.Name,
			QualifiedIncome: b.QBI,
			W2Wages:         b.W2WagesPaid,
			UBIA:            b.UBIA,
			Classification:  verdict,
		})
	}

	for _, k := range agg.k1s {
		// K-1 entities carry no industry code; classification falls to the
		// keyword scan over the entity name, then the non-SSTB default.
		synthetic := &model.ScheduleCBusiness{Name: k.EntityName}
		verdict, err := cls.Classify(synthetic, preQBITaxable)
		if err != nil {
			return nil, err
		}
		businesses = append(businesses, qbi.Business{
			Name:            k.EntityName,
			QualifiedIncome: k.QBI,
			Classification:  verdict,
		})
	}

	netCapGain := agg.netCapitalGain
	return qbi.Compute(table, fs, businesses, preQBITaxable, netCapGain)
}
