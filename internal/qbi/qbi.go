// Package qbi computes the §199A qualified business income deduction:
// per-business eligible income under the SSTB phase-out or the W-2
// wage/UBIA limitation, combined across businesses, capped at 20% of
// taxable income less net capital gain.
package qbi

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/money"
	"github.com/sells-group/tax-engine/internal/taxyear"
)

// Business is one trade or business entering the deduction, already
// classified.
type Business struct {
	Name            string
	QualifiedIncome decimal.Decimal
	W2Wages         decimal.Decimal
	UBIA            decimal.Decimal
	Classification  model.SSTBClassification
}

// BusinessBreakdown is the per-business slice of the deduction.
type BusinessBreakdown struct {
	Name                 string                   `json:"name"`
	QualifiedIncome      decimal.Decimal          `json:"qualified_income"`
	Classification       model.SSTBClassification `json:"classification"`
	ApplicablePercent    decimal.Decimal          `json:"applicable_percent"` // share of QBI eligible after SSTB phase-out
	EligibleQBI          decimal.Decimal          `json:"eligible_qbi"`
	Component            decimal.Decimal          `json:"component"` // deductible amount before the income cap
	WageLimitApplied     bool                     `json:"wage_limit_applied"`
}

// Breakdown is the full deduction result.
type Breakdown struct {
	Businesses       []BusinessBreakdown `json:"businesses"`
	CombinedQBI      decimal.Decimal     `json:"combined_qbi"`
	PhaseInRatio     decimal.Decimal     `json:"phase_in_ratio"`
	ComponentTotal   decimal.Decimal     `json:"component_total"`
	IncomeCap        decimal.Decimal     `json:"income_cap"` // 20% × (taxable − net capital gain)
	Deduction        decimal.Decimal     `json:"deduction"`
	RequiresManualReview bool            `json:"requires_manual_review"`
}

// Compute produces the deduction for a set of classified businesses at the
// given taxable income and net capital gain.
func Compute(table *taxyear.Table, fs model.FilingStatus, businesses []Business, taxableIncome, netCapitalGain decimal.Decimal) (*Breakdown, error) {
	threshold, band, err := table.QBIThresholdFor(fs)
	if err != nil {
		return nil, err
	}

	ratio, err := PhaseInRatio(taxableIncome, threshold, band)
	if err != nil {
		return nil, err
	}

	bd := &Breakdown{PhaseInRatio: ratio}
	rate := table.QBI.DeductionRate

	for _, b := range businesses {
		// Losses do not net against other businesses' income in this pass.
		qbi := money.NonNegative(b.QualifiedIncome)
		bd.CombinedQBI = bd.CombinedQBI.Add(qbi)

		item := BusinessBreakdown{
			Name:            b.Name,
			QualifiedIncome: qbi,
			Classification:  b.Classification,
		}

		if b.Classification.IsSSTB {
			// SSTB: the eligible share ramps from 1 to 0 across the band.
			item.ApplicablePercent = money.One.Sub(ratio)
			item.EligibleQBI = money.RoundMoney(qbi.Mul(item.ApplicablePercent))
			item.Component, err = money.ApplyRate(item.EligibleQBI, rate)
			if err != nil {
				return nil, eris.Wrapf(err, "qbi: SSTB component for %s", b.Name)
			}
		} else {
			item.ApplicablePercent = money.One
			item.EligibleQBI = qbi
			item.Component, err = nonSSTBComponent(qbi, b.W2Wages, b.UBIA, rate, ratio)
			if err != nil {
				return nil, eris.Wrapf(err, "qbi: component for %s", b.Name)
			}
			tentative, rerr := money.ApplyRate(qbi, rate)
			if rerr != nil {
				return nil, rerr
			}
			item.WageLimitApplied = item.Component.LessThan(tentative)
		}

		if b.Classification.RequiresManualReview {
			bd.RequiresManualReview = true
		}

		bd.Businesses = append(bd.Businesses, item)
		bd.ComponentTotal = bd.ComponentTotal.Add(item.Component)
	}

	capBase := money.NonNegative(taxableIncome.Sub(money.NonNegative(netCapitalGain)))
	bd.IncomeCap, err = money.ApplyRate(capBase, rate)
	if err != nil {
		return nil, err
	}

	bd.Deduction = money.Min(bd.ComponentTotal, bd.IncomeCap)
	return bd, nil
}

// PhaseInRatio is how far taxable income sits within the phase-out band,
// clamped to [0, 1] and rounded up to the percent. Exactly at the threshold
// the ratio is 0; at threshold plus band width it is 1.
func PhaseInRatio(taxableIncome, threshold, band decimal.Decimal) (decimal.Decimal, error) {
	if band.Sign() <= 0 {
		return decimal.Zero, eris.Wrap(money.ErrInvalidOperand, "qbi: phase-out band must be positive")
	}
	raw, err := money.Div(taxableIncome.Sub(threshold), band)
	if err != nil {
		return decimal.Zero, err
	}
	// Round up to two places: the phase-in is applied at whole-percent
	// granularity, resolving partial percents against the taxpayer.
	return money.Clamp01(raw.RoundUp(2)), nil
}

// nonSSTBComponent applies the wage/UBIA limitation of §199A(b)(2)(B):
// below the threshold the full 20% component stands; across the band the
// excess over the wage limit phases out linearly; above the band the limit
// binds outright.
func nonSSTBComponent(qbi, w2Wages, ubia, rate, ratio decimal.Decimal) (decimal.Decimal, error) {
	tentative, err := money.ApplyRate(qbi, rate)
	if err != nil {
		return decimal.Zero, err
	}
	if ratio.IsZero() {
		return tentative, nil
	}

	halfWages, err := money.ApplyRate(w2Wages, decimal.RequireFromString("0.50"))
	if err != nil {
		return decimal.Zero, err
	}
	quarterWagesPlusUBIA, err := money.ApplyRate(w2Wages, decimal.RequireFromString("0.25"))
	if err != nil {
		return decimal.Zero, err
	}
	ubiaShare, err := money.ApplyRate(ubia, decimal.RequireFromString("0.025"))
	if err != nil {
		return decimal.Zero, err
	}
	wageLimit := money.Max(halfWages, quarterWagesPlusUBIA.Add(ubiaShare))

	if tentative.LessThanOrEqual(wageLimit) {
		return tentative, nil
	}

	reduction := money.RoundMoney(tentative.Sub(wageLimit).Mul(ratio))
	return money.NonNegative(tentative.Sub(reduction)), nil
}
