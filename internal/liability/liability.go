// Package liability computes progressive ordinary income tax,
// self-employment tax, and the additional Medicare surtax from table-driven
// parameters. Every function is pure: same inputs, same output, no I/O.
package liability

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tax-engine/internal/money"
	"github.com/sells-group/tax-engine/internal/taxyear"
)

// OrdinaryTax walks an ascending bracket schedule and sums each bracket's
// contribution up to the taxable income. Income exactly at a bracket
// boundary belongs to the lower bracket's top slice only; zero or negative
// taxable income yields zero tax, not an error.
func OrdinaryTax(brackets []taxyear.Bracket, taxable decimal.Decimal) (decimal.Decimal, error) {
	if len(brackets) == 0 {
		return decimal.Zero, eris.Wrap(taxyear.ErrMissingConfiguration, "liability: empty bracket schedule")
	}
	if taxable.Sign() <= 0 {
		return decimal.Zero, nil
	}

	total := decimal.Zero
	lower := decimal.Zero
	for _, b := range brackets {
		var slice decimal.Decimal
		if b.Upper == nil {
			slice = taxable.Sub(lower)
		} else {
			slice = money.Min(taxable, *b.Upper).Sub(lower)
		}
		if slice.Sign() <= 0 {
			break
		}
		total = total.Add(slice.Mul(b.Rate))
		if b.Upper == nil || taxable.LessThanOrEqual(*b.Upper) {
			break
		}
		lower = *b.Upper
	}
	return money.RoundMoney(total), nil
}

// MarginalRate returns the rate of the bracket the last taxable dollar
// falls in. Zero income sits in the lowest bracket.
func MarginalRate(brackets []taxyear.Bracket, taxable decimal.Decimal) decimal.Decimal {
	if len(brackets) == 0 {
		return decimal.Zero
	}
	for _, b := range brackets {
		if b.Upper == nil || taxable.LessThanOrEqual(*b.Upper) {
			return b.Rate
		}
	}
	return brackets[len(brackets)-1].Rate
}

// SETaxResult breaks down self-employment tax.
type SETaxResult struct {
	NetEarnings    decimal.Decimal `json:"net_earnings"`     // SE income × net-earnings factor
	SocialSecurity decimal.Decimal `json:"social_security"`  // capped at the wage base
	Medicare       decimal.Decimal `json:"medicare"`         // uncapped
	Total          decimal.Decimal `json:"total"`
	HalfDeduction  decimal.Decimal `json:"half_deduction"`   // above-the-line AGI adjustment
}

// SelfEmploymentTax computes SE tax on net self-employment income.
// wagesSubjectToSS reduces the remaining Social Security wage base when the
// taxpayer also has W-2 wages; pass zero when there are none.
func SelfEmploymentTax(p taxyear.SelfEmployment, seIncome, wagesSubjectToSS decimal.Decimal) (SETaxResult, error) {
	if wagesSubjectToSS.IsNegative() {
		return SETaxResult{}, eris.Wrap(money.ErrInvalidOperand, "liability: negative wages")
	}
	if seIncome.Sign() <= 0 {
		return SETaxResult{}, nil
	}

	netEarnings := seIncome.Mul(p.NetEarningsFactor)

	// W-2 wages consume the wage base first.
	remainingBase := money.NonNegative(p.SocialSecurityWageBase.Sub(wagesSubjectToSS))
	ssTaxable := money.Min(netEarnings, remainingBase)

	ss, err := money.ApplyRate(ssTaxable, p.SocialSecurityRate)
	if err != nil {
		return SETaxResult{}, err
	}
	medicare, err := money.ApplyRate(netEarnings, p.MedicareRate)
	if err != nil {
		return SETaxResult{}, err
	}

	total := ss.Add(medicare)
	return SETaxResult{
		NetEarnings:    money.RoundMoney(netEarnings),
		SocialSecurity: ss,
		Medicare:       medicare,
		Total:          total,
		HalfDeduction:  money.RoundMoney(total.Div(decimal.NewFromInt(2))),
	}, nil
}

// AdditionalMedicareTax computes the 0.9% surtax on Medicare wages plus SE
// earnings above the filing-status threshold.
func AdditionalMedicareTax(p taxyear.AdditionalMedicare, threshold, medicareWages, seEarnings decimal.Decimal) (decimal.Decimal, error) {
	base := medicareWages.Add(money.NonNegative(seEarnings))
	excess := base.Sub(threshold)
	if excess.Sign() <= 0 {
		return decimal.Zero, nil
	}
	return money.ApplyRate(excess, p.Rate)
}
