// Package taxyear loads and serves versioned tax-year parameter tables:
// bracket schedules, standard deductions, self-employment and Medicare
// parameters, QBI thresholds, and the SSTB industry-code and keyword
// tables. Tables are external, versioned data, one YAML document per tax
// year, so a new year is a data drop rather than a release.
package taxyear

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/money"
)

// ErrMissingConfiguration is returned when a calculation is requested for a
// tax year with no loaded parameter table. There is no fallback to a
// guessed or default table.
var ErrMissingConfiguration = eris.New("taxyear: missing configuration")

// Bracket is one (upper bound, marginal rate) step of a progressive
// schedule. A nil Upper marks the top bracket.
type Bracket struct {
	Upper *decimal.Decimal
	Rate  decimal.Decimal
}

// SelfEmployment holds the SE tax parameters for a year.
type SelfEmployment struct {
	NetEarningsFactor      decimal.Decimal // 0.9235
	SocialSecurityRate     decimal.Decimal // 0.124, capped at the wage base
	SocialSecurityWageBase decimal.Decimal
	MedicareRate           decimal.Decimal // 0.029, uncapped
}

// AdditionalMedicare holds the 0.9% surtax parameters.
type AdditionalMedicare struct {
	Rate       decimal.Decimal
	Thresholds map[model.FilingStatus]decimal.Decimal
}

// QBIParams holds the §199A thresholds and phase-out band widths.
type QBIParams struct {
	DeductionRate decimal.Decimal // 0.20
	Thresholds    map[model.FilingStatus]decimal.Decimal
	PhaseOutBand  map[model.FilingStatus]decimal.Decimal

	// De-minimis exception thresholds: the SSTB receipts ratio below which
	// a mixed business is treated as wholly non-SSTB. RatioBelow applies at
	// taxable income up to IncomeBreak, RatioAbove beyond it.
	DeMinimisIncomeBreak decimal.Decimal
	DeMinimisRatioBelow  decimal.Decimal
	DeMinimisRatioAbove  decimal.Decimal
}

// ContributionLimits holds retirement contribution ceilings used by the
// scenario engine's retirement-maximization diffs.
type ContributionLimits struct {
	Elective401k decimal.Decimal
	CatchUp401k  decimal.Decimal
	IRA          decimal.Decimal
	CatchUpIRA   decimal.Decimal
	SEP          decimal.Decimal
}

// SSTBTables holds the industry-code and keyword classification data.
type SSTBTables struct {
	// Codes maps a full NAICS code to its SSTB category. Hierarchical
	// matching against 5- and 4-digit prefixes is the classifier's job;
	// prefixes may also appear here directly.
	Codes map[string]model.SSTBCategory

	// Keywords maps a lowercase name/description fragment to a category.
	// Ordered scan is by the classifier; this is source data only.
	Keywords []KeywordRule
}

// KeywordRule is one keyword → category entry. First match wins, in file
// order.
type KeywordRule struct {
	Keyword  string
	Category model.SSTBCategory
}

// Table is the full parameter set for one tax year.
type Table struct {
	Year               int
	Brackets           map[model.FilingStatus][]Bracket
	StandardDeduction  map[model.FilingStatus]decimal.Decimal
	SelfEmployment     SelfEmployment
	AdditionalMedicare AdditionalMedicare
	QBI                QBIParams
	Contributions      ContributionLimits
	SSTB               SSTBTables
}

// Indexed returns a copy of the table with every dollar threshold scaled
// by the factor, modeling inflation adjustment of a future year's
// parameters. Rates and the classification tables are unchanged; the
// receiver is never mutated.
func (t *Table) Indexed(factor decimal.Decimal) *Table {
	out := *t

	out.Brackets = make(map[model.FilingStatus][]Bracket, len(t.Brackets))
	for fs, schedule := range t.Brackets {
		scaled := make([]Bracket, len(schedule))
		for i, b := range schedule {
			scaled[i] = b
			if b.Upper != nil {
				u := money.RoundMoney(b.Upper.Mul(factor))
				scaled[i].Upper = &u
			}
		}
		out.Brackets[fs] = scaled
	}

	out.StandardDeduction = scaleAmounts(t.StandardDeduction, factor)
	out.SelfEmployment.SocialSecurityWageBase = money.RoundMoney(t.SelfEmployment.SocialSecurityWageBase.Mul(factor))
	out.AdditionalMedicare.Thresholds = scaleAmounts(t.AdditionalMedicare.Thresholds, factor)

	out.QBI.Thresholds = scaleAmounts(t.QBI.Thresholds, factor)
	out.QBI.PhaseOutBand = scaleAmounts(t.QBI.PhaseOutBand, factor)
	out.QBI.DeMinimisIncomeBreak = money.RoundMoney(t.QBI.DeMinimisIncomeBreak.Mul(factor))

	out.Contributions = ContributionLimits{
		Elective401k: money.RoundMoney(t.Contributions.Elective401k.Mul(factor)),
		CatchUp401k:  money.RoundMoney(t.Contributions.CatchUp401k.Mul(factor)),
		IRA:          money.RoundMoney(t.Contributions.IRA.Mul(factor)),
		CatchUpIRA:   money.RoundMoney(t.Contributions.CatchUpIRA.Mul(factor)),
		SEP:          money.RoundMoney(t.Contributions.SEP.Mul(factor)),
	}

	return &out
}

func scaleAmounts(in map[model.FilingStatus]decimal.Decimal, factor decimal.Decimal) map[model.FilingStatus]decimal.Decimal {
	out := make(map[model.FilingStatus]decimal.Decimal, len(in))
	for fs, amount := range in {
		out[fs] = money.RoundMoney(amount.Mul(factor))
	}
	return out
}

// BracketsFor returns the bracket schedule for a filing status.
func (t *Table) BracketsFor(fs model.FilingStatus) ([]Bracket, error) {
	b, ok := t.Brackets[fs]
	if !ok {
		return nil, eris.Wrapf(ErrMissingConfiguration, "no brackets for %s in %d", fs, t.Year)
	}
	return b, nil
}

// StandardDeductionFor returns the standard deduction for a filing status.
func (t *Table) StandardDeductionFor(fs model.FilingStatus) (decimal.Decimal, error) {
	d, ok := t.StandardDeduction[fs]
	if !ok {
		return decimal.Zero, eris.Wrapf(ErrMissingConfiguration, "no standard deduction for %s in %d", fs, t.Year)
	}
	return d, nil
}

// QBIThresholdFor returns the phase-out threshold and band width for a
// filing status.
func (t *Table) QBIThresholdFor(fs model.FilingStatus) (threshold, band decimal.Decimal, err error) {
	threshold, ok := t.QBI.Thresholds[fs]
	if !ok {
		return decimal.Zero, decimal.Zero, eris.Wrapf(ErrMissingConfiguration, "no QBI threshold for %s in %d", fs, t.Year)
	}
	band, ok = t.QBI.PhaseOutBand[fs]
	if !ok {
		return decimal.Zero, decimal.Zero, eris.Wrapf(ErrMissingConfiguration, "no QBI phase-out band for %s in %d", fs, t.Year)
	}
	return threshold, band, nil
}

// MedicareThresholdFor returns the additional-Medicare threshold for a
// filing status.
func (t *Table) MedicareThresholdFor(fs model.FilingStatus) (decimal.Decimal, error) {
	th, ok := t.AdditionalMedicare.Thresholds[fs]
	if !ok {
		return decimal.Zero, eris.Wrapf(ErrMissingConfiguration, "no additional Medicare threshold for %s in %d", fs, t.Year)
	}
	return th, nil
}
