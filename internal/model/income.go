package model

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// IncomeKind discriminates the income source union.
type IncomeKind string

const (
	IncomeWage        IncomeKind = "wage"
	IncomeScheduleC   IncomeKind = "schedule_c"
	IncomeK1          IncomeKind = "k1"
	IncomeCapitalGain IncomeKind = "capital_gain"
	IncomeRental      IncomeKind = "rental"
)

// IncomeSource is a closed tagged union over the five income types. Exactly
// one variant field is set, matching Kind; each variant carries only the
// fields relevant to its tax treatment.
type IncomeSource struct {
	Kind        IncomeKind              `json:"kind"`
	Wage        *WageIncome             `json:"wage,omitempty"`
	ScheduleC   *ScheduleCBusiness      `json:"schedule_c,omitempty"`
	K1          *PartnershipK1          `json:"k1,omitempty"`
	CapitalGain *CapitalGainTransaction `json:"capital_gain,omitempty"`
	Rental      *RentalProperty         `json:"rental,omitempty"`
}

// WageIncome is W-2 employment income.
type WageIncome struct {
	Employer           string          `json:"employer"`
	Wages              decimal.Decimal `json:"wages"`
	FederalWithholding decimal.Decimal `json:"federal_withholding"`
	MedicareWages      decimal.Decimal `json:"medicare_wages"`
}

// ScheduleCBusiness is a sole-proprietor trade or business. Classification
// is performed lazily by the classifier and cached for the duration of one
// calculation pass; the record itself is immutable once built.
type ScheduleCBusiness struct {
	Name          string          `json:"name"`
	NAICSCode     string          `json:"naics_code,omitempty"`
	Description   string          `json:"description,omitempty"`
	GrossReceipts decimal.Decimal `json:"gross_receipts"`
	Expenses      decimal.Decimal `json:"expenses"`
	QBI           decimal.Decimal `json:"qbi"`

	// SSTBOverride is tri-state: nil means no override, otherwise the
	// asserted verdict wins over every other classification signal.
	SSTBOverride *bool `json:"sstb_override,omitempty"`

	// Receipt split for the de-minimis exception. Both must be present for
	// the exception to be evaluated; absent a split the categorical verdict
	// stands.
	SSTBReceipts    *decimal.Decimal `json:"sstb_receipts,omitempty"`
	NonSSTBReceipts *decimal.Decimal `json:"non_sstb_receipts,omitempty"`

	// W-2 wage and property figures for the §199A wage/UBIA limitation.
	W2WagesPaid decimal.Decimal `json:"w2_wages_paid"`
	UBIA        decimal.Decimal `json:"ubia"`
}

// NetProfit is gross receipts less expenses. Losses pass through as
// negative values; the SE tax path applies its own zero floor.
func (b *ScheduleCBusiness) NetProfit() decimal.Decimal {
	return b.GrossReceipts.Sub(b.Expenses)
}

// PartnershipK1 is pass-through income reported on a Schedule K-1.
type PartnershipK1 struct {
	EntityName         string          `json:"entity_name"`
	EntityEIN          string          `json:"entity_ein,omitempty"`
	OrdinaryIncome     decimal.Decimal `json:"ordinary_income"`
	GuaranteedPayments decimal.Decimal `json:"guaranteed_payments"`
	QBI                decimal.Decimal `json:"qbi"`
	SelfEmploymentEarnings decimal.Decimal `json:"self_employment_earnings"`
}

// CapitalGainTransaction is a single disposition, never an aggregated total.
type CapitalGainTransaction struct {
	Description    string          `json:"description"`
	DateAcquired   time.Time       `json:"date_acquired"`
	DateSold       time.Time       `json:"date_sold"`
	Proceeds       decimal.Decimal `json:"proceeds"`
	Basis          decimal.Decimal `json:"basis"`
	AdjustmentCode string          `json:"adjustment_code,omitempty"`
}

// Gain is proceeds minus basis; negative means a loss.
func (c *CapitalGainTransaction) Gain() decimal.Decimal {
	return c.Proceeds.Sub(c.Basis)
}

// LongTerm reports whether the holding period exceeds one year.
func (c *CapitalGainTransaction) LongTerm() bool {
	return c.DateSold.After(c.DateAcquired.AddDate(1, 0, 0))
}

// RentalProperty is Schedule E rental real estate.
type RentalProperty struct {
	Address      string          `json:"address"`
	RentsReceived decimal.Decimal `json:"rents_received"`
	Expenses     decimal.Decimal `json:"expenses"`
	Depreciation decimal.Decimal `json:"depreciation"`
}

// NetIncome is rents less expenses and depreciation.
func (r *RentalProperty) NetIncome() decimal.Decimal {
	return r.RentsReceived.Sub(r.Expenses).Sub(r.Depreciation)
}

// Validate checks that exactly the variant named by Kind is populated.
func (s *IncomeSource) Validate() error {
	set := 0
	for _, p := range []bool{
		s.Wage != nil, s.ScheduleC != nil, s.K1 != nil,
		s.CapitalGain != nil, s.Rental != nil,
	} {
		if p {
			set++
		}
	}
	if set != 1 {
		return eris.Wrapf(ErrValidation, "income source must set exactly one variant, got %d", set)
	}

	var ok bool
	switch s.Kind {
	case IncomeWage:
		ok = s.Wage != nil
	case IncomeScheduleC:
		ok = s.ScheduleC != nil
	case IncomeK1:
		ok = s.K1 != nil
	case IncomeCapitalGain:
		ok = s.CapitalGain != nil
	case IncomeRental:
		ok = s.Rental != nil
	default:
		return eris.Wrapf(ErrValidation, "unknown income kind %q", s.Kind)
	}
	if !ok {
		return eris.Wrapf(ErrValidation, "income kind %q does not match populated variant", s.Kind)
	}
	return nil
}

// Convenience constructors keep Kind and variant in lockstep at call sites.

func NewWageSource(w WageIncome) IncomeSource {
	return IncomeSource{Kind: IncomeWage, Wage: &w}
}

func NewScheduleCSource(b ScheduleCBusiness) IncomeSource {
	return IncomeSource{Kind: IncomeScheduleC, ScheduleC: &b}
}

func NewK1Source(k PartnershipK1) IncomeSource {
	return IncomeSource{Kind: IncomeK1, K1: &k}
}

func NewCapitalGainSource(c CapitalGainTransaction) IncomeSource {
	return IncomeSource{Kind: IncomeCapitalGain, CapitalGain: &c}
}

func NewRentalSource(r RentalProperty) IncomeSource {
	return IncomeSource{Kind: IncomeRental, Rental: &r}
}
