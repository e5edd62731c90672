// Package model defines the taxpayer-facing domain types consumed by the
// calculation pipeline: filing profiles, dependents, and the income source
// union. Intake subsystems build these; the engine validates and never
// mutates them.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrValidation marks semantically invalid input: structurally well-formed
// data whose field combination is not legal. It is always surfaced to the
// caller, never silently corrected.
var ErrValidation = eris.New("model: validation error")

// FilingStatus is one of the five IRS filing statuses.
type FilingStatus string

const (
	FilingSingle          FilingStatus = "single"
	FilingMarriedJoint    FilingStatus = "married_filing_jointly"
	FilingMarriedSeparate FilingStatus = "married_filing_separately"
	FilingHeadOfHousehold FilingStatus = "head_of_household"
	FilingSurvivingSpouse FilingStatus = "qualifying_surviving_spouse"
)

// Valid reports whether the status is one of the five defined variants.
func (s FilingStatus) Valid() bool {
	switch s {
	case FilingSingle, FilingMarriedJoint, FilingMarriedSeparate,
		FilingHeadOfHousehold, FilingSurvivingSpouse:
		return true
	}
	return false
}

// Relationship describes how a dependent relates to the taxpayer.
type Relationship string

const (
	RelationshipChild    Relationship = "child"
	RelationshipRelative Relationship = "relative"
	RelationshipOther    Relationship = "other"
)

// Dependent is a claimed dependent. Order is preserved from intake.
type Dependent struct {
	Name              string       `json:"name"`
	Relationship      Relationship `json:"relationship"`
	QualifyingChild   bool         `json:"qualifying_child"`
	QualifyingRelative bool        `json:"qualifying_relative"`
}

// TaxpayerProfile holds the filing facts for one taxpayer and one tax year.
type TaxpayerProfile struct {
	TaxYear          int          `json:"tax_year"`
	FilingStatus     FilingStatus `json:"filing_status"`
	BirthDate        time.Time    `json:"birth_date"`
	Dependents       []Dependent  `json:"dependents,omitempty"`
	SpouseDeathYear  int          `json:"spouse_death_year,omitempty"`
	ItemizedDeduction string      `json:"itemized_deduction,omitempty"` // decimal string; empty means standard deduction

	// RetirementContribution is the pre-tax elective deferral for the year,
	// as a decimal string. Deducted above the line, capped at the tax
	// year's contribution limit (plus catch-up from age 50).
	RetirementContribution string `json:"retirement_contribution,omitempty"`
}

// Age returns the taxpayer's age at the end of the tax year. A zero birth
// date yields zero.
func (p *TaxpayerProfile) Age() int {
	if p.BirthDate.IsZero() {
		return 0
	}
	return p.TaxYear - p.BirthDate.Year()
}

// Validate checks the profile's internal consistency. Qualifying surviving
// spouse status requires a dependent child and a spouse death in the current
// or two preceding tax years.
func (p *TaxpayerProfile) Validate() error {
	if !p.FilingStatus.Valid() {
		return eris.Wrapf(ErrValidation, "unknown filing status %q", p.FilingStatus)
	}
	if p.TaxYear <= 0 {
		return eris.Wrap(ErrValidation, "tax year is required")
	}
	if p.FilingStatus == FilingSurvivingSpouse {
		if !p.hasDependentChild() {
			return eris.Wrap(ErrValidation, "qualifying surviving spouse requires a dependent child")
		}
		if p.SpouseDeathYear == 0 {
			return eris.Wrap(ErrValidation, "qualifying surviving spouse requires a spouse death year")
		}
		if p.SpouseDeathYear < p.TaxYear-2 || p.SpouseDeathYear > p.TaxYear {
			return eris.Wrapf(ErrValidation,
				"spouse death year %d outside the two tax years preceding %d", p.SpouseDeathYear, p.TaxYear)
		}
	}
	return nil
}

func (p *TaxpayerProfile) hasDependentChild() bool {
	for _, d := range p.Dependents {
		if d.Relationship == RelationshipChild && d.QualifyingChild {
			return true
		}
	}
	return false
}
