package model

import "github.com/shopspring/decimal"

// SSTBCategory names the statutory specified-service categories plus the
// reputation/skill catch-all and the non-SSTB default.
type SSTBCategory string

const (
	CategoryHealth            SSTBCategory = "health"
	CategoryLaw               SSTBCategory = "law"
	CategoryAccounting        SSTBCategory = "accounting"
	CategoryActuarialScience  SSTBCategory = "actuarial_science"
	CategoryPerformingArts    SSTBCategory = "performing_arts"
	CategoryConsulting        SSTBCategory = "consulting"
	CategoryAthletics         SSTBCategory = "athletics"
	CategoryFinancialServices SSTBCategory = "financial_services"
	CategoryBrokerageServices SSTBCategory = "brokerage_services"
	CategoryTrading           SSTBCategory = "trading"
	CategoryReputationSkill   SSTBCategory = "reputation_skill"
	CategoryNonSSTB           SSTBCategory = "non_sstb"
)

// Valid reports whether the category is a known variant.
func (c SSTBCategory) Valid() bool {
	switch c {
	case CategoryHealth, CategoryLaw, CategoryAccounting, CategoryActuarialScience,
		CategoryPerformingArts, CategoryConsulting, CategoryAthletics,
		CategoryFinancialServices, CategoryBrokerageServices, CategoryTrading,
		CategoryReputationSkill, CategoryNonSSTB:
		return true
	}
	return false
}

// ClassificationSource records which layer of the decision procedure
// produced the verdict.
type ClassificationSource string

const (
	SourceOverride         ClassificationSource = "explicit_override"
	SourceExactCode        ClassificationSource = "exact_code"
	SourceHierarchicalCode ClassificationSource = "hierarchical_code"
	SourceKeyword          ClassificationSource = "keyword"
	SourceDefault          ClassificationSource = "default"
)

// SSTBClassification is the classifier's verdict for one business.
type SSTBClassification struct {
	Category SSTBCategory         `json:"category"`
	IsSSTB   bool                 `json:"is_sstb"`
	Source   ClassificationSource `json:"source"`

	// De-minimis exception outcome. Ratio is SSTB receipts over total
	// receipts, populated only when a receipt split was available.
	DeMinimisApplied bool             `json:"de_minimis_applied"`
	SSTBRatio        *decimal.Decimal `json:"sstb_ratio,omitempty"`

	// RequiresManualReview is set when the verdict landed on the
	// reputation/skill catch-all, which is judgment-based and must be
	// confirmed by a human before the QBI result is treated as final.
	RequiresManualReview bool `json:"requires_manual_review"`
}
