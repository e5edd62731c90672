// Package classifier decides whether a trade or business is a Specified
// Service Trade or Business. The decision procedure is a fixed priority
// list of matchers, terminal at the first match: explicit override, exact
// industry-code match, hierarchical code prefix, keyword scan, then the
// non-SSTB default. The de-minimis receipts exception is evaluated after
// category determination.
package classifier

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/money"
	"github.com/sells-group/tax-engine/internal/taxyear"
)

// ErrRequiresManualReview marks a verdict that landed on the
// reputation/skill catch-all. It is a result annotation, not a failure:
// callers keep the classification but must hold the QBI result for human
// confirmation.
var ErrRequiresManualReview = eris.New("classifier: requires manual review")

// matcher is one layer of the decision procedure. It returns ok=false to
// pass control to the next layer.
type matcher func(b *model.ScheduleCBusiness) (category model.SSTBCategory, source model.ClassificationSource, ok bool)

// Classifier classifies businesses against one tax year's SSTB tables.
// Verdicts are cached per business for the duration of one calculation
// pass; a Classifier is pass-scoped and not safe for concurrent use.
type Classifier struct {
	table    *taxyear.Table
	matchers []matcher
	cache    map[*model.ScheduleCBusiness]model.SSTBClassification

	// sortedCodes fixes the iteration order for prefix matching so the
	// verdict is deterministic when a prefix spans multiple table entries.
	sortedCodes []string
}

// New builds a pass-scoped classifier from a tax-year table.
func New(table *taxyear.Table) *Classifier {
	c := &Classifier{
		table:       table,
		cache:       make(map[*model.ScheduleCBusiness]model.SSTBClassification),
		sortedCodes: sortedKeys(table.SSTB.Codes),
	}
	c.matchers = []matcher{
		c.matchOverride,
		c.matchExactCode,
		c.matchPrefix(5),
		c.matchPrefix(4),
		c.matchKeyword,
	}
	return c
}

// Classify returns the SSTB verdict for a business at the given taxable
// income. The first call per business runs the decision procedure; repeat
// calls within the pass return the cached verdict.
func (c *Classifier) Classify(b *model.ScheduleCBusiness, taxableIncome decimal.Decimal) (model.SSTBClassification, error) {
	if cached, ok := c.cache[b]; ok {
		return cached, nil
	}

	verdict := c.classify(b)

	if verdict.IsSSTB {
		applied, ratio, err := c.deMinimis(b, taxableIncome)
		if err != nil {
			return model.SSTBClassification{}, err
		}
		if ratio != nil {
			verdict.SSTBRatio = ratio
		}
		if applied {
			// Below the de-minimis threshold the business is treated as
			// wholly non-SSTB for QBI purposes; the category stands for
			// reporting.
			verdict.IsSSTB = false
			verdict.DeMinimisApplied = true
			verdict.RequiresManualReview = false
		}
	}

	c.cache[b] = verdict
	return verdict, nil
}

func (c *Classifier) classify(b *model.ScheduleCBusiness) model.SSTBClassification {
	for _, m := range c.matchers {
		category, source, ok := m(b)
		if !ok {
			continue
		}
		return model.SSTBClassification{
			Category:             category,
			IsSSTB:               category != model.CategoryNonSSTB,
			Source:               source,
			RequiresManualReview: category == model.CategoryReputationSkill,
		}
	}
	return model.SSTBClassification{
		Category: model.CategoryNonSSTB,
		Source:   model.SourceDefault,
	}
}

// matchOverride: a manual correction always wins, regardless of every
// other signal.
func (c *Classifier) matchOverride(b *model.ScheduleCBusiness) (model.SSTBCategory, model.ClassificationSource, bool) {
	if b.SSTBOverride == nil {
		return "", "", false
	}
	if !*b.SSTBOverride {
		return model.CategoryNonSSTB, model.SourceOverride, true
	}
	// Asserted SSTB: keep the code-derived category when one exists so the
	// breakdown still names it, otherwise fall to the catch-all.
	if cat, ok := c.lookupCode(b.NAICSCode); ok {
		return cat, model.SourceOverride, true
	}
	return model.CategoryReputationSkill, model.SourceOverride, true
}

func (c *Classifier) matchExactCode(b *model.ScheduleCBusiness) (model.SSTBCategory, model.ClassificationSource, bool) {
	if cat, ok := c.lookupCode(b.NAICSCode); ok {
		return cat, model.SourceExactCode, true
	}
	return "", "", false
}

// matchPrefix relaxes the code to its n-digit hierarchical prefix.
func (c *Classifier) matchPrefix(n int) matcher {
	return func(b *model.ScheduleCBusiness) (model.SSTBCategory, model.ClassificationSource, bool) {
		if len(b.NAICSCode) <= n {
			return "", "", false
		}
		prefix := b.NAICSCode[:n]
		for _, code := range c.sortedCodes {
			if strings.HasPrefix(code, prefix) {
				return c.table.SSTB.Codes[code], model.SourceHierarchicalCode, true
			}
		}
		return "", "", false
	}
}

// matchKeyword scans the business name and description against the keyword
// table in file order; first match wins.
func (c *Classifier) matchKeyword(b *model.ScheduleCBusiness) (model.SSTBCategory, model.ClassificationSource, bool) {
	haystack := strings.ToLower(b.Name + " " + b.Description)
	if strings.TrimSpace(haystack) == "" {
		return "", "", false
	}
	for _, rule := range c.table.SSTB.Keywords {
		if strings.Contains(haystack, rule.Keyword) {
			return rule.Category, model.SourceKeyword, true
		}
	}
	return "", "", false
}

func sortedKeys(m map[string]model.SSTBCategory) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Classifier) lookupCode(code string) (model.SSTBCategory, bool) {
	if code == "" {
		return "", false
	}
	cat, ok := c.table.SSTB.Codes[code]
	return cat, ok
}

// deMinimis evaluates the receipts exception. It only applies when the
// business reports a split of SSTB and non-SSTB gross receipts; without a
// split the categorical verdict stands. Returns whether the exception
// applies and the computed ratio (nil when no split was available).
func (c *Classifier) deMinimis(b *model.ScheduleCBusiness, taxableIncome decimal.Decimal) (bool, *decimal.Decimal, error) {
	if b.SSTBReceipts == nil || b.NonSSTBReceipts == nil {
		return false, nil, nil
	}

	total := b.SSTBReceipts.Add(*b.NonSSTBReceipts)
	ratio, err := money.Ratio(*b.SSTBReceipts, total)
	if err != nil {
		return false, nil, eris.Wrapf(err, "classifier: de-minimis ratio for %s", b.Name)
	}

	threshold := c.table.QBI.DeMinimisRatioBelow
	if taxableIncome.GreaterThan(c.table.QBI.DeMinimisIncomeBreak) {
		threshold = c.table.QBI.DeMinimisRatioAbove
	}
	return ratio.LessThan(threshold), &ratio, nil
}
