package classifier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/taxyear"
)

func table2025(t *testing.T) *taxyear.Table {
	t.Helper()
	r, err := taxyear.NewRegistry()
	require.NoError(t, err)
	tbl, err := r.ForYear(2025)
	require.NoError(t, err)
	return tbl
}

func boolPtr(b bool) *bool { return &b }

func decPtr(d int64) *decimal.Decimal {
	v := decimal.NewFromInt(d)
	return &v
}

func TestClassify_ExplicitOverrideWins(t *testing.T) {
	t.Parallel()

	c := New(table2025(t))

	// NAICS says physician, override says non-SSTB: override wins.
	b := &model.ScheduleCBusiness{Name: "Smith Medical", NAICSCode: "621111", SSTBOverride: boolPtr(false)}
	got, err := c.Classify(b, decimal.NewFromInt(450000))
	require.NoError(t, err)
	assert.Equal(t, model.CategoryNonSSTB, got.Category)
	assert.Equal(t, model.SourceOverride, got.Source)
	assert.False(t, got.IsSSTB)

	// Override asserting SSTB on an unclassifiable business lands on the
	// catch-all but keeps the override source.
	b2 := &model.ScheduleCBusiness{Name: "Consulting-free LLC", SSTBOverride: boolPtr(true)}
	got, err = c.Classify(b2, decimal.NewFromInt(450000))
	require.NoError(t, err)
	assert.True(t, got.IsSSTB)
	assert.Equal(t, model.SourceOverride, got.Source)
}

func TestClassify_ExactCode(t *testing.T) {
	t.Parallel()

	c := New(table2025(t))

	tests := []struct {
		code string
		want model.SSTBCategory
	}{
		{"621111", model.CategoryHealth},
		{"541110", model.CategoryLaw},
		{"541211", model.CategoryAccounting},
		{"711130", model.CategoryPerformingArts},
		{"541611", model.CategoryConsulting},
		{"711211", model.CategoryAthletics},
		{"523920", model.CategoryFinancialServices},
		{"523120", model.CategoryBrokerageServices},
		{"523130", model.CategoryTrading},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			b := &model.ScheduleCBusiness{Name: "B", NAICSCode: tt.code}
			got, err := c.Classify(b, decimal.NewFromInt(400000))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Category)
			assert.Equal(t, model.SourceExactCode, got.Source)
			assert.True(t, got.IsSSTB)
		})
	}
}

func TestClassify_HierarchicalPrefix(t *testing.T) {
	t.Parallel()

	c := New(table2025(t))

	// 621119 is not in the table, but shares the 5-digit prefix 62111 with
	// physician offices.
	b := &model.ScheduleCBusiness{Name: "Specialty practice", NAICSCode: "621119"}
	got, err := c.Classify(b, decimal.NewFromInt(400000))
	require.NoError(t, err)
	assert.Equal(t, model.CategoryHealth, got.Category)
	assert.Equal(t, model.SourceHierarchicalCode, got.Source)

	// 541112 only matches at the 4-digit level (5411 → legal services).
	b2 := &model.ScheduleCBusiness{Name: "B", NAICSCode: "541112"}
	got, err = c.Classify(b2, decimal.NewFromInt(400000))
	require.NoError(t, err)
	assert.Equal(t, model.CategoryLaw, got.Category)
	assert.Equal(t, model.SourceHierarchicalCode, got.Source)
}

func TestClassify_Keyword(t *testing.T) {
	t.Parallel()

	c := New(table2025(t))

	tests := []struct {
		name string
		desc string
		want model.SSTBCategory
	}{
		{"Jones Family Practice", "physician office", model.CategoryHealth},
		{"Apex Partners", "management consulting for retailers", model.CategoryConsulting},
		{"Riverside Wealth Management", "", model.CategoryFinancialServices},
		{"BrightSmile", "dental hygiene studio", model.CategoryHealth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := &model.ScheduleCBusiness{Name: tt.name, Description: tt.desc}
			got, err := c.Classify(b, decimal.NewFromInt(300000))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Category)
			assert.Equal(t, model.SourceKeyword, got.Source)
		})
	}
}

func TestClassify_DefaultNonSSTB(t *testing.T) {
	t.Parallel()

	c := New(table2025(t))
	b := &model.ScheduleCBusiness{Name: "Hilltop Landscaping", NAICSCode: "561730", Description: "lawn care"}
	got, err := c.Classify(b, decimal.NewFromInt(300000))
	require.NoError(t, err)
	assert.Equal(t, model.CategoryNonSSTB, got.Category)
	assert.Equal(t, model.SourceDefault, got.Source)
	assert.False(t, got.IsSSTB)
}

func TestClassify_ReputationSkillRequiresReview(t *testing.T) {
	t.Parallel()

	c := New(table2025(t))
	b := &model.ScheduleCBusiness{Name: "JD Online", Description: "social media influencer and brand deals"}
	got, err := c.Classify(b, decimal.NewFromInt(300000))
	require.NoError(t, err)
	assert.Equal(t, model.CategoryReputationSkill, got.Category)
	assert.True(t, got.RequiresManualReview, "catch-all must surface a manual review signal")
}

func TestClassify_DeMinimis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		sstbReceipts int64
		taxable      int64
		wantSSTB     bool
		wantApplied  bool
		wantRatio    string
	}{
		// $8k SSTB of $100k total at $150k taxable: 8% < 10% threshold.
		{"below 10pct threshold", 8000, 150000, false, true, "0.08"},
		// $15k SSTB of $100k total: 15% ≥ 10%, exception does not apply.
		{"above 10pct threshold", 15000, 150000, true, false, "0.15"},
		// Over $500k taxable the threshold tightens to 5%.
		{"8pct over high income", 8000, 600000, true, false, "0.08"},
		{"4pct over high income", 4000, 600000, false, true, "0.04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New(table2025(t))
			b := &model.ScheduleCBusiness{
				Name:            "Mixed practice",
				NAICSCode:       "621111",
				SSTBReceipts:    decPtr(tt.sstbReceipts),
				NonSSTBReceipts: decPtr(100000 - tt.sstbReceipts),
			}
			got, err := c.Classify(b, decimal.NewFromInt(tt.taxable))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSSTB, got.IsSSTB)
			assert.Equal(t, tt.wantApplied, got.DeMinimisApplied)
			require.NotNil(t, got.SSTBRatio)
			assert.True(t, got.SSTBRatio.Equal(decimal.RequireFromString(tt.wantRatio)), "ratio %s", got.SSTBRatio)
			// Category determination is untouched by the exception.
			assert.Equal(t, model.CategoryHealth, got.Category)
		})
	}
}

func TestClassify_DeMinimisSkippedWithoutSplit(t *testing.T) {
	t.Parallel()

	c := New(table2025(t))
	b := &model.ScheduleCBusiness{Name: "Solo practice", NAICSCode: "621111"}
	got, err := c.Classify(b, decimal.NewFromInt(150000))
	require.NoError(t, err)
	assert.True(t, got.IsSSTB)
	assert.False(t, got.DeMinimisApplied)
	assert.Nil(t, got.SSTBRatio)
}

func TestClassify_CachedWithinPass(t *testing.T) {
	t.Parallel()

	c := New(table2025(t))
	b := &model.ScheduleCBusiness{Name: "Cache Clinic", NAICSCode: "621111"}

	first, err := c.Classify(b, decimal.NewFromInt(150000))
	require.NoError(t, err)
	// Second call with different income returns the cached verdict: a
	// business is classified once per pass.
	second, err := c.Classify(b, decimal.NewFromInt(900000))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
