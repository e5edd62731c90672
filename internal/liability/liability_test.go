package liability

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tax-engine/internal/model"
	"github.com/sells-group/tax-engine/internal/taxyear"
)

func single2025(t *testing.T) []taxyear.Bracket {
	t.Helper()
	r, err := taxyear.NewRegistry()
	require.NoError(t, err)
	tbl, err := r.ForYear(2025)
	require.NoError(t, err)
	brackets, err := tbl.BracketsFor(model.FilingSingle)
	require.NoError(t, err)
	return brackets
}

func TestOrdinaryTax_Bracket2025Single(t *testing.T) {
	t.Parallel()

	brackets := single2025(t)

	tests := []struct {
		name    string
		taxable int64
		want    string
	}{
		{"zero", 0, "0"},
		{"within first bracket", 10000, "1000"},
		{"exactly first boundary", 11925, "1192.5"},
		{"one dollar over boundary", 11926, "1192.62"},
		{"taxable 70000", 70000, "10314"},
		{"exactly second boundary", 48475, "5578.5"},
		{"top bracket", 700000, "216020.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := OrdinaryTax(brackets, decimal.NewFromInt(tt.taxable))
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestOrdinaryTax_NegativeIncomeIsZeroTax(t *testing.T) {
	t.Parallel()

	got, err := OrdinaryTax(single2025(t), decimal.NewFromInt(-5000))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestOrdinaryTax_EmptySchedule(t *testing.T) {
	t.Parallel()

	_, err := OrdinaryTax(nil, decimal.NewFromInt(100))
	assert.Error(t, err)
}

func TestOrdinaryTax_Monotonic(t *testing.T) {
	t.Parallel()

	brackets := single2025(t)
	prev := decimal.Zero
	for income := int64(0); income <= 800000; income += 7919 {
		tax, err := OrdinaryTax(brackets, decimal.NewFromInt(income))
		require.NoError(t, err)
		assert.True(t, tax.GreaterThanOrEqual(prev), "tax decreased at income %d", income)
		prev = tax
	}
}

func TestMarginalRate(t *testing.T) {
	t.Parallel()

	brackets := single2025(t)

	tests := []struct {
		taxable int64
		want    string
	}{
		{0, "0.10"},
		{11925, "0.10"},
		{11926, "0.12"},
		{70000, "0.22"},
		{700000, "0.37"},
	}

	for _, tt := range tests {
		got := MarginalRate(brackets, decimal.NewFromInt(tt.taxable))
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "income %d: got %s", tt.taxable, got)
	}
}

func seParams() taxyear.SelfEmployment {
	return taxyear.SelfEmployment{
		NetEarningsFactor:      decimal.RequireFromString("0.9235"),
		SocialSecurityRate:     decimal.RequireFromString("0.124"),
		SocialSecurityWageBase: decimal.NewFromInt(176100),
		MedicareRate:           decimal.RequireFromString("0.029"),
	}
}

func TestSelfEmploymentTax(t *testing.T) {
	t.Parallel()

	res, err := SelfEmploymentTax(seParams(), decimal.NewFromInt(100000), decimal.Zero)
	require.NoError(t, err)

	assert.True(t, res.NetEarnings.Equal(decimal.RequireFromString("92350")), "net %s", res.NetEarnings)
	assert.True(t, res.SocialSecurity.Equal(decimal.RequireFromString("11451.40")), "ss %s", res.SocialSecurity)
	assert.True(t, res.Medicare.Equal(decimal.RequireFromString("2678.15")), "medicare %s", res.Medicare)
	assert.True(t, res.Total.Equal(decimal.RequireFromString("14129.55")), "total %s", res.Total)
	assert.True(t, res.HalfDeduction.Equal(decimal.RequireFromString("7064.78")), "half %s", res.HalfDeduction)
}

func TestSelfEmploymentTax_WageBaseCap(t *testing.T) {
	t.Parallel()

	// SE income large enough that net earnings exceed the wage base: the SS
	// portion caps, Medicare does not.
	res, err := SelfEmploymentTax(seParams(), decimal.NewFromInt(300000), decimal.Zero)
	require.NoError(t, err)

	wantSS := decimal.RequireFromString("21836.40") // 176,100 × 12.4%
	assert.True(t, res.SocialSecurity.Equal(wantSS), "ss %s", res.SocialSecurity)
	assert.True(t, res.Medicare.Equal(decimal.RequireFromString("8034.45")), "medicare %s", res.Medicare) // 277,050 × 2.9%
}

func TestSelfEmploymentTax_WagesConsumeBase(t *testing.T) {
	t.Parallel()

	// 150k of W-2 wages leaves only 26,100 of SS base for SE earnings.
	res, err := SelfEmploymentTax(seParams(), decimal.NewFromInt(100000), decimal.NewFromInt(150000))
	require.NoError(t, err)

	wantSS := decimal.RequireFromString("3236.40") // 26,100 × 12.4%
	assert.True(t, res.SocialSecurity.Equal(wantSS), "ss %s", res.SocialSecurity)
}

func TestSelfEmploymentTax_NoIncome(t *testing.T) {
	t.Parallel()

	res, err := SelfEmploymentTax(seParams(), decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, res.Total.IsZero())

	res, err = SelfEmploymentTax(seParams(), decimal.NewFromInt(-4000), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, res.Total.IsZero(), "a net loss owes no SE tax")
}

func TestSelfEmploymentTax_NegativeWages(t *testing.T) {
	t.Parallel()

	_, err := SelfEmploymentTax(seParams(), decimal.NewFromInt(1000), decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestAdditionalMedicareTax(t *testing.T) {
	t.Parallel()

	params := taxyear.AdditionalMedicare{Rate: decimal.RequireFromString("0.009")}
	threshold := decimal.NewFromInt(200000)

	tests := []struct {
		name  string
		wages int64
		se    int64
		want  string
	}{
		{"below threshold", 150000, 0, "0"},
		{"exactly at threshold", 200000, 0, "0"},
		{"wages only", 250000, 0, "450"},
		{"wages plus se", 180000, 40000, "180"},
		{"se loss ignored", 250000, -30000, "450"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := AdditionalMedicareTax(params, threshold, decimal.NewFromInt(tt.wages), decimal.NewFromInt(tt.se))
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}
