package taxyear

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tax-engine/internal/model"
)

// rawTable is the YAML schema for one tax-year document. Rates are decimal
// strings so no value ever passes through binary floating point; dollar
// amounts are whole-dollar integers.
type rawTable struct {
	TaxYear           int                     `yaml:"tax_year"`
	Brackets          map[string][]rawBracket `yaml:"brackets"`
	StandardDeduction map[string]int64        `yaml:"standard_deduction"`

	SelfEmployment struct {
		NetEarningsFactor      string `yaml:"net_earnings_factor"`
		SocialSecurityRate     string `yaml:"social_security_rate"`
		SocialSecurityWageBase int64  `yaml:"social_security_wage_base"`
		MedicareRate           string `yaml:"medicare_rate"`
	} `yaml:"self_employment"`

	AdditionalMedicare struct {
		Rate       string           `yaml:"rate"`
		Thresholds map[string]int64 `yaml:"thresholds"`
	} `yaml:"additional_medicare"`

	QBI struct {
		DeductionRate string           `yaml:"deduction_rate"`
		Thresholds    map[string]int64 `yaml:"thresholds"`
		PhaseOutBand  map[string]int64 `yaml:"phase_out_band"`
		DeMinimis     struct {
			IncomeBreak int64  `yaml:"income_break"`
			RatioBelow  string `yaml:"ratio_below"`
			RatioAbove  string `yaml:"ratio_above"`
		} `yaml:"de_minimis"`
	} `yaml:"qbi"`

	ContributionLimits struct {
		Elective401k int64 `yaml:"elective_401k"`
		CatchUp401k  int64 `yaml:"catch_up_401k"`
		IRA          int64 `yaml:"ira"`
		CatchUpIRA   int64 `yaml:"catch_up_ira"`
		SEP          int64 `yaml:"sep"`
	} `yaml:"contribution_limits"`

	SSTB struct {
		Codes    map[string]string `yaml:"codes"`
		Keywords []rawKeyword      `yaml:"keywords"`
	} `yaml:"sstb"`
}

type rawBracket struct {
	Upper *int64 `yaml:"upper"` // absent on the top bracket
	Rate  string `yaml:"rate"`
}

type rawKeyword struct {
	Keyword  string `yaml:"keyword"`
	Category string `yaml:"category"`
}

// Parse decodes and validates one tax-year YAML document.
func Parse(data []byte) (*Table, error) {
	var raw rawTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "taxyear: unmarshal table")
	}
	return raw.build()
}

func (r *rawTable) build() (*Table, error) {
	if r.TaxYear <= 0 {
		return nil, eris.New("taxyear: table missing tax_year")
	}

	t := &Table{
		Year:              r.TaxYear,
		Brackets:          make(map[model.FilingStatus][]Bracket, len(r.Brackets)),
		StandardDeduction: make(map[model.FilingStatus]decimal.Decimal, len(r.StandardDeduction)),
	}

	for fs, raws := range r.Brackets {
		status, err := filingStatus(fs)
		if err != nil {
			return nil, err
		}
		schedule, err := buildBrackets(raws)
		if err != nil {
			return nil, eris.Wrapf(err, "taxyear: %d brackets for %s", r.TaxYear, fs)
		}
		t.Brackets[status] = schedule
	}

	for fs, amount := range r.StandardDeduction {
		status, err := filingStatus(fs)
		if err != nil {
			return nil, err
		}
		t.StandardDeduction[status] = decimal.NewFromInt(amount)
	}

	var err error
	if t.SelfEmployment.NetEarningsFactor, err = parseRate(r.SelfEmployment.NetEarningsFactor, "self_employment.net_earnings_factor"); err != nil {
		return nil, err
	}
	if t.SelfEmployment.SocialSecurityRate, err = parseRate(r.SelfEmployment.SocialSecurityRate, "self_employment.social_security_rate"); err != nil {
		return nil, err
	}
	if t.SelfEmployment.MedicareRate, err = parseRate(r.SelfEmployment.MedicareRate, "self_employment.medicare_rate"); err != nil {
		return nil, err
	}
	t.SelfEmployment.SocialSecurityWageBase = decimal.NewFromInt(r.SelfEmployment.SocialSecurityWageBase)

	if t.AdditionalMedicare.Rate, err = parseRate(r.AdditionalMedicare.Rate, "additional_medicare.rate"); err != nil {
		return nil, err
	}
	if t.AdditionalMedicare.Thresholds, err = statusAmounts(r.AdditionalMedicare.Thresholds); err != nil {
		return nil, err
	}

	if t.QBI.DeductionRate, err = parseRate(r.QBI.DeductionRate, "qbi.deduction_rate"); err != nil {
		return nil, err
	}
	if t.QBI.Thresholds, err = statusAmounts(r.QBI.Thresholds); err != nil {
		return nil, err
	}
	if t.QBI.PhaseOutBand, err = statusAmounts(r.QBI.PhaseOutBand); err != nil {
		return nil, err
	}
	t.QBI.DeMinimisIncomeBreak = decimal.NewFromInt(r.QBI.DeMinimis.IncomeBreak)
	if t.QBI.DeMinimisRatioBelow, err = parseRate(r.QBI.DeMinimis.RatioBelow, "qbi.de_minimis.ratio_below"); err != nil {
		return nil, err
	}
	if t.QBI.DeMinimisRatioAbove, err = parseRate(r.QBI.DeMinimis.RatioAbove, "qbi.de_minimis.ratio_above"); err != nil {
		return nil, err
	}

	t.Contributions = ContributionLimits{
		Elective401k: decimal.NewFromInt(r.ContributionLimits.Elective401k),
		CatchUp401k:  decimal.NewFromInt(r.ContributionLimits.CatchUp401k),
		IRA:          decimal.NewFromInt(r.ContributionLimits.IRA),
		CatchUpIRA:   decimal.NewFromInt(r.ContributionLimits.CatchUpIRA),
		SEP:          decimal.NewFromInt(r.ContributionLimits.SEP),
	}

	t.SSTB.Codes = make(map[string]model.SSTBCategory, len(r.SSTB.Codes))
	for code, cat := range r.SSTB.Codes {
		category := model.SSTBCategory(cat)
		if !category.Valid() || category == model.CategoryNonSSTB {
			return nil, eris.Errorf("taxyear: SSTB code %s has invalid category %q", code, cat)
		}
		t.SSTB.Codes[code] = category
	}
	t.SSTB.Keywords = make([]KeywordRule, 0, len(r.SSTB.Keywords))
	for _, kw := range r.SSTB.Keywords {
		category := model.SSTBCategory(kw.Category)
		if !category.Valid() || category == model.CategoryNonSSTB {
			return nil, eris.Errorf("taxyear: SSTB keyword %q has invalid category %q", kw.Keyword, kw.Category)
		}
		t.SSTB.Keywords = append(t.SSTB.Keywords, KeywordRule{Keyword: kw.Keyword, Category: category})
	}

	return t, nil
}

// buildBrackets converts and validates one schedule: strictly ascending
// upper bounds, non-negative rates, exactly one unbounded top bracket.
func buildBrackets(raws []rawBracket) ([]Bracket, error) {
	if len(raws) == 0 {
		return nil, eris.New("empty schedule")
	}

	schedule := make([]Bracket, 0, len(raws))
	var prev *decimal.Decimal
	for i, rb := range raws {
		rate, err := parseRate(rb.Rate, "bracket rate")
		if err != nil {
			return nil, err
		}
		if rb.Upper == nil {
			if i != len(raws)-1 {
				return nil, eris.New("unbounded bracket before end of schedule")
			}
			schedule = append(schedule, Bracket{Rate: rate})
			continue
		}
		upper := decimal.NewFromInt(*rb.Upper)
		if prev != nil && upper.LessThanOrEqual(*prev) {
			return nil, eris.Errorf("bracket bounds not ascending at %s", upper)
		}
		prev = &upper
		schedule = append(schedule, Bracket{Upper: &upper, Rate: rate})
	}
	if schedule[len(schedule)-1].Upper != nil {
		return nil, eris.New("schedule missing unbounded top bracket")
	}
	return schedule, nil
}

func statusAmounts(in map[string]int64) (map[model.FilingStatus]decimal.Decimal, error) {
	out := make(map[model.FilingStatus]decimal.Decimal, len(in))
	for fs, amount := range in {
		status, err := filingStatus(fs)
		if err != nil {
			return nil, err
		}
		out[status] = decimal.NewFromInt(amount)
	}
	return out, nil
}

func filingStatus(s string) (model.FilingStatus, error) {
	fs := model.FilingStatus(s)
	if !fs.Valid() {
		return "", eris.Errorf("taxyear: unknown filing status %q in table", s)
	}
	return fs, nil
}

func parseRate(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, eris.Errorf("taxyear: %s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "taxyear: parse %s", field)
	}
	if d.IsNegative() {
		return decimal.Zero, eris.Errorf("taxyear: %s must be non-negative", field)
	}
	return d, nil
}
