package feeds

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"pitalign/internal/alignment"
	apperrors "pitalign/internal/errors"
	"pitalign/pkg/contracts/domain"
)

// Feed names
const (
	ReutersEstimatesFeed       = "reuters_estimates"
	ReutersFinancialsFeed      = "reuters_financials"
	WSHEarningsDatesFeed       = "wsh_earnings_dates"
	IBKRShortableSharesFeed    = "ibkr_shortable_shares"
	IBKRBorrowFeesFeed         = "ibkr_borrow_fees"
	IBKRMarginRequirementsFeed = "ibkr_margin_requirements"
	AlpacaETBFeed              = "alpaca_etb"
	SharadarFundamentalsFeed   = "sharadar_fundamentals"
	SharadarInstitutionsFeed   = "sharadar_institutions"
	SharadarSEC8Feed           = "sharadar_sec8"
	SharadarSP500Feed          = "sharadar_sp500"
	BrainBSIFeed               = "brain_bsi"
	BrainBLMCFFeed             = "brain_blmcf"
	BrainBLMECTFeed            = "brain_blmect"
)

// Option is a feed-specific query option that filters one source column.
type Option struct {
	Name     string   `json:"name"`
	Column   string   `json:"column"`
	Default  []string `json:"default,omitempty"`
	Allowed  []string `json:"allowed,omitempty"`
	Required bool     `json:"required,omitempty"`
}

// Feed binds a schema to its query behaviour.
type Feed struct {
	Name        string
	Description string
	Schema      *alignment.Schema
	Options     []Option
	// RequireCodes makes Params.Codes mandatory; codes select result groups.
	RequireCodes bool
	// FieldsNeedAggregate allows Params.Fields only in aggregate mode.
	FieldsNeedAggregate bool

	lookback func(p Params, opts map[string][]string) int
}

// Settings tune the catalogue.
type Settings struct {
	// IBKRDataStart is the first date IBKR short-sale data exists; nulls on
	// or after it mean zero.
	IBKRDataStart time.Time
	// Lookbacks overrides the query lookback in days per feed.
	Lookbacks map[string]int
}

// DefaultIBKRDataStart is the first date of IBKR short-sale data
var DefaultIBKRDataStart = time.Date(2018, 4, 16, 0, 0, 0, 0, time.UTC)

// DefaultSettings returns the catalogue defaults
func DefaultSettings() Settings {
	return Settings{IBKRDataStart: DefaultIBKRDataStart}
}

// Catalogue is the set of alignable feeds.
type Catalogue struct {
	feeds map[string]*Feed
}

// Default is the catalogue built from DefaultSettings
var Default = NewCatalogue(DefaultSettings())

// NewCatalogue builds every feed definition.
func NewCatalogue(s Settings) *Catalogue {
	if s.IBKRDataStart.IsZero() {
		s.IBKRDataStart = DefaultIBKRDataStart
	}

	c := &Catalogue{feeds: make(map[string]*Feed)}
	for _, f := range definitions(s) {
		if days, ok := s.Lookbacks[f.Name]; ok && days >= 0 {
			f.Schema.LookbackDays = days
			f.lookback = nil
		}
		c.feeds[f.Name] = f
	}
	return c
}

// Get returns the named feed
func (c *Catalogue) Get(name string) (*Feed, error) {
	f, ok := c.feeds[name]
	if !ok {
		return nil, apperrors.NewParameterError("unknown feed %q (available feeds: %s)", name, strings.Join(c.Names(), ", "))
	}
	return f, nil
}

// Names lists the feeds alphabetically
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.feeds))
	for name := range c.feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EventColumns maps each feed to the source column holding its event time.
func (c *Catalogue) EventColumns() map[string]string {
	out := make(map[string]string, len(c.feeds))
	for name, f := range c.feeds {
		out[name] = f.Schema.EventField
	}
	return out
}

func numbers(names ...string) []alignment.FieldSpec {
	specs := make([]alignment.FieldSpec, len(names))
	for i, n := range names {
		specs[i] = alignment.FieldSpec{Name: n, Kind: domain.KindNumber}
	}
	return specs
}

// fundamentalsPeriodDays is the length of one report period per dimension.
var fundamentalsPeriodDays = map[string]int{
	"ARQ": 92, "MRQ": 92, "ART": 92, "MRT": 92,
	"ARY": 365, "MRY": 365,
}

func definitions(s Settings) []*Feed {
	return []*Feed{
		{
			Name:         ReutersEstimatesFeed,
			Description:  "Reuters estimates and actuals by indicator code, as of each update",
			RequireCodes: true,
			Options: []Option{
				{Name: "period_types", Column: "PeriodType", Default: []string{"Q"}, Allowed: []string{"A", "Q", "S"}},
			},
			Schema: &alignment.Schema{
				Feed:           ReutersEstimatesFeed,
				GroupField:     "Indicator",
				EventField:     "UpdatedDate",
				ReferenceField: "FiscalPeriodEndDate",
				Fields: append(numbers("Actual", "Mean", "High", "Low", "Median", "StdDev", "NumOfEst"),
					alignment.FieldSpec{Name: "FiscalPeriodEndDate", Kind: domain.KindTime}),
				DefaultFields:          []string{"Actual"},
				OpenFields:             true,
				MetaFields:             []string{"PeriodType"},
				SkipEmptyRecords:       true,
				EventClock:             alignment.EventUTC,
				Timezone:               alignment.TimezonePerEntity,
				MissingTimezoneMessage: "timezones are missing for some sids so cannot convert UTC estimates to timezone of security",
				DefaultShift:           1,
				ShiftUnit:              alignment.ShiftRows,
				ForwardFill:            true,
				LookbackDays:           545,
			},
		},
		{
			Name:         ReutersFinancialsFeed,
			Description:  "Reuters financial statements by COA code, as of each filing",
			RequireCodes: true,
			Options: []Option{
				{Name: "fiscal_period_type", Column: "FiscalPeriodType", Default: []string{"Annual"}, Allowed: []string{"Annual", "Interim"}},
			},
			Schema: &alignment.Schema{
				Feed:           ReutersFinancialsFeed,
				GroupField:     "CoaCode",
				EventField:     "SourceDate",
				ReferenceField: "FiscalPeriodEndDate",
				TieBreakFields: []string{"FiscalPeriodEndDate"},
				Fields: append(numbers("Amount"),
					alignment.FieldSpec{Name: "FiscalPeriodEndDate", Kind: domain.KindTime},
					alignment.FieldSpec{Name: "Source", Kind: domain.KindString}),
				DefaultFields: []string{"Amount"},
				OpenFields:    true,
				MetaFields:    []string{"FiscalPeriodType"},
				EventClock:    alignment.EventDate,
				DefaultShift:  1,
				ShiftUnit:     alignment.ShiftRows,
				ForwardFill:   true,
				LookbackDays:  545,
			},
		},
		{
			Name:        WSHEarningsDatesFeed,
			Description: "Wall Street Horizon earnings announcement dates",
			Options: []Option{
				{Name: "statuses", Column: "Status", Default: []string{"Confirmed", "Unconfirmed"}, Allowed: []string{"Confirmed", "Unconfirmed"}},
			},
			Schema: &alignment.Schema{
				Feed:           WSHEarningsDatesFeed,
				EventField:     "Date",
				TieBreakFields: []string{"LastUpdated"},
				Fields: []alignment.FieldSpec{
					{Name: "Time", Kind: domain.KindString},
					{Name: "Status", Kind: domain.KindString},
					{Name: "LastUpdated", Kind: domain.KindTime},
				},
				DefaultFields: []string{"Time"},
				EventClock:    alignment.EventDate,
				ShiftUnit:     alignment.ShiftRows,
			},
		},
		{
			Name:                IBKRShortableSharesFeed,
			Description:         "IBKR shortable share quantities, intraday",
			FieldsNeedAggregate: true,
			Schema: &alignment.Schema{
				Feed:          IBKRShortableSharesFeed,
				EventField:    "Date",
				Fields:        numbers("Quantity"),
				EventClock:    alignment.EventUTC,
				Timezone:      alignment.TimezoneSingle,
				Intraday:      true,
				ShiftUnit:     alignment.ShiftRows,
				ForwardFill:   true,
				NullFill:      domain.Number(0),
				NullFillFrom:  s.IBKRDataStart,
				LookbackDays:  45,
				RecoverNoData: true,
			},
		},
		{
			Name:        IBKRBorrowFeesFeed,
			Description: "IBKR daily borrow fee rates",
			Schema: &alignment.Schema{
				Feed:         IBKRBorrowFeesFeed,
				EventField:   "Date",
				Fields:       numbers("FeeRate"),
				EventClock:   alignment.EventDate,
				ShiftUnit:    alignment.ShiftRows,
				ForwardFill:  true,
				NullFill:     domain.Number(0),
				NullFillFrom: s.IBKRDataStart,
				LookbackDays: 45,
			},
		},
		{
			Name:        IBKRMarginRequirementsFeed,
			Description: "IBKR margin requirements, intraday",
			Schema: &alignment.Schema{
				Feed:          IBKRMarginRequirementsFeed,
				EventField:    "Date",
				Fields:        numbers("ShortInitialMargin", "ShortMaintenanceMargin", "LongInitialMargin", "LongMaintenanceMargin"),
				EventClock:    alignment.EventUTC,
				Timezone:      alignment.TimezoneSingle,
				Intraday:      true,
				ShiftUnit:     alignment.ShiftRows,
				ForwardFill:   true,
				NullFill:      domain.Number(0),
				NullFillFrom:  s.IBKRDataStart,
				LookbackDays:  45,
				RecoverNoData: true,
			},
		},
		{
			Name:        AlpacaETBFeed,
			Description: "Alpaca easy-to-borrow flags",
			Schema: &alignment.Schema{
				Feed:         AlpacaETBFeed,
				EventField:   "Date",
				Fields:       []alignment.FieldSpec{{Name: "EasyToBorrow", Kind: domain.KindBool}},
				EventClock:   alignment.EventDate,
				ShiftUnit:    alignment.ShiftRows,
				ForwardFill:  true,
				LookbackDays: 10,
			},
		},
		{
			Name:        SharadarFundamentalsFeed,
			Description: "Sharadar fundamentals, as of each filing",
			Options: []Option{
				{Name: "dimension", Column: "DIMENSION", Default: []string{"ARQ"}, Allowed: []string{"ARQ", "ARY", "ART", "MRQ", "MRY", "MRT"}},
			},
			Schema: &alignment.Schema{
				Feed:           SharadarFundamentalsFeed,
				EventField:     "DATEKEY",
				ReferenceField: "REPORTPERIOD",
				TieBreakFields: []string{"REPORTPERIOD"},
				OpenFields:     true,
				MetaFields:     []string{"DIMENSION", "CALENDARDATE", "LASTUPDATED", "TICKER"},
				EventClock:     alignment.EventDate,
				DefaultShift:   1,
				ShiftUnit:      alignment.ShiftRows,
				ForwardFill:    true,
				LookbackDays:   545,
			},
			lookback: func(p Params, opts map[string][]string) int {
				days := 545
				if p.PeriodOffset < 0 {
					period := 92
					if dims := opts["dimension"]; len(dims) > 0 {
						if d, ok := fundamentalsPeriodDays[strings.ToUpper(dims[0])]; ok {
							period = d
						}
					}
					days += period * -p.PeriodOffset
				}
				return days
			},
		},
		{
			Name:        SharadarInstitutionsFeed,
			Description: "Sharadar institutional holdings by quarter",
			Schema: &alignment.Schema{
				Feed:         SharadarInstitutionsFeed,
				EventField:   "CALENDARDATE",
				OpenFields:   true,
				MetaFields:   []string{"TICKER"},
				EventClock:   alignment.EventDate,
				DefaultShift: 45,
				ShiftUnit:    alignment.ShiftDays,
				ForwardFill:  true,
				LookbackDays: 545,
			},
		},
		{
			Name:        SharadarSEC8Feed,
			Description: "Sharadar SEC form 8-K events: true on dates with a matching event",
			Options: []Option{
				{Name: "event_codes", Column: "EVENTCODE", Required: true},
			},
			Schema: &alignment.Schema{
				Feed:          SharadarSEC8Feed,
				EventField:    "DATE",
				Fields:        []alignment.FieldSpec{{Name: "EVENTCODE", Kind: domain.KindBool, Presence: true}},
				EventClock:    alignment.EventDate,
				ShiftUnit:     alignment.ShiftRows,
				NullFill:      domain.Bool(false),
				RecoverNoData: true,
			},
		},
		{
			Name:        SharadarSP500Feed,
			Description: "Sharadar S&P 500 membership: true while a constituent",
			Schema: &alignment.Schema{
				Feed:       SharadarSP500Feed,
				EventField: "DATE",
				Fields: []alignment.FieldSpec{
					{Name: "ACTION", Kind: domain.KindBool, TrueValues: []string{"added"}},
				},
				EventClock:    alignment.EventDate,
				ShiftUnit:     alignment.ShiftRows,
				ForwardFill:   true,
				NullFill:      domain.Bool(false),
				Unbounded:     true,
				RecoverNoData: true,
			},
		},
		{
			Name:        BrainBSIFeed,
			Description: "Brain sentiment indicator",
			Options: []Option{
				{Name: "N", Column: "N", Default: []string{"7"}, Allowed: []string{"1", "7", "30"}},
			},
			Schema: &alignment.Schema{
				Feed:         BrainBSIFeed,
				EventField:   "DATE",
				OpenFields:   true,
				MetaFields:   []string{"N"},
				EventClock:   alignment.EventDate,
				ShiftUnit:    alignment.ShiftRows,
				LookbackDays: 10,
			},
		},
		{
			Name:        BrainBLMCFFeed,
			Description: "Brain language metrics on company filings",
			Options: []Option{
				{Name: "report_category", Column: "REPORT_CATEGORY", Allowed: []string{"10-K", "10-Q"}},
			},
			Schema: &alignment.Schema{
				Feed:         BrainBLMCFFeed,
				EventField:   "DATE",
				OpenFields:   true,
				MetaFields:   []string{"REPORT_CATEGORY", "REPORT_DATE"},
				EventClock:   alignment.EventDate,
				ShiftUnit:    alignment.ShiftRows,
				ForwardFill:  true,
				LookbackDays: 545,
			},
		},
		{
			Name:        BrainBLMECTFeed,
			Description: "Brain language metrics on earnings call transcripts",
			Schema: &alignment.Schema{
				Feed:         BrainBLMECTFeed,
				EventField:   "DATE",
				OpenFields:   true,
				MetaFields:   []string{"CALL_DATE"},
				EventClock:   alignment.EventDate,
				ShiftUnit:    alignment.ShiftRows,
				ForwardFill:  true,
				LookbackDays: 545,
			},
		},
	}
}

// lookbackDays returns the query lookback for a call
func (f *Feed) lookbackDays(p Params, opts map[string][]string) int {
	if f.lookback != nil {
		return f.lookback(p, opts)
	}
	return f.Schema.LookbackDays
}

// resolveOptions validates the caller's options and applies defaults.
func (f *Feed) resolveOptions(given map[string][]string) (map[string][]string, error) {
	known := make(map[string]Option, len(f.Options))
	for _, o := range f.Options {
		known[o.Name] = o
	}
	for name := range given {
		if _, ok := known[name]; !ok {
			valid := make([]string, 0, len(f.Options))
			for _, o := range f.Options {
				valid = append(valid, o.Name)
			}
			return nil, apperrors.NewParameterError("unknown option %q for %s (valid options: %s)", name, f.Name, strings.Join(valid, ", "))
		}
	}

	out := make(map[string][]string, len(f.Options))
	for _, o := range f.Options {
		values := given[o.Name]
		if len(values) == 0 {
			if o.Required {
				return nil, apperrors.NewParameterError("option %s is required for %s", o.Name, f.Name)
			}
			values = o.Default
		}
		for _, v := range values {
			if len(o.Allowed) > 0 && !containsFold(o.Allowed, v) {
				return nil, apperrors.NewParameterError("invalid %s %q for %s, choices are: %s", o.Name, v, f.Name, strings.Join(o.Allowed, ", "))
			}
		}
		if len(values) > 0 {
			out[o.Name] = values
		}
	}
	return out, nil
}

func (f *Feed) String() string {
	return fmt.Sprintf("%s (%s)", f.Name, f.Description)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
