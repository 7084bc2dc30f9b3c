package feeds

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pitalign/internal/alignment"
	apperrors "pitalign/internal/errors"
	"pitalign/internal/factsource"
	"pitalign/internal/infrastructure"
	"pitalign/pkg/contracts/domain"
)

// Deps are the collaborators of a feed call.
type Deps struct {
	Source factsource.Source
	Lookup alignment.ReferenceLookup
	// Engine defaults to a new engine logging to Logger.
	Engine    *alignment.Engine
	Catalogue *Catalogue
	Logger    *slog.Logger
	Metrics   *infrastructure.Metrics
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) catalogue() *Catalogue {
	if d.Catalogue == nil {
		return Default
	}
	return d.Catalogue
}

func (d Deps) engine() *alignment.Engine {
	if d.Engine != nil {
		return d.Engine
	}
	return alignment.NewEngine(d.logger(), alignment.WithMetrics(d.Metrics))
}

// Align queries the named feed over the calendar's range and aligns the
// records onto it. Every parameter error is raised before the fact source
// is queried.
func Align(ctx context.Context, deps Deps, name string, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	feed, err := deps.catalogue().Get(name)
	if err != nil {
		return nil, err
	}
	if err := alignment.ValidateCalendar(cal); err != nil {
		return nil, err
	}
	if feed.RequireCodes && len(p.Codes) == 0 {
		return nil, apperrors.NewParameterError("codes are required for %s", feed.Name)
	}
	if feed.FieldsNeedAggregate && len(p.Fields) > 0 && !p.Aggregate {
		return nil, apperrors.NewParameterError("the fields parameter is only supported if aggregate=True")
	}

	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(feed.Schema); err != nil {
		return nil, err
	}
	if err := feed.Schema.CheckFields(p.Fields, p.Aggregate); err != nil {
		return nil, err
	}
	opts, err := feed.resolveOptions(p.Options)
	if err != nil {
		return nil, err
	}
	if deps.Source == nil {
		return nil, apperrors.NewConfigError("no fact source configured", nil)
	}

	q := feed.Query(cal, p, opts)
	log := deps.logger().With(slog.String("feed", feed.Name))
	log.DebugContext(ctx, "querying fact source",
		slog.Time("start", q.Start),
		slog.Time("end", q.End),
		slog.Int("entities", len(q.Entities)),
		slog.Any("fields", q.Fields))

	records, err := deps.Source.Fetch(ctx, q)
	if err != nil {
		if !apperrors.IsNoFactData(err) || !feed.Schema.RecoverNoData {
			return nil, err
		}
		if deps.Metrics != nil {
			deps.Metrics.FactSourceNoDataHits.Add(ctx, 1, metric.WithAttributes(attribute.String("feed", feed.Name)))
		}
		log.DebugContext(ctx, "no fact data, aligning empty record set")
		records = nil
	}

	return deps.engine().Align(ctx, alignment.Request{
		Schema:   feed.Schema,
		Calendar: cal,
		Config:   cfg,
		Records:  records,
		Lookup:   deps.Lookup,
		Groups:   p.Codes,
	})
}

// ReutersEstimates aligns estimates and actuals for p.Codes.
func ReutersEstimates(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, ReutersEstimatesFeed, cal, p)
}

// ReutersFinancials aligns financial statement values for p.Codes.
func ReutersFinancials(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, ReutersFinancialsFeed, cal, p)
}

// WSHEarningsDates aligns earnings announcement dates.
func WSHEarningsDates(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, WSHEarningsDatesFeed, cal, p)
}

// IBKRShortableShares aligns shortable share quantities.
func IBKRShortableShares(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, IBKRShortableSharesFeed, cal, p)
}

// IBKRBorrowFees aligns borrow fee rates.
func IBKRBorrowFees(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, IBKRBorrowFeesFeed, cal, p)
}

// IBKRMarginRequirements aligns margin requirements.
func IBKRMarginRequirements(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, IBKRMarginRequirementsFeed, cal, p)
}

// AlpacaETB aligns easy-to-borrow flags.
func AlpacaETB(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, AlpacaETBFeed, cal, p)
}

// SharadarFundamentals aligns Sharadar fundamentals.
func SharadarFundamentals(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, SharadarFundamentalsFeed, cal, p)
}

// SharadarInstitutions aligns institutional holdings.
func SharadarInstitutions(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, SharadarInstitutionsFeed, cal, p)
}

// SharadarSEC8 aligns 8-K event flags.
func SharadarSEC8(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, SharadarSEC8Feed, cal, p)
}

// SharadarSP500 aligns S&P 500 membership.
func SharadarSP500(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, SharadarSP500Feed, cal, p)
}

// BrainBSI aligns the Brain sentiment indicator.
func BrainBSI(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, BrainBSIFeed, cal, p)
}

// BrainBLMCF aligns Brain language metrics on company filings.
func BrainBLMCF(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, BrainBLMCFFeed, cal, p)
}

// BrainBLMECT aligns Brain language metrics on earnings call transcripts.
func BrainBLMECT(ctx context.Context, deps Deps, cal domain.TargetCalendar, p Params) (*domain.AlignedResult, error) {
	return Align(ctx, deps, BrainBLMECTFeed, cal, p)
}
