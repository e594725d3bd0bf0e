package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/lifetimes"
	"cltv-analytics/internal/models"
	"cltv-analytics/internal/observability"
)

// Source yields the raw transaction rows of one run.
type Source interface {
	Load(ctx context.Context) ([]models.Transaction, error)
}

type Options struct {
	Cutoff       time.Time
	DiscountRate float64
	Clean        CleanOptions
	// CLVHorizons are in months, PurchaseHorizons in model periods.
	CLVHorizons      []int
	PurchaseHorizons []int
	SegmentHorizon   int
	TimeUnit         lifetimes.TimeUnit
}

// validate rejects horizons the projection step cannot honour. Segments
// are cut on one of the CLV horizons, so that horizon must be projected.
func (o Options) validate() error {
	for _, h := range o.CLVHorizons {
		if h <= 0 {
			return apperrors.Validation(fmt.Sprintf("CLV horizon must be positive, got %d months", h))
		}
	}
	for _, h := range o.PurchaseHorizons {
		if h <= 0 {
			return apperrors.Validation(fmt.Sprintf("purchase horizon must be positive, got %d periods", h))
		}
	}
	if !slices.Contains(o.CLVHorizons, o.SegmentHorizon) {
		return apperrors.Validation(fmt.Sprintf("segment horizon %d months is not among the CLV horizons %v",
			o.SegmentHorizon, o.CLVHorizons))
	}
	return nil
}

type Result struct {
	RunID       string                  `json:"run_id"`
	Cutoff      time.Time               `json:"cutoff"`
	Clean       CleanStats              `json:"clean"`
	Projections []models.Projection     `json:"projections"`
	Segments    []models.SegmentSummary `json:"segments"`
	Model       models.ModelSummary     `json:"model"`
	Options     Options                 `json:"-"`
	CompletedAt time.Time               `json:"completed_at"`
}

type Pipeline struct {
	mu     sync.RWMutex
	result *Result
	fitter lifetimes.Fitter
	opts   Options
	logger *slog.Logger
}

func NewPipeline(fitter lifetimes.Fitter, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		result: &Result{Options: opts},
		fitter: fitter,
		opts:   opts,
		logger: logger,
	}
}

// Run executes every stage in order and keeps the result for the query
// methods. Any stage failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	ctx, span := observability.StartSpan(ctx, "cltv.run")
	span.SetTag("run_id", runID)
	defer span.End(logger)

	result, err := p.run(ctx, src, logger)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	result.RunID = runID

	p.SetResult(result)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, src Source, logger *slog.Logger) (*Result, error) {
	if err := p.opts.validate(); err != nil {
		return nil, err
	}

	_, span := observability.StartSpan(ctx, "cltv.ingest")
	raw, err := src.Load(ctx)
	span.SetTag("rows", strconv.Itoa(len(raw)))
	if err != nil {
		span.SetError(err)
		span.End(logger)
		return nil, fmt.Errorf("ingest: %w", err)
	}
	span.End(logger)

	_, span = observability.StartSpan(ctx, "cltv.clean")
	cleaned, cleanStats := Clean(raw, p.opts.Clean)
	span.SetTag("rows", strconv.Itoa(len(cleaned)))
	span.End(logger)
	logger.Info("transactions cleaned",
		"input", cleanStats.Input,
		"incomplete", cleanStats.Incomplete,
		"cancelled", cleanStats.Cancelled,
		"non_positive_quantity", cleanStats.NonPositiveQuantity,
		"non_positive_price", cleanStats.NonPositivePrice,
		"other_country", cleanStats.OtherCountry,
		"output", cleanStats.Output,
	)

	_, span = observability.StartSpan(ctx, "cltv.aggregate")
	features, err := Aggregate(cleaned, p.opts.Cutoff)
	span.SetTag("customers", strconv.Itoa(len(features)))
	if err != nil {
		span.SetError(err)
		span.End(logger)
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	span.End(logger)
	if len(features) == 0 {
		return nil, apperrors.ModelFit("no repeat customers left to fit")
	}
	logger.Info("customer features aggregated", "customers", len(features))

	_, span = observability.StartSpan(ctx, "cltv.fit")
	freqModel, err := p.fitter.FitFrequency(ctx, features)
	if err != nil {
		span.SetError(err)
		span.End(logger)
		return nil, fmt.Errorf("fit frequency model: %w", err)
	}
	monModel, err := p.fitter.FitMonetary(ctx, features)
	if err != nil {
		span.SetError(err)
		span.End(logger)
		return nil, fmt.Errorf("fit monetary model: %w", err)
	}
	span.End(logger)
	logger.Info("models fitted",
		"frequency_params", freqModel.Params(),
		"monetary_params", monModel.Params(),
	)

	_, span = observability.StartSpan(ctx, "cltv.predict")
	projections, err := p.project(freqModel, monModel, features)
	span.End(logger)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	return &Result{
		Cutoff:      p.opts.Cutoff,
		Clean:       cleanStats,
		Projections: projections,
		Segments:    SummarizeSegments(projections, p.opts.SegmentHorizon),
		Model: models.ModelSummary{
			FrequencyParams: freqModel.Params(),
			MonetaryParams:  monModel.Params(),
			Customers:       len(features),
			FittedAt:        time.Now().UTC(),
		},
		Options:     p.opts,
		CompletedAt: time.Now().UTC(),
	}, nil
}

func (p *Pipeline) project(freq lifetimes.FrequencyModel, mon lifetimes.MonetaryModel,
	features []models.CustomerFeatures) ([]models.Projection, error) {

	profit := lifetimes.ExpectedProfit(mon, features)

	purchases := make(map[int][]float64, len(p.opts.PurchaseHorizons))
	for _, h := range p.opts.PurchaseHorizons {
		purchases[h] = lifetimes.PredictPurchases(freq, float64(h), features)
	}

	clv := make(map[int][]float64, len(p.opts.CLVHorizons))
	for _, months := range p.opts.CLVHorizons {
		values, err := lifetimes.ProjectValue(freq, mon, features, months, p.opts.TimeUnit, p.opts.DiscountRate)
		if err != nil {
			return nil, err
		}
		clv[months] = values
	}

	segments := Segment(clv[p.opts.SegmentHorizon])

	projections := make([]models.Projection, len(features))
	for i, f := range features {
		proj := models.Projection{
			CustomerFeatures:      f,
			ExpectedAverageProfit: profit[i],
			ExpectedPurchases:     make(map[int]float64, len(purchases)),
			CLV:                   make(map[int]float64, len(clv)),
			Segment:               segments[i],
		}
		for h, values := range purchases {
			proj.ExpectedPurchases[h] = values[i]
		}
		for h, values := range clv {
			proj.CLV[h] = values[i]
		}
		projections[i] = proj
	}
	return projections, nil
}

func (p *Pipeline) SetResult(r *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = r
}

func (p *Pipeline) Result() *Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result
}

func (p *Pipeline) Projections() []models.Projection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result.Projections
}

// TopByCLV returns up to limit customers with the highest CLV at the given
// month horizon.
func (p *Pipeline) TopByCLV(horizon, limit int) ([]models.Projection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !slices.Contains(p.result.Options.CLVHorizons, horizon) {
		return nil, apperrors.NotFound(fmt.Sprintf("no CLV projected for %d months", horizon))
	}
	return RankByCLV(p.result.Projections, horizon, limit), nil
}

// TopByExpectedPurchases ranks customers by purchases expected within
// horizon model periods.
func (p *Pipeline) TopByExpectedPurchases(horizon, limit int) ([]models.Projection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !slices.Contains(p.result.Options.PurchaseHorizons, horizon) {
		return nil, apperrors.NotFound(fmt.Sprintf("no purchases predicted for %d periods", horizon))
	}
	return RankByExpectedPurchases(p.result.Projections, horizon, limit), nil
}

// RankByCLV sorts a copy of projections by CLV at horizon months, highest
// first. A negative limit keeps every row.
func RankByCLV(projections []models.Projection, horizon, limit int) []models.Projection {
	return topBy(projections, limit, func(pr models.Projection) float64 { return pr.CLV[horizon] })
}

func RankByExpectedPurchases(projections []models.Projection, horizon, limit int) []models.Projection {
	return topBy(projections, limit, func(pr models.Projection) float64 { return pr.ExpectedPurchases[horizon] })
}

func topBy(projections []models.Projection, limit int, key func(models.Projection) float64) []models.Projection {
	sorted := slices.Clone(projections)
	slices.SortStableFunc(sorted, func(a, b models.Projection) int {
		ka, kb := key(a), key(b)
		if ka > kb {
			return -1
		}
		if ka < kb {
			return 1
		}
		return 0
	})
	if limit >= 0 && len(sorted) > limit {
		return sorted[:limit]
	}
	return sorted
}

func (p *Pipeline) Segments() []models.SegmentSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result.Segments
}

func (p *Pipeline) Model() models.ModelSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result.Model
}

// Utility method for monitoring
func (p *Pipeline) Stats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]any{
		"run_id":          p.result.RunID,
		"cutoff":          p.result.Cutoff,
		"completed_at":    p.result.CompletedAt,
		"input_rows":      p.result.Clean.Input,
		"cleaned_rows":    p.result.Clean.Output,
		"customers":       len(p.result.Projections),
		"segments":        len(p.result.Segments),
		"segment_horizon": p.result.Options.SegmentHorizon,
	}
}
