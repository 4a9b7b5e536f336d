package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/models"
	"github.com/trogers1052/market-sync/internal/provider"
)

// ErrRunInProgress is returned when another run holds the run lock
var ErrRunInProgress = errors.New("sync run already in progress")

// State is the position of one company in the sync state machine
type State string

// Sync states
const (
	StatePending     State = "PENDING"
	StateChecking    State = "CHECKING"
	StateFetching    State = "FETCHING"
	StateAligning    State = "ALIGNING"
	StateDeriving    State = "DERIVING"
	StateReconciling State = "RECONCILING"
	StateDone        State = "DONE"
	StateSkipped     State = "SKIPPED"
	StateFailed      State = "FAILED"
)

// Run kinds, also the run lock names
const (
	RunPrices = "prices"
	RunNews   = "news"
)

// EntityResult is the outcome of syncing one company
type EntityResult struct {
	Ticker   string `json:"ticker"`
	State    State  `json:"state"`
	Mode     Mode   `json:"mode,omitempty"`
	Inserted int    `json:"inserted"`
	Filled   int    `json:"filled"`
	Rejected int    `json:"rejected,omitempty"`
	Dropped  int    `json:"dropped,omitempty"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
}

func (r *EntityResult) fail(err error) {
	r.State = StateFailed
	r.Err = err
	r.Error = err.Error()
}

// RunSummary reports a full run across the company list
type RunSummary struct {
	RunID    string         `json:"run_id"`
	Kind     string         `json:"kind"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Results  []EntityResult `json:"results"`
}

// Count returns how many companies ended in state
func (s *RunSummary) Count(state State) int {
	n := 0
	for _, r := range s.Results {
		if r.State == state {
			n++
		}
	}
	return n
}

// Publisher receives sync events. Failures are logged, never fatal.
type Publisher interface {
	Publish(ctx context.Context, event models.SyncEvent) error
}

// Locker guards against overlapping runs of the same kind
type Locker interface {
	Acquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}

// Options tunes the orchestrator
type Options struct {
	Location          *time.Location
	LookbackYears     int
	FundamentalsYears int
	ToleranceDays     int
	Retries           int
	BaseDelay         time.Duration
	BatchSize         int
	BatchPause        time.Duration
	CompanyNews       int
	IndustryNews      int
	Tickers           []string
}

// Option configures optional collaborators
type Option func(*Orchestrator)

// WithPublisher publishes sync events to p
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithLocker takes a run lock before every full run
func WithLocker(l Locker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator drives the sync pipeline per company and across all companies.
// One company's failure never stops the others.
type Orchestrator struct {
	store  Store
	market provider.MarketData
	news   provider.NewsSearch

	opts      Options
	publisher Publisher
	locker    Locker
	logger    arbor.ILogger
	now       func() time.Time

	fetcher    *Fetcher
	extractor  *FundamentalsExtractor
	aligner    *Aligner
	gaps       *GapDetector
	reconciler *Reconciler
	dedup      *NewsDeduplicator
}

// NewOrchestrator wires the pipeline. news may be nil to skip industry news.
func NewOrchestrator(store Store, market provider.MarketData, news provider.NewsSearch, opts Options, logger arbor.ILogger, options ...Option) *Orchestrator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ToleranceDays == 0 {
		opts.ToleranceDays = DefaultToleranceDays
	}

	o := &Orchestrator{
		store:  store,
		market: market,
		news:   news,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
	for _, option := range options {
		option(o)
	}

	o.fetcher = NewFetcher(opts.Retries, opts.BaseDelay, logger)
	o.extractor = NewFundamentalsExtractor(opts.FundamentalsYears)
	o.aligner = NewAligner(opts.ToleranceDays)
	o.gaps = NewGapDetector(store, opts.Location, opts.LookbackYears, o.now)
	o.reconciler = NewReconciler(logger)
	o.dedup = NewNewsDeduplicator(store, opts.Location, o.now, logger)
	return o
}

// SyncAll bootstraps the configured tickers, then syncs price bars and
// fundamentals for every stored company. Only a failure to list companies,
// a held run lock or cancellation returns an error.
func (o *Orchestrator) SyncAll(ctx context.Context) (*RunSummary, error) {
	return o.run(ctx, RunPrices, func(ctx context.Context, log arbor.ILogger, summary *RunSummary) {
		for _, ticker := range o.opts.Tickers {
			ticker = normalizeTicker(ticker)
			if ticker == "" {
				continue
			}
			if _, err := o.ensureCompany(ctx, log, ticker); err != nil {
				log.Error().Err(err).Str("ticker", ticker).Msg("Failed to bootstrap company")
				res := EntityResult{Ticker: ticker}
				res.fail(err)
				summary.Results = append(summary.Results, res)
			}
		}
	}, o.syncCompany)
}

// SyncNewsAll fetches company and industry news for every stored company
func (o *Orchestrator) SyncNewsAll(ctx context.Context) (*RunSummary, error) {
	return o.run(ctx, RunNews, nil, o.syncNews)
}

// SyncEntity syncs one ticker, creating its company from the provider profile when absent
func (o *Orchestrator) SyncEntity(ctx context.Context, ticker string) EntityResult {
	ticker = normalizeTicker(ticker)
	company, err := o.ensureCompany(ctx, o.logger, ticker)
	if err != nil {
		res := EntityResult{Ticker: ticker}
		res.fail(err)
		return res
	}
	return o.syncCompany(ctx, o.logger, company)
}

func (o *Orchestrator) run(
	ctx context.Context,
	kind string,
	prepare func(context.Context, arbor.ILogger, *RunSummary),
	each func(context.Context, arbor.ILogger, *models.Company) EntityResult,
) (*RunSummary, error) {
	if o.locker != nil {
		ok, err := o.locker.Acquire(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := o.locker.Release(context.Background(), kind); err != nil {
				o.logger.Warn().Err(err).Str("kind", kind).Msg("Failed to release run lock")
			}
		}()
	}

	summary := &RunSummary{
		RunID:   uuid.NewString(),
		Kind:    kind,
		Started: o.now(),
	}
	log := o.logger.WithCorrelationId(summary.RunID)
	log.Info().Str("kind", kind).Msg("Sync run started")

	if prepare != nil {
		prepare(ctx, log, summary)
	}

	companies, err := o.store.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	var runErr error
	for i, company := range companies {
		if i > 0 && o.opts.BatchSize > 0 && i%o.opts.BatchSize == 0 {
			if err := o.pause(ctx); err != nil {
				runErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		summary.Results = append(summary.Results, each(ctx, log, company))
	}

	summary.Finished = o.now()
	log.Info().
		Str("kind", kind).
		Int("done", summary.Count(StateDone)).
		Int("skipped", summary.Count(StateSkipped)).
		Int("failed", summary.Count(StateFailed)).
		Str("elapsed", summary.Finished.Sub(summary.Started).String()).
		Msg("Sync run finished")

	o.publish(ctx, models.SyncEvent{
		EventType: models.EventRunCompleted,
		RunID:     summary.RunID,
		Done:      summary.Count(StateDone),
		Skipped:   summary.Count(StateSkipped),
		Failed:    summary.Count(StateFailed),
		Timestamp: summary.Finished,
	})

	if runErr != nil {
		return summary, fmt.Errorf("sync run aborted: %w", runErr)
	}
	return summary, nil
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.opts.BatchPause <= 0 {
		return nil
	}
	o.logger.Debug().Str("pause", o.opts.BatchPause.String()).Msg("Pausing between batches")
	timer := time.NewTimer(o.opts.BatchPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ensureCompany returns the stored company for ticker, creating it from the
// provider profile when absent.
func (o *Orchestrator) ensureCompany(ctx context.Context, log arbor.ILogger, ticker string) (*models.Company, error) {
	if ticker == "" {
		return nil, errors.New("empty ticker")
	}
	company, err := o.store.FindCompanyByTicker(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to look up company: %w", err)
	}
	if company != nil {
		return company, nil
	}

	profile, err := Fetch(ctx, o.fetcher, "entity profile", func(ctx context.Context) (*provider.Profile, error) {
		return o.market.GetEntityProfile(ctx, ticker)
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("no provider profile for %s", ticker)
	}

	company = &models.Company{
		Ticker:   ticker,
		Name:     profile.Name,
		Exchange: profile.Exchange,
		Industry: profile.Industry,
	}
	if err := o.store.CreateCompany(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	log.Info().Str("ticker", ticker).Str("name", company.Name).Msg("Company created from provider profile")
	return company, nil
}

func (o *Orchestrator) syncCompany(ctx context.Context, log arbor.ILogger, company *models.Company) EntityResult {
	res := EntityResult{Ticker: company.Ticker, State: StatePending}

	fail := func(err error) EntityResult {
		log.Error().Str("ticker", company.Ticker).Err(err).Str("state", string(res.State)).Msg("Company sync failed")
		res.fail(err)
		return res
	}

	res.State = StateChecking
	needs, err := o.gaps.NeedsUpdate(ctx, company.ID)
	if err != nil {
		return fail(err)
	}
	if !needs {
		res.State = StateSkipped
		log.Debug().Str("ticker", company.Ticker).Msg("Price data already current")
		return res
	}
	window, err := o.gaps.FetchWindow(ctx, company.ID)
	if err != nil {
		return fail(err)
	}
	res.Mode = window.Mode
	if window.Empty() {
		res.State = StateSkipped
		return res
	}

	res.State = StateFetching
	raw, err := Fetch(ctx, o.fetcher, "daily bars", func(ctx context.Context) ([]provider.RawBar, error) {
		return o.market.GetDailyBars(ctx, provider.BarsRequest{
			Symbol: company.Ticker,
			From:   window.Start,
			To:     window.End,
		})
	})
	if err != nil {
		return fail(err)
	}
	bars, rejects := NormalizeBars(company.ID, raw)
	for _, reject := range rejects {
		log.Warn().Str("ticker", company.Ticker).Err(reject).Msg("Rejected price row")
	}
	res.Rejected = len(rejects)

	// Fundamentals are best-effort; bars are stored without them.
	statements, err := Fetch(ctx, o.fetcher, "annual statements", func(ctx context.Context) (*provider.AnnualStatements, error) {
		return o.market.GetAnnualStatements(ctx, company.Ticker)
	})
	if err != nil {
		log.Warn().Str("ticker", company.Ticker).Err(err).Msg("Fundamentals unavailable, storing price bars only")
	}
	records := o.extractor.Extract(company.Ticker, statements)

	from := window.Start
	if len(records) > 0 {
		earliest := records[0].ReportDate.AddDate(0, 0, -o.opts.ToleranceDays)
		if earliest.Before(from) {
			from = earliest
		}
	}

	err = o.store.InTx(ctx, func(tx TxStore) error {
		stored, err := tx.ListPriceBars(ctx, company.ID, from, window.End)
		if err != nil {
			return fmt.Errorf("failed to load stored bars: %w", err)
		}
		storedDates := make(map[time.Time]struct{}, len(stored))
		for _, bar := range stored {
			storedDates[CivilDate(bar.Date)] = struct{}{}
		}

		var fresh []*models.PriceBar
		for _, bar := range bars {
			if _, ok := storedDates[bar.Date]; !ok {
				fresh = append(fresh, bar)
			}
		}

		res.State = StateAligning
		all := make([]*models.PriceBar, 0, len(stored)+len(fresh))
		all = append(all, stored...)
		all = append(all, fresh...)
		assignments, dropped := o.aligner.Align(records, all)
		for _, rec := range dropped {
			log.Info().Str("ticker", company.Ticker).Str("report_date", rec.ReportDate.Format(DateLayout)).Msg("Fundamentals period matched no price bar")
		}
		res.Dropped = len(dropped)

		res.State = StateDeriving
		var fills []Fill
		for _, a := range assignments {
			values := Derive(a.Bar.Close, a.Record)
			if a.Bar.EPS.Valid {
				// P/E must agree with the EPS that stays on the row
				values.PERatio = PERatio(a.Bar.Close, a.Bar.EPS)
			}
			if a.Bar.ID == 0 {
				a.Bar.Derived = a.Bar.Derived.FillFrom(values)
				continue
			}
			if a.Bar.Derived.Fillable(values) {
				fills = append(fills, Fill{Bar: a.Bar, Values: values})
			}
		}

		res.State = StateReconciling
		inserted, err := o.reconciler.UpsertBars(ctx, tx, fresh)
		if err != nil {
			return err
		}
		filled, err := o.reconciler.FillFundamentals(ctx, tx, fills)
		if err != nil {
			return err
		}
		res.Inserted, res.Filled = inserted, filled
		return nil
	})
	if err != nil {
		res.Inserted, res.Filled = 0, 0
		return fail(err)
	}

	res.State = StateDone
	log.Info().Str("ticker", company.Ticker).
		Str("mode", string(window.Mode)).
		Int("inserted", res.Inserted).
		Int("filled", res.Filled).
		Int("rejected", res.Rejected).
		Msg("Company synced")

	if res.Inserted > 0 || res.Filled > 0 {
		o.publish(ctx, models.SyncEvent{
			EventType: models.EventPricesSynced,
			Symbol:    company.Ticker,
			Inserted:  res.Inserted,
			Filled:    res.Filled,
			Timestamp: o.now(),
		})
	}
	return res
}

func (o *Orchestrator) syncNews(ctx context.Context, log arbor.ILogger, company *models.Company) EntityResult {
	res := EntityResult{Ticker: company.Ticker, State: StateFetching}

	var errs []error

	articles, err := Fetch(ctx, o.fetcher, "company news", func(ctx context.Context) ([]provider.Article, error) {
		return o.market.GetLatestNews(ctx, company.Ticker, o.opts.CompanyNews)
	})
	if err != nil {
		errs = append(errs, err)
	} else {
		n, err := o.dedup.Store(ctx, company, articles, models.NewsCategoryCompany)
		if err != nil {
			errs = append(errs, err)
		}
		res.Inserted += n
	}

	if o.news != nil && company.Industry != "" && o.opts.IndustryNews > 0 {
		articles, err := Fetch(ctx, o.fetcher, "industry news", func(ctx context.Context) ([]provider.Article, error) {
			return o.news.SearchNews(ctx, company.Industry, o.opts.IndustryNews)
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			n, err := o.dedup.Store(ctx, company, articles, models.NewsCategoryIndustry)
			if err != nil {
				errs = append(errs, err)
			}
			res.Inserted += n
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		log.Error().Str("ticker", company.Ticker).Err(err).Int("inserted", res.Inserted).Msg("News sync failed")
		res.fail(err)
		return res
	}

	res.State = StateDone
	log.Info().Str("ticker", company.Ticker).Int("inserted", res.Inserted).Msg("News synced")
	if res.Inserted > 0 {
		o.publish(ctx, models.SyncEvent{
			EventType: models.EventNewsSynced,
			Symbol:    company.Ticker,
			Inserted:  res.Inserted,
			Timestamp: o.now(),
		})
	}
	return res
}

func (o *Orchestrator) publish(ctx context.Context, event models.SyncEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn().Err(err).Str("event_type", event.EventType).Msg("Failed to publish sync event")
	}
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
