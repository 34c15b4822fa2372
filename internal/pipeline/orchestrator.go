package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/qivr/analytics-etl/internal/anonymize"
	"github.com/qivr/analytics-etl/internal/domain"
	"github.com/qivr/analytics-etl/internal/encode"
	"github.com/qivr/analytics-etl/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultLookbackDays = 30

// Publisher writes one encoded batch and returns its location.
type Publisher interface {
	Publish(ctx context.Context, d domain.Domain, w domain.Window, b *encode.Batch) (string, error)
}

type Options struct {
	Format       encode.Format
	Compression  encode.Compression
	OutcomesMode domain.OutcomeMode
	LookbackDays int
	// Parallel runs the domains concurrently over the shared session.
	Parallel bool
	// Domains restricts a run to a subset; empty means all three.
	Domains []domain.Domain
}

type RunRequest struct {
	RunID string
	// LogicalDate is the day the run is for. Zero means today (UTC).
	LogicalDate time.Time
	// LookbackDays overrides the configured lookback when positive.
	LookbackDays int
}

// Orchestrator drives extract, transform, encode and publish for each domain.
// A failure in one domain never stops the others; only a connection failure
// ends a run early.
type Orchestrator struct {
	connector domain.Connector
	anon      *anonymize.Anonymizer
	publisher Publisher
	opts      Options
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func New(connector domain.Connector, anon *anonymize.Anonymizer, publisher Publisher, opts Options, m *metrics.Metrics, logger *zap.Logger) (*Orchestrator, error) {
	if opts.Format == "" {
		opts.Format = encode.FormatParquet
	}
	if opts.Compression == "" {
		opts.Compression = encode.CompressionNone
	}
	switch opts.OutcomesMode {
	case "":
		opts.OutcomesMode = domain.OutcomeModeAggregate
	case domain.OutcomeModeAggregate, domain.OutcomeModeIndividual:
	default:
		return nil, fmt.Errorf("unknown outcomes mode %q", opts.OutcomesMode)
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	if len(opts.Domains) == 0 {
		opts.Domains = domain.Domains
	}
	for _, d := range opts.Domains {
		if !slices.Contains(domain.Domains, d) {
			return nil, fmt.Errorf("unknown domain %q", d)
		}
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Orchestrator{
		connector: connector,
		anon:      anon,
		publisher: publisher,
		opts:      opts,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Run executes one run. The returned error is non-nil only when the store
// cannot be reached, at connect time or after an extract fails and a ping
// confirms it is gone; every other failure is reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*Summary, error) {
	start := o.now()
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.LogicalDate.IsZero() {
		req.LogicalDate = start
	}
	lookback := o.opts.LookbackDays
	if req.LookbackDays > 0 {
		lookback = req.LookbackDays
	}
	w := domain.NewWindow(req.LogicalDate, lookback)
	logger := o.logger.With(zap.String("run_id", req.RunID), zap.String("logical_date", w.Partition()))

	logger.Info("run started",
		zap.Time("window_start", w.Start),
		zap.Time("window_end", w.End),
		zap.String("format", string(o.opts.Format)),
		zap.Bool("parallel", o.opts.Parallel))

	session, err := o.connector.Connect(ctx)
	if err != nil {
		o.metrics.DomainFailures.WithLabelValues("", string(StageConnect)).Inc()
		o.metrics.RunsTotal.WithLabelValues(string(RunFailed)).Inc()
		logger.Error("run aborted: cannot connect to store", zap.Error(err))
		return nil, &StageError{Stage: StageConnect, Err: err}
	}
	defer session.Close()

	results := make([]*DomainResult, len(o.opts.Domains))
	var fatal error
	if o.opts.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, d := range o.opts.Domains {
			g.Go(func() error {
				res, err := o.runDomain(gctx, session, d, w, logger)
				results[i] = res
				return err
			})
		}
		fatal = g.Wait()
	} else {
		for i, d := range o.opts.Domains {
			results[i], fatal = o.runDomain(ctx, session, d, w, logger)
			if fatal != nil {
				break
			}
		}
	}
	if fatal != nil {
		o.metrics.RunsTotal.WithLabelValues(string(RunFailed)).Inc()
		logger.Error("run aborted: lost connection to store", zap.Error(fatal))
		return nil, fatal
	}

	summary := &Summary{
		RunID:       req.RunID,
		LogicalDate: w.Partition(),
		Domains:     make(map[domain.Domain]*DomainResult, len(results)),
	}
	for i, d := range o.opts.Domains {
		summary.Domains[d] = results[i]
	}
	summary.finalize()

	elapsed := o.now().Sub(start)
	summary.DurationMs = elapsed.Milliseconds()
	o.metrics.RunDuration.Observe(elapsed.Seconds())
	o.metrics.RunsTotal.WithLabelValues(string(summary.Status)).Inc()

	logger.Info("run finished",
		zap.String("status", string(summary.Status)),
		zap.Int("total_records", summary.TotalRecords),
		zap.Strings("locations", summary.Locations()),
		zap.Duration("duration", elapsed))
	return summary, nil
}

// runDomain processes one domain. It returns an error only when an extract
// failed because the store itself became unreachable.
func (o *Orchestrator) runDomain(ctx context.Context, s domain.Session, d domain.Domain, w domain.Window, logger *zap.Logger) (*DomainResult, error) {
	logger = logger.With(zap.String("domain", string(d)))
	res := &DomainResult{}

	var (
		out *processed
		err *StageError
	)
	switch d {
	case domain.DomainTenants:
		out, err = process(ctx, d, w, s.ExtractTenants, o.anon.Tenants, o.opts)
	case domain.DomainUsage:
		out, err = process(ctx, d, w, s.ExtractUsage,
			func(rows []domain.UsageRow) ([]domain.UsageRecord, anonymize.Stats) { return o.anon.Usage(rows, w) },
			o.opts)
	case domain.DomainOutcomes:
		if o.opts.OutcomesMode == domain.OutcomeModeIndividual {
			out, err = process(ctx, d, w, s.ExtractOutcomes,
				func(obs []domain.OutcomeObservation) ([]domain.AnonymizedIndividualRecord, anonymize.Stats) {
					return o.anon.Individuals(obs, w.LogicalDate)
				},
				o.opts)
		} else {
			out, err = process(ctx, d, w, s.ExtractOutcomes,
				func(obs []domain.OutcomeObservation) ([]domain.OutcomeAggregate, anonymize.Stats) {
					return o.anon.Aggregates(obs, w.LogicalDate)
				},
				o.opts)
		}
	}
	if out != nil {
		res.Extracted = out.extracted
		res.SuppressedGroups = out.stats.SuppressedGroups
		res.DefaultedFields = out.stats.Defaulted
		o.metrics.RecordsExtracted.WithLabelValues(string(d)).Add(float64(out.extracted))
		o.metrics.GroupsSuppressed.WithLabelValues(string(d)).Add(float64(out.stats.SuppressedGroups))
		o.metrics.FieldsDefaulted.WithLabelValues(string(d)).Add(float64(out.stats.Defaulted))
	}
	if err != nil {
		if err.Stage == StageExtract {
			if perr := s.Ping(ctx); perr != nil {
				o.metrics.DomainFailures.WithLabelValues(string(d), string(StageConnect)).Inc()
				return o.failed(res, err, logger), &StageError{Domain: d, Stage: StageConnect, Err: perr}
			}
		}
		return o.failed(res, err, logger), nil
	}

	if out.batch == nil {
		res.Status = DomainEmpty
		logger.Info("nothing to publish", zap.Int("extracted", out.extracted))
		return res, nil
	}

	location, perr := o.publisher.Publish(ctx, d, w, out.batch)
	if perr != nil {
		return o.failed(res, &StageError{Domain: d, Stage: StagePublish, Err: perr}, logger), nil
	}

	res.Status = DomainPublished
	res.Location = location
	res.Records = out.batch.Records
	o.metrics.RecordsPublished.WithLabelValues(string(d)).Add(float64(res.Records))
	o.metrics.LastPublished.WithLabelValues(string(d)).Set(float64(o.now().Unix()))
	logger.Info("domain published",
		zap.String("location", location),
		zap.Int("records", res.Records),
		zap.Int("suppressed_groups", res.SuppressedGroups),
		zap.Int("defaulted_fields", res.DefaultedFields))
	return res, nil
}

func (o *Orchestrator) failed(res *DomainResult, err *StageError, logger *zap.Logger) *DomainResult {
	res.fail(err)
	o.metrics.DomainFailures.WithLabelValues(string(err.Domain), string(err.Stage)).Inc()
	logger.Error("domain failed", zap.String("stage", string(err.Stage)), zap.Error(err.Err))
	return res
}

type processed struct {
	batch     *encode.Batch
	extracted int
	stats     anonymize.Stats
}

// process runs extract, transform and encode for one record type.
func process[R, T any](
	ctx context.Context,
	d domain.Domain,
	w domain.Window,
	extract func(context.Context, domain.Window) ([]R, error),
	transform func([]R) ([]T, anonymize.Stats),
	opts Options,
) (*processed, *StageError) {
	rows, err := extract(ctx, w)
	if err != nil {
		return nil, &StageError{Domain: d, Stage: StageExtract, Err: err}
	}
	recs, st := transform(rows)
	out := &processed{extracted: len(rows), stats: st}

	out.batch, err = encode.Encode(opts.Format, opts.Compression, recs)
	if err != nil {
		return out, &StageError{Domain: d, Stage: StageEncode, Err: err}
	}
	return out, nil
}
