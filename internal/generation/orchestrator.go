package generation

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sketchbot/internal/domain"
)

// A user needs at least this many credits before any job is submitted.
const minRequiredCredits = 1

// Request is one user command worth of generation work.
type Request struct {
	UserID         string
	Options        domain.GenerateOptions
	AttachmentURLs []string
}

// Delivery is a successful, billed job ready for dispatch. Remaining is the
// user's balance after this job's debit, cumulative within the batch.
type Delivery struct {
	Spec      domain.JobSpec
	Result    domain.JobResult
	Cost      int64
	Remaining int64
}

// Orchestrator fans a request out into concurrent jobs, tracks queue depth,
// converts compute time into credits, and settles against the ledger.
type Orchestrator struct {
	ledger domain.Ledger
	runner Runner
	cost   CostModel
	logger zerolog.Logger

	// queueDepth counts jobs submitted but not yet resolved, process-wide.
	// It is observability only; nothing schedules off it.
	queueDepth atomic.Int64
}

func NewOrchestrator(ledger domain.Ledger, runner Runner, cost CostModel, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		ledger: ledger,
		runner: runner,
		cost:   cost,
		logger: logger,
	}
}

// QueueDepth reports the number of outstanding jobs across all batches.
func (o *Orchestrator) QueueDepth() int64 {
	return o.queueDepth.Load()
}

// Generate runs one batch end to end: affordability gate, concurrent
// fan-out, settlement. Failed jobs are dropped from billing and dispatch;
// the caller simply receives fewer deliveries than requested. Within a batch
// deliveries keep job-index order, matching seed order.
func (o *Orchestrator) Generate(ctx context.Context, req Request) ([]Delivery, error) {
	if len(req.AttachmentURLs) == 0 {
		return nil, domain.ErrNoAttachment
	}

	balance, err := o.ledger.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if balance < minRequiredCredits {
		return nil, domain.ErrInsufficientCredits
	}

	specs := buildSpecs(req)
	batchID := uuid.NewString()

	// Depth rises by the whole batch before any job is awaited, then falls
	// by one as each job resolves, success or not.
	depth := o.queueDepth.Add(int64(len(specs)))
	o.logger.Info().
		Str("batch_id", batchID).
		Str("user_id", req.UserID).
		Int("jobs", len(specs)).
		Int64("queue_depth", depth).
		Msg("batch submitted")

	results := make([]domain.JobResult, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			defer func() {
				remaining := o.queueDepth.Add(-1)
				o.logger.Debug().
					Str("batch_id", batchID).
					Int("job_index", spec.Index).
					Int64("queue_depth", remaining).
					Msg("job resolved")
			}()
			result, err := o.runner.Run(gctx, spec)
			if err != nil {
				return err
			}
			results[spec.Index] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Outcome undetermined for at least one job; charge nothing.
		return nil, fmt.Errorf("batch %s: %w", batchID, err)
	}

	deliveries := make([]Delivery, 0, len(results))
	for i, result := range results {
		if !result.Succeeded() {
			o.logger.Warn().
				Str("batch_id", batchID).
				Int("job_index", result.Index).
				Str("status", string(result.Status)).
				Str("error", result.Error).
				Msg("job skipped")
			continue
		}
		cost := o.cost.Cost(result.PredictTime)
		remaining, err := o.ledger.Debit(ctx, req.UserID, cost)
		if err != nil {
			return deliveries, fmt.Errorf("debit job %d: %w", result.Index, err)
		}
		o.logger.Info().
			Str("batch_id", batchID).
			Int("job_index", result.Index).
			Float64("predict_time", result.PredictTime).
			Int64("cost", cost).
			Int64("remaining", remaining).
			Msg("job billed")
		deliveries = append(deliveries, Delivery{
			Spec:      specs[i],
			Result:    result,
			Cost:      cost,
			Remaining: remaining,
		})
	}
	return deliveries, nil
}

// buildSpecs expands the request into per-job specifications with seeds
// base+index, so outputs are distinct but reproducible across the batch.
func buildSpecs(req Request) []domain.JobSpec {
	main := req.AttachmentURLs[0]
	aux := req.AttachmentURLs[1:]
	if len(aux) > 3 {
		aux = aux[:3]
	}

	specs := make([]domain.JobSpec, req.Options.NumGenerations)
	for i := range specs {
		specs[i] = domain.JobSpec{
			Index:          i,
			Seed:           req.Options.Seed + int64(i),
			Prompt:         req.Options.Prompt,
			NegativePrompt: req.Options.NegativePrompt,
			Scale:          req.Options.Scale,
			MainImageURL:   main,
			AuxImageURLs:   aux,
		}
	}
	return specs
}
