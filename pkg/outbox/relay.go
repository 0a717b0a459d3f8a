package outbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

// Publisher delivers one outbox event downstream.
type Publisher interface {
	Publish(ctx context.Context, event models.OutboxEvent, envelope PayloadEnvelope) error
}

// RelayParams configures a Relay.
type RelayParams struct {
	Repository   *Repository
	Publisher    Publisher
	Logger       *logger.Logger
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// Relay drains unpublished outbox rows to a Publisher.
type Relay struct {
	repo         *Repository
	publisher    Publisher
	logg         *logger.Logger
	batchSize    int
	pollInterval time.Duration
	maxAttempts  int
	jitter       *rand.Rand
}

func NewRelay(params RelayParams) (*Relay, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	relay := &Relay{
		repo:         params.Repository,
		publisher:    params.Publisher,
		logg:         params.Logger,
		batchSize:    params.BatchSize,
		pollInterval: params.PollInterval,
		maxAttempts:  params.MaxAttempts,
		jitter:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if relay.batchSize <= 0 {
		relay.batchSize = defaultBatchSize
	}
	if relay.pollInterval <= 0 {
		relay.pollInterval = defaultPoll
	}
	if relay.maxAttempts <= 0 {
		relay.maxAttempts = defaultMaxAttempts
	}
	return relay, nil
}

// Run polls until ctx is canceled, backing off after failed batches.
func (r *Relay) Run(ctx context.Context) error {
	backoff := r.pollInterval
	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "outbox relay stopped")
			return ctx.Err()
		default:
		}

		processed, err := r.ProcessBatch(ctx)
		if err != nil {
			r.logg.Error(ctx, "outbox relay batch error", err)
			backoff = nextBackoff(backoff, r.pollInterval, maxBackoff)
			if err := sleep(ctx, r.withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = r.pollInterval
		if processed >= r.batchSize {
			r.logBacklog(ctx)
		}
		if processed > 0 {
			continue
		}
		if err := sleep(ctx, r.withJitter(r.pollInterval)); err != nil {
			return err
		}
	}
}

// ProcessBatch publishes one batch and returns how many events were attempted.
// Bookkeeping failures do not stop the batch; they are combined into the
// returned error so Run backs off.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	events, err := r.repo.FetchUnpublished(ctx, r.batchSize, r.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished: %w", err)
	}
	var errs error
	for _, event := range events {
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"outbox_id":      event.ID.String(),
			"event_type":     event.EventType,
			"aggregate_id":   event.AggregateID,
			"aggregate_type": event.AggregateType,
			"attempt_count":  event.AttemptCount,
		})

		envelope, err := DecodeEnvelope(event.Payload)
		if err == nil {
			err = r.publisher.Publish(ctx, event, envelope)
		}
		if err != nil {
			r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "outbox publish failed")
			if markErr := r.repo.MarkFailed(ctx, event.ID, err); markErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("mark failure %s: %w", event.ID, markErr))
			}
			continue
		}
		if err := r.repo.MarkPublished(ctx, event.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mark published %s: %w", event.ID, err))
			continue
		}
		r.logg.Info(logCtx, "outbox event published")
	}
	return len(events), errs
}

func (r *Relay) logBacklog(ctx context.Context) {
	pending, err := r.repo.CountPending(ctx, r.maxAttempts)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox backlog count failed")
		return
	}
	r.logg.Info(r.logg.WithField(ctx, "pending", pending), "outbox backlog")
}

func (r *Relay) withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(r.jitter.Int63n(int64(jitterWindow)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}
