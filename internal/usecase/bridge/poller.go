package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"minerva/internal/bootstrap/logging"
	domainbridge "minerva/internal/domain/bridge"
	"minerva/internal/errs"
)

// Poller is the time-driven ingress used where push webhooks are
// unavailable. Its seen-set keys pull requests by number and shares the
// injected dedup store, so a restart with the sqlite store does not
// re-process.
type Poller struct {
	svc      *Service
	interval time.Duration
	// itemDelay is a deliberate outbound rate limit between items, not a
	// correctness mechanism.
	itemDelay time.Duration

	// processed is read by the health endpoint from another goroutine.
	processed atomic.Int64

	// Overridable in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func NewPoller(svc *Service, interval time.Duration, itemDelay time.Duration) *Poller {
	return &Poller{
		svc:       svc,
		interval:  interval,
		itemDelay: itemDelay,
		sleep:     sleepCtx,
	}
}

// Processed reports how many pull requests this poller handled so far.
func (p *Poller) Processed() int {
	return int(p.processed.Load())
}

// Run polls until the context is cancelled. The first tick fires
// immediately.
func (p *Poller) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bridge.poller"))
	logging.Info(logCtx, "poller started", slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Tick(logCtx); err != nil {
			logging.Error(logCtx, "poll tick failed", slog.Any("err", errs.Loggable(err)))
		}

		select {
		case <-ctx.Done():
			logging.Info(logCtx, "poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one poll pass: list open pulls, filter by label and allow-listed
// path prefixes, skip already-seen subjects, process the rest sequentially
// with the inter-item delay. Per-item errors never abort the remaining queue.
func (p *Poller) Tick(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	pulls, err := p.svc.host.ListOpenPulls(ctx)
	if err != nil {
		return errs.Wrap(err, "list open pulls")
	}

	for _, pull := range pulls {
		if !hasLabel(pull.Labels, p.svc.cfg.Label) {
			continue
		}

		key := domainbridge.PullDedupKey(pull.Number)
		seen, err := p.svc.dedup.Seen(ctx, key)
		if err != nil {
			return errs.Wrap(err, "check poller seen-set")
		}
		if seen {
			logging.Info(ctx, "pull already handled this lifetime", slog.Int("pr", pull.Number))
			continue
		}

		touches, err := p.svc.touchesAllowedPaths(ctx, pull.Number)
		if err != nil {
			logging.Error(ctx, "path filter failed", slog.Int("pr", pull.Number), slog.Any("err", errs.Loggable(err)))
			continue
		}
		if !touches {
			logging.Info(ctx, "pull does not modify allowed paths", slog.Int("pr", pull.Number))
			// Remember the verdict so the next tick skips the file listing.
			if err := p.svc.dedup.Mark(ctx, key); err != nil {
				return errs.Wrap(err, "mark poller seen-set")
			}
			continue
		}

		if err := p.svc.ProcessPullRequest(ctx, pull); err != nil {
			logging.Error(
				ctx,
				"process pull failed",
				slog.Int("pr", pull.Number),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}

		if err := p.svc.dedup.Mark(ctx, key); err != nil {
			return errs.Wrap(err, "mark poller seen-set")
		}
		p.processed.Add(1)

		p.sleep(ctx, p.itemDelay)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
