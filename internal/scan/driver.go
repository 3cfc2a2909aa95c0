// Package scan owns the scan-record lifecycle: once a record is created or
// retried in the processing state, a deferred task eventually moves it to
// exactly one of the terminal states. The task runs detached from the
// request that triggered it; its outcome is only observable through later
// reads.
package scan

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"filescan-service/internal/config"
	"filescan-service/internal/entity"
	"filescan-service/internal/logger"
	"filescan-service/internal/model"
)

// Rand abstracts the randomness behind outcome selection so tests can pin
// each branch of the transition.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Intn(n)
}

type Driver struct {
	scans    *entity.Collection[model.ScanRecord]
	pool     *taskPool
	rnd      Rand
	minDelay time.Duration
	maxDelay time.Duration
	log      zerolog.Logger
}

func NewDriver(scans *entity.Collection[model.ScanRecord], cfg config.ScanConfig) *Driver {
	rnd := &lockedRand{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	return NewDriverWithRand(scans, cfg, rnd)
}

func NewDriverWithRand(scans *entity.Collection[model.ScanRecord], cfg config.ScanConfig, rnd Rand) *Driver {
	minDelay := cfg.MinDelay
	maxDelay := cfg.MaxDelay
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Driver{
		scans:    scans,
		pool:     newTaskPool(cfg.Workers, cfg.QueueSize),
		rnd:      rnd,
		minDelay: minDelay,
		maxDelay: maxDelay,
		log:      logger.Get(),
	}
}

func (d *Driver) Start(ctx context.Context) {
	d.pool.Start(ctx)
}

func (d *Driver) Stop() {
	d.pool.Stop()
}

// Enqueue schedules one deferred transition for the given scan id. Each
// enqueue produces exactly one mutate attempt; a retry enqueues a fresh
// task without cancelling a prior in-flight one, so two terminal writes may
// race and the last one wins.
func (d *Driver) Enqueue(id string) {
	d.pool.Submit(func(ctx context.Context) {
		d.run(ctx, id)
	})
}

func (d *Driver) run(ctx context.Context, id string) {
	log := d.log.With().Str("scan_id", id).Logger()

	delay := d.delay()
	log.Debug().Dur("delay", delay).Msg("Scan transition scheduled")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		log.Debug().Msg("Scan transition abandoned on shutdown")
		return
	case <-timer.C:
	}

	status, summary := d.outcome()

	_, err := d.scans.Mutate(ctx, id, func(rec model.ScanRecord) model.ScanRecord {
		rec.Status = status
		rec.Summary = summary
		return rec
	})
	if err == nil {
		log.Info().Str("status", string(status)).Msg("Scan transition applied")
		return
	}

	// No caller to report to; force the record into the error state and
	// otherwise only log.
	log.Error().Err(err).Msg("Scan transition failed")
	if _, perr := d.scans.Patch(ctx, id, map[string]interface{}{
		"status": string(model.ScanStatusError),
	}); perr != nil {
		log.Error().Err(perr).Msg("Failed to force scan into error state")
	}
}

func (d *Driver) delay() time.Duration {
	window := d.maxDelay - d.minDelay
	if window <= 0 {
		return d.minDelay
	}
	return d.minDelay + time.Duration(d.rnd.Float64()*float64(window))
}

// outcome draws the single random value deciding the terminal state:
// r > 0.9 errors with no summary, 0.7 < r <= 0.9 flags the file as
// suspicious, anything else completes clean.
func (d *Driver) outcome() (model.ScanStatus, *model.ScanSummary) {
	r := d.rnd.Float64()
	switch {
	case r > 0.9:
		return model.ScanStatusError, nil
	case r > 0.7:
		return model.ScanStatusFlagged, &model.ScanSummary{
			Verdict: model.VerdictSuspicious,
			Score:   d.rnd.Intn(100),
			Reasons: []string{"Contains suspicious patterns"},
		}
	default:
		return model.ScanStatusCompleted, &model.ScanSummary{
			Verdict: model.VerdictClean,
			Score:   d.rnd.Intn(100),
			Reasons: []string{},
		}
	}
}
